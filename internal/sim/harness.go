package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gurkebaui/sun/internal/inference"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/orchestrator"
	"github.com/gurkebaui/sun/internal/regulator"
	"github.com/gurkebaui/sun/internal/state"
	"github.com/gurkebaui/sun/internal/vigilance"
)

// #region types

// Events recorded per tick.
const (
	EventSleep     = "sleep"
	EventStayAwake = "stay_awake"
	EventWake      = "wake"
	EventForceWake = "force_wake"
	EventAlarm     = "alarm"
	EventError     = "error"
)

// TickRecord is the agent state after one simulated tick or control action.
type TickRecord struct {
	Step      string
	Tick      int64
	Arousal   float64
	Valence   float64
	Pressure  float64
	Sleeping  bool
	Event     string
	WakeBonus float64
	Answer    string
}

// Summary aggregates a run.
type Summary struct {
	Ticks         int
	SleepEpisodes int
	NaturalWakes  int
	ForcedWakes   int
	Alarms        int
	Errors        int
	WakeBonuses   []float64
	MaxPressure   float64
	Memories      int
	EndsAsleep    bool
}

// Options override the agent constants for a run.
type Options struct {
	Agent     orchestrator.Config
	Regulator regulator.Config
	Vigilance vigilance.Config
	Generator orchestrator.Generator // nil uses an offline echo backend
}

// DefaultOptions returns default constants with the offline backend.
func DefaultOptions() Options {
	return Options{
		Agent:     orchestrator.DefaultConfig(),
		Regulator: regulator.DefaultConfig(),
		Vigilance: vigilance.DefaultConfig(),
	}
}

// #endregion types

// #region run

// Run plays script against a fresh agent backed by an in-process memory store.
func Run(ctx context.Context, script *Script, opts Options) ([]TickRecord, Summary, error) {
	if err := script.overlay(&opts); err != nil {
		return nil, Summary{}, err
	}
	gen := opts.Generator
	if gen == nil {
		gen = &inference.Static{}
	}

	store := memory.NewMemStore()
	defer store.Close()
	agent, err := orchestrator.New(opts.Agent, opts.Regulator, opts.Vigilance, orchestrator.Deps{
		Generator: gen,
		Memory:    store,
	})
	if err != nil {
		return nil, Summary{}, err
	}
	err = agent.Restore(state.Snapshot{
		Arousal:   script.Start.Arousal,
		Valence:   script.Start.Valence,
		Regulator: regulator.State{SleepPressure: script.Start.SleepPressure},
	})
	if err != nil {
		return nil, Summary{}, fmt.Errorf("start state: %w", err)
	}

	var records []TickRecord
	var sum Summary
	snapshot := func(step, event string, bonus float64, answer string) {
		st := agent.Status()
		records = append(records, TickRecord{
			Step:      step,
			Tick:      st.Tick,
			Arousal:   st.Mood.Arousal,
			Valence:   st.Mood.Valence,
			Pressure:  st.Regulator.SleepPressure,
			Sleeping:  st.Regulator.Sleeping,
			Event:     event,
			WakeBonus: bonus,
			Answer:    answer,
		})
		sum.MaxPressure = math.Max(sum.MaxPressure, st.Regulator.SleepPressure)
	}

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return records, sum, err
		}
		label := step.Label
		if label == "" {
			label = fmt.Sprintf("step-%d", i+1)
		}

		if step.Remember != "" {
			agent.Remember(step.Remember)
		}
		if step.Nudge != nil {
			if err := agent.Nudge(step.Nudge.DX, step.Nudge.DY); err != nil {
				return records, sum, fmt.Errorf("%s: %w", label, err)
			}
		}
		if step.Wake {
			if res, ok := agent.Wake(); ok {
				sum.ForcedWakes++
				sum.WakeBonuses = append(sum.WakeBonuses, res.WakeBonus)
				snapshot(label, EventForceWake, res.WakeBonus, "")
			}
		}
		if step.Stimulus != nil && agent.HandleStimulus(*step.Stimulus) {
			sum.Alarms++
			snapshot(label, EventAlarm, 0, "")
		}

		ticks := step.Ticks
		if ticks == 0 && step.Say != "" {
			ticks = 1
		}
		for n := 0; n < ticks; n++ {
			say := ""
			if n == 0 {
				say = step.Say
			}
			res, err := agent.Tick(ctx, say)
			sum.Ticks++

			event := ""
			switch {
			case err != nil:
				var se *orchestrator.StageError
				if !errors.As(err, &se) {
					return records, sum, err
				}
				sum.Errors++
				event = EventError
			case res.Woke:
				event = EventWake
			case res.EnteredSleep:
				event = EventSleep
			case res.StayedAwake:
				event = EventStayAwake
			}
			// a tick that fails consolidation still entered sleep
			if res.EnteredSleep {
				sum.SleepEpisodes++
			}
			if res.Woke {
				sum.NaturalWakes++
				sum.WakeBonuses = append(sum.WakeBonuses, res.WakeBonus)
			}
			snapshot(label, event, res.WakeBonus, res.Answer)
		}
	}

	sum.EndsAsleep = agent.Status().Regulator.Sleeping
	sum.Memories, err = store.Count(ctx)
	if err != nil {
		return records, sum, err
	}
	return records, sum, nil
}

// #endregion run
