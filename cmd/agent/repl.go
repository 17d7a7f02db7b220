package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/monitor"
	"github.com/gurkebaui/sun/internal/orchestrator"
	"github.com/gurkebaui/sun/internal/vigilance"
)

const nudgeStep = 10

// #region repl

type repl struct {
	agent *orchestrator.Agent
	mem   memory.Store
	say   func(string)
	out   io.Writer
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "Sun is awake. Type to talk, 'help' for commands, 'quit' to exit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := r.exec(ctx, line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		r.help()
	case "status":
		return r.status(ctx)
	case "tick":
		n := 1
		if rest != "" {
			v, err := strconv.Atoi(rest)
			if err != nil || v < 1 {
				return fmt.Errorf("tick: want a positive count, got %q", rest)
			}
			n = v
		}
		// failures already reach the tick printer
		for i := 0; i < n && ctx.Err() == nil; i++ {
			if _, err := r.agent.Background(ctx); err != nil {
				break
			}
		}
	case "add_mem":
		if rest == "" {
			return fmt.Errorf("add_mem: text required")
		}
		meta := r.agent.Status().Mood.Metadata()
		meta["source"] = "manual"
		meta["recorded_at"] = time.Now().UTC().Format(time.RFC3339)
		if err := r.mem.Add(ctx, rest, meta); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "stored")
	case "buffer":
		exps := r.agent.Experiences()
		if len(exps) == 0 {
			fmt.Fprintln(r.out, "buffer empty")
		}
		for _, e := range exps {
			fmt.Fprintf(r.out, "[%d] (%.0f, %.0f) %s\n", e.Tick, e.Mood.Arousal, e.Mood.Valence, e.Text)
		}
	case "view_mem":
		return r.viewMemories(ctx, rest)
	case "reward", "punish", "stress", "calm":
		v := float64(nudgeStep)
		if rest != "" {
			f, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return fmt.Errorf("%s: bad amount %q", cmd, rest)
			}
			v = f
		}
		switch cmd {
		case "reward":
			return r.agent.Nudge(0, v)
		case "punish":
			return r.agent.Nudge(0, -v)
		case "stress":
			return r.agent.Nudge(v, 0)
		default:
			return r.agent.Nudge(-v, 0)
		}
	case "wake":
		res, ok := r.agent.Wake()
		if !ok {
			fmt.Fprintln(r.out, "already awake")
			return nil
		}
		fmt.Fprintf(r.out, "woken, bonus %.2f\n", res.WakeBonus)
	case "stimulus":
		level, typ, _ := strings.Cut(rest, " ")
		intensity, err := strconv.ParseFloat(level, 64)
		if err != nil {
			return fmt.Errorf("usage: stimulus <intensity> [type]")
		}
		if typ = strings.TrimSpace(typ); typ == "" {
			typ = "noise"
		}
		if r.agent.HandleStimulus(vigilance.Stimulus{Type: typ, Intensity: intensity}) {
			fmt.Fprintln(r.out, "ALARM: sleep interrupted")
		} else {
			fmt.Fprintln(r.out, "ignored")
		}
	default:
		r.say(line)
	}
	return nil
}

func (r *repl) status(ctx context.Context) error {
	st := r.agent.Status()
	count, err := r.mem.Count(ctx)
	if err != nil {
		return err
	}
	state := "awake"
	if st.Regulator.Sleeping {
		state = fmt.Sprintf("asleep for %d ticks", st.Regulator.SleepDuration)
	}
	fmt.Fprintf(r.out, "tick %d, %s\n", st.Tick, state)
	fmt.Fprintf(r.out, "  mood:     arousal %.2f, valence %.2f\n", st.Mood.Arousal, st.Mood.Valence)
	fmt.Fprintf(r.out, "  pressure: %.2f (wants sleep: %v)\n", st.Regulator.SleepPressure, st.WantsRest)
	fmt.Fprintf(r.out, "  params:   temperature %.2f, skip rate %.2f, attention %.2f\n", st.Params.Temperature, st.Params.SkipRate, st.Params.AttentionGain)
	fmt.Fprintf(r.out, "  memory:   %d stored, %d buffered\n", count, st.Buffered)
	return nil
}

func (r *repl) viewMemories(ctx context.Context, args string) error {
	n := 5
	fields := strings.Fields(args)
	for i := 0; i < len(fields); i++ {
		if fields[i] == "--latest" && i+1 < len(fields) {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil || v < 1 {
				return fmt.Errorf("view_mem: bad count %q", fields[i+1])
			}
			n = v
			i++
		}
	}
	recs, err := r.mem.Latest(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(r.out, "no memories")
	}
	for _, rec := range recs {
		fmt.Fprintf(r.out, "[%s] %s\n", rec.CreatedAt.Format("2006-01-02 15:04"), rec.Text)
	}
	return nil
}

func (r *repl) help() {
	fmt.Fprintln(r.out, `commands:
  status                     mood, pressure and memory counts
  tick [n]                   run n background ticks
  add_mem <text>             store a memory directly
  buffer                     show unconsolidated experiences
  view_mem [--latest n]      show the newest memories
  reward | punish [v]        valence +/- v (default 10)
  stress | calm [v]          arousal +/- v (default 10)
  wake                       wake the agent now
  stimulus <level> [type]    send an external event
  quit                       save and exit
anything else is said to the agent`)
}

// #endregion repl

// #region output

type tickPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func (p *tickPrinter) print(res orchestrator.TickResult, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case err != nil:
		fmt.Fprintf(p.out, "\n[tick %d] error: %v\n", res.Tick, err)
	case res.EnteredSleep:
		fmt.Fprintf(p.out, "\n[tick %d] falling asleep, %d experiences consolidated\n", res.Tick, res.Flushed)
		if p.verbose && res.Lesson != "" {
			fmt.Fprintf(p.out, "  lesson: %s\n", res.Lesson)
		}
	case res.Woke:
		fmt.Fprintf(p.out, "\n[tick %d] woke up, bonus %.2f\n", res.Tick, res.WakeBonus)
	case res.Answer != "":
		if p.verbose && res.Thought != "" {
			fmt.Fprintf(p.out, "\n(%s)\n", res.Thought)
		}
		fmt.Fprintf(p.out, "\n%s\n\n", res.Answer)
	}
}

// chatReply returns the answer owed to the chat source. Answers to REPL and
// monitor input stay off the chat.
func chatReply(res orchestrator.TickResult) (string, bool) {
	if res.Answer == "" || res.Override {
		return "", false
	}
	return res.Answer, true
}

func tickEvent(res orchestrator.TickResult, err error) monitor.Event {
	data := map[string]any{"result": res}
	if err != nil {
		data["error"] = err.Error()
	}
	return monitor.Event{Type: monitor.EventTick, Data: data}
}

// #endregion output
