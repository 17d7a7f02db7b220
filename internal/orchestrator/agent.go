package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gurkebaui/sun/internal/affect"
	"github.com/gurkebaui/sun/internal/interior"
	"github.com/gurkebaui/sun/internal/logging"
	"github.com/gurkebaui/sun/internal/logx"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/modulation"
	"github.com/gurkebaui/sun/internal/perception"
	"github.com/gurkebaui/sun/internal/regulator"
	"github.com/gurkebaui/sun/internal/retrieval"
	"github.com/gurkebaui/sun/internal/state"
	"github.com/gurkebaui/sun/internal/vigilance"
)

// #endregion

// #region agent-struct

// Agent owns the mood, the sleep regulator and the short-term experience
// buffer, and drives them one tick at a time.
//
// mu guards affect, reg, gate, buffer and the tick bookkeeping. It is never
// held while a collaborator runs, so HandleStimulus applies at once even
// while an inference call is in flight. tickMu serializes whole ticks.
type Agent struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	retriever *retrieval.Retriever

	tickMu sync.Mutex

	mu          sync.Mutex
	affect      *affect.State
	reg         *regulator.Regulator
	gate        *vigilance.Gate
	buffer      []Experience
	tick        int64
	lastValence float64
	haveLast    bool
}

// New wires an agent at neutral mood with zero sleep pressure.
func New(cfg Config, regCfg regulator.Config, gateCfg vigilance.Config, deps Deps) (*Agent, error) {
	if deps.Generator == nil {
		return nil, errors.New("orchestrator: generator is required")
	}
	if deps.Memory == nil {
		return nil, errors.New("orchestrator: memory store is required")
	}
	return &Agent{
		cfg:       cfg,
		deps:      deps,
		log:       logx.Component("orch"),
		retriever: retrieval.NewRetriever(deps.Memory, cfg.Retrieval),
		affect:    affect.New(0, 0),
		reg:       regulator.New(regCfg),
		gate:      vigilance.NewGate(gateCfg),
	}, nil
}

// #endregion

// #region tick

// Tick runs one full cycle. override, when non-empty, is treated as speech
// and replaces passive perception for this tick.
//
// A *StageError means a collaborator failed. The background step has already
// been committed when that happens.
func (a *Agent) Tick(ctx context.Context, override string) (TickResult, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	res, err := a.backgroundLocked(ctx)
	if err != nil || res.Sleeping() {
		return a.observe(res, err)
	}
	err = a.conscious(ctx, override, &res)
	if err != nil {
		a.recordError(res, err)
	}
	return a.observe(res, err)
}

// Background runs only the homeostatic part of a tick: reflex, regulator,
// sleep decision and consolidation.
func (a *Agent) Background(ctx context.Context) (TickResult, error) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return a.observe(a.backgroundLocked(ctx))
}

func (a *Agent) observe(res TickResult, err error) (TickResult, error) {
	if a.deps.Observer != nil {
		a.deps.Observer(res, err)
	}
	return res, err
}

// #endregion

// #region background

// backgroundLocked expects tickMu to be held.
func (a *Agent) backgroundLocked(ctx context.Context) (TickResult, error) {
	res := TickResult{ID: uuid.New().String()}

	a.mu.Lock()
	a.tick++
	res.Tick = a.tick

	// reflex compares against last tick's pre-update valence
	y := a.affect.Valence()
	if a.cfg.ReflexEnabled && a.haveLast {
		change := y - a.lastValence
		switch {
		case change < -a.cfg.ReflexThreshold:
			_ = a.affect.Update(a.cfg.ReflexAmount, 0)
		case change > a.cfg.ReflexThreshold:
			_ = a.affect.Update(-a.cfg.ReflexAmount, 0)
		}
	}
	a.lastValence, a.haveLast = y, true

	upd := a.reg.Update(a.affect.Arousal())
	_ = a.affect.Update(upd.DeltaX, upd.DeltaY)
	res.Woke, res.WakeBonus = upd.Woke, upd.WakeBonus

	var drained []Experience
	var decision vigilance.Decision
	if a.reg.WantsSleep() && !a.reg.IsSleeping() {
		decision = a.gate.EvaluateSleep(a.affect.Arousal())
		if decision.Action == vigilance.ActionSleep {
			_ = a.affect.Set(a.cfg.SleepArousal, a.affect.Valence())
			a.reg.EnterSleep()
			drained = a.buffer
			a.buffer = nil
			res.EnteredSleep = true
		} else {
			res.StayedAwake = true
		}
	}
	a.fillLocked(&res)
	rec := a.recordLocked()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	switch {
	case res.Woke:
		a.log.Info().Int64("tick", res.Tick).Float64("bonus", res.WakeBonus).Msg("woke naturally")
		a.checkpoint(snap, logging.EventWake, logging.EventWake, "pressure recovered", rec)
	case res.EnteredSleep:
		a.log.Info().Int64("tick", res.Tick).Int("buffered", len(drained)).Msg(decision.Reason)
		rec.Flushed = len(drained)
		a.checkpoint(snap, logging.EventSleepEntry, string(decision.Action), decision.Reason, rec)
	case res.StayedAwake:
		a.log.Debug().Int64("tick", res.Tick).Msg(decision.Reason)
		a.record(logging.ProvenanceEntry{Tick: res.Tick, Event: logging.EventStayAwake, Decision: string(decision.Action), Reason: decision.Reason}, rec)
	}

	if !res.EnteredSleep {
		return res, nil
	}
	if err := a.consolidate(ctx, &res, drained); err != nil {
		a.recordError(res, err)
		return res, err
	}
	return res, nil
}

// fillLocked copies mood, regulator state and modulation into res.
func (a *Agent) fillLocked(res *TickResult) {
	res.Mood = a.affect.Snapshot()
	res.Regulator = a.reg.State()
	res.Params = modulation.Derive(res.Mood.Arousal, res.Mood.Valence)
}

// #endregion

// #region consolidation

// consolidate flushes drained experiences into long-term memory and stores
// one lesson distilled from the most recent memories. On a store failure the
// unflushed experiences go back to the front of the buffer for the next sleep.
func (a *Agent) consolidate(ctx context.Context, res *TickResult, drained []Experience) error {
	for i, exp := range drained {
		if err := a.deps.Memory.Add(ctx, exp.Text, exp.metadata()); err != nil {
			a.requeue(drained[i:])
			res.Flushed = i
			return stageErr(StageConsolidate, err)
		}
	}
	res.Flushed = len(drained)
	if len(drained) == 0 {
		return nil
	}

	recent, err := a.deps.Memory.Latest(ctx, a.cfg.LessonSampleSize)
	if err != nil {
		return stageErr(StageConsolidate, err)
	}
	if len(recent) == 0 {
		return nil
	}

	mood := a.mood()
	lesson, err := a.deps.Generator.Generate(ctx, lessonPrompt(recent), modulation.Derive(mood.Arousal, mood.Valence))
	if err != nil {
		return stageErr(StageLesson, err)
	}
	lesson, err = checkOutput(lesson)
	if err != nil {
		return stageErr(StageLesson, err)
	}

	meta := mood.Metadata()
	meta["source"] = "sleep_lesson"
	meta["tick"] = res.Tick
	if err := a.deps.Memory.Add(ctx, lesson, meta); err != nil {
		return stageErr(StageConsolidate, err)
	}
	res.Lesson = lesson
	a.journal(res.ID, interior.KindLesson, lesson, mood)

	a.log.Info().Int64("tick", res.Tick).Int("flushed", res.Flushed).Str("lesson", lesson).Msg("consolidated")
	a.record(logging.ProvenanceEntry{
		Tick:     res.Tick,
		Event:    logging.EventConsolidation,
		Decision: "stored",
		Reason:   fmt.Sprintf("flushed %d experiences", res.Flushed),
	}, logging.DecisionRecord{Arousal: mood.Arousal, Valence: mood.Valence, Flushed: res.Flushed, Lesson: lesson})
	return nil
}

func (a *Agent) requeue(exps []Experience) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = append(append([]Experience(nil), exps...), a.buffer...)
}

// #endregion

// #region conscious

func (a *Agent) conscious(ctx context.Context, override string, res *TickResult) error {
	var report perception.Report
	switch {
	case override != "":
		report.Speech = override
		res.Override = true
	case a.deps.Perception != nil:
		r, err := a.deps.Perception.Perceive(ctx)
		if err != nil {
			return stageErr(StagePerceive, err)
		}
		report = r
	}
	if report.Empty() {
		res.Skipped = true
		return nil
	}
	res.Focus = perception.PickFocus(report)

	found, err := a.retriever.Retrieve(ctx, res.Focus.Main)
	if err != nil {
		return stageErr(StageRetrieve, err)
	}
	memories := a.attend(found.Retrieved)
	for _, m := range memories {
		res.Memories = append(res.Memories, m.Text)
	}

	mood := a.mood()
	res.Params = modulation.Derive(mood.Arousal, mood.Valence)
	thought, err := a.deps.Generator.Generate(ctx, monologuePrompt(mood, res.Focus), res.Params)
	if err == nil {
		thought, err = checkOutput(thought)
	}
	if err != nil {
		return stageErr(StageMonologue, err)
	}
	res.Thought = thought
	a.journal(res.ID, interior.KindThought, thought, mood)

	// mood may have moved while the monologue ran
	mood = a.mood()
	res.Params = modulation.Derive(mood.Arousal, mood.Valence)
	answer, err := a.deps.Generator.Generate(ctx, responsePrompt(a.cfg.Persona, thought, memories, res.Focus), res.Params)
	if err == nil {
		answer, err = checkOutput(answer)
	}
	if err != nil {
		return stageErr(StageRespond, err)
	}
	res.Answer = answer

	a.mu.Lock()
	exp := Experience{
		Text:      experienceText(res.Focus, thought, answer),
		Mood:      a.affect.Snapshot(),
		Curiosity: interior.ExtractCuriosity(thought),
		Tick:      res.Tick,
		At:        time.Now().UTC(),
	}
	a.buffer = append(a.buffer, exp)
	a.fillLocked(res)
	buffered := len(a.buffer)
	a.mu.Unlock()

	a.log.Debug().Int64("tick", res.Tick).Str("focus", res.Focus.Channel).
		Int("memories", len(memories)).Int("buffered", buffered).Msg("conscious cycle")
	return nil
}

// attend reorders retrieved memories by attention-modulated score. High
// arousal sharpens the ranking; negative arousal blurs it with noise.
func (a *Agent) attend(records []memory.Record) []memory.Record {
	if len(records) < 2 {
		return records
	}
	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.Score
	}
	scaled := modulation.AttentionScale(a.mood().Arousal, scores, a.deps.Rand)

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return scaled[idx[i]] > scaled[idx[j]] })

	out := make([]memory.Record, len(records))
	for i, k := range idx {
		out[i] = records[k]
		out[i].Score = scaled[k]
	}
	return out
}

// #endregion

// #region stimulus

// HandleStimulus applies an external event. While asleep, a stimulus the gate
// flags as dangerous interrupts sleep with no wake bonus and sets the alarm
// mood. Returns true when that happened. Safe from any goroutine.
func (a *Agent) HandleStimulus(s vigilance.Stimulus) bool {
	a.mu.Lock()
	if !a.reg.IsSleeping() || !a.gate.FilterStimulus(s) {
		a.mu.Unlock()
		a.log.Debug().Str("type", s.Type).Float64("intensity", s.Intensity).Msg("stimulus ignored")
		return false
	}
	a.reg.Interrupt()
	_ = a.affect.Set(a.cfg.AlarmArousal, a.cfg.AlarmValence)
	rec := a.recordLocked()
	rec.StimulusType, rec.StimulusIntensity = s.Type, s.Intensity
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.log.Warn().Str("type", s.Type).Float64("intensity", s.Intensity).Msg("alarm: sleep interrupted")
	a.checkpoint(snap, logging.EventAlarm, "interrupt", fmt.Sprintf("%s at intensity %.1f", s.Type, s.Intensity), rec)
	return true
}

// #endregion

// #region manual-controls

// Nudge shifts the mood directly (reward, punish, stress, calm).
func (a *Agent) Nudge(dx, dy float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.affect.Update(dx, dy)
}

// Wake ends sleep on request. Arousal is reset to 0 and the wake bonus is
// added to valence. Returns false if the agent was awake.
func (a *Agent) Wake() (regulator.Result, bool) {
	a.mu.Lock()
	res := a.reg.ForceWake()
	if !res.Woke {
		a.mu.Unlock()
		return res, false
	}
	_ = a.affect.Set(0, a.affect.Valence()+res.WakeBonus)
	rec := a.recordLocked()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.log.Info().Float64("bonus", res.WakeBonus).Msg("woken on request")
	a.checkpoint(snap, logging.EventWake, "force_wake", "woken on request", rec)
	return res, true
}

// Status returns the current view of the agent.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	mood := a.affect.Snapshot()
	return Status{
		Tick:      a.tick,
		Mood:      mood,
		Regulator: a.reg.State(),
		Params:    modulation.Derive(mood.Arousal, mood.Valence),
		Buffered:  len(a.buffer),
		WantsRest: a.reg.WantsSleep(),
	}
}

// Experiences returns a copy of the short-term buffer.
func (a *Agent) Experiences() []Experience {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Experience(nil), a.buffer...)
}

// Remember appends an experience without running a conscious cycle.
func (a *Agent) Remember(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer = append(a.buffer, Experience{Text: text, Mood: a.affect.Snapshot(), Tick: a.tick, At: time.Now().UTC()})
}

// Retune swaps the regulator and gate constants. State is kept.
func (a *Agent) Retune(regCfg regulator.Config, gateCfg vigilance.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reg.SetConfig(regCfg)
	a.gate = vigilance.NewGate(gateCfg)
	a.log.Info().Float64("pressure_threshold", regCfg.PressureThreshold).
		Float64("arousal_threshold", gateCfg.SleepArousalThreshold).Msg("retuned")
}

// #endregion

// #region snapshots

// Snapshot returns the resumable state. VersionID is left empty.
func (a *Agent) Snapshot() state.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// SnapshotIdle waits for a running tick to finish before taking the snapshot.
func (a *Agent) SnapshotIdle() state.Snapshot {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	return a.Snapshot()
}

func (a *Agent) snapshotLocked() state.Snapshot {
	x, y := a.affect.Get()
	return state.Snapshot{Arousal: x, Valence: y, Regulator: a.reg.State(), Tick: a.tick}
}

// Restore loads a snapshot. The reflex baseline restarts from the restored valence.
func (a *Agent) Restore(s state.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.affect.Set(s.Arousal, s.Valence); err != nil {
		return fmt.Errorf("restore mood: %w", err)
	}
	a.reg.Restore(s.Regulator)
	a.tick = s.Tick
	a.haveLast = false
	return nil
}

// #endregion

// #region provenance

func (a *Agent) mood() affect.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.affect.Snapshot()
}

func (a *Agent) recordLocked() logging.DecisionRecord {
	x, y := a.affect.Get()
	st := a.reg.State()
	gc := a.gate.Config()
	return logging.DecisionRecord{
		Arousal:       x,
		Valence:       y,
		SleepPressure: st.SleepPressure,
		Sleeping:      st.Sleeping,
		SleepDuration: st.SleepDuration,
		Thresholds: logging.DecisionThresholds{
			PressureThreshold:          a.reg.Config().PressureThreshold,
			SleepArousalThreshold:      gc.SleepArousalThreshold,
			StimulusIntensityThreshold: gc.StimulusIntensityThreshold,
		},
	}
}

// checkpoint commits a snapshot (when a store is wired) and logs the
// decision against the new version.
func (a *Agent) checkpoint(snap state.Snapshot, event, decision, reason string, rec logging.DecisionRecord) {
	entry := logging.ProvenanceEntry{Tick: snap.Tick, Event: event, Decision: decision, Reason: reason}
	if a.deps.Snapshots != nil {
		snap.Trigger = event
		committed, err := a.deps.Snapshots.Commit(snap)
		if err != nil {
			a.log.Warn().Err(err).Str("event", event).Msg("snapshot commit failed")
		} else {
			entry.VersionID = committed.VersionID
		}
	}
	a.record(entry, rec)
}

func (a *Agent) record(entry logging.ProvenanceEntry, rec logging.DecisionRecord) {
	if a.deps.Recorder == nil {
		return
	}
	if err := a.deps.Recorder.Record(entry, rec); err != nil {
		a.log.Warn().Err(err).Str("event", entry.Event).Msg("provenance write failed")
	}
}

func (a *Agent) recordError(res TickResult, err error) {
	stage := ""
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	a.log.Error().Err(err).Int64("tick", res.Tick).Str("stage", stage).Msg("tick aborted")
	a.record(logging.ProvenanceEntry{Tick: res.Tick, Event: logging.EventCycleError, Decision: "skip", Reason: stage},
		logging.DecisionRecord{Arousal: res.Mood.Arousal, Valence: res.Mood.Valence, Error: err.Error()})
}

func (a *Agent) journal(tickID, kind, text string, mood affect.Snapshot) {
	if a.deps.Journal == nil {
		return
	}
	err := a.deps.Journal.Save(interior.Entry{TickID: tickID, Kind: kind, Text: text, Arousal: mood.Arousal, Valence: mood.Valence})
	if err != nil {
		a.log.Warn().Err(err).Str("kind", kind).Msg("journal write failed")
	}
}

// #endregion
