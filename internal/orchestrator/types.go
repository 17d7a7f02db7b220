package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gurkebaui/sun/internal/affect"
	"github.com/gurkebaui/sun/internal/interior"
	"github.com/gurkebaui/sun/internal/logging"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/modulation"
	"github.com/gurkebaui/sun/internal/perception"
	"github.com/gurkebaui/sun/internal/regulator"
	"github.com/gurkebaui/sun/internal/retrieval"
	"github.com/gurkebaui/sun/internal/state"
)

// #endregion

// #region config

// Config holds the agent-level constants. Regulator and gate thresholds live
// in their own packages.
type Config struct {
	ReflexEnabled   bool    `envconfig:"REFLEX_ENABLED" default:"true"`
	ReflexThreshold float64 `envconfig:"REFLEX_THRESHOLD" default:"5"`
	ReflexAmount    float64 `envconfig:"REFLEX_AMOUNT" default:"10"`

	SleepArousal float64 `envconfig:"SLEEP_AROUSAL" default:"-50"`
	AlarmArousal float64 `envconfig:"ALARM_AROUSAL" default:"90"`
	AlarmValence float64 `envconfig:"ALARM_VALENCE" default:"-60"`

	Persona          string        `envconfig:"PERSONA" default:"You are Sun, a curious embodied agent. Answer briefly and honestly."`
	LessonSampleSize int           `envconfig:"LESSON_SAMPLE_SIZE" default:"5"`
	CycleTime        time.Duration `envconfig:"CYCLE_TIME" default:"5s"`

	Retrieval retrieval.Config
}

// DefaultConfig returns the constants the agent was tuned with.
func DefaultConfig() Config {
	return Config{
		ReflexEnabled:    true,
		ReflexThreshold:  5,
		ReflexAmount:     10,
		SleepArousal:     -50,
		AlarmArousal:     90,
		AlarmValence:     -60,
		Persona:          "You are Sun, a curious embodied agent. Answer briefly and honestly.",
		LessonSampleSize: 5,
		CycleTime:        5 * time.Second,
		Retrieval:        retrieval.DefaultConfig(),
	}
}

// #endregion

// #region collaborators

// Generator turns a prompt into text under the given modulation.
type Generator interface {
	Generate(ctx context.Context, prompt string, p modulation.Params) (string, error)
}

// Recorder persists provenance for homeostatic decisions.
type Recorder interface {
	Record(entry logging.ProvenanceEntry, rec logging.DecisionRecord) error
}

// Checkpointer commits versioned agent snapshots.
type Checkpointer interface {
	Commit(snap state.Snapshot) (state.Snapshot, error)
}

// Journal keeps thoughts and lessons.
type Journal interface {
	Save(e interior.Entry) error
}

// Deps are the collaborators an Agent calls. Generator and Memory are
// required; the rest may be nil.
type Deps struct {
	Generator  Generator
	Memory     memory.Store
	Perception perception.Source
	Recorder   Recorder
	Snapshots  Checkpointer
	Journal    Journal
	Rand       modulation.Rand

	// Observer sees every finished tick, e.g. to broadcast it.
	Observer func(TickResult, error)
}

// #endregion

// #region experience

// Experience is one conscious cycle waiting in the short-term buffer.
type Experience struct {
	Text      string
	Mood      affect.Snapshot
	Curiosity []string
	Tick      int64
	At        time.Time
}

// metadata is what gets stored alongside the text on consolidation.
func (e Experience) metadata() map[string]any {
	meta := e.Mood.Metadata()
	meta["source"] = "experience"
	meta["tick"] = e.Tick
	meta["recorded_at"] = e.At.UTC().Format(time.RFC3339)
	if len(e.Curiosity) > 0 {
		meta["curiosity"] = e.Curiosity
	}
	return meta
}

// #endregion

// #region results

// TickResult describes what one tick did.
type TickResult struct {
	ID   string
	Tick int64

	Mood      affect.Snapshot
	Regulator regulator.State
	Params    modulation.Params

	EnteredSleep bool
	StayedAwake  bool
	Woke         bool
	WakeBonus    float64
	Flushed      int
	Lesson       string

	Skipped  bool // awake but nothing to attend to
	Override bool // focus came from the text passed to Tick, not from perception
	Focus    perception.Focus
	Memories []string
	Thought  string
	Answer   string
}

// Sleeping reports whether the agent was asleep when the tick ended.
func (r TickResult) Sleeping() bool { return r.Regulator.Sleeping }

// Status is a point-in-time view for the REPL and the monitor.
type Status struct {
	Tick      int64             `json:"tick"`
	Mood      affect.Snapshot   `json:"mood"`
	Regulator regulator.State   `json:"regulator"`
	Params    modulation.Params `json:"params"`
	Buffered  int               `json:"buffered"`
	WantsRest bool              `json:"wants_sleep"`
}

// #endregion

// #region errors

// Stages reported in StageError.
const (
	StagePerceive    = "perceive"
	StageRetrieve    = "retrieve"
	StageMonologue   = "monologue"
	StageRespond     = "respond"
	StageConsolidate = "consolidate"
	StageLesson      = "lesson"
)

// ErrDegenerateOutput marks a generation that was empty or looped.
var ErrDegenerateOutput = errors.New("degenerate output")

// StageError wraps a collaborator failure with the tick stage it hit.
// Background state is always committed before a StageError is returned.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// #endregion
