package orchestrator

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkebaui/sun/internal/affect"
	"github.com/gurkebaui/sun/internal/codec"
	"github.com/gurkebaui/sun/internal/interior"
	"github.com/gurkebaui/sun/internal/logging"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/modulation"
	"github.com/gurkebaui/sun/internal/perception"
	"github.com/gurkebaui/sun/internal/regulator"
	"github.com/gurkebaui/sun/internal/state"
	"github.com/gurkebaui/sun/internal/vigilance"
)

// #region helpers

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (g *fakeGen) Generate(_ context.Context, prompt string, _ modulation.Params) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(prompt)
	}
	switch {
	case strings.Contains(prompt, "Think silently"):
		return "I wonder who is talking to me.", nil
	case strings.Contains(prompt, "falling asleep"):
		return "Rest after a busy day.", nil
	default:
		return "Hello, nice to meet you.", nil
	}
}

func (g *fakeGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type failingStore struct {
	*memory.MemStore
	err error
}

func (f failingStore) Add(context.Context, string, map[string]any) error { return f.err }

func newAgent(t *testing.T, deps Deps) *Agent {
	t.Helper()
	if deps.Generator == nil {
		deps.Generator = &fakeGen{}
	}
	if deps.Memory == nil {
		deps.Memory = memory.NewMemStore()
	}
	a, err := New(DefaultConfig(), regulator.DefaultConfig(), vigilance.DefaultConfig(), deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func restore(t *testing.T, a *Agent, x, y float64, reg regulator.State) {
	t.Helper()
	if err := a.Restore(state.Snapshot{Arousal: x, Valence: y, Regulator: reg}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
}

// #endregion

// #region construction

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(DefaultConfig(), regulator.DefaultConfig(), vigilance.DefaultConfig(), Deps{Memory: memory.NewMemStore()}); err == nil {
		t.Error("expected error without generator")
	}
	if _, err := New(DefaultConfig(), regulator.DefaultConfig(), vigilance.DefaultConfig(), Deps{Generator: &fakeGen{}}); err == nil {
		t.Error("expected error without memory")
	}
}

// #endregion

// #region background

func TestTick_EntersSleepAndFlushesBuffer(t *testing.T) {
	gen := &fakeGen{}
	store := memory.NewMemStore()
	a := newAgent(t, Deps{Generator: gen, Memory: store})
	restore(t, a, 10, 0, regulator.State{SleepPressure: 85})
	a.Remember("saw a bird")
	a.Remember("heard a song")

	res, err := a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !res.Sleeping() || !res.EnteredSleep {
		t.Fatalf("expected sleep entry, got %+v", res)
	}
	if got := len(a.Experiences()); got != 0 {
		t.Errorf("buffer len = %d, want 0", got)
	}
	if res.Flushed != 2 {
		t.Errorf("flushed = %d, want 2", res.Flushed)
	}
	if res.Lesson != "Rest after a busy day." {
		t.Errorf("lesson = %q", res.Lesson)
	}
	if res.Mood.Arousal != -50 {
		t.Errorf("arousal = %v, want -50", res.Mood.Arousal)
	}
	n, _ := store.Count(context.Background())
	if n != 3 {
		t.Errorf("memory count = %d, want 3 (two experiences and a lesson)", n)
	}
	// asleep: only the lesson was generated
	if gen.calls() != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls())
	}

	latest, _ := store.Latest(context.Background(), 3)
	if latest[0].Metadata["source"] != "experience" || latest[2].Metadata["source"] != "sleep_lesson" {
		t.Errorf("unexpected sources: %v, %v", latest[0].Metadata, latest[2].Metadata)
	}
	if _, ok := latest[0].Metadata["x"]; !ok {
		t.Errorf("experience metadata lacks mood: %v", latest[0].Metadata)
	}
}

func TestTick_EmptyBufferSleepSkipsNothing(t *testing.T) {
	gen := &fakeGen{}
	store := memory.NewMemStore()
	if err := store.Add(context.Background(), "an old memory", nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	a := newAgent(t, Deps{Generator: gen, Memory: store})
	restore(t, a, 0, 0, regulator.State{SleepPressure: 90})

	res, err := a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !res.Sleeping() {
		t.Fatal("expected agent to be asleep")
	}
	if res.Lesson != "" || gen.calls() != 0 {
		t.Errorf("an empty buffer should mean no lesson, got %q after %d calls", res.Lesson, gen.calls())
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("memory count = %d, want 1", n)
	}
}

func TestTick_StaysAwakeWhenAroused(t *testing.T) {
	a := newAgent(t, Deps{})
	restore(t, a, 50, 0, regulator.State{SleepPressure: 85})
	a.Remember("busy")

	res, err := a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Sleeping() || !res.StayedAwake {
		t.Fatalf("expected to stay awake, got %+v", res)
	}
	if !res.Skipped {
		t.Error("no perception source means the conscious cycle is skipped")
	}
	if got := len(a.Experiences()); got != 1 {
		t.Errorf("buffer len = %d, want 1", got)
	}
}

func TestTick_SleepsUntilPressureRecovers(t *testing.T) {
	a := newAgent(t, Deps{})
	restore(t, a, 0, 0, regulator.State{SleepPressure: 81})

	ctx := context.Background()
	if res, _ := a.Background(ctx); !res.EnteredSleep {
		t.Fatalf("expected sleep entry, got %+v", res)
	}

	var woke TickResult
	for i := 0; i < 200; i++ {
		res, err := a.Background(ctx)
		if err != nil {
			t.Fatalf("Background: %v", err)
		}
		if res.Woke {
			woke = res
			break
		}
	}
	if !woke.Woke {
		t.Fatal("agent never woke")
	}
	if woke.Sleeping() {
		t.Error("woke result still sleeping")
	}
	if woke.Mood.Arousal != 0 {
		t.Errorf("arousal after natural wake = %v, want 0", woke.Mood.Arousal)
	}
}

func TestBackground_Reflex(t *testing.T) {
	ctx := context.Background()

	a := newAgent(t, Deps{})
	a.Background(ctx)
	if err := a.Nudge(0, -20); err != nil {
		t.Fatalf("Nudge: %v", err)
	}
	a.Background(ctx)
	if got := a.Status().Mood.Arousal; got != 10 {
		t.Errorf("arousal after valence drop = %v, want 10", got)
	}

	if err := a.Nudge(0, 40); err != nil {
		t.Fatalf("Nudge: %v", err)
	}
	a.Background(ctx)
	if got := a.Status().Mood.Arousal; got != 0 {
		t.Errorf("arousal after valence rise = %v, want 0", got)
	}

	cfg := DefaultConfig()
	cfg.ReflexEnabled = false
	b, err := New(cfg, regulator.DefaultConfig(), vigilance.DefaultConfig(), Deps{Generator: &fakeGen{}, Memory: memory.NewMemStore()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Background(ctx)
	b.Nudge(0, -20)
	b.Background(ctx)
	if got := b.Status().Mood.Arousal; got != 0 {
		t.Errorf("arousal with reflex disabled = %v, want 0", got)
	}
}

// #endregion

// #region conscious

func TestTick_ConsciousCycle(t *testing.T) {
	gen := &fakeGen{}
	a := newAgent(t, Deps{Generator: gen})

	res, err := a.Tick(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Focus.Channel != perception.ChannelSpeech || res.Focus.Main != "hello there" {
		t.Errorf("focus = %+v", res.Focus)
	}
	if res.Thought != "I wonder who is talking to me." || res.Answer != "Hello, nice to meet you." {
		t.Errorf("thought=%q answer=%q", res.Thought, res.Answer)
	}
	if gen.calls() != 2 {
		t.Fatalf("generator calls = %d, want 2", gen.calls())
	}
	if !strings.Contains(gen.prompts[1], DefaultConfig().Persona) {
		t.Errorf("response prompt lacks persona:\n%s", gen.prompts[1])
	}
	if !strings.Contains(gen.prompts[1], res.Thought) {
		t.Errorf("response prompt lacks thought:\n%s", gen.prompts[1])
	}

	exps := a.Experiences()
	if len(exps) != 1 {
		t.Fatalf("buffer len = %d, want 1", len(exps))
	}
	want := "Situation: hello there | Thought: I wonder who is talking to me. | Answer: Hello, nice to meet you."
	if exps[0].Text != want {
		t.Errorf("experience text = %q", exps[0].Text)
	}
	if diff := cmp.Diff([]string{"i wonder"}, exps[0].Curiosity); diff != "" {
		t.Errorf("curiosity mismatch (-want +got):\n%s", diff)
	}
}

func TestTick_PerceptionPriorityAndAux(t *testing.T) {
	gen := &fakeGen{}
	src := perception.SourceFunc(func(context.Context) (perception.Report, error) {
		return perception.Report{Vision: "a red ball", Sound: "rain"}, nil
	})
	a := newAgent(t, Deps{Generator: gen, Perception: src})

	res, err := a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Focus.Channel != perception.ChannelVision {
		t.Errorf("focus channel = %q, want vision", res.Focus.Channel)
	}
	if !strings.Contains(gen.prompts[0], "rain") {
		t.Errorf("monologue prompt lacks auxiliary sound:\n%s", gen.prompts[0])
	}
}

func TestTick_OverrideBeatsPerception(t *testing.T) {
	called := false
	src := perception.SourceFunc(func(context.Context) (perception.Report, error) {
		called = true
		return perception.Report{Vision: "a wall"}, nil
	})
	a := newAgent(t, Deps{Perception: src})

	res, err := a.Tick(context.Background(), "look at me")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if called {
		t.Error("perception source consulted despite override")
	}
	if res.Focus.Main != "look at me" || !res.Override {
		t.Errorf("focus = %q override = %v", res.Focus.Main, res.Override)
	}

	res, err = a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Override || res.Focus.Main != "a wall" {
		t.Errorf("perceived tick: focus = %q override = %v", res.Focus.Main, res.Override)
	}
}

func TestTick_RetrievesMemories(t *testing.T) {
	gen := &fakeGen{}
	store := memory.NewMemStore()
	ctx := context.Background()
	store.Add(ctx, "a friendly robot said hello yesterday", nil)
	store.Add(ctx, "a friendly robot said hello yesterday", nil)
	store.Add(ctx, "the kettle boils", nil)
	a := newAgent(t, Deps{Generator: gen, Memory: store})

	res, err := a.Tick(ctx, "hello robot")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if diff := cmp.Diff([]string{"a friendly robot said hello yesterday"}, res.Memories); diff != "" {
		t.Errorf("memories mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(gen.prompts[1], "You remember:\n- a friendly robot said hello yesterday\n") {
		t.Errorf("response prompt lacks memory:\n%s", gen.prompts[1])
	}
}

func TestTick_StageErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		deps    Deps
		wantIs  error
		wantStg string
	}{
		{
			name: "perceive",
			deps: Deps{Perception: perception.SourceFunc(func(context.Context) (perception.Report, error) {
				return perception.Report{}, boom
			})},
			wantIs:  boom,
			wantStg: StagePerceive,
		},
		{
			name:    "monologue",
			deps:    Deps{Generator: &fakeGen{fn: func(string) (string, error) { return "", boom }}},
			wantIs:  boom,
			wantStg: StageMonologue,
		},
		{
			name: "respond degenerate",
			deps: Deps{Generator: &fakeGen{fn: func(p string) (string, error) {
				if strings.Contains(p, "Think silently") {
					return "fine", nil
				}
				return "   ", nil
			}}},
			wantIs:  ErrDegenerateOutput,
			wantStg: StageRespond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgent(t, tt.deps)
			override := "hi"
			if tt.wantStg == StagePerceive {
				override = ""
			}
			res, err := a.Tick(context.Background(), override)
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("err = %v, want %v", err, tt.wantIs)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.wantStg {
				t.Fatalf("stage error = %#v, want stage %q", err, tt.wantStg)
			}

			// background already committed
			st := a.Status()
			if st.Tick != 1 || res.Tick != 1 {
				t.Errorf("tick = %d/%d, want 1", st.Tick, res.Tick)
			}
			if st.Regulator.SleepPressure <= 0 {
				t.Errorf("pressure not built before failure: %v", st.Regulator.SleepPressure)
			}
			if st.Buffered != 0 {
				t.Errorf("failed cycle buffered %d experiences", st.Buffered)
			}
		})
	}
}

func TestTick_ConsolidationFailureRequeues(t *testing.T) {
	boom := errors.New("disk full")
	a := newAgent(t, Deps{Memory: failingStore{MemStore: memory.NewMemStore(), err: boom}})
	restore(t, a, 0, 0, regulator.State{SleepPressure: 85})
	a.Remember("one")
	a.Remember("two")

	res, err := a.Tick(context.Background(), "")
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageConsolidate || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want consolidate stage error", err)
	}
	if !res.Sleeping() {
		t.Error("sleep entry must survive a consolidation failure")
	}
	exps := a.Experiences()
	if len(exps) != 2 || exps[0].Text != "one" {
		t.Errorf("experiences not requeued: %+v", exps)
	}
}

// sidecarMemory answers the memory methods of the cognition service.
type sidecarMemory struct {
	mu   sync.Mutex
	adds []map[string]any
}

func (s *sidecarMemory) Invoke(_ context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := args.(*structpb.Struct).AsMap()
	resp := map[string]any{}
	switch method {
	case codec.MethodAddMemory:
		s.adds = append(s.adds, req)
	case codec.MethodLatestMemory:
		results := []any{}
		for _, add := range s.adds {
			results = append(results, map[string]any{"text": add["text"], "metadata": add["metadata"]})
		}
		resp["results"] = results
	}
	out, err := structpb.NewStruct(resp)
	if err != nil {
		return err
	}
	proto.Merge(reply.(*structpb.Struct), out)
	return nil
}

func TestTick_ConsolidatesThroughSidecar(t *testing.T) {
	sidecar := &sidecarMemory{}
	a := newAgent(t, Deps{Memory: codec.NewClientWithInvoker(sidecar)})

	if _, err := a.Tick(context.Background(), "hello there"); err != nil {
		t.Fatalf("conscious tick: %v", err)
	}
	if exps := a.Experiences(); len(exps) != 1 || len(exps[0].Curiosity) == 0 {
		t.Fatalf("expected one experience with curiosity, got %+v", exps)
	}

	restore(t, a, 10, 0, regulator.State{SleepPressure: 85})
	res, err := a.Tick(context.Background(), "")
	if err != nil {
		t.Fatalf("sleep tick: %v", err)
	}
	if !res.EnteredSleep || res.Flushed != 1 || res.Lesson == "" {
		t.Fatalf("entered=%v flushed=%d lesson=%q", res.EnteredSleep, res.Flushed, res.Lesson)
	}
	if n := len(a.Experiences()); n != 0 {
		t.Errorf("buffer len = %d, want 0", n)
	}
	if len(sidecar.adds) != 2 {
		t.Fatalf("sidecar adds = %d, want 2", len(sidecar.adds))
	}
	meta := sidecar.adds[0]["metadata"].(map[string]any)
	if diff := cmp.Diff([]any{"i wonder"}, meta["curiosity"]); diff != "" {
		t.Errorf("curiosity mismatch (-want +got):\n%s", diff)
	}
}

func TestTick_MoodChangeDuringInference(t *testing.T) {
	var a *Agent
	gen := &fakeGen{fn: func(p string) (string, error) {
		if !strings.Contains(p, "Think silently") {
			// would deadlock if the agent held its lock here
			if err := a.Nudge(0, -30); err != nil {
				return "", err
			}
		}
		return "ok then", nil
	}}
	a = newAgent(t, Deps{Generator: gen})

	if _, err := a.Tick(context.Background(), "hi"); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	exps := a.Experiences()
	if len(exps) != 1 {
		t.Fatalf("buffer len = %d", len(exps))
	}
	if exps[0].Mood.Valence != -30 {
		t.Errorf("experience mood valence = %v, want -30 (mood at append time)", exps[0].Mood.Valence)
	}
}

// #endregion

// #region stimulus

func TestHandleStimulus(t *testing.T) {
	a := newAgent(t, Deps{})

	if a.HandleStimulus(vigilance.Stimulus{Type: "noise", Intensity: 95}) {
		t.Error("awake agent must ignore stimuli")
	}

	restore(t, a, -50, 10, regulator.State{SleepPressure: 60, Sleeping: true, PressureAtSleepStart: 90})
	if a.HandleStimulus(vigilance.Stimulus{Type: "noise", Intensity: 80}) {
		t.Error("intensity at threshold is not dangerous")
	}
	if !a.Status().Regulator.Sleeping {
		t.Fatal("weak stimulus woke the agent")
	}

	if !a.HandleStimulus(vigilance.Stimulus{Type: "noise", Intensity: 81}) {
		t.Fatal("expected alarm")
	}
	st := a.Status()
	if st.Regulator.Sleeping {
		t.Error("still sleeping after alarm")
	}
	if diff := cmp.Diff(affect.Snapshot{Arousal: 90, Valence: -60}, st.Mood); diff != "" {
		t.Errorf("alarm mood mismatch (-want +got):\n%s", diff)
	}
}

func TestWake(t *testing.T) {
	a := newAgent(t, Deps{})
	if _, ok := a.Wake(); ok {
		t.Error("wake while awake should report false")
	}

	restore(t, a, -50, 0, regulator.State{SleepPressure: 60, Sleeping: true, SleepDuration: 40, PressureAtSleepStart: 100})
	res, ok := a.Wake()
	if !ok {
		t.Fatal("expected wake")
	}
	if math.Abs(res.WakeBonus-5) > 1e-9 {
		t.Errorf("bonus = %v, want 5", res.WakeBonus)
	}
	st := a.Status()
	if st.Mood.Arousal != 0 || math.Abs(st.Mood.Valence-5) > 1e-9 {
		t.Errorf("mood after wake = %+v", st.Mood)
	}
}

func TestRetune(t *testing.T) {
	a := newAgent(t, Deps{})
	restore(t, a, 30, 0, regulator.State{SleepPressure: 85})

	gc := vigilance.DefaultConfig()
	gc.SleepArousalThreshold = 40
	a.Retune(regulator.DefaultConfig(), gc)

	res, err := a.Background(context.Background())
	if err != nil {
		t.Fatalf("Background: %v", err)
	}
	if !res.EnteredSleep {
		t.Error("raised arousal threshold should allow sleep at arousal 30")
	}
}

// #endregion

// #region persistence

func TestCheckpointsAndProvenance(t *testing.T) {
	st, err := state.NewStore(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	journal, err := interior.NewJournal(st.DB())
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}

	store := memory.NewMemStore()
	a := newAgent(t, Deps{
		Memory:    store,
		Recorder:  logging.NewRecorder(st.DB()),
		Snapshots: st,
		Journal:   journal,
	})
	restore(t, a, 0, 0, regulator.State{SleepPressure: 85})
	a.Remember("a long day")

	if _, err := a.Tick(context.Background(), ""); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	cur, err := st.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.Trigger != logging.EventSleepEntry || !cur.Regulator.Sleeping {
		t.Errorf("current snapshot = %+v", cur)
	}

	entries, err := logging.ListDecisions(st.DB(), logging.EventSleepEntry, 5)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(entries) != 1 || entries[0].VersionID != cur.VersionID {
		t.Fatalf("sleep entries = %+v, want one linked to %s", entries, cur.VersionID)
	}
	rec, err := logging.ParseRecord(entries[0])
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Flushed != 1 || rec.Thresholds.PressureThreshold != 80 {
		t.Errorf("record = %+v", rec)
	}

	cons, _ := logging.ListDecisions(st.DB(), logging.EventConsolidation, 5)
	if len(cons) != 1 {
		t.Errorf("consolidation entries = %d, want 1", len(cons))
	}
	lesson, err := journal.Latest(interior.KindLesson)
	if err != nil || lesson == nil {
		t.Fatalf("Latest lesson: %v, %v", lesson, err)
	}
	if lesson.Text != "Rest after a busy day." {
		t.Errorf("lesson = %q", lesson.Text)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := newAgent(t, Deps{})
	a.Nudge(12, -7)
	a.Background(context.Background())
	snap := a.Snapshot()

	b := newAgent(t, Deps{})
	if err := b.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff(snap, b.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if err := b.Restore(state.Snapshot{Arousal: math.NaN()}); !errors.Is(err, affect.ErrNonFinite) {
		t.Errorf("err = %v, want ErrNonFinite", err)
	}
}

func TestSnapshotIdleWaitsForRunningTick(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &fakeGen{fn: func(string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "fine", nil
	}}
	a := newAgent(t, Deps{Generator: gen})

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		a.Tick(context.Background(), "are you there")
	}()
	<-entered

	snapped := make(chan state.Snapshot, 1)
	go func() { snapped <- a.SnapshotIdle() }()
	select {
	case <-snapped:
		t.Fatal("SnapshotIdle returned while a tick was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-tickDone
	select {
	case snap := <-snapped:
		if snap.Tick != 1 {
			t.Errorf("tick = %d, want 1", snap.Tick)
		}
	case <-time.After(time.Second):
		t.Fatal("SnapshotIdle did not return after the tick finished")
	}
	if n := len(a.Experiences()); n != 1 {
		t.Errorf("buffer len = %d, want 1", n)
	}
}

// #endregion

// #region run

func TestRun_TicksOnInput(t *testing.T) {
	results := make(chan TickResult, 4)
	cfg := DefaultConfig()
	cfg.CycleTime = time.Hour
	a, err := New(cfg, regulator.DefaultConfig(), vigilance.DefaultConfig(), Deps{
		Generator: &fakeGen{},
		Memory:    memory.NewMemStore(),
		Observer:  func(r TickResult, _ error) { results <- r },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	inputs := make(chan string)
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, inputs) }()

	inputs <- "good morning"
	select {
	case r := <-results:
		if r.Focus.Main != "good morning" {
			t.Errorf("focus = %q", r.Focus.Main)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick observed")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

// #endregion

func TestAttend_SharpensByScore(t *testing.T) {
	a := newAgent(t, Deps{})
	restore(t, a, 100, 0, regulator.State{})

	recs := []memory.Record{
		{Text: "low", Score: 0.2},
		{Text: "high", Score: 0.9},
		{Text: "mid", Score: 0.5},
	}
	got := a.attend(recs)

	var texts []string
	for _, r := range got {
		texts = append(texts, r.Text)
	}
	if diff := cmp.Diff([]string{"high", "mid", "low"}, texts); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(got[0].Score-1.8) > 1e-9 {
		t.Errorf("top score = %v, want 1.8 at gain 2", got[0].Score)
	}
	if recs[0].Text != "low" {
		t.Error("attend modified its input")
	}
}
