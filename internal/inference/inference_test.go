package inference

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gurkebaui/sun/internal/modulation"
	jsoniter "github.com/json-iterator/go"
	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// #region fakes
type scriptedBackend struct {
	name  string
	errs  []error // returned in order, then reply
	reply string
	calls int
	temps []float64
}

func (s *scriptedBackend) Name() string { return s.name }

func (s *scriptedBackend) Generate(ctx context.Context, _ string, p modulation.Params) (string, error) {
	s.calls++
	s.temps = append(s.temps, p.Temperature)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.reply, nil
}

type slowBackend struct{}

func (slowBackend) Name() string { return "slow" }

func (slowBackend) Generate(ctx context.Context, _ string, _ modulation.Params) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// #endregion fakes

// #region fallback-tests
func TestFallback_FirstBackendSucceeds(t *testing.T) {
	a := &scriptedBackend{name: "a", reply: "hi"}
	b := &scriptedBackend{name: "b", reply: "unused"}
	f := &Fallback{Backends: []Backend{a, b}, MaxRetries: 2}

	text, err := f.Generate(context.Background(), "p", modulation.Params{Temperature: 0.7})
	if err != nil || text != "hi" {
		t.Fatalf("expected hi, got %q, %v", text, err)
	}
	if b.calls != 0 {
		t.Fatal("second backend should not be called")
	}
}

func TestFallback_RetriesTransientThenSucceeds(t *testing.T) {
	a := &scriptedBackend{name: "a", errs: []error{status.Error(codes.Unavailable, "down")}, reply: "ok"}
	f := &Fallback{Backends: []Backend{a}, MaxRetries: 2, RetryDelay: time.Millisecond}

	text, err := f.Generate(context.Background(), "p", modulation.Params{Temperature: 1})
	if err != nil || text != "ok" {
		t.Fatalf("expected ok after retry, got %q, %v", text, err)
	}
	if a.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", a.calls)
	}
}

func TestFallback_PermanentErrorMovesOn(t *testing.T) {
	a := &scriptedBackend{name: "a", errs: []error{errors.New("invalid model")}}
	b := &scriptedBackend{name: "b", reply: "from b"}
	f := &Fallback{Backends: []Backend{a, b}, MaxRetries: 3}

	text, err := f.Generate(context.Background(), "p", modulation.Params{Temperature: 1})
	if err != nil || text != "from b" {
		t.Fatalf("expected fallback reply, got %q, %v", text, err)
	}
	if a.calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", a.calls)
	}
}

func TestFallback_AllFail(t *testing.T) {
	boom := errors.New("bad request")
	f := &Fallback{Backends: []Backend{&scriptedBackend{name: "a", errs: []error{boom}}}}

	_, err := f.Generate(context.Background(), "p", modulation.Params{Temperature: 1})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("expected ErrAllBackendsFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error wrapped, got %v", err)
	}

	_, err = (&Fallback{}).Generate(context.Background(), "p", modulation.Params{})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Fatalf("empty chain should fail with ErrAllBackendsFailed, got %v", err)
	}
}

func TestFallback_ClampsTemperature(t *testing.T) {
	a := &scriptedBackend{name: "a", reply: "x"}
	f := &Fallback{Backends: []Backend{a}}
	f.Generate(context.Background(), "p", modulation.Params{Temperature: -3})
	if a.temps[0] != modulation.MinTemperature {
		t.Fatalf("expected clamped temperature, got %v", a.temps[0])
	}
}

func TestFallback_TimeoutPerAttempt(t *testing.T) {
	b := &scriptedBackend{name: "b", reply: "rescued"}
	f := &Fallback{Backends: []Backend{slowBackend{}, b}, Timeout: 10 * time.Millisecond}

	text, err := f.Generate(context.Background(), "p", modulation.Params{Temperature: 1})
	if err != nil || text != "rescued" {
		t.Fatalf("expected timeout to fall through to next backend, got %q, %v", text, err)
	}
}

func TestFallback_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fallback{Backends: []Backend{slowBackend{}, &scriptedBackend{name: "b", reply: "no"}}}
	if _, err := f.Generate(ctx, "p", modulation.Params{Temperature: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// #endregion fallback-tests

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{status.Error(codes.Unavailable, "x"), true},
		{status.Error(codes.ResourceExhausted, "x"), true},
		{status.Error(codes.InvalidArgument, "x"), false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("model not found"), false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestStatic(t *testing.T) {
	s := &Static{}
	text, err := s.Generate(context.Background(), "context\n\nFocus: a bird sings\n", modulation.Params{Temperature: 0.5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "[t=0.50] Focus: a bird sings" {
		t.Fatalf("unexpected text %q", text)
	}

	s.Reply = "fixed"
	if text, _ := s.Generate(context.Background(), "x", modulation.Params{}); text != "fixed" {
		t.Fatalf("expected fixed reply, got %q", text)
	}
}

// #region provider-tests
type fakeOllama struct {
	req *api.GenerateRequest
}

func (f *fakeOllama) Generate(_ context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error {
	f.req = req
	if err := fn(api.GenerateResponse{Response: " hello "}); err != nil {
		return err
	}
	return fn(api.GenerateResponse{Response: "there", Done: true})
}

func TestOllama_SendsTemperature(t *testing.T) {
	fake := &fakeOllama{}
	o := &Ollama{client: fake, model: "llama3.2"}

	text, err := o.Generate(context.Background(), "prompt", modulation.Params{Temperature: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("unexpected text %q", text)
	}
	if fake.req.Model != "llama3.2" || *fake.req.Stream {
		t.Fatalf("unexpected request %+v", fake.req)
	}
	if fake.req.Options["temperature"] != modulation.MinTemperature {
		t.Fatalf("expected clamped temperature, got %v", fake.req.Options["temperature"])
	}
}

func TestOpenAI_ResponsesAPI(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "resp_1",
			"object": "response",
			"status": "completed",
			"model": "gpt-4o-mini",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "a calm answer", "annotations": []}]
			}]
		}`)
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", "gpt-4o-mini", srv.URL)
	text, err := c.Generate(context.Background(), "hello", modulation.Params{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "a calm answer" {
		t.Fatalf("unexpected text %q", text)
	}
	if body["temperature"] != 0.3 || body["input"] != "hello" {
		t.Fatalf("unexpected request body %+v", body)
	}
}

func TestGemini_GenerateContent(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini says hi"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "test-key", "gemini-2.0-flash", genai.HTTPOptions{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	text, err := g.Generate(context.Background(), "hello", modulation.Params{Temperature: 1.5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "gemini says hi" {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.Contains(body, `"temperature":1.5`) {
		t.Fatalf("temperature not forwarded: %s", body)
	}
}

// #endregion provider-tests

func TestBuild(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = []string{"sidecar", "static"}
	sidecar := &scriptedBackend{name: "sidecar", reply: "from sidecar"}

	f, err := Build(context.Background(), cfg, map[string]Backend{"sidecar": sidecar})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Backends) != 2 || f.Backends[0] != Backend(sidecar) {
		t.Fatalf("unexpected chain %s", f.Name())
	}

	cfg.Providers = []string{"openai"}
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for openai without key")
	}
	cfg.Providers = []string{"mystery"}
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	cfg.Providers = nil
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for empty provider list")
	}
}
