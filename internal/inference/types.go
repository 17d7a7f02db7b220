package inference

import (
	"context"
	"errors"
	"time"

	"github.com/gurkebaui/sun/internal/modulation"
)

// ErrAllBackendsFailed is returned when every backend in a fallback chain failed.
var ErrAllBackendsFailed = errors.New("inference: all backends failed")

// #region backend
// Backend is a single text generation provider.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, p modulation.Params) (string, error)
}

// #endregion backend

// #region config
// Config lists the providers to try in order and their settings.
type Config struct {
	Providers  []string      `envconfig:"INFERENCE_PROVIDERS" default:"ollama"`
	Timeout    time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"60s"` // per attempt, 0 = none
	MaxRetries int           `envconfig:"INFERENCE_MAX_RETRIES" default:"2"`
	RetryDelay time.Duration `envconfig:"INFERENCE_RETRY_DELAY" default:"1s"`

	OllamaURL   string `envconfig:"OLLAMA_URL"`
	OllamaModel string `envconfig:"OLLAMA_MODEL" default:"llama3.2"`

	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	GeminiKey   string `envconfig:"GEMINI_API_KEY"`
	GeminiModel string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	SidecarAddr string `envconfig:"SIDECAR_ADDR" default:"localhost:50051"`
}

// DefaultConfig returns a local Ollama setup.
func DefaultConfig() Config {
	return Config{
		Providers:   []string{"ollama"},
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Second,
		OllamaModel: "llama3.2",
		OpenAIModel: "gpt-4o-mini",
		GeminiModel: "gemini-2.0-flash",
		SidecarAddr: "localhost:50051",
	}
}

// #endregion config
