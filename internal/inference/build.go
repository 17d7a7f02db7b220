package inference

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Build assembles the provider chain named in cfg.Providers. extra supplies
// backends constructed elsewhere (e.g. the gRPC sidecar) by name.
func Build(ctx context.Context, cfg Config, extra map[string]Backend) (*Fallback, error) {
	var backends []Backend
	for _, name := range cfg.Providers {
		if b, ok := extra[name]; ok {
			backends = append(backends, b)
			continue
		}
		switch name {
		case "ollama":
			b, err := NewOllama(cfg.OllamaURL, cfg.OllamaModel)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		case "openai":
			if cfg.OpenAIKey == "" {
				return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
			}
			backends = append(backends, NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL))
		case "gemini":
			if cfg.GeminiKey == "" {
				return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY")
			}
			b, err := NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel, genai.HTTPOptions{})
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		case "static":
			backends = append(backends, &Static{})
		default:
			return nil, fmt.Errorf("unknown inference provider %q", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no inference providers configured")
	}
	return &Fallback{
		Backends:   backends,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
	}, nil
}
