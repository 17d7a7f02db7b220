package inference

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gurkebaui/sun/internal/modulation"
	"github.com/ollama/ollama/api"
)

type ollamaAPI interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// Ollama generates through a local or remote Ollama server.
type Ollama struct {
	client ollamaAPI
	model  string
}

// NewOllama connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllama(baseURL, model string) (*Ollama, error) {
	var client *api.Client
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama url: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
	}
	return &Ollama{client: client, model: model}, nil
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Generate(ctx context.Context, prompt string, p modulation.Params) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": modulation.ClampTemperature(p.Temperature),
		},
	}
	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}
