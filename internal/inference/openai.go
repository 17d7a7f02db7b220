package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/gurkebaui/sun/internal/modulation"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAI generates through the Responses API. Any OpenAI-compatible
// endpoint works via baseURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model}
}

func (c *OpenAI) Name() string { return "openai:" + c.model }

func (c *OpenAI) Generate(ctx context.Context, prompt string, p modulation.Params) (string, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	resp, err := c.client.Responses.New(ctx, params,
		option.WithJSONSet("temperature", modulation.ClampTemperature(p.Temperature)))
	if err != nil {
		return "", fmt.Errorf("openai responses: %w", err)
	}
	return strings.TrimSpace(resp.OutputText()), nil
}
