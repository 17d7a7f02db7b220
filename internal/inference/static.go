package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/gurkebaui/sun/internal/modulation"
)

// Static is an offline backend. With Reply set it always returns Reply;
// otherwise it echoes the last non-empty prompt line with the temperature,
// which keeps simulations deterministic.
type Static struct {
	Reply string
}

func (s *Static) Name() string { return "static" }

func (s *Static) Generate(ctx context.Context, prompt string, p modulation.Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Reply != "" {
		return s.Reply, nil
	}
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return fmt.Sprintf("[t=%.2f] %s", modulation.ClampTemperature(p.Temperature), last), nil
}
