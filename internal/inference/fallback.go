package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gurkebaui/sun/internal/logx"
	"github.com/gurkebaui/sun/internal/modulation"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region fallback
// Fallback tries each backend in order. Transient failures are retried on
// the same backend up to MaxRetries extra times before moving on.
type Fallback struct {
	Backends   []Backend
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration // per attempt, 0 = none
}

func (f *Fallback) Name() string {
	names := make([]string, len(f.Backends))
	for i, b := range f.Backends {
		names[i] = b.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Generate clamps the temperature, then walks the chain.
func (f *Fallback) Generate(ctx context.Context, prompt string, p modulation.Params) (string, error) {
	p.Temperature = modulation.ClampTemperature(p.Temperature)
	log := logx.Component("inference")

	var lastErr error
	for i, b := range f.Backends {
		if i > 0 {
			log.Warn().Str("backend", b.Name()).Msg("previous backend failed, trying fallback")
		}
		attempts := f.MaxRetries + 1
		for attempt := 1; attempt <= attempts; attempt++ {
			if attempt > 1 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
				}
			}

			text, err := f.attempt(ctx, b, prompt, p)
			if err == nil {
				return text, nil
			}
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if IsTransient(err) && attempt < attempts {
				log.Debug().Err(err).Str("backend", b.Name()).Int("attempt", attempt).Msg("transient failure, retrying")
				continue
			}
			log.Warn().Err(err).Str("backend", b.Name()).Msg("backend failed")
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no backends configured")
	}
	return "", fmt.Errorf("%w: %w", ErrAllBackendsFailed, lastErr)
}

func (f *Fallback) attempt(ctx context.Context, b Backend, prompt string, p modulation.Params) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	return b.Generate(ctx, prompt, p)
}

// #endregion fallback

// #region transient
// IsTransient reports whether err is worth retrying on the same backend.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
			return true
		case codes.OK, codes.Unknown:
		default:
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused", "connection reset", "timeout", "overloaded",
		"503", "502", "429", "rate limit", "resource exhausted",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// #endregion transient
