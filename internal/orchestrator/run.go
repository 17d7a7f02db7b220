package orchestrator

import (
	"context"
	"time"
)

// #region run

// Run drives ticks until ctx is done: one passive tick per CycleTime, plus an
// immediate tick for every text that arrives on inputs. A closed inputs
// channel leaves the ticker running. Tick errors are reported through the
// observer and logged; they never stop the loop.
func (a *Agent) Run(ctx context.Context, inputs <-chan string) error {
	every := a.cfg.CycleTime
	if every <= 0 {
		every = DefaultConfig().CycleTime
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	a.log.Info().Dur("cycle", every).Msg("agent loop started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("agent loop stopped")
			return ctx.Err()
		case <-ticker.C:
			a.Tick(ctx, "")
		case text, ok := <-inputs:
			if !ok {
				inputs = nil
				continue
			}
			a.Tick(ctx, text)
		}
	}
}

// #endregion
