// Package readiness provides a blocking readiness gate for downstream
// dependencies. A Gate runs a probe on a fixed interval with a bounded
// attempt budget; startup must not proceed past a gate that never opens.
package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/todo-platform/task-api/internal/logging"
)

// Probe checks a single dependency. It must honor ctx and return nil when
// the dependency is ready.
type Probe func(ctx context.Context) error

// Gate is a bounded-retry readiness check.
type Gate struct {
	// Name identifies the dependency in logs and errors.
	Name string
	// Interval is the base delay between attempts.
	Interval time.Duration
	// MaxAttempts bounds the retry budget. Must be at least 1.
	MaxAttempts int
	// BackoffFactor scales the delay after each failure. 1.0 keeps the
	// fixed interval of the orchestrator health check; anything above adds
	// exponential backoff. Values below 1 are treated as 1.
	BackoffFactor float64
	// Log is optional.
	Log *logging.Logger
}

// Wait blocks until probe succeeds, the attempt budget is exhausted, or ctx
// is cancelled. The returned error wraps the last probe failure.
func (g Gate) Wait(ctx context.Context, probe Probe) error {
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := g.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	factor := g.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	var lastErr error
	delay := interval
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = probe(ctx)
		if lastErr == nil {
			if g.Log != nil && attempt > 1 {
				g.Log.WithField("attempts", attempt).Infof("%s ready", g.name())
			}
			return nil
		}

		if g.Log != nil {
			g.Log.WithError(lastErr).Warnf("%s not ready (attempt %d/%d)", g.name(), attempt, attempts)
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * factor)
	}

	return fmt.Errorf("%s not ready after %d attempts: %w", g.name(), attempts, lastErr)
}

func (g Gate) name() string {
	if g.Name == "" {
		return "dependency"
	}
	return g.Name
}
