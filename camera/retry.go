package camera

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Discovery retry defaults, sized for GigE cameras that take a few seconds
// to enumerate after power-on.
const (
	DefaultRetryAttempts = 6
	DefaultRetryBackoff  = 3 * time.Second
)

// RetryPolicy is a bounded retry loop with a fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultRetryAttempts
	}
	if p.Backoff == 0 {
		p.Backoff = DefaultRetryBackoff
	}
	return p
}

// Do runs attempt up to MaxAttempts times, waiting Backoff on clk between
// attempts. It returns nil on the first success, ctx.Err() if the context
// ends while waiting, and otherwise the error from the last attempt.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, attempt func(ctx context.Context) error) error {
	p = p.withDefaults()
	var last error
	for i := 0; i < p.MaxAttempts; i++ {
		if i > 0 {
			if !waitFor(ctx, clk, p.Backoff) {
				return ctx.Err()
			}
		}
		if last = attempt(ctx); last == nil {
			return nil
		}
	}
	return last
}

// waitFor is SelectContextOrWait against an injectable clock, so tests can
// shrink the multi-second discovery budget.
func waitFor(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	timer := clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
