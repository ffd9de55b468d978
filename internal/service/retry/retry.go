// Package retry wraps discovery calls with bounded exponential backoff.
// Terminal account errors never retry; upstream rate limits sleep for the
// advertised retry-after instead of the backoff schedule.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// jitterFactor spreads each delay across [0.75, 1.25] of its nominal value.
const jitterFactor = 0.25

// Policy bounds one retry loop.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// ProfilePolicy covers full profile fetches, the expensive call.
func ProfilePolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 2}
}

// ValidatePolicy covers cheap existence checks.
func ValidatePolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
}

func (p Policy) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = jitterFactor
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleep is swapped in tests.
var sleep = sleepCtx

// Do runs op with up to p.MaxRetries retries. It returns the last error when
// attempts run out. Account errors and invalid arguments are terminal. A
// rate-limited error sleeps min(retry-after, p.MaxDelay) and does not consume
// the backoff schedule.
func Do(ctx context.Context, p Policy, opName string, op func(ctx context.Context) error) error {
	b := p.backoff()

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if isTerminal(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			slog.Warn("retries exhausted",
				slog.String("op", opName),
				slog.Int("attempts", attempt+1),
				slog.Any("error", err))
			return err
		}

		delay := b.NextBackOff()
		var rl *domain.RateLimitedError
		if errors.As(err, &rl) {
			delay = rl.RetryAfter
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		slog.Info("retrying after error",
			slog.String("op", opName),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

func isTerminal(err error) bool {
	return domain.IsTerminalAccountError(err) ||
		errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
