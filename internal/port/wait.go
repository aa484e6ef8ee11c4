package port

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// minInterval keeps a zero InitialInterval from turning Wait into a busy
// loop.
const minInterval = 50 * time.Millisecond

// Checker performs a single listening check. *Scanner implements it.
type Checker interface {
	Check(ctx context.Context, port int) (*model.PortStatus, error)
}

// WaitConfig is the polling schedule used by Wait.
type WaitConfig struct {
	// Timeout is the total time to wait. Zero means one check, no polling.
	Timeout time.Duration

	// InitialInterval is the delay after the first failed check.
	InitialInterval time.Duration

	// MaxInterval caps the delay between checks. Zero means uncapped.
	MaxInterval time.Duration

	// Multiplier grows the delay after every failed check. Values below 1
	// are treated as 1 (constant interval).
	Multiplier float64

	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter bool
}

// NextDelay returns the delay before check number attempt+1, where attempt
// is the 1-based number of checks already made.
func NextDelay(cfg WaitConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialInterval <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}

	delay := float64(cfg.InitialInterval)
	if attempt > 1 {
		delay *= math.Pow(cfg.Multiplier, float64(attempt-1))
	}
	if cfg.MaxInterval > 0 && delay > float64(cfg.MaxInterval) {
		delay = float64(cfg.MaxInterval)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Wait checks port until it is listening or cfg.Timeout elapses.
//
// The first check always runs to completion on ctx; the timeout window
// starts after it. Running out of time is not an error: the last status
// (Listening false) is returned with a nil error, exactly like a single
// failed check. Errors are returned for a failing Checker or when ctx
// itself is cancelled.
func Wait(ctx context.Context, c Checker, port int, cfg WaitConfig, log *zap.Logger) (*model.PortStatus, error) {
	if log == nil {
		log = zap.NewNop()
	}

	last, err := c.Check(ctx, port)
	if err != nil {
		return nil, err
	}
	last.Attempts = 1
	if last.Listening || cfg.Timeout <= 0 {
		return last, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// #nosec G404 -- jitter only, not security sensitive.
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; ; attempt++ {
		delay := NextDelay(cfg, attempt, rng)
		if delay < minInterval {
			delay = minInterval
		}
		log.Debug("port not listening yet",
			zap.Int("port", port),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return last, nil
		case <-timer.C:
		}

		status, err := c.Check(waitCtx, port)
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				// The wait window closed in the middle of a check.
				return last, nil
			}
			return nil, err
		}
		status.Attempts = attempt + 1
		last = status
		if status.Listening {
			return status, nil
		}
	}
}
