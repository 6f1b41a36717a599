package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Check is one attempt at evaluating a condition. A non-nil err is
// treated as transient unless wrapped with Permanent.
type Check func(ctx context.Context) (done bool, observed any, err error)

type Outcome struct {
	Attempts int
	Elapsed  time.Duration
}

type Poller struct {
	logger   cmtlog.Logger
	interval time.Duration
}

func New(interval time.Duration, logger cmtlog.Logger) *Poller {
	return &Poller{
		logger:   logger.With("module", "poll"),
		interval: interval,
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

type attempt struct {
	done     bool
	observed any
	err      error
}

// AwaitCondition runs check immediately and then every interval until it
// reports done or timeout elapses. An attempt still running at the deadline
// is left to finish in the background and its result is dropped.
func (p *Poller) AwaitCondition(ctx context.Context, check Check, timeout, interval time.Duration, description string) (out Outcome, err error) {
	if interval <= 0 || timeout < interval {
		return out, fmt.Errorf("%w: interval %v, timeout %v", ErrInvalidPollConfig, interval, timeout)
	}
	start := time.Now()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var lastObserved any
	var lastErr error
	timedOut := func() (Outcome, error) {
		out.Elapsed = time.Since(start)
		p.logger.Info("poll timeout", "condition", description, "attempts", out.Attempts, "elapsed", out.Elapsed)
		return out, &TimeoutError{
			Description:  description,
			Timeout:      timeout,
			Elapsed:      out.Elapsed,
			Attempts:     out.Attempts,
			LastObserved: lastObserved,
			LastErr:      lastErr,
		}
	}

	for {
		out.Attempts++
		resCh := make(chan attempt, 1)
		go func() {
			done, observed, err := check(ctx)
			resCh <- attempt{done: done, observed: observed, err: err}
		}()

		select {
		case <-ctx.Done():
			out.Elapsed = time.Since(start)
			return out, ctx.Err()
		case <-deadline.C:
			return timedOut()
		case res := <-resCh:
			if res.err != nil {
				var pe *permanentError
				if errors.As(res.err, &pe) {
					out.Elapsed = time.Since(start)
					return out, pe.err
				}
				lastErr = res.err
				p.logger.Debug("poll attempt failed", "condition", description, "attempt", out.Attempts, "err", res.err)
			} else {
				lastObserved = res.observed
				if res.done {
					out.Elapsed = time.Since(start)
					return out, nil
				}
			}
		}

		wait := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			out.Elapsed = time.Since(start)
			return out, ctx.Err()
		case <-deadline.C:
			wait.Stop()
			return timedOut()
		case <-wait.C:
		}
	}
}
