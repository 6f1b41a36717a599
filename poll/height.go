package poll

import (
	"context"
	"fmt"
	"time"
)

type HeightQuerier interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}

// AwaitMinimumHeight waits until client reports a height of at least target
// and returns the height it saw. A decrease between two consecutive
// successful readings fails at once with a *RegressionError.
func (p *Poller) AwaitMinimumHeight(ctx context.Context, name string, client HeightQuerier, target uint64, timeout time.Duration) (uint64, error) {
	var (
		prev    uint64
		seen    bool
		reached uint64
	)
	check := func(ctx context.Context) (bool, any, error) {
		h, err := client.CurrentHeight(ctx)
		if err != nil {
			return false, nil, err
		}
		if seen && h < prev {
			return false, h, Permanent(&RegressionError{Node: name, Previous: prev, Observed: h})
		}
		prev, seen = h, true
		if h >= target {
			reached = h
			return true, h, nil
		}
		return false, h, nil
	}
	_, err := p.AwaitCondition(ctx, check, timeout, min(p.interval, timeout), fmt.Sprintf("%s to reach height %d", name, target))
	if err != nil {
		return 0, err
	}
	p.logger.Debug("height reached", "node", name, "target", target, "height", reached)
	return reached, nil
}

// AwaitNextBlock waits for one block past the height client currently reports.
func (p *Poller) AwaitNextBlock(ctx context.Context, name string, client HeightQuerier, timeout time.Duration) (uint64, error) {
	h, err := client.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("node %s: %w", name, err)
	}
	return p.AwaitMinimumHeight(ctx, name, client, h+1, timeout)
}
