package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoller() *Poller {
	return New(10*time.Millisecond, cmtlog.NewNopLogger())
}

func TestAwaitConditionImmediate(t *testing.T) {
	p := newPoller()
	out, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		return true, nil, nil
	}, time.Second, 10*time.Millisecond, "immediate")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
}

func TestAwaitConditionEventually(t *testing.T) {
	p := newPoller()
	var n atomic.Int32
	out, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		v := n.Add(1)
		if v < 3 {
			return false, nil, errors.New("not yet")
		}
		return v >= 4, v, nil
	}, time.Second, 5*time.Millisecond, "fourth attempt")
	require.NoError(t, err)
	assert.Equal(t, 4, out.Attempts)
}

func TestAwaitConditionTimeout(t *testing.T) {
	p := newPoller()
	timeout := 60 * time.Millisecond
	interval := 20 * time.Millisecond
	start := time.Now()
	out, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		return false, "pending", nil
	}, timeout, interval, "never")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeoutExceeded)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "never", te.Description)
	assert.Equal(t, "pending", te.LastObserved)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+interval+20*time.Millisecond)
	assert.GreaterOrEqual(t, out.Attempts, 2)
}

func TestAwaitConditionKeepsLastError(t *testing.T) {
	p := newPoller()
	boom := errors.New("connection refused")
	_, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		return false, nil, boom
	}, 30*time.Millisecond, 10*time.Millisecond, "unreachable")
	assert.ErrorIs(t, err, ErrTimeoutExceeded)
	assert.ErrorIs(t, err, boom)
}

func TestAwaitConditionSlowAttemptDiscarded(t *testing.T) {
	p := newPoller()
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	start := time.Now()
	_, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		defer wg.Done()
		<-release
		return true, nil, nil
	}, 40*time.Millisecond, 20*time.Millisecond, "slow")
	assert.ErrorIs(t, err, ErrTimeoutExceeded)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestAwaitConditionPermanent(t *testing.T) {
	p := newPoller()
	fatal := errors.New("fatal")
	var n atomic.Int32
	out, err := p.AwaitCondition(context.Background(), func(context.Context) (bool, any, error) {
		n.Add(1)
		return false, nil, Permanent(fatal)
	}, time.Second, 10*time.Millisecond, "fatal")
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, int32(1), n.Load())
}

func TestAwaitConditionInvalidConfig(t *testing.T) {
	p := newPoller()
	called := false
	check := func(context.Context) (bool, any, error) {
		called = true
		return true, nil, nil
	}
	_, err := p.AwaitCondition(context.Background(), check, time.Second, 0, "zero interval")
	assert.ErrorIs(t, err, ErrInvalidPollConfig)
	_, err = p.AwaitCondition(context.Background(), check, 10*time.Millisecond, time.Second, "short timeout")
	assert.ErrorIs(t, err, ErrInvalidPollConfig)
	assert.False(t, called)
}

func TestAwaitConditionCanceled(t *testing.T) {
	p := newPoller()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := p.AwaitCondition(ctx, func(context.Context) (bool, any, error) {
		return false, nil, nil
	}, time.Second, 5*time.Millisecond, "canceled")
	assert.ErrorIs(t, err, context.Canceled)
}

type heights struct {
	mtx  sync.Mutex
	seq  []uint64
	errs map[int]error
	i    int
}

func (h *heights) CurrentHeight(context.Context) (uint64, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	i := h.i
	if h.i < len(h.seq)-1 {
		h.i++
	}
	if err, ok := h.errs[i]; ok {
		return 0, err
	}
	return h.seq[i], nil
}

func TestAwaitMinimumHeight(t *testing.T) {
	p := New(5*time.Millisecond, cmtlog.NewNopLogger())
	h, err := p.AwaitMinimumHeight(context.Background(), "genesis", &heights{seq: []uint64{1, 2, 3, 5, 6}}, 4, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h)
}

func TestAwaitMinimumHeightRegression(t *testing.T) {
	p := New(5*time.Millisecond, cmtlog.NewNopLogger())
	q := &heights{
		seq:  []uint64{7, 8, 0, 3, 20},
		errs: map[int]error{2: errors.New("restarting")},
	}
	_, err := p.AwaitMinimumHeight(context.Background(), "join1", q, 10, time.Second)
	require.ErrorIs(t, err, ErrChainRegression)
	var re *RegressionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "join1", re.Node)
	assert.Equal(t, uint64(8), re.Previous)
	assert.Equal(t, uint64(3), re.Observed)
}

func TestAwaitNextBlock(t *testing.T) {
	p := New(5*time.Millisecond, cmtlog.NewNopLogger())
	h, err := p.AwaitNextBlock(context.Background(), "genesis", &heights{seq: []uint64{4, 4, 4, 5}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h)
}
