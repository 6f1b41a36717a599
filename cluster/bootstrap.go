package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gradosphera/gonka/poll"
)

var ErrChainMismatch = errors.New("nodes disagree on chain id")

type Status struct {
	ChainID string
	Height  uint64
	Version string
}

// Bootstrap waits until every node has produced a block and checks that all
// nodes belong to the same chain.
func Bootstrap(ctx context.Context, cl *Cluster, poller *poll.Poller, timeout time.Duration) (map[string]Status, error) {
	results := Broadcast(ctx, cl.AllPairs(), func(ctx context.Context, n Node) (st Status, err error) {
		cli := n.Client()
		st.Height, err = poller.AwaitMinimumHeight(ctx, n.Name(), cli, 1, timeout)
		if err != nil {
			return
		}
		st.ChainID, err = cli.ChainID(ctx)
		if err != nil {
			return
		}
		st.Version, err = cli.NodeVersion(ctx)
		return
	})
	if err := Failures(results); err != nil {
		return nil, err
	}
	statuses := make(map[string]Status, len(results))
	want := results[cl.Genesis().Name()].Value.ChainID
	var errs []error
	for _, n := range cl.AllPairs() {
		st := results[n.Name()].Value
		statuses[n.Name()] = st
		if st.ChainID != want {
			errs = append(errs, &NodeError{Node: n.Name(), Err: fmt.Errorf("%w: %s, genesis has %s", ErrChainMismatch, st.ChainID, want)})
		}
	}
	return statuses, errors.Join(errs...)
}
