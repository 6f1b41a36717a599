package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type Result[R any] struct {
	Value R
	Err   error
}

type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Broadcast runs op against every node concurrently. Each node's result is
// recorded independently; one failure does not stop the others.
func Broadcast[R any](ctx context.Context, nodes []Node, op func(ctx context.Context, n Node) (R, error)) map[string]Result[R] {
	var (
		mtx sync.Mutex
		wg  sync.WaitGroup
	)
	results := make(map[string]Result[R], len(nodes))
	for _, n := range nodes {
		wg.Add(1)
		go func(n Node) {
			defer wg.Done()
			v, err := op(ctx, n)
			mtx.Lock()
			results[n.Name()] = Result[R]{Value: v, Err: err}
			mtx.Unlock()
		}(n)
	}
	wg.Wait()
	return results
}

// Failures joins the per-node errors in results, ordered by node name.
func Failures[R any](results map[string]Result[R]) error {
	names := make([]string, 0, len(results))
	for name, r := range results {
		if r.Err != nil {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	errs := make([]error, len(names))
	for i, name := range names {
		errs[i] = &NodeError{Node: name, Err: results[name].Err}
	}
	return errors.Join(errs...)
}
