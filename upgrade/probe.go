package upgrade

import (
	"context"
	"fmt"

	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/types"
)

// Probe is a behavioral check that a node serves the upgraded behavior.
type Probe interface {
	Name() string
	Check(ctx context.Context, n cluster.Node) (done bool, observed any, err error)
}

// MLNodeVersionProbe expects the chain's ML node version as seen by the node.
type MLNodeVersionProbe struct {
	Version string
}

func (p MLNodeVersionProbe) Name() string { return "mlnode_version=" + p.Version }

func (p MLNodeVersionProbe) Check(ctx context.Context, n cluster.Node) (bool, any, error) {
	v, err := chain.QueryState[types.MLNodeVersion](ctx, n.Client(), types.QueryMLNodeVersion, nil)
	if err != nil {
		return false, nil, err
	}
	return v.CurrentVersion == p.Version, v.CurrentVersion, nil
}

// RouteProbe expects inference requests to be routed to Segment. A
// simulated node must also have a canned response for that segment.
type RouteProbe struct {
	Segment string
}

func (p RouteProbe) Name() string { return "route=" + p.Segment }

func (p RouteProbe) Check(ctx context.Context, n cluster.Node) (bool, any, error) {
	route, err := chain.QueryState[types.InferenceRoute](ctx, n.Client(), types.QueryInferenceRoute, nil)
	if err != nil {
		return false, nil, err
	}
	if route.Segment != p.Segment {
		return false, route, nil
	}
	if mock, ok := cluster.MockOf(n); ok {
		if _, served := mock.Response(p.Segment); !served {
			return false, fmt.Sprintf("mock %s has no response for %s", mock.Host, p.Segment), nil
		}
	}
	return true, route, nil
}

// VersionProbe expects the binary version the node reports.
type VersionProbe struct {
	Version string
}

func (p VersionProbe) Name() string { return "version=" + p.Version }

func (p VersionProbe) Check(ctx context.Context, n cluster.Node) (bool, any, error) {
	v, err := n.Client().NodeVersion(ctx)
	if err != nil {
		return false, nil, err
	}
	return v == p.Version, v, nil
}

type ProbeFunc func(ctx context.Context, n cluster.Node) (bool, any, error)

func (f ProbeFunc) Name() string { return "func" }

func (f ProbeFunc) Check(ctx context.Context, n cluster.Node) (bool, any, error) {
	return f(ctx, n)
}
