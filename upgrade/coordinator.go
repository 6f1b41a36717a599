package upgrade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/gov"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/tx"
)

// FullUpgrade swaps the node binary at the activation height.
type FullUpgrade struct {
	Name        string
	Summary     string
	Binaries    []Artifact
	ApiBinaries []Artifact
	// Offset is the distance from the current height to activation; zero
	// uses the configured default.
	Offset uint64
	// Probes run on every node after the version check.
	Probes []Probe
}

// PartialUpgrade switches the ML node version and optional API binaries
// without restarting any node.
type PartialUpgrade struct {
	NodeVersion string
	ApiBinaries []Artifact
	Offset      uint64
	// Probes decide convergence; empty means the ML node version and route
	// probes for NodeVersion.
	Probes []Probe
}

type NodeReport struct {
	Node      string
	Height    uint64
	Version   string
	Converged bool
	Err       error
}

type Report struct {
	Name             string
	ProposalID       uint64
	ActivationHeight uint64
	Outcome          *gov.Outcome
	Artifacts        []*StagedArtifact
	Nodes            map[string]*NodeReport
}

type Coordinator struct {
	gov    *gov.Coordinator
	stager *Stager
	cfg    Config
	logger cmtlog.Logger
}

func NewCoordinator(g *gov.Coordinator, stager *Stager, cfg Config, logger cmtlog.Logger) *Coordinator {
	return &Coordinator{
		gov:    g,
		stager: stager,
		cfg:    cfg,
		logger: logger.With("module", "upgrade"),
	}
}

func (c *Coordinator) Stager() *Stager {
	return c.stager
}

// Activation picks the activation height offset blocks past the genesis
// node's height. The offset must exceed both the safety margin and the
// chain's voting period.
func (c *Coordinator) Activation(ctx context.Context, offset uint64) (uint64, error) {
	if offset == 0 {
		offset = c.cfg.ActivationOffset
	}
	params, err := c.gov.Params(ctx)
	if err != nil {
		return 0, fmt.Errorf("read gov params: %w", err)
	}
	if offset <= c.cfg.SafetyMargin {
		return 0, fmt.Errorf("%w: offset %d within safety margin %d", ErrActivationTooSoon, offset, c.cfg.SafetyMargin)
	}
	if offset <= params.VotingPeriod {
		return 0, fmt.Errorf("%w: offset %d within voting period %d", ErrActivationTooSoon, offset, params.VotingPeriod)
	}
	h, err := c.gov.Cluster().Genesis().Client().CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}
	return h + offset, nil
}

func (c *Coordinator) propose(ctx context.Context, title, summary string, content tx.Content, activation uint64) (*gov.Outcome, error) {
	params, err := c.gov.Params(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gov params: %w", err)
	}
	return c.gov.Run(ctx, &gov.Proposal{
		Title:          title,
		Summary:        summary,
		Content:        content,
		InitialDeposit: params.MinDeposit,
		TargetHeight:   activation,
	})
}

// RunFull stages the binaries, passes a software upgrade proposal, restarts
// every node and waits for each to run the new version past activation.
func (c *Coordinator) RunFull(ctx context.Context, u FullUpgrade) (*Report, error) {
	if len(u.Binaries) == 0 {
		return nil, ErrNoBinaries
	}
	rep := &Report{Name: u.Name, Nodes: map[string]*NodeReport{}}
	staged, binaries, err := c.stager.StageAll(ctx, u.Binaries)
	rep.Artifacts = staged
	if err != nil {
		return rep, err
	}
	apiStaged, apiBinaries, err := c.stager.StageAll(ctx, u.ApiBinaries)
	rep.Artifacts = append(rep.Artifacts, apiStaged...)
	if err != nil {
		return rep, err
	}
	info, err := json.Marshal(tx.UpgradeInfo{Binaries: binaries, ApiBinaries: apiBinaries})
	if err != nil {
		return rep, err
	}

	activation, err := c.Activation(ctx, u.Offset)
	if err != nil {
		return rep, err
	}
	rep.ActivationHeight = activation
	c.logger.Info("full upgrade", "name", u.Name, "activation", activation)

	nodes := c.gov.Cluster().AllPairs()
	for _, n := range nodes {
		n.MarkNeedsReboot()
	}
	out, err := c.propose(ctx, u.Name, u.Summary, &tx.SoftwareUpgrade{Name: u.Name, Height: activation, Info: string(info)}, activation)
	rep.Outcome = out
	if out != nil {
		rep.ProposalID = out.ProposalID
	}
	if err != nil {
		if abandoned(out) {
			for _, n := range nodes {
				n.ClearNeedsReboot()
			}
		}
		return rep, err
	}

	restarts := cluster.Broadcast(ctx, nodes, func(ctx context.Context, n cluster.Node) (struct{}, error) {
		c.logger.Info("restart node", "node", n.Name())
		return struct{}{}, n.Client().Restart(ctx)
	})
	var restarted []cluster.Node
	for _, n := range nodes {
		if err := restarts[n.Name()].Err; err != nil {
			c.logger.Error("restart node fail", "node", n.Name(), "err", err)
			rep.Nodes[n.Name()] = &NodeReport{Node: n.Name(), Err: fmt.Errorf("restart: %w", err)}
			c.recordConvergence(ctx, rep, rep.Nodes[n.Name()])
			continue
		}
		restarted = append(restarted, n)
	}

	probes := append([]Probe{VersionProbe{Version: u.Name}}, u.Probes...)
	return rep, c.converge(ctx, rep, restarted, probes)
}

// abandoned reports whether a failed proposal can no longer schedule the
// upgrade. A proposal still voting when the wait ran out may yet pass.
func abandoned(out *gov.Outcome) bool {
	if out == nil || out.ProposalID == 0 {
		return true
	}
	return out.State.Terminal() && out.State != gov.StateEffective
}

// RunPartial passes a partial upgrade proposal and waits, without any
// restart, for every node to pass the probes.
func (c *Coordinator) RunPartial(ctx context.Context, u PartialUpgrade) (*Report, error) {
	rep := &Report{Name: u.NodeVersion, Nodes: map[string]*NodeReport{}}
	content := &tx.PartialUpgrade{NodeVersion: u.NodeVersion}
	if len(u.ApiBinaries) > 0 {
		staged, urls, err := c.stager.StageAll(ctx, u.ApiBinaries)
		rep.Artifacts = staged
		if err != nil {
			return rep, err
		}
		raw, err := json.Marshal(tx.UpgradeInfo{Binaries: urls})
		if err != nil {
			return rep, err
		}
		content.ApiBinariesJson = string(raw)
	}
	probes := u.Probes
	if len(probes) == 0 && u.NodeVersion != "" {
		probes = []Probe{MLNodeVersionProbe{Version: u.NodeVersion}, RouteProbe{Segment: "/" + u.NodeVersion}}
	}

	activation, err := c.Activation(ctx, u.Offset)
	if err != nil {
		return rep, err
	}
	content.Height = activation
	rep.ActivationHeight = activation
	c.logger.Info("partial upgrade", "version", u.NodeVersion, "activation", activation)

	out, err := c.propose(ctx, "partial upgrade "+u.NodeVersion, "", content, activation)
	rep.Outcome = out
	if out != nil {
		rep.ProposalID = out.ProposalID
	}
	if err != nil {
		return rep, err
	}
	return rep, c.converge(ctx, rep, c.gov.Cluster().AllPairs(), probes)
}

// converge waits on every node concurrently for the activation height and
// then each probe in order.
func (c *Coordinator) converge(ctx context.Context, rep *Report, nodes []cluster.Node, probes []Probe) error {
	results := cluster.Broadcast(ctx, nodes, func(ctx context.Context, n cluster.Node) (*NodeReport, error) {
		return c.convergeNode(ctx, n, rep.ActivationHeight, probes)
	})
	failed := map[string]error{}
	for name, nr := range rep.Nodes {
		if nr.Err != nil {
			failed[name] = nr.Err
		}
	}
	for name, r := range results {
		nr := r.Value
		if nr == nil {
			nr = &NodeReport{Node: name}
		}
		nr.Err = r.Err
		nr.Converged = r.Err == nil
		rep.Nodes[name] = nr
		c.recordConvergence(ctx, rep, nr)
		if r.Err != nil {
			failed[name] = r.Err
		}
	}
	if len(failed) > 0 {
		return &ConvergenceError{ProposalID: rep.ProposalID, Nodes: failed}
	}
	c.logger.Info("cluster converged", "proposal", rep.ProposalID, "nodes", len(results))
	return nil
}

func (c *Coordinator) convergeNode(ctx context.Context, n cluster.Node, activation uint64, probes []Probe) (*NodeReport, error) {
	poller := c.gov.Poller()
	deadline := time.Now().Add(c.cfg.ConvergenceTimeout)
	remaining := func() time.Duration {
		return max(time.Until(deadline), poller.Interval())
	}

	nr := &NodeReport{Node: n.Name()}
	h, err := poller.AwaitMinimumHeight(ctx, n.Name(), n.Client(), activation, remaining())
	if err != nil {
		return nr, err
	}
	nr.Height = h
	for _, p := range probes {
		check := func(ctx context.Context) (bool, any, error) {
			return p.Check(ctx, n)
		}
		if _, err = poller.AwaitCondition(ctx, check, remaining(), poller.Interval(), fmt.Sprintf("%s on %s", p.Name(), n.Name())); err != nil {
			return nr, err
		}
	}
	if v, err := n.Client().NodeVersion(ctx); err == nil {
		nr.Version = v
	}
	n.ClearNeedsReboot()
	c.logger.Info("node converged", "node", n.Name(), "height", h, "version", nr.Version)
	return nr, nil
}

func (c *Coordinator) recordConvergence(ctx context.Context, rep *Report, nr *NodeReport) {
	row := &journal.Convergence{
		ChainId:          c.gov.ChainID(ctx),
		ProposalId:       rep.ProposalID,
		Node:             nr.Node,
		ActivationHeight: rep.ActivationHeight,
		Height:           nr.Height,
		Version:          nr.Version,
		Converged:        nr.Converged,
		Timestamp:        time.Now().Unix(),
	}
	if nr.Err != nil {
		row.Error = nr.Err.Error()
	}
	if err := c.gov.Recorder().RecordConvergence(row); err != nil {
		c.logger.Error("record convergence fail", "node", nr.Node, "err", err)
	}
}
