package gov

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

func contentHeight(content tx.Content) uint64 {
	switch c := content.(type) {
	case *tx.SoftwareUpgrade:
		return c.Height
	case *tx.PartialUpgrade:
		return c.Height
	}
	return 0
}

// EffectOf is the observable state a passed proposal with this content
// leaves behind, or nil when passing is all there is to observe.
func EffectOf(cli chain.Client, content tx.Content) poll.Check {
	switch c := content.(type) {
	case *tx.SoftwareUpgrade:
		return func(ctx context.Context) (bool, any, error) {
			applied, err := chain.QueryState[types.AppliedUpgrade](ctx, cli, types.QueryAppliedUpgrade, nil)
			if err != nil {
				if chain.IsNotFound(err) {
					return false, "no upgrade applied", nil
				}
				return false, nil, err
			}
			return applied.Name == c.Name && applied.Height >= c.Height, applied, nil
		}
	case *tx.PartialUpgrade:
		if c.NodeVersion == "" {
			return nil
		}
		return func(ctx context.Context) (bool, any, error) {
			v, err := chain.QueryState[types.MLNodeVersion](ctx, cli, types.QueryMLNodeVersion, nil)
			if err != nil {
				return false, nil, err
			}
			return v.CurrentVersion == c.NodeVersion, v, nil
		}
	}
	return nil
}

// AwaitEffect polls the proposal until it is effective, rejected or expired.
// A proposal of an upgrade kind is never effective below targetHeight (or
// the height in its content, whichever is higher) nor before its effect is
// observable.
//
// An *IncompleteVotingError is returned only once the proposal has reached
// the deposited state with intended voters still missing. A proposal that is
// only submitted has nothing to vote on yet, so the call just polls it.
func (c *Coordinator) AwaitEffect(ctx context.Context, id uint64, targetHeight uint64, timeout time.Duration) (*Outcome, error) {
	c.mtx.Lock()
	t, ok := c.proposals[id]
	var (
		missing []string
		effect  poll.Check
		state   State
	)
	if ok {
		targetHeight = max(targetHeight, t.target)
		effect = t.effect
		state = t.state
		for name, voted := range t.voters {
			if !voted {
				missing = append(missing, name)
			}
		}
	}
	c.mtx.Unlock()
	if state >= StateDeposited && !state.Terminal() && len(missing) > 0 {
		sort.Strings(missing)
		return nil, &IncompleteVotingError{ProposalID: id, Missing: missing}
	}

	cli := c.client()
	var (
		mu    sync.Mutex
		final Outcome
	)
	settle := func(state State, height uint64, p *types.Proposal) {
		mu.Lock()
		final.State, final.Height, final.Proposal = state, height, p
		mu.Unlock()
	}
	check := func(ctx context.Context) (bool, any, error) {
		p, err := c.Proposal(ctx, id)
		if err != nil {
			if chain.IsNotFound(err) {
				settle(StateExpired, 0, nil)
				return true, "not found", nil
			}
			return false, nil, err
		}
		switch p.Status {
		case types.ProposalStatusRejected, types.ProposalStatusFailed:
			settle(StateRejected, 0, p)
			return true, p.Status.String(), nil
		case types.ProposalStatusDepositPeriod, types.ProposalStatusVotingPeriod:
			return false, p.Status.String(), nil
		}

		content, err := tx.DecodeContent(p.Kind, p.Content)
		if err != nil {
			return false, nil, poll.Permanent(fmt.Errorf("proposal %d: %w", id, err))
		}
		var height uint64
		if p.Kind.IsUpgrade() {
			target := max(targetHeight, contentHeight(content))
			height, err = cli.CurrentHeight(ctx)
			if err != nil {
				return false, nil, err
			}
			if height < target {
				return false, fmt.Sprintf("passed, height %d of %d", height, target), nil
			}
		}
		probe := effect
		if probe == nil {
			probe = EffectOf(cli, content)
		}
		if probe != nil {
			done, observed, err := probe(ctx)
			if err != nil || !done {
				return false, observed, err
			}
		}
		settle(StateEffective, height, p)
		return true, p.Status.String(), nil
	}

	res, err := c.poller.AwaitCondition(ctx, check, timeout, min(c.poller.Interval(), timeout), fmt.Sprintf("proposal %d to take effect", id))
	if err != nil {
		c.logger.Error("await proposal effect fail", "proposal", id, "err", err)
		return &Outcome{ProposalID: id, State: c.State(id), Attempts: res.Attempts, Elapsed: res.Elapsed}, err
	}
	mu.Lock()
	out := final
	mu.Unlock()
	out.ProposalID, out.Attempts, out.Elapsed = id, res.Attempts, res.Elapsed
	if out.Height == 0 {
		if h, err := cli.CurrentHeight(ctx); err == nil {
			out.Height = h
		}
	}
	c.advance(ctx, id, out.State, out.Height)
	if out.Proposal != nil {
		tally, _ := json.Marshal(out.Proposal.FinalTally)
		c.record(ctx, &journal.Proposal{ProposalId: id, State: out.State.String(), Height: out.Height, Tally: string(tally)})
	}
	c.logger.Info("proposal finished", "proposal", id, "state", out.State, "height", out.Height, "elapsed", out.Elapsed)
	return &out, nil
}

// Run takes p through its whole lifecycle: submit from the genesis node,
// deposit the minimum, vote yes from every intended voter and wait for the
// effect. Anything but an effective outcome is an *OutcomeError.
func (c *Coordinator) Run(ctx context.Context, p *Proposal) (*Outcome, error) {
	return c.RunWithin(ctx, p, c.cfg.EffectTimeout)
}

func (c *Coordinator) RunWithin(ctx context.Context, p *Proposal, timeout time.Duration) (*Outcome, error) {
	genesis := c.cluster.Genesis()
	id, err := c.Submit(ctx, genesis, p)
	if err != nil {
		return nil, err
	}
	if err = c.DepositMinimum(ctx, genesis, id); err != nil {
		return &Outcome{ProposalID: id, State: c.State(id)}, err
	}
	if _, err = c.VoteAll(ctx, c.voterNodes(p.Voters), id, types.VoteOptionYes); err != nil {
		return &Outcome{ProposalID: id, State: c.State(id)}, err
	}
	out, err := c.AwaitEffect(ctx, id, p.TargetHeight, timeout)
	if err != nil {
		return out, err
	}
	if out.State != StateEffective {
		return out, &OutcomeError{Outcome: out}
	}
	return out, nil
}

// Voters resolves the nodes expected to vote on p.
func (c *Coordinator) Voters(p *Proposal) []cluster.Node {
	return c.voterNodes(p.Voters)
}
