package gov

import (
	"context"
	"errors"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/devnet"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appState() *types.AppState {
	st := types.DefaultAppState()
	st.Gov.MaxDepositPeriod = 5
	st.Gov.VotingPeriod = 10
	st.NodeVersion = "v1.0.0"
	return st
}

func newCoordinator(t *testing.T, names ...string) (*Coordinator, *devnet.Testnet) {
	t.Helper()
	cfg := devnet.DefaultConfig()
	cfg.BlockTime = 10 * time.Millisecond
	cfg.RestartDelay = 50 * time.Millisecond
	specs := make([]devnet.NodeSpec, len(names))
	for i, name := range names {
		specs[i] = devnet.NodeSpec{Name: name}
	}
	tn, err := devnet.NewTestnet(cfg, "testermint", appState(), specs, cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { tn.Stop() })
	tn.Start()

	cl, err := tn.Cluster()
	require.NoError(t, err)
	poller := poll.New(10*time.Millisecond, cmtlog.NewNopLogger())
	_, err = poller.AwaitMinimumHeight(context.Background(), "genesis", tn.Nodes[0], 1, 5*time.Second)
	require.NoError(t, err)
	return NewCoordinator(cl, poller, journal.Nop{}, Config{EffectTimeout: 10 * time.Second}, cmtlog.NewNopLogger()), tn
}

func TestRunAllowListTakesEffect(t *testing.T) {
	c, tn := newCoordinator(t, "genesis", "join1", "join2")
	ctx := context.Background()
	addr := tn.Nodes[1].Address()

	out, err := c.Run(ctx, &Proposal{
		Title:   "allow join1",
		Content: &tx.AllowListUpdate{Op: tx.AllowListAdd, Addresses: []string{addr}},
	})
	require.NoError(t, err)
	assert.Equal(t, StateEffective, out.State)
	assert.Equal(t, StateEffective, c.State(out.ProposalID))
	assert.Equal(t, []string{"join1", "join2"}, c.Voted(out.ProposalID))
	require.NotNil(t, out.Proposal)
	assert.Equal(t, types.ProposalStatusPassed, out.Proposal.Status)

	list, err := chain.QueryState[[]string](ctx, tn.Nodes[0], types.QueryAllowList, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{addr}, list)
}

func TestSubmitMalformedPayloadRejected(t *testing.T) {
	c, tn := newCoordinator(t, "genesis", "join1")
	ctx := context.Background()

	_, err := c.Submit(ctx, c.Cluster().Genesis(), &Proposal{
		Title:   "no name",
		Content: &tx.SoftwareUpgrade{Height: tn.Chain.Height() + 50},
	})
	var rejected *SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, tn.Chain.Config().Codes.InvalidRequest, rejected.Code)
	assert.Equal(t, chain.InvalidRequest, tn.Chain.Config().Codes.Classify(rejected.Code))

	_, err = c.Submit(ctx, c.Cluster().Genesis(), &Proposal{Title: "empty"})
	assert.ErrorIs(t, err, ErrInvalidProposal)
}

func TestDepositThreshold(t *testing.T) {
	c, _ := newCoordinator(t, "genesis", "join1")
	ctx := context.Background()
	genesis := c.Cluster().Genesis()

	params, err := c.Params(ctx)
	require.NoError(t, err)
	id, err := c.Submit(ctx, genesis, &Proposal{Title: "text", Content: &tx.TextContent{}})
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, c.State(id))

	short := types.NewCoin(params.MinDeposit.Denom, params.MinDeposit.Amount-1)
	require.NoError(t, c.Deposit(ctx, genesis, id, short))
	p, err := c.Proposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusDepositPeriod, p.Status)
	assert.Equal(t, StateSubmitted, c.State(id))

	require.NoError(t, c.DepositMinimum(ctx, genesis, id))
	p, err = c.Proposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStatusVotingPeriod, p.Status)
	assert.Equal(t, params.MinDeposit, p.TotalDeposit)
	assert.Equal(t, StateDeposited, c.State(id))
}

func TestDepositAfterExpiry(t *testing.T) {
	c, tn := newCoordinator(t, "genesis", "join1")
	ctx := context.Background()
	genesis := c.Cluster().Genesis()

	id, err := c.Submit(ctx, genesis, &Proposal{Title: "text", Content: &tx.TextContent{}})
	require.NoError(t, err)
	p, err := c.Proposal(ctx, id)
	require.NoError(t, err)
	_, err = c.Poller().AwaitMinimumHeight(ctx, "genesis", tn.Nodes[0], p.DepositEndHeight+1, 5*time.Second)
	require.NoError(t, err)

	err = c.DepositMinimum(ctx, genesis, id)
	assert.ErrorIs(t, err, ErrProposalExpired)
	assert.Equal(t, StateExpired, c.State(id))

	err = c.Deposit(ctx, genesis, id, types.NewCoin(types.DefaultDenom, 1))
	assert.ErrorIs(t, err, ErrProposalExpired)

	out, err := c.AwaitEffect(ctx, id, 0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, out.State)

	err = c.Deposit(ctx, genesis, 999, types.NewCoin(types.DefaultDenom, 1))
	assert.ErrorIs(t, err, ErrUnknownProposal)
}

func TestAwaitEffectBeforeAllVoted(t *testing.T) {
	c, _ := newCoordinator(t, "genesis", "join1", "join2")
	ctx := context.Background()
	genesis := c.Cluster().Genesis()

	params, err := c.Params(ctx)
	require.NoError(t, err)
	id, err := c.Submit(ctx, genesis, &Proposal{Title: "text", Content: &tx.TextContent{}, InitialDeposit: params.MinDeposit})
	require.NoError(t, err)
	assert.Equal(t, StateDeposited, c.State(id))

	join1, err := c.Cluster().Node("join1")
	require.NoError(t, err)
	_, err = c.Vote(ctx, join1, id, types.VoteOptionYes)
	require.NoError(t, err)
	assert.Equal(t, StateVoting, c.State(id))

	_, err = c.AwaitEffect(ctx, id, 0, time.Second)
	var incomplete *IncompleteVotingError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, id, incomplete.ProposalID)
	assert.Equal(t, []string{"join2"}, incomplete.Missing)
}

func TestVoteNoRejects(t *testing.T) {
	c, _ := newCoordinator(t, "genesis", "join1", "join2")
	ctx := context.Background()
	genesis := c.Cluster().Genesis()

	id, err := c.Submit(ctx, genesis, &Proposal{Title: "text", Content: &tx.TextContent{}})
	require.NoError(t, err)
	require.NoError(t, c.DepositMinimum(ctx, genesis, id))
	results, err := c.VoteAll(ctx, c.Cluster().JoinPairs(), id, types.VoteOptionNo)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	out, err := c.AwaitEffect(ctx, id, 0, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, StateRejected, c.State(id))

	_, err = c.Vote(ctx, genesis, id, types.VoteOptionYes)
	var rejected *TxRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "vote", rejected.Op)
}

func TestUpgradeEffectiveAtActivationHeight(t *testing.T) {
	c, tn := newCoordinator(t, "genesis", "join1", "join2")
	ctx := context.Background()
	activation := tn.Chain.Height() + 30

	out, err := c.Run(ctx, &Proposal{
		Title:   "v2",
		Content: &tx.SoftwareUpgrade{Name: "v2.0.0", Height: activation},
	})
	require.NoError(t, err)
	assert.Equal(t, StateEffective, out.State)
	assert.GreaterOrEqual(t, out.Height, activation)

	applied, err := chain.QueryState[types.AppliedUpgrade](ctx, tn.Nodes[0], types.QueryAppliedUpgrade, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", applied.Name)
}

func TestUpgradeNeverEffectiveBelowTarget(t *testing.T) {
	c, tn := newCoordinator(t, "genesis", "join1", "join2")
	ctx := context.Background()
	activation := tn.Chain.Height() + 30

	// The genesis node halts at the activation height until restarted, so a
	// later target is never reached.
	out, err := c.RunWithin(ctx, &Proposal{
		Title:        "v2",
		Content:      &tx.SoftwareUpgrade{Name: "v2.0.0", Height: activation},
		TargetHeight: activation + 100,
	}, 2*time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, poll.ErrTimeoutExceeded), err)
	require.NotNil(t, out)
	assert.NotEqual(t, StateEffective, out.State)
	assert.Equal(t, StateVoting, c.State(out.ProposalID))
}

func TestCustomEffect(t *testing.T) {
	c, _ := newCoordinator(t, "genesis", "join1")
	ctx := context.Background()
	calls := 0
	out, err := c.Run(ctx, &Proposal{
		Title:   "text",
		Content: &tx.TextContent{},
		Effect: func(ctx context.Context) (bool, any, error) {
			calls++
			return calls >= 3, calls, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StateEffective, out.State)
	assert.Equal(t, 3, calls)
}

func TestOutcomeErrorMatchesExpired(t *testing.T) {
	err := error(&OutcomeError{Outcome: &Outcome{ProposalID: 4, State: StateExpired}})
	assert.ErrorIs(t, err, ErrProposalExpired)
	err = &OutcomeError{Outcome: &Outcome{ProposalID: 4, State: StateRejected}}
	assert.False(t, errors.Is(err, ErrProposalExpired))
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateVoting.Terminal())
}
