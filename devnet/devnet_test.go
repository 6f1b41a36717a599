package devnet

import (
	"context"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockTime = 10 * time.Millisecond
	cfg.RestartDelay = 50 * time.Millisecond
	return cfg
}

func testAppState() *types.AppState {
	st := types.DefaultAppState()
	st.Gov.MaxDepositPeriod = 5
	st.Gov.VotingPeriod = 10
	st.NodeVersion = "v1.0.0"
	return st
}

func newTestnet(t *testing.T, cfg Config, st *types.AppState, names ...string) *Testnet {
	t.Helper()
	specs := make([]NodeSpec, len(names))
	for i, name := range names {
		specs[i] = NodeSpec{Name: name}
	}
	tn, err := NewTestnet(cfg, "testermint", st, specs, cmtlog.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { tn.Stop() })
	return tn
}

func waitHeight(t *testing.T, c *Chain, target uint64) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Height() >= target }, 5*time.Second, 5*time.Millisecond)
}

func submitProposal(t *testing.T, n *Node, content tx.Content, deposit types.Coin) uint64 {
	t.Helper()
	msg, err := tx.NewMsgSubmitProposal(n.Address(), "title", "summary", content, deposit)
	require.NoError(t, err)
	res, err := n.Submit(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, res.Accepted(), res.RawLog)
	id, ok := types.ProposalIndexFromEvents(res.Events)
	require.True(t, ok)
	return id
}

func proposal(t *testing.T, n *Node, id uint64) *types.Proposal {
	t.Helper()
	p, err := chain.QueryState[*types.Proposal](context.Background(), n, types.QueryProposal, types.ProposalQueryData(id))
	require.NoError(t, err)
	return p
}

func TestProduceBlock(t *testing.T) {
	tn := newTestnet(t, testConfig(), nil, "genesis")
	ctx := context.Background()
	assert.Equal(t, uint64(0), tn.Chain.Height())

	require.NoError(t, tn.Chain.ProduceBlock(ctx))
	require.NoError(t, tn.Chain.ProduceBlock(ctx))
	assert.Equal(t, uint64(2), tn.Chain.Height())

	h, err := tn.Nodes[0].CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h)

	id, err := tn.Nodes[0].ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "testermint", id)
}

func TestResumeFromDataDir(t *testing.T) {
	cfg := testConfig()
	cfg.DataDir = t.TempDir()
	tn, err := NewTestnet(cfg, "testermint", nil, []NodeSpec{{Name: "genesis"}}, cmtlog.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, tn.Chain.ProduceBlock(ctx))
	}
	require.NoError(t, tn.Stop())

	c, err := New(cfg, nil, cmtlog.NewNopLogger())
	require.NoError(t, err)
	defer c.Stop()
	assert.Equal(t, uint64(3), c.Height())
	assert.Equal(t, "testermint", c.App().ChainID())
	require.NoError(t, c.ProduceBlock(ctx))
	assert.Equal(t, uint64(4), c.Height())
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		s, err := NewStore(dir, cmtlog.NewNopLogger())
		require.NoError(t, err)
		assert.Equal(t, int64(i), s.Version())
		require.NoError(t, s.setJSON("k", i))
		_, err = s.commit()
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestQueryUnknownPath(t *testing.T) {
	tn := newTestnet(t, testConfig(), nil, "genesis")
	_, err := tn.Nodes[0].QueryRaw(context.Background(), "/no/such/path", nil)
	require.Error(t, err)
	assert.True(t, chain.IsNotFound(err))

	v, err := chain.QueryState[types.MLNodeVersion](context.Background(), tn.Nodes[0], types.QueryMLNodeVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultMLNodeVersion, v.CurrentVersion)
}

func TestProposalPassesAndUpgradeHaltsNodes(t *testing.T) {
	tn := newTestnet(t, testConfig(), testAppState(), "genesis", "join1", "join2")
	tn.Start()
	ctx := context.Background()
	waitHeight(t, tn.Chain, 1)

	target := tn.Chain.Height() + 30
	params, err := chain.QueryState[types.GovParams](ctx, tn.Nodes[0], types.QueryGovParams, nil)
	require.NoError(t, err)
	id := submitProposal(t, tn.Nodes[0], &tx.SoftwareUpgrade{Name: "v2.0.0", Height: target}, params.MinDeposit)
	assert.Equal(t, types.ProposalStatusVotingPeriod, proposal(t, tn.Nodes[0], id).Status)

	for _, n := range tn.Nodes[1:] {
		res, err := n.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: n.Address(), Option: types.VoteOptionYes})
		require.NoError(t, err)
		require.True(t, res.Accepted(), res.RawLog)
	}

	require.Eventually(t, func() bool {
		p, err := chain.QueryState[*types.Proposal](ctx, tn.Nodes[0], types.QueryProposal, types.ProposalQueryData(id))
		return err == nil && p.Status == types.ProposalStatusPassed
	}, 5*time.Second, 10*time.Millisecond)
	waitHeight(t, tn.Chain, target+2)

	applied, err := chain.QueryState[types.AppliedUpgrade](ctx, tn.Nodes[0], types.QueryAppliedUpgrade, nil)
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", applied.Name)
	assert.Equal(t, target, applied.Height)

	n := tn.Nodes[1]
	h, err := n.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, target, h)
	_, err = n.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: n.Address(), Option: types.VoteOptionYes})
	assert.ErrorIs(t, err, chain.ErrNodeUnavailable)

	require.NoError(t, n.Restart(ctx))
	_, err = n.CurrentHeight(ctx)
	assert.ErrorIs(t, err, chain.ErrNodeUnavailable)
	require.Eventually(t, func() bool {
		v, err := n.NodeVersion(ctx)
		return err == nil && v == "v2.0.0"
	}, 5*time.Second, 10*time.Millisecond)
	h, err = n.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Greater(t, h, target)
	assert.Equal(t, 1, n.Restarts())
}

func TestUnfundedProposalExpires(t *testing.T) {
	tn := newTestnet(t, testConfig(), testAppState(), "genesis", "join1")
	tn.Start()
	ctx := context.Background()
	waitHeight(t, tn.Chain, 1)

	id := submitProposal(t, tn.Nodes[0], &tx.TextContent{}, types.NewCoin(types.DefaultDenom, 1))
	p := proposal(t, tn.Nodes[0], id)
	assert.Equal(t, types.ProposalStatusDepositPeriod, p.Status)

	waitHeight(t, tn.Chain, p.DepositEndHeight+1)
	_, err := tn.Nodes[0].QueryRaw(ctx, types.QueryProposal, types.ProposalQueryData(id))
	assert.True(t, chain.IsNotFound(err))

	res, err := tn.Nodes[1].Submit(ctx, &tx.MsgDeposit{ProposalID: id, Depositor: tn.Nodes[1].Address(), Amount: types.NewCoin(types.DefaultDenom, 1)})
	require.NoError(t, err)
	assert.Equal(t, CodeUnknownProposal, res.Code)
	assert.Equal(t, CodespaceGov, res.Codespace)
}

func TestTrainingMessagesGatedByAllowList(t *testing.T) {
	st := testAppState()
	tn := newTestnet(t, testConfig(), st, "genesis", "join1")
	tn.Start()
	ctx := context.Background()
	waitHeight(t, tn.Chain, 1)
	codes := tn.Chain.Config().Codes

	outsider := tn.Nodes[1]
	res, err := outsider.Submit(ctx, &tx.MsgClaimTrainingTaskForAssignment{Creator: outsider.Address(), TaskId: 1})
	require.NoError(t, err)
	assert.Equal(t, codes.NotAuthorized, res.Code)
	assert.Equal(t, CodespaceInference, res.Codespace)

	res, err = outsider.Submit(ctx, &tx.MsgClaimTrainingTaskForAssignment{Creator: outsider.Address()})
	require.NoError(t, err)
	assert.Equal(t, codes.InvalidRequest, res.Code)

	id := submitProposal(t, tn.Nodes[0], &tx.AllowListUpdate{Op: tx.AllowListAdd, Addresses: []string{outsider.Address()}}, st.Gov.MinDeposit)
	for _, n := range tn.Nodes {
		res, err := n.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: n.Address(), Option: types.VoteOptionYes})
		require.NoError(t, err)
		require.True(t, res.Accepted(), res.RawLog)
	}
	require.Eventually(t, func() bool {
		list, err := chain.QueryState[[]string](ctx, tn.Nodes[0], types.QueryAllowList, nil)
		return err == nil && len(list) == 1 && list[0] == outsider.Address()
	}, 5*time.Second, 10*time.Millisecond)

	res, err = outsider.Submit(ctx, &tx.MsgClaimTrainingTaskForAssignment{Creator: outsider.Address(), TaskId: 1})
	require.NoError(t, err)
	assert.True(t, res.Accepted(), res.RawLog)
	assert.NotZero(t, res.Height)
}

func TestVoteFromNonValidatorRejected(t *testing.T) {
	tn := newTestnet(t, testConfig(), testAppState(), "genesis")
	tn.Start()
	ctx := context.Background()
	waitHeight(t, tn.Chain, 1)

	stranger, err := tn.Chain.NewNode("stranger", chain.GenSigner())
	require.NoError(t, err)
	id := submitProposal(t, tn.Nodes[0], &tx.TextContent{}, testAppState().Gov.MinDeposit)
	res, err := stranger.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: stranger.Address(), Option: types.VoteOptionYes})
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidVoter, res.Code)
}

func TestPartialUpgradeSwitchesRoute(t *testing.T) {
	st := testAppState()
	tn := newTestnet(t, testConfig(), st, "genesis", "join1")
	tn.Start()
	ctx := context.Background()
	waitHeight(t, tn.Chain, 1)

	target := tn.Chain.Height() + 30
	id := submitProposal(t, tn.Nodes[0], &tx.PartialUpgrade{Height: target, NodeVersion: "v3.1.0"}, st.Gov.MinDeposit)
	for _, n := range tn.Nodes {
		res, err := n.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: n.Address(), Option: types.VoteOptionYes})
		require.NoError(t, err)
		require.True(t, res.Accepted(), res.RawLog)
	}
	waitHeight(t, tn.Chain, target+1)

	route, err := chain.QueryState[types.InferenceRoute](ctx, tn.Nodes[1], types.QueryInferenceRoute, nil)
	require.NoError(t, err)
	assert.Equal(t, "/v3.1.0", route.Segment)
	v, err := tn.Nodes[1].NodeVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", v)
}
