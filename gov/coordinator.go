package gov

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/journal"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

type Config struct {
	// EffectTimeout bounds Run's wait for a proposal to take effect.
	EffectTimeout time.Duration `mapstructure:"effect_timeout"`
}

func DefaultConfig() Config {
	return Config{EffectTimeout: 5 * time.Minute}
}

func (cfg Config) ValidateBasic() error {
	if cfg.EffectTimeout <= 0 {
		return fmt.Errorf("gov.effect_timeout must be positive")
	}
	return nil
}

type tracked struct {
	kind   types.ProposalKind
	state  State
	target uint64
	effect poll.Check
	voters map[string]bool
}

// Coordinator drives proposals through submit, deposit, vote and effect on
// one cluster. Chain state is always read from the genesis node.
type Coordinator struct {
	cluster  *cluster.Cluster
	poller   *poll.Poller
	recorder journal.Recorder
	cfg      Config
	logger   cmtlog.Logger

	mtx       sync.Mutex
	proposals map[uint64]*tracked

	idMtx   sync.Mutex
	chainID string
}

func NewCoordinator(cl *cluster.Cluster, poller *poll.Poller, recorder journal.Recorder, cfg Config, logger cmtlog.Logger) *Coordinator {
	if recorder == nil {
		recorder = journal.Nop{}
	}
	return &Coordinator{
		cluster:   cl,
		poller:    poller,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger.With("module", "gov"),
		proposals: make(map[uint64]*tracked),
	}
}

func (c *Coordinator) Cluster() *cluster.Cluster {
	return c.cluster
}

func (c *Coordinator) Poller() *poll.Poller {
	return c.poller
}

func (c *Coordinator) Recorder() journal.Recorder {
	return c.recorder
}

func (c *Coordinator) client() chain.Client {
	return c.cluster.Genesis().Client()
}

// State is the coordinator's view of a proposal; untracked ids are Drafted.
func (c *Coordinator) State(id uint64) State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if t, ok := c.proposals[id]; ok {
		return t.state
	}
	return StateDrafted
}

// Voted lists the nodes that have cast an accepted vote on id.
func (c *Coordinator) Voted(id uint64) []string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	t, ok := c.proposals[id]
	if !ok {
		return nil
	}
	var names []string
	for name, voted := range t.voters {
		if voted {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Coordinator) lookup(id uint64) (*tracked, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	t, ok := c.proposals[id]
	return t, ok
}

// advance moves a tracked proposal forward; states never go back.
func (c *Coordinator) advance(ctx context.Context, id uint64, s State, height uint64) {
	c.mtx.Lock()
	t, ok := c.proposals[id]
	if !ok {
		t = &tracked{voters: map[string]bool{}}
		c.proposals[id] = t
	}
	if s <= t.state {
		c.mtx.Unlock()
		return
	}
	t.state = s
	c.mtx.Unlock()
	c.logger.Info("proposal state", "proposal", id, "state", s, "height", height)
	c.record(ctx, &journal.Proposal{ProposalId: id, State: s.String(), Height: height})
}

func (c *Coordinator) ChainID(ctx context.Context) string {
	c.idMtx.Lock()
	defer c.idMtx.Unlock()
	if c.chainID == "" {
		id, err := c.client().ChainID(ctx)
		if err != nil {
			c.logger.Error("get chain id fail", "err", err)
			return ""
		}
		c.chainID = id
	}
	return c.chainID
}

func (c *Coordinator) record(ctx context.Context, p *journal.Proposal) {
	p.ChainId = c.ChainID(ctx)
	if err := c.recorder.RecordProposal(p); err != nil {
		c.logger.Error("record proposal fail", "proposal", p.ProposalId, "err", err)
	}
}

// Params reads the governance parameters from the chain.
func (c *Coordinator) Params(ctx context.Context) (types.GovParams, error) {
	return chain.QueryState[types.GovParams](ctx, c.client(), types.QueryGovParams, nil)
}

func (c *Coordinator) Proposal(ctx context.Context, id uint64) (*types.Proposal, error) {
	return chain.QueryState[*types.Proposal](ctx, c.client(), types.QueryProposal, types.ProposalQueryData(id))
}

// Submit sends p from proposer and returns the id the chain assigned.
func (c *Coordinator) Submit(ctx context.Context, proposer cluster.Node, p *Proposal) (uint64, error) {
	if p == nil || p.Content == nil {
		return 0, fmt.Errorf("%w: missing content", ErrInvalidProposal)
	}
	cli := proposer.Client()
	msg, err := tx.NewMsgSubmitProposal(cli.Address(), p.Title, p.Summary, p.Content, p.InitialDeposit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	res, err := cli.Submit(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("submit proposal from %s: %w", proposer.Name(), err)
	}
	if !res.Accepted() {
		c.logger.Error("proposal submission rejected", "node", proposer.Name(), "code", res.Code, "log", res.RawLog)
		return 0, &SubmissionRejectedError{Code: res.Code, Codespace: res.Codespace, Log: res.RawLog}
	}
	id, ok := types.ProposalIndexFromEvents(res.Events)
	if !ok {
		return 0, fmt.Errorf("%w: tx %s", ErrNoProposalID, res.TxHash)
	}

	target := p.TargetHeight
	if target == 0 {
		target = contentHeight(p.Content)
	}
	t := &tracked{
		kind:   p.Kind(),
		state:  StateSubmitted,
		target: target,
		effect: p.Effect,
		voters: make(map[string]bool),
	}
	for _, n := range c.voterNodes(p.Voters) {
		t.voters[n.Name()] = false
	}
	c.mtx.Lock()
	c.proposals[id] = t
	c.mtx.Unlock()

	c.logger.Info("proposal submitted", "proposal", id, "kind", t.kind, "node", proposer.Name(), "height", res.Height)
	c.record(ctx, &journal.Proposal{
		ProposalId:   id,
		Kind:         t.kind.String(),
		Title:        p.Title,
		Proposer:     cli.Address(),
		State:        StateSubmitted.String(),
		TargetHeight: target,
		Height:       res.Height,
	})
	if pr, err := c.Proposal(ctx, id); err == nil && pr.Status == types.ProposalStatusVotingPeriod {
		c.advance(ctx, id, StateDeposited, res.Height)
	}
	return id, nil
}

// voterNodes resolves voter names; none means every join, or the genesis
// node when the cluster has no joins.
func (c *Coordinator) voterNodes(names []string) []cluster.Node {
	if len(names) == 0 {
		if joins := c.cluster.JoinPairs(); len(joins) > 0 {
			return joins
		}
		return []cluster.Node{c.cluster.Genesis()}
	}
	nodes := make([]cluster.Node, 0, len(names))
	for _, name := range names {
		if n, err := c.cluster.Node(name); err == nil {
			nodes = append(nodes, n)
		} else {
			c.logger.Error("unknown voter", "node", name)
		}
	}
	return nodes
}

// expired marks a proposal whose deposit period ended on chain.
func (c *Coordinator) expired(ctx context.Context, id uint64) error {
	if _, ok := c.lookup(id); !ok {
		return fmt.Errorf("%w: proposal %d not found", ErrUnknownProposal, id)
	}
	c.advance(ctx, id, StateExpired, 0)
	return fmt.Errorf("%w: proposal %d", ErrProposalExpired, id)
}

// live reads a proposal that can still take deposits.
func (c *Coordinator) live(ctx context.Context, id uint64) (*types.Proposal, error) {
	if c.State(id) == StateExpired {
		return nil, fmt.Errorf("%w: proposal %d", ErrProposalExpired, id)
	}
	p, err := c.Proposal(ctx, id)
	if err != nil {
		if chain.IsNotFound(err) {
			return nil, c.expired(ctx, id)
		}
		return nil, err
	}
	switch {
	case p.Status == types.ProposalStatusDepositPeriod:
		h, err := c.client().CurrentHeight(ctx)
		if err == nil && h >= p.DepositEndHeight {
			return nil, c.expired(ctx, id)
		}
	case p.Final():
		return nil, fmt.Errorf("%w: proposal %d is %s", ErrProposalFinished, id, p.Status)
	}
	return p, nil
}

func (c *Coordinator) Deposit(ctx context.Context, depositor cluster.Node, id uint64, amount types.Coin) error {
	if _, err := c.live(ctx, id); err != nil {
		return err
	}
	cli := depositor.Client()
	res, err := cli.Submit(ctx, &tx.MsgDeposit{ProposalID: id, Depositor: cli.Address(), Amount: amount})
	if err != nil {
		return fmt.Errorf("deposit on proposal %d from %s: %w", id, depositor.Name(), err)
	}
	if !res.Accepted() {
		if _, qerr := c.Proposal(ctx, id); chain.IsNotFound(qerr) {
			return c.expired(ctx, id)
		}
		return &TxRejectedError{Op: "deposit", Node: depositor.Name(), ProposalID: id, Code: res.Code, Codespace: res.Codespace, Log: res.RawLog}
	}
	c.logger.Info("deposit accepted", "proposal", id, "node", depositor.Name(), "amount", amount, "height", res.Height)
	p, err := c.Proposal(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != types.ProposalStatusDepositPeriod {
		c.advance(ctx, id, StateDeposited, res.Height)
	}
	return nil
}

// DepositMinimum tops the proposal's deposit up to exactly the chain's
// current minimum.
func (c *Coordinator) DepositMinimum(ctx context.Context, depositor cluster.Node, id uint64) error {
	params, err := c.Params(ctx)
	if err != nil {
		return fmt.Errorf("read gov params: %w", err)
	}
	p, err := c.live(ctx, id)
	if err != nil {
		return err
	}
	if p.TotalDeposit.IsGTE(params.MinDeposit) {
		c.advance(ctx, id, StateDeposited, 0)
		return nil
	}
	remaining := params.MinDeposit.Amount
	if p.TotalDeposit.Denom == params.MinDeposit.Denom {
		remaining -= p.TotalDeposit.Amount
	}
	return c.Deposit(ctx, depositor, id, types.NewCoin(params.MinDeposit.Denom, remaining))
}

func (c *Coordinator) Vote(ctx context.Context, voter cluster.Node, id uint64, option types.VoteOption) (*VoteResult, error) {
	cli := voter.Client()
	res, err := cli.Submit(ctx, &tx.MsgVote{ProposalID: id, Voter: cli.Address(), Option: option})
	if err != nil {
		return nil, fmt.Errorf("vote on proposal %d from %s: %w", id, voter.Name(), err)
	}
	vr := &VoteResult{Node: voter.Name(), ProposalID: id, Option: option, Result: res}
	if err := c.recorder.RecordVote(&journal.Vote{
		ChainId:      c.ChainID(ctx),
		ProposalId:   id,
		Node:         voter.Name(),
		VoterAddress: cli.Address(),
		Option:       option.String(),
		Code:         res.Code,
		TxHash:       res.TxHash,
		Height:       res.Height,
	}); err != nil {
		c.logger.Error("record vote fail", "proposal", id, "err", err)
	}
	if !res.Accepted() {
		return vr, &TxRejectedError{Op: "vote", Node: voter.Name(), ProposalID: id, Code: res.Code, Codespace: res.Codespace, Log: res.RawLog}
	}
	c.mtx.Lock()
	if t, ok := c.proposals[id]; ok {
		t.voters[voter.Name()] = true
	}
	c.mtx.Unlock()
	c.logger.Info("vote accepted", "proposal", id, "node", voter.Name(), "option", option, "height", res.Height)
	c.advance(ctx, id, StateVoting, res.Height)
	return vr, nil
}

// VoteAll votes from every node concurrently. Results hold whatever each
// node produced; the error joins the per-node failures.
func (c *Coordinator) VoteAll(ctx context.Context, voters []cluster.Node, id uint64, option types.VoteOption) (map[string]*VoteResult, error) {
	results := cluster.Broadcast(ctx, voters, func(ctx context.Context, n cluster.Node) (*VoteResult, error) {
		return c.Vote(ctx, n, id, option)
	})
	out := make(map[string]*VoteResult, len(results))
	for name, r := range results {
		out[name] = r.Value
	}
	return out, cluster.Failures(results)
}
