package gov

import (
	"time"

	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

type State uint8

const (
	StateDrafted State = iota
	StateSubmitted
	StateDeposited
	StateVoting
	StateEffective
	StateRejected
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateDrafted:
		return "drafted"
	case StateSubmitted:
		return "submitted"
	case StateDeposited:
		return "deposited"
	case StateVoting:
		return "voting"
	case StateEffective:
		return "effective"
	case StateRejected:
		return "rejected"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s >= StateEffective
}

// Proposal is a draft governance proposal.
type Proposal struct {
	Title   string
	Summary string
	Content tx.Content
	// InitialDeposit is sent with the submission; zero means none.
	InitialDeposit types.Coin
	// TargetHeight is the activation height of upgrade kinds. It defaults to
	// the height carried by the content.
	TargetHeight uint64
	// Effect is the observable state that must hold, once the chain has
	// passed the proposal, before it counts as effective. When nil a default
	// is derived from the content.
	Effect poll.Check
	// Voters names the nodes expected to vote. Empty means every join node,
	// or the genesis node of a cluster without joins.
	Voters []string
}

func (p *Proposal) Kind() types.ProposalKind {
	if p.Content == nil {
		return types.ProposalKindUnknown
	}
	return p.Content.Kind()
}

type VoteResult struct {
	Node       string
	ProposalID uint64
	Option     types.VoteOption
	Result     *chain.TxResult
}

// Outcome is where a proposal ended up.
type Outcome struct {
	ProposalID uint64
	State      State
	// Height is the chain height the outcome was observed at.
	Height   uint64
	Proposal *types.Proposal
	Attempts int
	Elapsed  time.Duration
}
