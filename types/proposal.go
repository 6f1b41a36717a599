package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ProposalKind uint8

const (
	ProposalKindUnknown        ProposalKind = 0
	ProposalKindText           ProposalKind = 1
	ProposalKindUpgrade        ProposalKind = 2
	ProposalKindPartialUpgrade ProposalKind = 3
	ProposalKindAllowList      ProposalKind = 4
)

func (k ProposalKind) String() string {
	switch k {
	case ProposalKindText:
		return "text"
	case ProposalKindUpgrade:
		return "upgrade"
	case ProposalKindPartialUpgrade:
		return "partial_upgrade"
	case ProposalKindAllowList:
		return "allow_list"
	}
	return "unknown"
}

// IsUpgrade reports whether proposals of this kind take effect at an activation height.
func (k ProposalKind) IsUpgrade() bool {
	return k == ProposalKindUpgrade || k == ProposalKindPartialUpgrade
}

type ProposalStatus uint64

const (
	ProposalStatusDepositPeriod ProposalStatus = 1
	ProposalStatusVotingPeriod  ProposalStatus = 2
	ProposalStatusPassed        ProposalStatus = 3
	ProposalStatusRejected      ProposalStatus = 4
	ProposalStatusFailed        ProposalStatus = 5
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusDepositPeriod:
		return "deposit_period"
	case ProposalStatusVotingPeriod:
		return "voting_period"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint64(s))
}

type VoteOption uint8

const (
	VoteOptionUnspecified VoteOption = 0
	VoteOptionYes         VoteOption = 1
	VoteOptionAbstain     VoteOption = 2
	VoteOptionNo          VoteOption = 3
	VoteOptionNoWithVeto  VoteOption = 4
)

func (o VoteOption) String() string {
	switch o {
	case VoteOptionYes:
		return "yes"
	case VoteOptionAbstain:
		return "abstain"
	case VoteOptionNo:
		return "no"
	case VoteOptionNoWithVeto:
		return "no_with_veto"
	}
	return "unspecified"
}

func ParseVoteOption(s string) (VoteOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes":
		return VoteOptionYes, nil
	case "abstain":
		return VoteOptionAbstain, nil
	case "no":
		return VoteOptionNo, nil
	case "no_with_veto", "veto":
		return VoteOptionNoWithVeto, nil
	}
	return VoteOptionUnspecified, fmt.Errorf("invalid vote option %q", s)
}

type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount"`
}

func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: amount}
}

func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// IsGTE reports whether c covers o. Coins of different denominations never do.
func (c Coin) IsGTE(o Coin) bool {
	return c.Denom == o.Denom && c.Amount >= o.Amount
}

func (c Coin) Add(o Coin) Coin {
	if c.Denom == "" {
		return o
	}
	return Coin{Denom: c.Denom, Amount: c.Amount + o.Amount}
}

// GovParams are read from the chain on every use; periods are in blocks.
type GovParams struct {
	MinDeposit       Coin   `json:"min_deposit"`
	MaxDepositPeriod uint64 `json:"max_deposit_period"`
	VotingPeriod     uint64 `json:"voting_period"`
	Quorum           uint64 `json:"quorum"`
	Threshold        uint64 `json:"threshold"`
}

type TallyResult struct {
	Yes        uint64 `json:"yes"`
	No         uint64 `json:"no"`
	Abstain    uint64 `json:"abstain"`
	NoWithVeto uint64 `json:"no_with_veto"`
}

func (t TallyResult) Total() uint64 {
	return t.Yes + t.No + t.Abstain + t.NoWithVeto
}

type Proposal struct {
	Index             uint64          `json:"index"`
	Kind              ProposalKind    `json:"kind"`
	Title             string          `json:"title"`
	Summary           string          `json:"summary"`
	ProposerAddress   string          `json:"proposer_address"`
	Status            ProposalStatus  `json:"status"`
	TotalDeposit      Coin            `json:"total_deposit"`
	SubmitHeight      uint64          `json:"submit_height"`
	DepositEndHeight  uint64          `json:"deposit_end_height"`
	VotingStartHeight uint64          `json:"voting_start_height"`
	VotingEndHeight   uint64          `json:"voting_end_height"`
	FinalTally        TallyResult     `json:"final_tally"`
	Content           json.RawMessage `json:"content"`
}

// Final reports whether the proposal reached a terminal chain status.
func (p *Proposal) Final() bool {
	return p.Status == ProposalStatusPassed || p.Status == ProposalStatusRejected || p.Status == ProposalStatusFailed
}
