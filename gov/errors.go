package gov

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProposalExpired  = errors.New("proposal expired")
	ErrUnknownProposal  = errors.New("unknown proposal")
	ErrNoProposalID     = errors.New("no proposal id in submit result")
	ErrInvalidProposal  = errors.New("invalid proposal")
	ErrProposalFinished = errors.New("proposal already finished")
)

// SubmissionRejectedError is a chain-side refusal of a proposal submission.
// No proposal id was assigned.
type SubmissionRejectedError struct {
	Code      uint32
	Codespace string
	Log       string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("proposal submission rejected: code %d (%s): %s", e.Code, e.Codespace, e.Log)
}

// TxRejectedError is a chain-side refusal of a deposit or vote.
type TxRejectedError struct {
	Op         string
	Node       string
	ProposalID uint64
	Code       uint32
	Codespace  string
	Log        string
}

func (e *TxRejectedError) Error() string {
	return fmt.Sprintf("%s on proposal %d from node %s rejected: code %d (%s): %s", e.Op, e.ProposalID, e.Node, e.Code, e.Codespace, e.Log)
}

type IncompleteVotingError struct {
	ProposalID uint64
	Missing    []string
}

func (e *IncompleteVotingError) Error() string {
	return fmt.Sprintf("proposal %d: waiting for effect before %s voted", e.ProposalID, strings.Join(e.Missing, ", "))
}

// OutcomeError reports a proposal that finished without taking effect.
type OutcomeError struct {
	Outcome *Outcome
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("proposal %d ended %s at height %d", e.Outcome.ProposalID, e.Outcome.State, e.Outcome.Height)
}

func (e *OutcomeError) Is(target error) bool {
	return target == ErrProposalExpired && e.Outcome.State == StateExpired
}
