package types

import (
	"fmt"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventSubmitProposalType  = "submit_proposal"
	EventProposalDepositType = "proposal_deposit"
	EventProposalVoteType    = "proposal_vote"
	EventAllowListType       = "training_allow_list"
	EventUpgradeAppliedType  = "upgrade_applied"
)

type EventSubmitProposal struct {
	ProposalIndex   uint64         `json:"proposalIndex"`
	ProposerAddress string         `json:"proposerAddress"`
	Kind            ProposalKind   `json:"kind"`
	Status          ProposalStatus `json:"status"`
}

func EncodeEventSubmitProposal(event *EventSubmitProposal) abci.Event {
	return abci.Event{
		Type: EventSubmitProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalIndex), Index: true},
			{Key: "proposer", Value: event.ProposerAddress, Index: true},
			{Key: "kind", Value: fmt.Sprintf("%v", uint8(event.Kind)), Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint64(event.Status)), Index: false},
		},
	}
}

func DecodeEventSubmitProposal(originEvent abci.Event) *EventSubmitProposal {
	if originEvent.Type != EventSubmitProposalType {
		return nil
	}
	event := &EventSubmitProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal_id":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalIndex = proposal
		case "proposer":
			event.ProposerAddress = v.Value
		case "kind":
			kind, err := strconv.ParseUint(v.Value, 10, 8)
			if err != nil {
				return nil
			}
			event.Kind = ProposalKind(kind)
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = ProposalStatus(status)
		}
	}
	return event
}

type EventProposalDeposit struct {
	ProposalIndex uint64         `json:"proposalIndex"`
	Depositor     string         `json:"depositor"`
	Amount        Coin           `json:"amount"`
	Status        ProposalStatus `json:"status"`
}

func EncodeEventProposalDeposit(event *EventProposalDeposit) abci.Event {
	return abci.Event{
		Type: EventProposalDepositType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalIndex), Index: true},
			{Key: "depositor", Value: event.Depositor, Index: false},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount.Amount), Index: false},
			{Key: "denom", Value: event.Amount.Denom, Index: false},
			{Key: "status", Value: fmt.Sprintf("%v", uint64(event.Status)), Index: false},
		},
	}
}

func DecodeEventProposalDeposit(originEvent abci.Event) *EventProposalDeposit {
	if originEvent.Type != EventProposalDepositType {
		return nil
	}
	event := &EventProposalDeposit{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal_id":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalIndex = proposal
		case "depositor":
			event.Depositor = v.Value
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount.Amount = amount
		case "denom":
			event.Amount.Denom = v.Value
		case "status":
			status, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Status = ProposalStatus(status)
		}
	}
	return event
}

type EventProposalVote struct {
	ProposalIndex uint64     `json:"proposalIndex"`
	Voter         string     `json:"voter"`
	Option        VoteOption `json:"option"`
}

func EncodeEventProposalVote(event *EventProposalVote) abci.Event {
	return abci.Event{
		Type: EventProposalVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalIndex), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "option", Value: event.Option.String(), Index: false},
		},
	}
}

func DecodeEventProposalVote(originEvent abci.Event) *EventProposalVote {
	if originEvent.Type != EventProposalVoteType {
		return nil
	}
	event := &EventProposalVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal_id":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalIndex = proposal
		case "voter":
			event.Voter = v.Value
		case "option":
			option, err := ParseVoteOption(v.Value)
			if err != nil {
				return nil
			}
			event.Option = option
		}
	}
	return event
}

type EventAllowList struct {
	ProposalIndex uint64   `json:"proposalIndex"`
	Addresses     []string `json:"addresses"`
}

func EncodeEventAllowList(event *EventAllowList) abci.Event {
	return abci.Event{
		Type: EventAllowListType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal_id", Value: fmt.Sprintf("%v", event.ProposalIndex), Index: true},
			{Key: "addresses", Value: strings.Join(event.Addresses, ","), Index: false},
		},
	}
}

func EncodeEventUpgradeApplied(event *AppliedUpgrade) abci.Event {
	return abci.Event{
		Type: EventUpgradeAppliedType,
		Attributes: []abci.EventAttribute{
			{Key: "name", Value: event.Name, Index: true},
			{Key: "height", Value: fmt.Sprintf("%v", event.Height), Index: false},
		},
	}
}

// ProposalIndexFromEvents returns the id assigned by the chain in a submit result.
func ProposalIndexFromEvents(events []abci.Event) (uint64, bool) {
	for _, e := range events {
		if ev := DecodeEventSubmitProposal(e); ev != nil && ev.ProposalIndex != 0 {
			return ev.ProposalIndex, true
		}
	}
	return 0, false
}
