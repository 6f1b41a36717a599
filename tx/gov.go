package tx

import (
	"encoding/json"
	"fmt"

	"github.com/gradosphera/gonka/types"
)

// Content is the payload a proposal applies once it passes.
type Content interface {
	Kind() types.ProposalKind
	ValidateBasic() error
}

type TextContent struct{}

func (c *TextContent) Kind() types.ProposalKind { return types.ProposalKindText }
func (c *TextContent) ValidateBasic() error     { return nil }

// SoftwareUpgrade schedules a binary swap; Info carries the cosmovisor binaries json.
type SoftwareUpgrade struct {
	Name   string `json:"name"`
	Height uint64 `json:"height"`
	Info   string `json:"info"`
}

func (c *SoftwareUpgrade) Kind() types.ProposalKind { return types.ProposalKindUpgrade }

func (c *SoftwareUpgrade) ValidateBasic() error {
	if c.Name == "" {
		return fmt.Errorf("%w: upgrade name must be non-empty", ErrInvalidRequest)
	}
	if c.Height == 0 {
		return fmt.Errorf("%w: upgrade height must be positive", ErrInvalidRequest)
	}
	if c.Info != "" && !json.Valid([]byte(c.Info)) {
		return fmt.Errorf("%w: upgrade info is not valid json", ErrInvalidRequest)
	}
	return nil
}

// UpgradeInfo is the layout of SoftwareUpgrade.Info.
type UpgradeInfo struct {
	Binaries    map[string]string `json:"binaries"`
	ApiBinaries map[string]string `json:"api_binaries,omitempty"`
}

// PartialUpgrade switches versions without swapping the node binary.
type PartialUpgrade struct {
	Height          uint64 `json:"height"`
	NodeVersion     string `json:"node_version"`
	ApiBinariesJson string `json:"api_binaries_json"`
}

func (c *PartialUpgrade) Kind() types.ProposalKind { return types.ProposalKindPartialUpgrade }

func (c *PartialUpgrade) ValidateBasic() error {
	if c.Height == 0 {
		return fmt.Errorf("%w: partial upgrade height must be positive", ErrInvalidRequest)
	}
	if c.NodeVersion == "" && c.ApiBinariesJson == "" {
		return fmt.Errorf("%w: partial upgrade needs a node version or api binaries", ErrInvalidRequest)
	}
	if c.ApiBinariesJson != "" && !json.Valid([]byte(c.ApiBinariesJson)) {
		return fmt.Errorf("%w: api_binaries_json is not valid json", ErrInvalidRequest)
	}
	return nil
}

type AllowListOp string

const (
	AllowListAdd    AllowListOp = "add"
	AllowListRemove AllowListOp = "remove"
	AllowListSet    AllowListOp = "set"
)

type AllowListUpdate struct {
	Op        AllowListOp `json:"op"`
	Addresses []string    `json:"addresses"`
}

func (c *AllowListUpdate) Kind() types.ProposalKind { return types.ProposalKindAllowList }

func (c *AllowListUpdate) ValidateBasic() error {
	switch c.Op {
	case AllowListAdd, AllowListRemove:
		if len(c.Addresses) != 1 {
			return fmt.Errorf("%w: %s takes exactly one address", ErrInvalidRequest, c.Op)
		}
	case AllowListSet:
	default:
		return fmt.Errorf("%w: unknown allow list op %q", ErrInvalidRequest, c.Op)
	}
	seen := make(map[string]bool, len(c.Addresses))
	for i, addr := range c.Addresses {
		if addr == "" {
			return fmt.Errorf("%w: addresses[%d] must be non-empty", ErrInvalidRequest, i)
		}
		if seen[addr] {
			return fmt.Errorf("%w: duplicate address %s", ErrInvalidRequest, addr)
		}
		seen[addr] = true
	}
	return nil
}

func EncodeContent(c Content) (json.RawMessage, error) {
	return json.Marshal(c)
}

func DecodeContent(kind types.ProposalKind, raw json.RawMessage) (Content, error) {
	var c Content
	switch kind {
	case types.ProposalKindText:
		c = &TextContent{}
	case types.ProposalKindUpgrade:
		c = &SoftwareUpgrade{}
	case types.ProposalKindPartialUpgrade:
		c = &PartialUpgrade{}
	case types.ProposalKindAllowList:
		c = &AllowListUpdate{}
	default:
		return nil, fmt.Errorf("%w: unknown proposal kind %d", ErrInvalidRequest, kind)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("%w: decode %s content: %v", ErrInvalidRequest, kind, err)
		}
	}
	return c, nil
}

type MsgSubmitProposal struct {
	Proposer       string             `json:"proposer"`
	Kind           types.ProposalKind `json:"kind"`
	Title          string             `json:"title"`
	Summary        string             `json:"summary"`
	Content        json.RawMessage    `json:"content"`
	InitialDeposit types.Coin         `json:"initial_deposit"`
}

func NewMsgSubmitProposal(proposer, title, summary string, content Content, deposit types.Coin) (*MsgSubmitProposal, error) {
	raw, err := EncodeContent(content)
	if err != nil {
		return nil, err
	}
	return &MsgSubmitProposal{
		Proposer:       proposer,
		Kind:           content.Kind(),
		Title:          title,
		Summary:        summary,
		Content:        raw,
		InitialDeposit: deposit,
	}, nil
}

func (m *MsgSubmitProposal) Type() MsgType     { return MsgTypeSubmitProposal }
func (m *MsgSubmitProposal) GetSigner() string { return m.Proposer }

func (m *MsgSubmitProposal) ValidateBasic() error {
	if m.Proposer == "" {
		return fmt.Errorf("%w: proposer must be non-empty", ErrInvalidRequest)
	}
	if m.Title == "" {
		return fmt.Errorf("%w: title must be non-empty", ErrInvalidRequest)
	}
	c, err := DecodeContent(m.Kind, m.Content)
	if err != nil {
		return err
	}
	return c.ValidateBasic()
}

type MsgDeposit struct {
	ProposalID uint64     `json:"proposal_id"`
	Depositor  string     `json:"depositor"`
	Amount     types.Coin `json:"amount"`
}

func (m *MsgDeposit) Type() MsgType     { return MsgTypeDeposit }
func (m *MsgDeposit) GetSigner() string { return m.Depositor }

func (m *MsgDeposit) ValidateBasic() error {
	if m.ProposalID == 0 {
		return fmt.Errorf("%w: proposal id must be positive", ErrInvalidRequest)
	}
	if m.Depositor == "" {
		return fmt.Errorf("%w: depositor must be non-empty", ErrInvalidRequest)
	}
	if m.Amount.Amount == 0 || m.Amount.Denom == "" {
		return fmt.Errorf("%w: invalid deposit amount %s", ErrInvalidRequest, m.Amount)
	}
	return nil
}

type MsgVote struct {
	ProposalID uint64           `json:"proposal_id"`
	Voter      string           `json:"voter"`
	Option     types.VoteOption `json:"option"`
}

func (m *MsgVote) Type() MsgType     { return MsgTypeVote }
func (m *MsgVote) GetSigner() string { return m.Voter }

func (m *MsgVote) ValidateBasic() error {
	if m.ProposalID == 0 {
		return fmt.Errorf("%w: proposal id must be positive", ErrInvalidRequest)
	}
	if m.Voter == "" {
		return fmt.Errorf("%w: voter must be non-empty", ErrInvalidRequest)
	}
	if m.Option < types.VoteOptionYes || m.Option > types.VoteOptionNoWithVeto {
		return fmt.Errorf("%w: invalid vote option %d", ErrInvalidRequest, m.Option)
	}
	return nil
}
