package devnet

import (
	"context"
	"errors"
	"fmt"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

const (
	CodespaceSDK       = "sdk"
	CodespaceGov       = "gov"
	CodespaceInference = "inference"

	CodeTxDecode         uint32 = 2
	CodeUnauthorized     uint32 = 4
	CodeWrongSequence    uint32 = 32
	CodeUnknownProposal  uint32 = 2
	CodeInactiveProposal uint32 = 3
	CodeInvalidVoter     uint32 = 5
	CodeInvalidDeposit   uint32 = 6
)

type TxHandler interface {
	Check(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error)
}

type GovTxHandler struct {
	logger cmtlog.Logger
	codes  chain.Codes
}

func NewGovTxHandler(codes chain.Codes, logger cmtlog.Logger) *GovTxHandler {
	return &GovTxHandler{
		logger: logger.With("module", "govTx"),
		codes:  codes,
	}
}

func (h *GovTxHandler) Check(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	return
}

func (h *GovTxHandler) Process(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	msg, err := btx.GetMsg()
	if err != nil {
		return nil, err
	}
	height := st.Header().Height
	switch m := msg.(type) {
	case *tx.MsgSubmitProposal:
		return h.submit(st, m, height)
	case *tx.MsgDeposit:
		return h.deposit(st, m, height)
	case *tx.MsgVote:
		return h.vote(st, m)
	}
	return nil, fmt.Errorf("%w: %v", tx.ErrUnsupportedTxType, btx.Type)
}

func failed(codespace string, code uint32, format string, args ...any) *abcitypes.ExecTxResult {
	return &abcitypes.ExecTxResult{Code: code, Codespace: codespace, Log: fmt.Sprintf(format, args...)}
}

func startVoting(p *types.Proposal, params types.GovParams, height uint64) {
	p.Status = types.ProposalStatusVotingPeriod
	p.VotingStartHeight = height
	p.VotingEndHeight = height + params.VotingPeriod
}

func (h *GovTxHandler) submit(st *State, m *tx.MsgSubmitProposal, height uint64) (*abcitypes.ExecTxResult, error) {
	params, err := st.GovParams()
	if err != nil {
		return nil, err
	}
	content, err := tx.DecodeContent(m.Kind, m.Content)
	if err != nil {
		return failed(CodespaceSDK, h.codes.InvalidRequest, "%v", err), nil
	}
	switch c := content.(type) {
	case *tx.SoftwareUpgrade:
		if c.Height <= height {
			return failed(CodespaceSDK, h.codes.InvalidRequest, "upgrade height %d must be above current height %d", c.Height, height), nil
		}
	case *tx.PartialUpgrade:
		if c.Height <= height {
			return failed(CodespaceSDK, h.codes.InvalidRequest, "partial upgrade height %d must be above current height %d", c.Height, height), nil
		}
	}
	deposit := m.InitialDeposit
	if deposit.Denom == "" {
		deposit = types.NewCoin(params.MinDeposit.Denom, 0)
	}
	if deposit.Denom != params.MinDeposit.Denom {
		return failed(CodespaceGov, CodeInvalidDeposit, "deposit denom %s, want %s", deposit.Denom, params.MinDeposit.Denom), nil
	}
	p := &types.Proposal{
		Kind:             m.Kind,
		Title:            m.Title,
		Summary:          m.Summary,
		ProposerAddress:  m.Proposer,
		Status:           types.ProposalStatusDepositPeriod,
		TotalDeposit:     deposit,
		SubmitHeight:     height,
		DepositEndHeight: height + params.MaxDepositPeriod,
		Content:          m.Content,
	}
	if p.TotalDeposit.IsGTE(params.MinDeposit) {
		startVoting(p, params, height)
	}
	if err = st.addProposal(p); err != nil {
		return nil, err
	}
	h.logger.Info("proposal submitted", "proposal", p.Index, "kind", p.Kind, "status", p.Status)
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventSubmitProposal(&types.EventSubmitProposal{
			ProposalIndex:   p.Index,
			ProposerAddress: p.ProposerAddress,
			Kind:            p.Kind,
			Status:          p.Status,
		})},
	}, nil
}

func (h *GovTxHandler) deposit(st *State, m *tx.MsgDeposit, height uint64) (*abcitypes.ExecTxResult, error) {
	p, err := st.Proposal(m.ProposalID)
	if errors.Is(err, ErrProposalNotFound) {
		return failed(CodespaceGov, CodeUnknownProposal, "unknown proposal %d", m.ProposalID), nil
	}
	if err != nil {
		return nil, err
	}
	if p.Status != types.ProposalStatusDepositPeriod && p.Status != types.ProposalStatusVotingPeriod {
		return failed(CodespaceGov, CodeInactiveProposal, "inactive proposal %d (%s)", p.Index, p.Status), nil
	}
	params, err := st.GovParams()
	if err != nil {
		return nil, err
	}
	if m.Amount.Denom != params.MinDeposit.Denom {
		return failed(CodespaceGov, CodeInvalidDeposit, "deposit denom %s, want %s", m.Amount.Denom, params.MinDeposit.Denom), nil
	}
	p.TotalDeposit = p.TotalDeposit.Add(m.Amount)
	if p.Status == types.ProposalStatusDepositPeriod && p.TotalDeposit.IsGTE(params.MinDeposit) {
		startVoting(p, params, height)
	}
	if err = st.setProposal(p); err != nil {
		return nil, err
	}
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventProposalDeposit(&types.EventProposalDeposit{
			ProposalIndex: p.Index,
			Depositor:     m.Depositor,
			Amount:        m.Amount,
			Status:        p.Status,
		})},
	}, nil
}

func (h *GovTxHandler) vote(st *State, m *tx.MsgVote) (*abcitypes.ExecTxResult, error) {
	p, err := st.Proposal(m.ProposalID)
	if errors.Is(err, ErrProposalNotFound) {
		return failed(CodespaceGov, CodeUnknownProposal, "unknown proposal %d", m.ProposalID), nil
	}
	if err != nil {
		return nil, err
	}
	if p.Status != types.ProposalStatusVotingPeriod {
		return failed(CodespaceGov, CodeInactiveProposal, "proposal %d not in voting period (%s)", p.Index, p.Status), nil
	}
	power, err := st.validatorPower(m.Voter)
	if err != nil {
		return nil, err
	}
	if power <= 0 {
		return failed(CodespaceGov, CodeInvalidVoter, "voter %s has no voting power", m.Voter), nil
	}
	if err = st.setVote(p.Index, m.Voter, m.Option); err != nil {
		return nil, err
	}
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{types.EncodeEventProposalVote(&types.EventProposalVote{
			ProposalIndex: p.Index,
			Voter:         m.Voter,
			Option:        m.Option,
		})},
	}, nil
}

// TrainingTxHandler gates the training coordination messages on the allow list.
type TrainingTxHandler struct {
	logger cmtlog.Logger
	codes  chain.Codes
}

func NewTrainingTxHandler(codes chain.Codes, logger cmtlog.Logger) *TrainingTxHandler {
	return &TrainingTxHandler{
		logger: logger.With("module", "trainingTx"),
		codes:  codes,
	}
}

func (h *TrainingTxHandler) authorize(st *State, btx *tx.Tx) (uint32, string, error) {
	ok, err := st.IsAllowed(btx.Sender)
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return h.codes.NotAuthorized, fmt.Sprintf("%s is not in the training allow list", btx.Sender), nil
	}
	return 0, "", nil
}

func (h *TrainingTxHandler) Check(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ResponseCheckTx, err error) {
	code, log, err := h.authorize(st, btx)
	if err != nil {
		return nil, err
	}
	res = &abcitypes.ResponseCheckTx{Code: code, Log: log}
	if code != 0 {
		res.Codespace = CodespaceInference
	}
	return
}

func (h *TrainingTxHandler) Process(ctx context.Context, st *State, btx *tx.Tx) (res *abcitypes.ExecTxResult, err error) {
	code, log, err := h.authorize(st, btx)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return failed(CodespaceInference, code, "%s", log), nil
	}
	h.logger.Debug("training msg accepted", "type", btx.Type, "sender", btx.Sender)
	return &abcitypes.ExecTxResult{
		Events: []abcitypes.Event{{
			Type: "training_msg",
			Attributes: []abcitypes.EventAttribute{
				{Key: "type", Value: btx.Type.String(), Index: true},
				{Key: "sender", Value: btx.Sender, Index: true},
			},
		}},
	}, nil
}
