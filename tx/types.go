package tx

import (
	"errors"
)

type MsgType uint8

const (
	MsgTypeUnknown        MsgType = 0
	MsgTypeSubmitProposal MsgType = 1
	MsgTypeDeposit        MsgType = 2
	MsgTypeVote           MsgType = 3

	MsgTypeAssignTrainingTask         MsgType = 10
	MsgTypeClaimTrainingTaskForAssign MsgType = 11
	MsgTypeCreateDummyTrainingTask    MsgType = 12
	MsgTypeCreateTrainingTask         MsgType = 13
	MsgTypeJoinTraining               MsgType = 14
	MsgTypeJoinTrainingStatus         MsgType = 15
	MsgTypeSetBarrier                 MsgType = 16
	MsgTypeTrainingHeartbeat          MsgType = 17
)

var msgTypeNames = map[MsgType]string{
	MsgTypeSubmitProposal:             "MsgSubmitProposal",
	MsgTypeDeposit:                    "MsgDeposit",
	MsgTypeVote:                       "MsgVote",
	MsgTypeAssignTrainingTask:         "MsgAssignTrainingTask",
	MsgTypeClaimTrainingTaskForAssign: "MsgClaimTrainingTaskForAssignment",
	MsgTypeCreateDummyTrainingTask:    "MsgCreateDummyTrainingTask",
	MsgTypeCreateTrainingTask:         "MsgCreateTrainingTask",
	MsgTypeJoinTraining:               "MsgJoinTraining",
	MsgTypeJoinTrainingStatus:         "MsgJoinTrainingStatus",
	MsgTypeSetBarrier:                 "MsgSetBarrier",
	MsgTypeTrainingHeartbeat:          "MsgTrainingHeartbeat",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "MsgUnknown"
}

// IsTraining reports whether the message kind is gated by the training allow list.
func (t MsgType) IsTraining() bool {
	return t >= MsgTypeAssignTrainingTask && t <= MsgTypeTrainingHeartbeat
}

const (
	TxVersion0 uint8 = 0
	TxVersion1 uint8 = 1
)

var (
	ErrInvalidTx         = errors.New("invalid tx")
	ErrUnsupportedTxType = errors.New("unsupported tx type")
	ErrUnmatchedTxType   = errors.New("unmatched tx type")
	ErrUnsupportedTxVer  = errors.New("unsupported tx version")
	ErrInvalidRequest    = errors.New("invalid request")
)

// Msg is a single chain message carried by a Tx.
type Msg interface {
	Type() MsgType
	GetSigner() string
	ValidateBasic() error
}
