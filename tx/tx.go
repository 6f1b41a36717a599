package tx

import (
	"encoding/json"
	"fmt"
)

type Tx struct {
	Version uint8    `json:"version"`
	Type    MsgType  `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Sender  string   `json:"sender"`
	PubKey  []byte   `json:"pub_key"`
	Msg     any      `json:"msg"`
	Sig     [][]byte `json:"sig"`
}

type txTmpl[M any] struct {
	Version uint8    `json:"version"`
	Type    MsgType  `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Sender  string   `json:"sender"`
	PubKey  []byte   `json:"pub_key"`
	Msg     M        `json:"msg"`
	Sig     [][]byte `json:"sig"`
}

func New(msg Msg, sender string, pubKey []byte, nonce uint64) *Tx {
	return &Tx{
		Version: TxVersion1,
		Type:    msg.Type(),
		Nonce:   nonce,
		Sender:  sender,
		PubKey:  pubKey,
		Msg:     msg,
	}
}

// SigData is the byte string signed by the sender; ext binds it to a chain id.
func (tx *Tx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *Tx) GetMsg() (Msg, error) {
	msg, ok := tx.Msg.(Msg)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTxType, tx.Msg)
	}
	if msg.Type() != tx.Type {
		return nil, fmt.Errorf("%w: envelope %v, msg %v", ErrUnmatchedTxType, tx.Type, msg.Type())
	}
	return msg, nil
}

func parseTxType(dat []byte) MsgType {
	var tx struct {
		Type MsgType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return MsgTypeUnknown
	}
	return tx.Type
}

func unmarshalTx[M any](dat []byte) (btx *Tx, err error) {
	var txt txTmpl[M]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != TxVersion1 {
		return nil, ErrUnsupportedTxVer
	}
	btx = new(Tx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Sender = txt.Sender
	btx.PubKey = txt.PubKey
	btx.Msg = &txt.Msg
	btx.Sig = txt.Sig
	return
}

func Unmarshal(dat []byte) (btx *Tx, err error) {
	tp := parseTxType(dat)
	switch tp {
	case MsgTypeSubmitProposal:
		return unmarshalTx[MsgSubmitProposal](dat)
	case MsgTypeDeposit:
		return unmarshalTx[MsgDeposit](dat)
	case MsgTypeVote:
		return unmarshalTx[MsgVote](dat)
	case MsgTypeAssignTrainingTask:
		return unmarshalTx[MsgAssignTrainingTask](dat)
	case MsgTypeClaimTrainingTaskForAssign:
		return unmarshalTx[MsgClaimTrainingTaskForAssignment](dat)
	case MsgTypeCreateDummyTrainingTask:
		return unmarshalTx[MsgCreateDummyTrainingTask](dat)
	case MsgTypeCreateTrainingTask:
		return unmarshalTx[MsgCreateTrainingTask](dat)
	case MsgTypeJoinTraining:
		return unmarshalTx[MsgJoinTraining](dat)
	case MsgTypeJoinTrainingStatus:
		return unmarshalTx[MsgJoinTrainingStatus](dat)
	case MsgTypeSetBarrier:
		return unmarshalTx[MsgSetBarrier](dat)
	case MsgTypeTrainingHeartbeat:
		return unmarshalTx[MsgTrainingHeartbeat](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func Marshal(btx *Tx) (dat []byte, err error) {
	return json.Marshal(btx)
}
