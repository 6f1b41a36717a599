package chain

import (
	"context"
	"encoding/json"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/gradosphera/gonka/tx"
)

// Client is the boundary between the harness and one running node.
type Client interface {
	// Address is the account this client signs transactions with.
	Address() string
	ChainID(ctx context.Context) (string, error)
	CurrentHeight(ctx context.Context) (uint64, error)
	// QueryRaw returns the raw query value, or a *QueryError if the node
	// could not be reached or answered with a non-zero code.
	QueryRaw(ctx context.Context, path string, data []byte) ([]byte, error)
	// Submit signs msg and waits until it is either rejected at admission
	// or executed in a block. A chain-side rejection is a TxResult with a
	// non-zero code, not an error.
	Submit(ctx context.Context, msg tx.Msg) (*TxResult, error)
	Restart(ctx context.Context) error
	NodeVersion(ctx context.Context) (string, error)
}

type TxResult struct {
	Code      uint32            `json:"code"`
	Codespace string            `json:"codespace"`
	RawLog    string            `json:"raw_log"`
	TxHash    string            `json:"txhash"`
	Height    uint64            `json:"height"`
	Events    []abcitypes.Event `json:"events,omitempty"`
}

func (r *TxResult) Accepted() bool {
	return r != nil && r.Code == 0
}

// QueryState decodes the value at path into T.
func QueryState[T any](ctx context.Context, cli Client, path string, data []byte) (v T, err error) {
	raw, err := cli.QueryRaw(ctx, path, data)
	if err != nil {
		return
	}
	if err = json.Unmarshal(raw, &v); err != nil {
		err = &DecodeError{Path: path, Raw: raw, Err: err}
	}
	return
}
