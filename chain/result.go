package chain

import (
	abcitypes "github.com/cometbft/cometbft/abci/types"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
)

// ResultFromCommit maps a broadcast-and-commit response to a TxResult. A
// transaction refused at admission carries the admission code and no height.
func ResultFromCommit(res *ctypes.ResultBroadcastTxCommit) *TxResult {
	if res.CheckTx.Code != 0 {
		return &TxResult{
			Code:      res.CheckTx.Code,
			Codespace: res.CheckTx.Codespace,
			RawLog:    res.CheckTx.Log,
			TxHash:    res.Hash.String(),
			Events:    res.CheckTx.Events,
		}
	}
	return &TxResult{
		Code:      res.TxResult.Code,
		Codespace: res.TxResult.Codespace,
		RawLog:    res.TxResult.Log,
		TxHash:    res.Hash.String(),
		Height:    uint64(res.Height),
		Events:    res.TxResult.Events,
	}
}

func ValueFromQuery(path string, res abcitypes.ResponseQuery) ([]byte, error) {
	if res.Code != 0 {
		return nil, &QueryError{Path: path, Code: res.Code, Log: res.Log}
	}
	return res.Value, nil
}
