package devnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

var (
	ErrTxNonceInvalid = errors.New("nonce invalid")
	ErrTxSigInvalid   = errors.New("signature invalid")
	ErrTxSenderPubKey = errors.New("sender does not match public key")
	ErrHeightMismatch = errors.New("block height mismatch")
)

// App is the devnet state machine, driven through the ABCI calls a
// consensus engine would make.
type App struct {
	mtx    sync.RWMutex
	logger cmtlog.Logger
	codes  chain.Codes

	store    *Store
	st       *State
	lastHash common.Hash
	txHdlrs  map[tx.MsgType]TxHandler
	queriers map[string]Querier
}

func NewApp(store *Store, codes chain.Codes, logger cmtlog.Logger) (app *App, err error) {
	logger = logger.With("module", "app")
	st := newState(store)
	if err = st.load(); err != nil {
		logger.Error("load state fail", "err", err)
		return nil, err
	}
	app = &App{
		logger:   logger,
		codes:    codes,
		store:    store,
		st:       st,
		lastHash: crypto.Keccak256Hash(store.tree.Hash()),
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

func (app *App) registerTxHandler() {
	gov := NewGovTxHandler(app.codes, app.logger)
	training := NewTrainingTxHandler(app.codes, app.logger)
	app.txHdlrs = map[tx.MsgType]TxHandler{
		tx.MsgTypeSubmitProposal: gov,
		tx.MsgTypeDeposit:        gov,
		tx.MsgTypeVote:           gov,
	}
	for t := tx.MsgTypeAssignTrainingTask; t <= tx.MsgTypeTrainingHeartbeat; t++ {
		app.txHdlrs[t] = training
	}
}

func (app *App) Height() uint64 {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	return app.st.Header().Height
}

func (app *App) ChainID() string {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	return app.st.Header().ChainID
}

// Initialized reports whether genesis state has been written.
func (app *App) Initialized() bool {
	return app.ChainID() != ""
}

// GenesisNodeVersion is the version every node binary starts with.
func (app *App) GenesisNodeVersion() (string, error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	return app.st.GenesisNodeVersion()
}

func (app *App) AppliedUpgrade() (*types.AppliedUpgrade, error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	return app.st.AppliedUpgrade()
}

func (app *App) InitChain(_ context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	app.mtx.Lock()
	defer app.mtx.Unlock()

	appState := types.DefaultAppState()
	if len(req.AppStateBytes) > 0 {
		if err := json.Unmarshal(req.AppStateBytes, appState); err != nil {
			return nil, fmt.Errorf("decode app state: %w", err)
		}
	}
	doc := &types.GenesisDoc{ChainID: req.ChainId, InitialHeight: req.InitialHeight}
	if doc.InitialHeight == 0 {
		doc.InitialHeight = 1
	}
	for _, v := range req.Validators {
		pk := ed25519.PubKey(v.PubKey.GetEd25519())
		doc.Validators = append(doc.Validators, types.GenesisValidator{Address: pk.Address(), PubKey: pk, Power: v.Power})
	}
	if err := app.st.initGenesis(doc, appState); err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	h, err := app.store.commit()
	if err != nil {
		app.logger.Error("InitChain commit fail", "err", err)
		return nil, err
	}
	app.lastHash = h
	return &abcitypes.ResponseInitChain{AppHash: h.Bytes()}, nil
}

func (app *App) Info(_ context.Context, _ *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	return &abcitypes.ResponseInfo{
		Data:             "testermint-devnet",
		LastBlockHeight:  int64(app.st.Header().Height),
		LastBlockAppHash: app.lastHash.Bytes(),
	}, nil
}

// verify checks the envelope against committed state. allowNonceGap admits
// a nonce ahead of the account's, as a mempool would.
func (app *App) verify(st *State, btx *tx.Tx, allowNonceGap bool) error {
	pk := ed25519.PubKey(btx.PubKey)
	if len(btx.PubKey) != ed25519.PubKeySize || pk.Address().String() != btx.Sender {
		return ErrTxSenderPubKey
	}
	nonce, err := st.Nonce(btx.Sender)
	if err != nil {
		return err
	}
	if !(nonce == btx.Nonce || (allowNonceGap && nonce < btx.Nonce)) {
		return fmt.Errorf("%w: account %d, tx %d", ErrTxNonceInvalid, nonce, btx.Nonce)
	}
	dat, err := btx.SigData([]byte(st.Header().ChainID))
	if err != nil {
		return err
	}
	if len(btx.Sig) != 1 || !pk.VerifySignature(dat, btx.Sig[0]) {
		return ErrTxSigInvalid
	}
	return nil
}

func (app *App) checkTx(ctx context.Context, txDat []byte) *abcitypes.ResponseCheckTx {
	res := &abcitypes.ResponseCheckTx{Code: 0}
	btx, err := tx.Unmarshal(txDat)
	if err != nil {
		app.logger.Error("parse tx fail", "err", err)
		res.Code, res.Codespace, res.Log = CodeTxDecode, CodespaceSDK, err.Error()
		return res
	}
	msg, err := btx.GetMsg()
	if err != nil {
		res.Code, res.Codespace, res.Log = CodeTxDecode, CodespaceSDK, err.Error()
		return res
	}
	if err = msg.ValidateBasic(); err != nil {
		res.Code, res.Codespace, res.Log = app.codes.InvalidRequest, CodespaceSDK, err.Error()
		return res
	}
	if msg.GetSigner() != btx.Sender {
		res.Code, res.Codespace, res.Log = CodeUnauthorized, CodespaceSDK, fmt.Sprintf("signer %s does not match sender %s", msg.GetSigner(), btx.Sender)
		return res
	}
	if err = app.verify(app.st, btx, true); err != nil {
		res.Code, res.Codespace, res.Log = CodeUnauthorized, CodespaceSDK, err.Error()
		if errors.Is(err, ErrTxNonceInvalid) {
			res.Code = CodeWrongSequence
		}
		return res
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		res.Code, res.Codespace, res.Log = CodeTxDecode, CodespaceSDK, "unsupported tx"
		return res
	}
	hres, err := h.Check(ctx, app.st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res.Code, res.Codespace, res.Log = 1, CodespaceSDK, err.Error()
		return res
	}
	return hres
}

func (app *App) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()
	res := app.checkTx(ctx, check.Tx)
	app.logger.Debug("check tx", "code", res.Code)
	return res, nil
}

func (app *App) deliverTx(ctx context.Context, st *State, txDat []byte) (*abcitypes.ExecTxResult, error) {
	if res := app.checkTx(ctx, txDat); res.Code != 0 {
		return &abcitypes.ExecTxResult{Code: res.Code, Codespace: res.Codespace, Log: res.Log}, nil
	}
	btx, err := tx.Unmarshal(txDat)
	if err != nil {
		return nil, err
	}
	if err = app.verify(st, btx, false); err != nil {
		return &abcitypes.ExecTxResult{Code: CodeWrongSequence, Codespace: CodespaceSDK, Log: err.Error()}, nil
	}
	if err = st.incNonce(btx.Sender); err != nil {
		return nil, err
	}
	res, err := app.txHdlrs[btx.Type].Process(ctx, st, btx)
	if err != nil {
		app.logger.Error("process tx fail", "type", btx.Type, "err", err)
		return &abcitypes.ExecTxResult{Code: 1, Codespace: CodespaceSDK, Log: err.Error()}, nil
	}
	return res, nil
}

func (app *App) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.mtx.Lock()
	defer app.mtx.Unlock()

	st := app.st
	if uint64(req.Height) != st.header.Height+1 {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrHeightMismatch, st.header.Height, req.Height)
	}
	st.header.Height = uint64(req.Height)
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, err := app.deliverTx(ctx, st, stx)
		if err != nil {
			app.logger.Error("unexpected tx failure", "height", req.Height, "err", err)
			return nil, err
		}
		res[i] = result
	}
	events, err := app.endBlock(st)
	if err != nil {
		app.logger.Error("end block fail", "height", req.Height, "err", err)
		return nil, err
	}
	if err = st.saveHeader(); err != nil {
		return nil, err
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   app.store.workingHash().Bytes(),
		Events:    events,
	}, nil
}

func (app *App) Commit(_ context.Context, _ *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	app.mtx.Lock()
	defer app.mtx.Unlock()
	h, err := app.store.commit()
	if err != nil {
		return nil, err
	}
	app.lastHash = h
	app.logger.Debug("Commit", "height", app.st.Header().Height, "hash", h.Hex())
	return &abcitypes.ResponseCommit{}, nil
}

func (app *App) Close() error {
	return app.store.Close()
}
