package devnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/types"
)

var (
	ErrChainStopped = errors.New("devnet stopped")
	ErrDuplicateTx  = errors.New("tx already in mempool")
)

type Config struct {
	BlockTime    time.Duration `mapstructure:"block_time"`
	RestartDelay time.Duration `mapstructure:"restart_delay"`
	// DataDir keeps state in goleveldb; empty means in memory.
	DataDir string      `mapstructure:"data_dir"`
	Codes   chain.Codes `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		BlockTime:    time.Second,
		RestartDelay: 2 * time.Second,
		Codes:        chain.DefaultCodes(),
	}
}

// Chain produces blocks for an App on a fixed cadence, standing in for a
// consensus engine with a single proposer.
type Chain struct {
	cfg    Config
	logger cmtlog.Logger
	app    *App

	mtx     sync.Mutex
	mempool [][]byte
	pending map[string]chan *ctypes.ResultBroadcastTxCommit
	quit    chan struct{}
	done    chan struct{}
}

func New(cfg Config, genesis *types.GenesisDoc, logger cmtlog.Logger) (*Chain, error) {
	logger = logger.With("module", "devnet")
	store, err := NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	app, err := NewApp(store, cfg.Codes, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	c := &Chain{
		cfg:     cfg,
		logger:  logger,
		app:     app,
		pending: make(map[string]chan *ctypes.ResultBroadcastTxCommit),
	}
	if app.Initialized() {
		logger.Info("resume devnet", "chain", app.ChainID(), "height", app.Height())
		return c, nil
	}
	if err = c.initChain(genesis); err != nil {
		app.Close()
		return nil, err
	}
	return c, nil
}

func (c *Chain) initChain(genesis *types.GenesisDoc) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	vals := make([]abcitypes.ValidatorUpdate, 0, len(genesis.Validators))
	for _, v := range genesis.Validators {
		if v.PubKey == nil {
			return fmt.Errorf("genesis validator %s has no public key", v.Name)
		}
		vals = append(vals, abcitypes.Ed25519ValidatorUpdate(v.PubKey.Bytes(), v.Power))
	}
	_, err := c.app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		Time:          genesis.GenesisTime,
		ChainId:       genesis.ChainID,
		Validators:    vals,
		AppStateBytes: genesis.AppState,
		InitialHeight: genesis.InitialHeight,
	})
	if err != nil {
		return err
	}
	c.logger.Info("devnet initialized", "chain", genesis.ChainID, "validators", len(vals))
	return nil
}

func (c *Chain) App() *App {
	return c.app
}

func (c *Chain) Config() Config {
	return c.cfg
}

func (c *Chain) Height() uint64 {
	return c.app.Height()
}

// Start produces a block every BlockTime until Stop is called.
func (c *Chain) Start() {
	c.mtx.Lock()
	if c.quit != nil {
		c.mtx.Unlock()
		return
	}
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	quit, done := c.quit, c.done
	c.mtx.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.BlockTime)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if err := c.ProduceBlock(context.Background()); err != nil {
					c.logger.Error("produce block fail", "err", err)
				}
			}
		}
	}()
}

// Stop halts block production and fails every transaction still waiting.
func (c *Chain) Stop() error {
	c.mtx.Lock()
	quit, done := c.quit, c.done
	c.quit, c.done = nil, nil
	for hash, ch := range c.pending {
		close(ch)
		delete(c.pending, hash)
	}
	c.mempool = nil
	c.mtx.Unlock()
	if quit != nil {
		close(quit)
		<-done
	}
	return c.app.Close()
}

func (c *Chain) ProduceBlock(ctx context.Context) error {
	c.mtx.Lock()
	txs := c.mempool
	c.mempool = nil
	c.mtx.Unlock()

	height := int64(c.app.Height()) + 1
	res, err := c.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{
		Txs:    txs,
		Height: height,
		Time:   time.Now(),
	})
	if err != nil {
		return err
	}
	if _, err = c.app.Commit(ctx, &abcitypes.RequestCommit{}); err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	for i, stx := range txs {
		hash := cmttypes.Tx(stx).Hash()
		ch, ok := c.pending[string(hash)]
		if !ok {
			continue
		}
		delete(c.pending, string(hash))
		ch <- &ctypes.ResultBroadcastTxCommit{
			TxResult: *res.TxResults[i],
			Hash:     hash,
			Height:   height,
		}
	}
	if len(txs) > 0 {
		c.logger.Debug("block produced", "height", height, "txs", len(txs))
	}
	return nil
}

// BroadcastTxCommit admits the transaction and waits for the block that
// executes it, as the CometBFT RPC of the same name does.
func (c *Chain) BroadcastTxCommit(ctx context.Context, stx []byte) (*ctypes.ResultBroadcastTxCommit, error) {
	hash := cmttypes.Tx(stx).Hash()
	check, err := c.app.CheckTx(ctx, &abcitypes.RequestCheckTx{Tx: stx, Type: abcitypes.CheckTxType_New})
	if err != nil {
		return nil, err
	}
	if check.Code != 0 {
		return &ctypes.ResultBroadcastTxCommit{CheckTx: *check, Hash: hash}, nil
	}

	c.mtx.Lock()
	if _, ok := c.pending[string(hash)]; ok {
		c.mtx.Unlock()
		return nil, ErrDuplicateTx
	}
	ch := make(chan *ctypes.ResultBroadcastTxCommit, 1)
	c.pending[string(hash)] = ch
	c.mempool = append(c.mempool, stx)
	c.mtx.Unlock()

	select {
	case <-ctx.Done():
		c.mtx.Lock()
		delete(c.pending, string(hash))
		c.mtx.Unlock()
		return nil, ctx.Err()
	case res, ok := <-ch:
		if !ok {
			return nil, ErrChainStopped
		}
		res.CheckTx = *check
		return res, nil
	}
}

func (c *Chain) Query(ctx context.Context, path string, data []byte) (*abcitypes.ResponseQuery, error) {
	return c.app.Query(ctx, &abcitypes.RequestQuery{Path: path, Data: data})
}
