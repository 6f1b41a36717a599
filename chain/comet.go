package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

// CometClient talks to a production node over its CometBFT RPC endpoint.
type CometClient struct {
	url       string
	cli       *comethttp.HTTP
	signer    *Signer
	restarter Restarter
	logger    cmtlog.Logger

	mtx     sync.Mutex
	idMtx   sync.Mutex
	chainID string
}

var _ Client = (*CometClient)(nil)

func NewCometClient(url string, signer *Signer, restarter Restarter, logger cmtlog.Logger) (*CometClient, error) {
	cli, err := comethttp.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client %s: %w", url, err)
	}
	if restarter == nil {
		restarter = NoRestarter{}
	}
	return &CometClient{
		url:       url,
		cli:       cli,
		signer:    signer,
		restarter: restarter,
		logger:    logger.With("module", "comet", "url", url),
	}, nil
}

func (c *CometClient) Address() string {
	return c.signer.Address()
}

func (c *CometClient) CurrentHeight(ctx context.Context) (uint64, error) {
	st, err := c.cli.Status(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: status %s: %v", ErrNodeUnavailable, c.url, err)
	}
	return uint64(st.SyncInfo.LatestBlockHeight), nil
}

func (c *CometClient) QueryRaw(ctx context.Context, path string, data []byte) ([]byte, error) {
	res, err := c.cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return nil, &QueryError{Path: path, Err: fmt.Errorf("%w: %v", ErrNodeUnavailable, err)}
	}
	return ValueFromQuery(path, res.Response)
}

func (c *CometClient) ChainID(ctx context.Context) (string, error) {
	c.idMtx.Lock()
	defer c.idMtx.Unlock()
	if c.chainID != "" {
		return c.chainID, nil
	}
	gres, err := c.cli.Genesis(ctx)
	if err != nil {
		return "", fmt.Errorf("get chain genesis: %w", err)
	}
	c.chainID = gres.Genesis.ChainID
	return c.chainID, nil
}

func (c *CometClient) nonce(ctx context.Context) (uint64, error) {
	act, err := QueryState[types.Account](ctx, c, types.QueryAccount, []byte(c.Address()))
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return act.Nonce, nil
}

// Submit serializes submissions from this client so nonces stay sequential.
func (c *CometClient) Submit(ctx context.Context, msg tx.Msg) (*TxResult, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := c.nonce(ctx)
	if err != nil {
		return nil, err
	}
	btx, err := c.signer.SignTx(msg, nonce, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.Marshal(btx)
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}
	c.logger.Debug("broadcast tx", "type", msg.Type(), "nonce", nonce)
	res, err := c.cli.BroadcastTxCommit(ctx, cmttypes.Tx(dat))
	if err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	return ResultFromCommit(res), nil
}

func (c *CometClient) Restart(ctx context.Context) error {
	err := c.restarter.Restart(ctx)
	if err != nil && !errors.Is(err, ErrRestartUnsupported) {
		c.logger.Error("restart fail", "err", err)
	}
	return err
}

// NodeVersion is the application version the node reports through ABCI Info.
func (c *CometClient) NodeVersion(ctx context.Context) (string, error) {
	res, err := c.cli.ABCIInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: abci info %s: %v", ErrNodeUnavailable, c.url, err)
	}
	return res.Response.Version, nil
}
