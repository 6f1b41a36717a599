package devnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/tx"
	"github.com/gradosphera/gonka/types"
)

// Node is one validator process of the devnet as seen through chain.Client.
// It runs a binary version of its own: once an upgrade plan is applied under
// a different name the node halts at the upgrade height until restarted.
type Node struct {
	name   string
	chain  *Chain
	signer *chain.Signer
	logger cmtlog.Logger

	submitMtx sync.Mutex

	mtx       sync.Mutex
	version   string
	downUntil time.Time
	restarts  int
}

var _ chain.Client = (*Node)(nil)

func (c *Chain) NewNode(name string, signer *chain.Signer) (*Node, error) {
	version, err := c.app.GenesisNodeVersion()
	if err != nil {
		return nil, err
	}
	return &Node{
		name:    name,
		chain:   c,
		signer:  signer,
		version: version,
		logger:  c.logger.With("node", name),
	}, nil
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Address() string {
	return n.signer.Address()
}

func (n *Node) Restarts() int {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.restarts
}

func (n *Node) available() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if time.Now().Before(n.downUntil) {
		return fmt.Errorf("%w: %s is restarting", chain.ErrNodeUnavailable, n.name)
	}
	return nil
}

// haltHeight is the height the node stopped at waiting for a binary it does
// not run, or zero.
func (n *Node) haltHeight() (uint64, error) {
	applied, err := n.chain.app.AppliedUpgrade()
	if err != nil || applied == nil {
		return 0, err
	}
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if applied.Name == n.version {
		return 0, nil
	}
	return applied.Height, nil
}

func (n *Node) ChainID(_ context.Context) (string, error) {
	if err := n.available(); err != nil {
		return "", err
	}
	return n.chain.app.ChainID(), nil
}

func (n *Node) CurrentHeight(_ context.Context) (uint64, error) {
	if err := n.available(); err != nil {
		return 0, err
	}
	height := n.chain.Height()
	halt, err := n.haltHeight()
	if err != nil {
		return 0, err
	}
	if halt > 0 {
		return min(height, halt), nil
	}
	return height, nil
}

func (n *Node) QueryRaw(ctx context.Context, path string, data []byte) ([]byte, error) {
	if err := n.available(); err != nil {
		return nil, &chain.QueryError{Path: path, Err: err}
	}
	res, err := n.chain.Query(ctx, path, data)
	if err != nil {
		return nil, &chain.QueryError{Path: path, Err: err}
	}
	return chain.ValueFromQuery(path, *res)
}

func (n *Node) nonce(ctx context.Context) (uint64, error) {
	act, err := chain.QueryState[types.Account](ctx, n, types.QueryAccount, []byte(n.Address()))
	if err != nil {
		return 0, err
	}
	return act.Nonce, nil
}

func (n *Node) Submit(ctx context.Context, msg tx.Msg) (*chain.TxResult, error) {
	n.submitMtx.Lock()
	defer n.submitMtx.Unlock()

	if err := n.available(); err != nil {
		return nil, err
	}
	halt, err := n.haltHeight()
	if err != nil {
		return nil, err
	}
	if halt > 0 {
		return nil, fmt.Errorf("%w: %s halted at height %d for upgrade", chain.ErrNodeUnavailable, n.name, halt)
	}
	nonce, err := n.nonce(ctx)
	if err != nil {
		return nil, err
	}
	btx, err := n.signer.SignTx(msg, nonce, n.chain.app.ChainID())
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.Marshal(btx)
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}
	n.logger.Debug("broadcast tx", "type", msg.Type(), "nonce", nonce)
	res, err := n.chain.BroadcastTxCommit(ctx, dat)
	if err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	return chain.ResultFromCommit(res), nil
}

// Restart returns at once; the node is unreachable for the configured
// restart delay and comes back running the binary of the applied upgrade.
func (n *Node) Restart(_ context.Context) error {
	applied, err := n.chain.app.AppliedUpgrade()
	if err != nil {
		return err
	}
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.downUntil = time.Now().Add(n.chain.cfg.RestartDelay)
	n.restarts++
	if applied != nil && applied.Name != n.version {
		n.logger.Info("node restarting into new binary", "from", n.version, "to", applied.Name)
		n.version = applied.Name
	} else {
		n.logger.Info("node restarting")
	}
	return nil
}

func (n *Node) NodeVersion(_ context.Context) (string, error) {
	if err := n.available(); err != nil {
		return "", err
	}
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.version, nil
}
