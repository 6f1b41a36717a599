package cluster

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/poll"
	"github.com/gradosphera/gonka/tx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	chainID string
	height  atomic.Uint64
}

func newFakeClient(chainID string, height uint64) *fakeClient {
	c := &fakeClient{chainID: chainID}
	c.height.Store(height)
	return c
}

func (c *fakeClient) Address() string                                          { return "addr" }
func (c *fakeClient) ChainID(context.Context) (string, error)                  { return c.chainID, nil }
func (c *fakeClient) CurrentHeight(context.Context) (uint64, error)            { return c.height.Load(), nil }
func (c *fakeClient) Restart(context.Context) error                            { return chain.ErrRestartUnsupported }
func (c *fakeClient) NodeVersion(context.Context) (string, error)              { return "v1.0.0", nil }
func (c *fakeClient) QueryRaw(context.Context, string, []byte) ([]byte, error) { return nil, nil }

func (c *fakeClient) Submit(context.Context, tx.Msg) (*chain.TxResult, error) {
	return &chain.TxResult{}, nil
}

func TestNewCluster(t *testing.T) {
	g := NewProductionNode("genesis", RoleGenesis, newFakeClient("c", 1))
	j1 := NewProductionNode("join1", RoleJoin, newFakeClient("c", 1))
	j2 := NewSimulatedNode("join2", RoleJoin, newFakeClient("c", 1), MockConfig{Host: "mock:8080", Responses: map[string]string{"/v1": "ok"}})

	cl, err := New(g, j1, j2)
	require.NoError(t, err)
	assert.Equal(t, 3, cl.Size())
	assert.Equal(t, "genesis", cl.Genesis().Name())

	names := func(nodes []Node) (out []string) {
		for _, n := range nodes {
			out = append(out, n.Name())
		}
		return
	}
	assert.Equal(t, []string{"join1", "join2"}, names(cl.JoinPairs()))
	assert.Equal(t, []string{"genesis", "join1", "join2"}, names(cl.AllPairs()))

	joins := cl.JoinPairs()
	joins[0] = nil
	assert.Equal(t, "join1", cl.JoinPairs()[0].Name())

	n, err := cl.Node("join2")
	require.NoError(t, err)
	mock, ok := MockOf(n)
	require.True(t, ok)
	body, ok := mock.Response("/v1")
	assert.True(t, ok)
	assert.Equal(t, "ok", body)
	_, ok = MockOf(g)
	assert.False(t, ok)

	_, err = cl.Node("missing")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestNewClusterInvalidRoster(t *testing.T) {
	cli := newFakeClient("c", 1)
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidRoster)

	_, err = New(NewProductionNode("a", RoleJoin, cli))
	assert.ErrorIs(t, err, ErrInvalidRoster)

	_, err = New(NewProductionNode("a", RoleGenesis, cli), NewProductionNode("a", RoleJoin, cli))
	assert.ErrorIs(t, err, ErrInvalidRoster)

	_, err = New(NewProductionNode("a", RoleGenesis, cli), NewProductionNode("b", RoleGenesis, cli))
	assert.ErrorIs(t, err, ErrInvalidRoster)
}

func TestNeedsReboot(t *testing.T) {
	n := NewProductionNode("genesis", RoleGenesis, newFakeClient("c", 1))
	assert.False(t, n.NeedsReboot())
	n.MarkNeedsReboot()
	assert.True(t, n.NeedsReboot())
	n.ClearNeedsReboot()
	assert.False(t, n.NeedsReboot())
}

func TestBroadcast(t *testing.T) {
	nodes := []Node{
		NewProductionNode("a", RoleGenesis, newFakeClient("c", 1)),
		NewProductionNode("b", RoleJoin, newFakeClient("c", 1)),
		NewProductionNode("c", RoleJoin, newFakeClient("c", 1)),
	}
	var running, peak atomic.Int32
	boom := errors.New("boom")
	results := Broadcast(context.Background(), nodes, func(ctx context.Context, n Node) (string, error) {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		if n.Name() == "b" {
			return "", boom
		}
		return n.Name() + "!", nil
	})
	require.Len(t, results, 3)
	assert.Equal(t, "a!", results["a"].Value)
	assert.Equal(t, "c!", results["c"].Value)
	assert.Greater(t, peak.Load(), int32(1))

	err := Failures(results)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var ne *NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "b", ne.Node)
}

func TestBootstrap(t *testing.T) {
	poller := poll.New(5*time.Millisecond, cmtlog.NewNopLogger())
	late := newFakeClient("c", 0)
	cl, err := New(
		NewProductionNode("genesis", RoleGenesis, newFakeClient("c", 3)),
		NewProductionNode("join1", RoleJoin, late),
	)
	require.NoError(t, err)
	go func() {
		time.Sleep(20 * time.Millisecond)
		late.height.Store(1)
	}()
	statuses, err := Bootstrap(context.Background(), cl, poller, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), statuses["genesis"].Height)
	assert.Equal(t, uint64(1), statuses["join1"].Height)
	assert.Equal(t, "v1.0.0", statuses["join1"].Version)

	cl, err = New(
		NewProductionNode("genesis", RoleGenesis, newFakeClient("c", 1)),
		NewProductionNode("join1", RoleJoin, newFakeClient("other", 1)),
	)
	require.NoError(t, err)
	_, err = Bootstrap(context.Background(), cl, poller, time.Second)
	assert.ErrorIs(t, err, ErrChainMismatch)
}
