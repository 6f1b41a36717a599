package devnet

import (
	"fmt"

	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/types"
)

type NodeSpec struct {
	Name   string
	Signer *chain.Signer
	Power  int64
	// Mock makes the node a simulated one in the cluster view.
	Mock *cluster.MockConfig
}

// Testnet is a devnet chain with one validator node per NodeSpec, the first
// being the genesis node.
type Testnet struct {
	Chain *Chain
	Nodes []*Node
	specs []NodeSpec
}

func NewTestnet(cfg Config, chainID string, appState *types.AppState, specs []NodeSpec, logger cmtlog.Logger) (*Testnet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("testnet needs at least one node")
	}
	if appState == nil {
		appState = types.DefaultAppState()
	}
	doc := &types.GenesisDoc{ChainID: chainID}
	if err := doc.SetAppState(appState); err != nil {
		return nil, err
	}
	specs = append([]NodeSpec(nil), specs...)
	for i := range specs {
		if specs[i].Signer == nil {
			specs[i].Signer = chain.GenSigner()
		}
		if specs[i].Power == 0 {
			specs[i].Power = types.DefaultPower
		}
		pk := ed25519.PubKey(specs[i].Signer.PublicKey())
		doc.Validators = append(doc.Validators, types.GenesisValidator{
			Address: pk.Address(),
			PubKey:  pk,
			Power:   specs[i].Power,
			Name:    specs[i].Name,
		})
	}
	c, err := New(cfg, doc, logger)
	if err != nil {
		return nil, err
	}
	tn := &Testnet{Chain: c, specs: specs}
	for _, s := range specs {
		n, err := c.NewNode(s.Name, s.Signer)
		if err != nil {
			c.Stop()
			return nil, err
		}
		tn.Nodes = append(tn.Nodes, n)
	}
	return tn, nil
}

// Cluster views the testnet nodes as a cluster.
func (tn *Testnet) Cluster() (*cluster.Cluster, error) {
	nodes := make([]cluster.Node, len(tn.Nodes))
	for i, n := range tn.Nodes {
		role := cluster.RoleJoin
		if i == 0 {
			role = cluster.RoleGenesis
		}
		if mock := tn.specs[i].Mock; mock != nil {
			nodes[i] = cluster.NewSimulatedNode(n.Name(), role, n, *mock)
		} else {
			nodes[i] = cluster.NewProductionNode(n.Name(), role, n)
		}
	}
	return cluster.New(nodes[0], nodes[1:]...)
}

func (tn *Testnet) Start() {
	tn.Chain.Start()
}

func (tn *Testnet) Stop() error {
	return tn.Chain.Stop()
}
