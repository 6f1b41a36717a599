package config

import (
	"fmt"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/gradosphera/gonka/chain"
	"github.com/gradosphera/gonka/cluster"
	"github.com/gradosphera/gonka/devnet"
	"github.com/gradosphera/gonka/types"
)

func (cfg *Config) signer(n NodeConfig) (*chain.Signer, error) {
	keyFile := cfg.Path(n.KeyFile)
	if keyFile == "" || !cmtos.FileExists(keyFile) {
		return nil, fmt.Errorf("node %s: key file %q not found", n.Name, keyFile)
	}
	return chain.LoadSigner(keyFile)
}

func (cfg *Config) ordered() []NodeConfig {
	nodes := make([]NodeConfig, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.Role == "genesis" {
			nodes = append([]NodeConfig{n}, nodes...)
		} else {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// BuildCluster connects to the configured nodes over CometBFT RPC.
func (cfg *Config) BuildCluster(logger cmtlog.Logger) (*cluster.Cluster, error) {
	var (
		genesis cluster.Node
		joins   []cluster.Node
	)
	for _, n := range cfg.ordered() {
		signer, err := cfg.signer(n)
		if err != nil {
			return nil, err
		}
		var restarter chain.Restarter = chain.NoRestarter{}
		if n.RestartURL != "" {
			restarter = chain.NewHTTPRestarter(n.RestartURL)
		}
		cli, err := chain.NewCometClient(n.RPC, signer, restarter, logger)
		if err != nil {
			return nil, err
		}
		role, _ := n.role()
		var node cluster.Node
		if n.Mock != nil {
			node = cluster.NewSimulatedNode(n.Name, role, cli, *n.Mock)
		} else {
			node = cluster.NewProductionNode(n.Name, role, cli)
		}
		if role == cluster.RoleGenesis {
			genesis = node
		} else {
			joins = append(joins, node)
		}
	}
	return cluster.New(genesis, joins...)
}

// BuildDevnet lays out an in-process chain with one validator per
// configured node. Nodes without a key file get a fresh key.
func (cfg *Config) BuildDevnet(logger cmtlog.Logger) (*devnet.Testnet, error) {
	specs := make([]devnet.NodeSpec, 0, len(cfg.Nodes))
	for _, n := range cfg.ordered() {
		spec := devnet.NodeSpec{Name: n.Name, Mock: n.Mock}
		if signer, err := cfg.signer(n); err == nil {
			spec.Signer = signer
		}
		specs = append(specs, spec)
	}
	dcfg := cfg.Devnet
	dcfg.Codes = cfg.Codes
	dcfg.DataDir = cfg.Path(dcfg.DataDir)
	return devnet.NewTestnet(dcfg, cfg.ChainID, types.DefaultAppState(), specs, logger)
}
