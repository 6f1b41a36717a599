package cluster

import (
	"fmt"
	"sync/atomic"

	"github.com/gradosphera/gonka/chain"
)

type Role uint8

const (
	RoleGenesis Role = 1
	RoleJoin    Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleGenesis:
		return "genesis"
	case RoleJoin:
		return "join"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Node is either a *ProductionNode or a *SimulatedNode.
type Node interface {
	Name() string
	Role() Role
	Client() chain.Client
	NeedsReboot() bool
	MarkNeedsReboot()
	ClearNeedsReboot()

	sealed()
}

type nodeBase struct {
	name        string
	role        Role
	client      chain.Client
	needsReboot atomic.Bool
}

func (n *nodeBase) Name() string         { return n.name }
func (n *nodeBase) Role() Role           { return n.role }
func (n *nodeBase) Client() chain.Client { return n.client }
func (n *nodeBase) NeedsReboot() bool    { return n.needsReboot.Load() }
func (n *nodeBase) MarkNeedsReboot()     { n.needsReboot.Store(true) }
func (n *nodeBase) ClearNeedsReboot()    { n.needsReboot.Store(false) }
func (n *nodeBase) sealed()              {}

type ProductionNode struct {
	nodeBase
}

func NewProductionNode(name string, role Role, client chain.Client) *ProductionNode {
	return &ProductionNode{nodeBase{name: name, role: role, client: client}}
}

// MockConfig describes the canned responses a simulated node's ML backend serves.
type MockConfig struct {
	Host string `mapstructure:"host" json:"host"`
	// Responses maps an inference segment to the body served for it.
	Responses map[string]string `mapstructure:"responses" json:"responses"`
}

func (m MockConfig) Response(segment string) (string, bool) {
	r, ok := m.Responses[segment]
	return r, ok
}

type SimulatedNode struct {
	nodeBase
	Mock MockConfig
}

func NewSimulatedNode(name string, role Role, client chain.Client, mock MockConfig) *SimulatedNode {
	return &SimulatedNode{nodeBase: nodeBase{name: name, role: role, client: client}, Mock: mock}
}

// MockOf returns the mock configuration of a simulated node.
func MockOf(n Node) (MockConfig, bool) {
	if sn, ok := n.(*SimulatedNode); ok {
		return sn.Mock, true
	}
	return MockConfig{}, false
}
