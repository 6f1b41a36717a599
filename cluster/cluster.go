package cluster

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRoster = errors.New("invalid cluster roster")
	ErrUnknownNode   = errors.New("unknown node")
)

// Cluster is one genesis node plus an ordered list of join nodes. The roster
// is fixed after New; only the nodes' needs-reboot flags change.
type Cluster struct {
	genesis Node
	joins   []Node
	byName  map[string]Node
}

func New(genesis Node, joins ...Node) (*Cluster, error) {
	if genesis == nil {
		return nil, fmt.Errorf("%w: missing genesis node", ErrInvalidRoster)
	}
	if genesis.Role() != RoleGenesis {
		return nil, fmt.Errorf("%w: node %s has role %s, want genesis", ErrInvalidRoster, genesis.Name(), genesis.Role())
	}
	c := &Cluster{
		genesis: genesis,
		joins:   make([]Node, 0, len(joins)),
		byName:  make(map[string]Node, len(joins)+1),
	}
	for _, n := range append([]Node{genesis}, joins...) {
		if n == nil || n.Name() == "" {
			return nil, fmt.Errorf("%w: node without a name", ErrInvalidRoster)
		}
		if _, ok := c.byName[n.Name()]; ok {
			return nil, fmt.Errorf("%w: duplicate node name %s", ErrInvalidRoster, n.Name())
		}
		if n != genesis && n.Role() != RoleJoin {
			return nil, fmt.Errorf("%w: node %s has role %s, want join", ErrInvalidRoster, n.Name(), n.Role())
		}
		c.byName[n.Name()] = n
	}
	c.joins = append(c.joins, joins...)
	return c, nil
}

func (c *Cluster) Genesis() Node {
	return c.genesis
}

func (c *Cluster) JoinPairs() []Node {
	return append([]Node(nil), c.joins...)
}

// AllPairs is the genesis node followed by the joins in roster order.
func (c *Cluster) AllPairs() []Node {
	return append([]Node{c.genesis}, c.joins...)
}

func (c *Cluster) Node(name string) (Node, error) {
	n, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return n, nil
}

func (c *Cluster) Size() int {
	return len(c.joins) + 1
}
