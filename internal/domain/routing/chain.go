package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Chain is the forest of routing nodes that share a document. Roots are the
// level-1 hops; every other node hangs off its parent through ParentNodeID.
type Chain struct {
	nodes    []RoutingNode
	byID     map[uuid.UUID]int
	children map[uuid.UUID][]int
	roots    []int
	orphans  []int
}

// NewChain indexes a document's nodes. The input order does not matter.
func NewChain(nodes []RoutingNode) *Chain {
	c := &Chain{
		nodes:    nodes,
		byID:     make(map[uuid.UUID]int, len(nodes)),
		children: make(map[uuid.UUID][]int),
	}
	for i := range nodes {
		c.byID[nodes[i].ID] = i
	}
	for i := range nodes {
		parent := nodes[i].ParentNodeID
		switch {
		case parent == nil:
			c.roots = append(c.roots, i)
		case c.has(*parent):
			c.children[*parent] = append(c.children[*parent], i)
		default:
			c.orphans = append(c.orphans, i)
		}
	}

	c.sortIdx(c.roots)
	for id := range c.children {
		c.sortIdx(c.children[id])
	}
	return c
}

func (c *Chain) has(id uuid.UUID) bool {
	_, ok := c.byID[id]
	return ok
}

// sortIdx orders node indexes by creation time, breaking ties by ID
func (c *Chain) sortIdx(idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		na, nb := &c.nodes[idx[a]], &c.nodes[idx[b]]
		if !na.CreatedAt.Equal(nb.CreatedAt) {
			return na.CreatedAt.Before(nb.CreatedAt)
		}
		return na.ID.String() < nb.ID.String()
	})
}

// Len returns the number of nodes in the chain
func (c *Chain) Len() int {
	return len(c.nodes)
}

// Node returns the node with the given ID
func (c *Chain) Node(id uuid.UUID) (*RoutingNode, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.nodes[i], true
}

// Roots returns the level-1 hops ordered by creation time
func (c *Chain) Roots() []*RoutingNode {
	out := make([]*RoutingNode, 0, len(c.roots))
	for _, i := range c.roots {
		out = append(out, &c.nodes[i])
	}
	return out
}

// Children returns the hops produced by forwarding id
func (c *Chain) Children(id uuid.UUID) []*RoutingNode {
	idx := c.children[id]
	out := make([]*RoutingNode, 0, len(idx))
	for _, i := range idx {
		out = append(out, &c.nodes[i])
	}
	return out
}

// Walk visits every reachable node depth-first, parent before child, with
// roots and siblings in creation order. depth starts at 0 for roots.
func (c *Chain) Walk(fn func(node *RoutingNode, depth int)) {
	var visit func(i, depth int)
	visit = func(i, depth int) {
		fn(&c.nodes[i], depth)
		for _, ci := range c.children[c.nodes[i].ID] {
			visit(ci, depth+1)
		}
	}
	for _, r := range c.roots {
		visit(r, 0)
	}
}

// Branches returns every root-to-leaf path as a list of node IDs. With the
// single-child invariant intact there is exactly one branch per root.
func (c *Chain) Branches() [][]uuid.UUID {
	var out [][]uuid.UUID
	var visit func(i int, path []uuid.UUID)
	visit = func(i int, path []uuid.UUID) {
		path = append(path, c.nodes[i].ID)
		kids := c.children[c.nodes[i].ID]
		if len(kids) == 0 {
			branch := make([]uuid.UUID, len(path))
			copy(branch, path)
			out = append(out, branch)
			return
		}
		for _, ci := range kids {
			visit(ci, path)
		}
	}
	for _, r := range c.roots {
		visit(r, nil)
	}
	return out
}

// Verify checks the structural invariants of the chain and returns every
// violation found, joined, or nil when the chain is consistent.
func (c *Chain) Verify() error {
	var errs []error
	for _, i := range c.orphans {
		n := &c.nodes[i]
		errs = append(errs, fmt.Errorf("node %s: parent %s is not part of the chain", n.ID, *n.ParentNodeID))
	}

	for i := range c.nodes {
		n := &c.nodes[i]
		if n.FromActorID == n.ToActorID {
			errs = append(errs, fmt.Errorf("node %s: sender and recipient are the same actor", n.ID))
		}
		if n.ParentNodeID == nil && n.Level != RootLevel {
			errs = append(errs, fmt.Errorf("node %s: root has level %d", n.ID, n.Level))
		}
		if n.ParentNodeID != nil {
			if parent, ok := c.Node(*n.ParentNodeID); ok {
				if n.Level != parent.Level+1 {
					errs = append(errs, fmt.Errorf("node %s: level %d under parent level %d", n.ID, n.Level, parent.Level))
				}
				if n.DocumentID != parent.DocumentID {
					errs = append(errs, fmt.Errorf("node %s: parent belongs to another document", n.ID))
				}
			}
		}

		kids := len(c.children[n.ID])
		switch {
		case n.Status == NodeStatusForwarded && kids != 1:
			errs = append(errs, fmt.Errorf("node %s: forwarded with %d children", n.ID, kids))
		case n.Status != NodeStatusForwarded && kids != 0:
			errs = append(errs, fmt.Errorf("node %s: %s with %d children", n.ID, n.Status, kids))
		}

		if n.Status == NodeStatusCompleted && n.CompletedAt == nil {
			errs = append(errs, fmt.Errorf("node %s: completed without completed_at", n.ID))
		}
		if n.Status != NodeStatusCompleted && n.CompletedAt != nil {
			errs = append(errs, fmt.Errorf("node %s: completed_at set on %s node", n.ID, n.Status))
		}
		if (n.Status == NodeStatusRead || n.Status == NodeStatusInProgress) && n.ReadAt == nil {
			errs = append(errs, fmt.Errorf("node %s: %s without read_at", n.ID, n.Status))
		}
		if n.Status == NodeStatusPending && n.ReadAt != nil {
			errs = append(errs, fmt.Errorf("node %s: pending with read_at set", n.ID))
		}
	}
	return errors.Join(errs...)
}
