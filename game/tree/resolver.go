package tree

import (
	"fmt"
	"math"
	"sort"

	"github.com/mistveil/buildcalc/game/calc"
	"github.com/mistveil/buildcalc/resource"
)

// Position is a derived 2D node position in tree space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a catalog node with its resolved position.
type Node struct {
	*resource.TreeNode
	Pos Position
}

// Resolved is the immutable, position-resolved view of one loaded tree
// catalog. Positions are computed exactly once here, not per render, and a
// Resolved may be shared freely across builds and goroutines.
type Resolved struct {
	version string
	nodes   map[int]*Node
	order   []int
}

// Resolve validates the raw catalog and computes every node position:
// center + r·(sin θ, −cos θ), with θ looked up from the per-orbit angle
// table at orbitIndex mod slot count.
func Resolve(data *resource.TreeData) (*Resolved, error) {
	if data == nil {
		return nil, fmt.Errorf("tree: nil catalog")
	}
	groups := make(map[int]*resource.TreeGroup, len(data.Groups))
	for _, g := range data.Groups {
		if g == nil {
			continue
		}
		groups[g.ID] = g
	}

	r := &Resolved{
		version: data.Version,
		nodes:   make(map[int]*Node, len(data.Nodes)),
	}
	for _, n := range data.Nodes {
		if n == nil {
			continue
		}
		g, ok := groups[n.Group]
		if !ok {
			return nil, fmt.Errorf("tree: node %d references unknown group %d", n.ID, n.Group)
		}
		if n.Orbit < 0 || n.Orbit >= len(data.OrbitRadii) {
			return nil, fmt.Errorf("tree: node %d has orbit %d out of range", n.ID, n.Orbit)
		}
		slots := data.SkillsPerOrbit[n.Orbit]
		if slots <= 0 {
			return nil, fmt.Errorf("tree: orbit %d has no angular slots", n.Orbit)
		}
		radius := data.OrbitRadii[n.Orbit]
		theta := 2 * math.Pi * float64(n.OrbitIndex%slots) / float64(slots)
		if _, dup := r.nodes[n.ID]; dup {
			return nil, fmt.Errorf("tree: duplicate node id %d", n.ID)
		}
		r.nodes[n.ID] = &Node{
			TreeNode: n,
			Pos: Position{
				X: g.X + radius*math.Sin(theta),
				Y: g.Y - radius*math.Cos(theta),
			},
		}
		r.order = append(r.order, n.ID)
	}
	sort.Ints(r.order)
	return r, nil
}

// Version returns the catalog version string.
func (r *Resolved) Version() string { return r.version }

// NodeCount returns the number of resolved nodes.
func (r *Resolved) NodeCount() int { return len(r.nodes) }

// Node returns the resolved node with the given id, or nil.
func (r *Resolved) Node(id int) *Node { return r.nodes[id] }

// NodeIDs returns every node id in ascending order.
func (r *Resolved) NodeIDs() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// NewTree returns a fresh allocation state over this resolved catalog.
func (r *Resolved) NewTree() *Tree {
	return &Tree{res: r, allocated: make(map[int]struct{})}
}

// Tree holds one build's allocation state. A nil *Tree is a valid "no tree
// loaded" state: every operation on it is a no-op.
type Tree struct {
	res       *Resolved
	allocated map[int]struct{}
}

// Allocate marks nodeID allocated. Idempotent; unknown ids are ignored.
func (t *Tree) Allocate(nodeID int) {
	if t == nil || t.res.Node(nodeID) == nil {
		return
	}
	t.allocated[nodeID] = struct{}{}
}

// Deallocate unmarks nodeID. Idempotent.
func (t *Tree) Deallocate(nodeID int) {
	if t == nil {
		return
	}
	delete(t.allocated, nodeID)
}

// Toggle flips the allocation state of nodeID.
func (t *Tree) Toggle(nodeID int) {
	if t == nil {
		return
	}
	if t.IsAllocated(nodeID) {
		t.Deallocate(nodeID)
	} else {
		t.Allocate(nodeID)
	}
}

// IsAllocated reports whether nodeID is allocated.
func (t *Tree) IsAllocated(nodeID int) bool {
	if t == nil {
		return false
	}
	_, ok := t.allocated[nodeID]
	return ok
}

// Clear drops every allocation.
func (t *Tree) Clear() {
	if t == nil {
		return
	}
	t.allocated = make(map[int]struct{})
}

// Allocated returns the allocated node ids in ascending order. Only set
// membership matters; allocation order is never observable.
func (t *Tree) Allocated() []int {
	if t == nil {
		return nil
	}
	out := make([]int, 0, len(t.allocated))
	for id := range t.allocated {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Modifiers maps every allocated node's stat lines through the stat-text
// parser and concatenates the results. Unparsed lines contribute nothing.
func (t *Tree) Modifiers() []calc.Modifier {
	if t == nil {
		return nil
	}
	var mods []calc.Modifier
	for _, id := range t.Allocated() {
		node := t.res.Node(id)
		source := fmt.Sprintf("tree:%d", id)
		for _, line := range node.Stats {
			if m, ok := calc.ParseStatLine(line, source); ok {
				mods = append(mods, m)
			}
		}
	}
	return mods
}
