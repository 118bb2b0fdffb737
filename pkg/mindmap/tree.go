// Package mindmap implements the node arena backing the layout and sync
// engines: a flat collection of nodes keyed by id plus a parent→children
// adjacency index that is maintained on every mutation.
//
// The arena replaces parent back-pointers: a node only stores its parent's
// id, and all structural queries (children, siblings, descendants, ancestor
// chains) go through the index. Reparenting validates acyclicity as a pure
// precondition before any state changes, so the tree can never enter a
// cyclic state that would hang recursive consumers.
//
// Tree is not safe for concurrent use without external synchronization.
package mindmap

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrInvalidNodeID is returned by [Tree.Add] when the node id is empty.
	// All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Tree.Add] when a node with the
	// same id already exists. Node ids must be unique per tree.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when an operation references a node id
	// that does not exist in the tree.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownParent is returned by [Tree.Add] and [Tree.SetParent] when
	// the referenced parent does not exist.
	ErrUnknownParent = errors.New("unknown parent node")

	// ErrWouldCycle is returned by [Tree.SetParent] when the move would
	// make a node its own ancestor. The tree is left unchanged.
	ErrWouldCycle = errors.New("reparent would create a cycle")

	// ErrNotSiblings is returned by [Tree.MoveBefore] and [Tree.MoveAfter]
	// when the two nodes do not share a parent.
	ErrNotSiblings = errors.New("nodes are not siblings")

	// ErrTreeCorrupt is returned by [Tree.Validate] when a parent reference
	// points at a missing node or the parent relation contains a cycle.
	ErrTreeCorrupt = errors.New("tree is corrupt")
)

// rootKey indexes root nodes in the adjacency map. It doubles as the
// level key for the root sibling group in layout strategies.
const rootKey = ""

// Tree is the node arena: a flat id-keyed collection plus an ordered
// parent→children index. Child order is stable (insertion order, adjusted
// by the reorder operations) and is the sibling order the editor shows.
type Tree struct {
	nodes    map[string]*Node
	children map[string][]string // parent id ("" for roots) -> ordered child ids
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
	}
}

// FromNodes builds a tree from a flat node slice, as loaded from a
// document. Nodes are inserted parents-first regardless of slice order.
// Returns ErrUnknownParent if a node references a parent id that is not
// in the slice, or ErrDuplicateNodeID on id collisions.
func FromNodes(nodes []Node) (*Tree, error) {
	t := New()
	pending := make([]*Node, 0, len(nodes))
	for i := range nodes {
		n := nodes[i]
		pending = append(pending, &n)
	}

	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, n := range pending {
			if n.ParentID == "" || t.Contains(n.ParentID) {
				if err := t.Add(n); err != nil {
					return nil, err
				}
				progressed = true
				continue
			}
			rest = append(rest, n)
		}
		pending = rest
		if !progressed {
			return nil, ErrUnknownParent
		}
	}
	return t, nil
}

// Add inserts a node. The node's parent must already exist (or be empty
// for a root). Returns ErrInvalidNodeID, ErrDuplicateNodeID, or
// ErrUnknownParent.
func (t *Tree) Add(n *Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := t.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.ParentID != "" {
		if _, ok := t.nodes[n.ParentID]; !ok {
			return ErrUnknownParent
		}
	}
	t.nodes[n.ID] = n
	key := t.levelKey(n.ParentID)
	t.children[key] = append(t.children[key], n.ID)
	return nil
}

func (t *Tree) levelKey(parentID string) string {
	if parentID == "" {
		return rootKey
	}
	return parentID
}

// Node returns the node with the given id and true, or nil and false.
// The pointer refers to the live node; geometry mutations are visible to
// the tree, but do not write ParentID directly.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Contains reports whether a node with the given id exists.
func (t *Tree) Contains(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// Children returns the ordered child ids of the given node.
// The returned slice is a read-only view; do not modify it.
func (t *Tree) Children(id string) []string { return t.children[id] }

// VisibleChildren returns the child ids not hidden by collapse state:
// none when the node is collapsed, and for roots each child is filtered
// by its side against CollapsedLeft/CollapsedRight.
func (t *Tree) VisibleChildren(id string) []string {
	n, ok := t.nodes[id]
	if !ok || n.Collapsed {
		return nil
	}
	kids := t.children[id]
	if !n.IsRoot() || (!n.CollapsedLeft && !n.CollapsedRight) {
		return kids
	}
	visible := make([]string, 0, len(kids))
	for _, cid := range kids {
		c := t.nodes[cid]
		if n.CollapsedToward(c.Side) {
			continue
		}
		visible = append(visible, cid)
	}
	return visible
}

// Parent returns the node's parent, or nil and false for roots and
// unknown ids.
func (t *Tree) Parent(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	if !ok || n.ParentID == "" {
		return nil, false
	}
	p, ok := t.nodes[n.ParentID]
	return p, ok
}

// Roots returns the ids of all root nodes in stable order.
func (t *Tree) Roots() []string { return t.children[rootKey] }

// Siblings returns the ordered sibling group containing id (the node
// itself included): the children of its parent, or all roots.
func (t *Tree) Siblings(id string) []string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return t.children[t.levelKey(n.ParentID)]
}

// Descendants returns all ids below the given node in pre-order.
// The node itself is not included.
func (t *Tree) Descendants(id string) []string {
	var out []string
	var walk func(string)
	walk = func(cur string) {
		for _, cid := range t.children[cur] {
			out = append(out, cid)
			walk(cid)
		}
	}
	walk(id)
	return out
}

// Ancestors returns the chain of ancestor ids from the node's parent up
// to its root. Returns nil for roots and unknown ids.
func (t *Tree) Ancestors(id string) []string {
	var out []string
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	for n.ParentID != "" {
		out = append(out, n.ParentID)
		p, ok := t.nodes[n.ParentID]
		if !ok {
			break
		}
		n = p
	}
	return out
}

// Depth returns the number of ancestors above the node: 0 for roots.
func (t *Tree) Depth(id string) int { return len(t.Ancestors(id)) }

// WouldCycle reports whether setting newParentID as the parent of id
// would make id its own ancestor. It is a pure precondition check and
// never mutates the tree. Unknown ids report false; existence is checked
// separately by the mutating operation.
func (t *Tree) WouldCycle(id, newParentID string) bool {
	if newParentID == "" {
		return false
	}
	if id == newParentID {
		return true
	}
	cur := newParentID
	for cur != "" {
		if cur == id {
			return true
		}
		p, ok := t.nodes[cur]
		if !ok {
			return false
		}
		cur = p.ParentID
	}
	return false
}

// SetParent moves a node (and implicitly its whole subtree) under a new
// parent, appending it to the new sibling group. Passing an empty
// newParentID promotes the node to a root. The acyclicity check runs
// before any mutation; on ErrWouldCycle the tree is exactly as before.
func (t *Tree) SetParent(id, newParentID string) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if newParentID != "" {
		if _, ok := t.nodes[newParentID]; !ok {
			return ErrUnknownParent
		}
	}
	if t.WouldCycle(id, newParentID) {
		return ErrWouldCycle
	}

	oldKey := t.levelKey(n.ParentID)
	t.children[oldKey] = slices.DeleteFunc(t.children[oldKey], func(s string) bool { return s == id })

	n.ParentID = newParentID
	n.ModifiedAt = time.Now().UTC()
	newKey := t.levelKey(newParentID)
	t.children[newKey] = append(t.children[newKey], id)
	return nil
}

// Remove deletes a node and all of its descendants, returning the removed
// ids (the node first, descendants in pre-order). Removing an unknown id
// returns nil.
func (t *Tree) Remove(id string) []string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	removed := append([]string{id}, t.Descendants(id)...)
	for _, rid := range removed {
		delete(t.nodes, rid)
		delete(t.children, rid)
	}
	key := t.levelKey(n.ParentID)
	t.children[key] = slices.DeleteFunc(t.children[key], func(s string) bool { return s == id })
	return removed
}

// SetText updates the node's text and modification time.
func (t *Tree) SetText(id, text string) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Text = text
	n.ModifiedAt = time.Now().UTC()
	return nil
}

// Resize updates the node's intrinsic size, as reported by the rendering
// layer after a content change.
func (t *Tree) Resize(id string, width, height float64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Width = width
	n.Height = height
	n.ModifiedAt = time.Now().UTC()
	return nil
}

// SetCollapsed toggles the node's generic collapse flag.
func (t *Tree) SetCollapsed(id string, collapsed bool) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Collapsed = collapsed
	return nil
}

// MoveBy translates a single node by (dx, dy) without touching its
// descendants. Layout passes almost always want [Tree.MoveSubtree].
func (t *Tree) MoveBy(id string, dx, dy float64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.X += dx
	n.Y += dy
	return nil
}

// MoveSubtree rigidly translates a node and every descendant by (dx, dy).
// Children move with their parent, so subtree geometry is preserved.
func (t *Tree) MoveSubtree(id string, dx, dy float64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.X += dx
	n.Y += dy
	for _, did := range t.Descendants(id) {
		d := t.nodes[did]
		d.X += dx
		d.Y += dy
	}
	return nil
}

// MoveBefore reorders id immediately before siblingID within their shared
// sibling group. Returns ErrNotSiblings when they have different parents.
func (t *Tree) MoveBefore(id, siblingID string) error {
	return t.reorder(id, siblingID, 0)
}

// MoveAfter reorders id immediately after siblingID within their shared
// sibling group. Returns ErrNotSiblings when they have different parents.
func (t *Tree) MoveAfter(id, siblingID string) error {
	return t.reorder(id, siblingID, 1)
}

func (t *Tree) reorder(id, siblingID string, offset int) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	s, ok := t.nodes[siblingID]
	if !ok {
		return ErrUnknownNode
	}
	if id == siblingID {
		return nil
	}
	if t.levelKey(n.ParentID) != t.levelKey(s.ParentID) {
		return ErrNotSiblings
	}

	key := t.levelKey(n.ParentID)
	order := slices.DeleteFunc(slices.Clone(t.children[key]), func(v string) bool { return v == id })
	at := slices.Index(order, siblingID) + offset
	t.children[key] = slices.Insert(order, at, id)
	return nil
}

// Nodes returns all nodes as a flat slice in root-group order followed by
// pre-order descent, the order documents persist them in.
func (t *Tree) Nodes() []Node {
	out := make([]Node, 0, len(t.nodes))
	var walk func(string)
	walk = func(id string) {
		out = append(out, *t.nodes[id])
		for _, cid := range t.children[id] {
			walk(cid)
		}
	}
	for _, rid := range t.children[rootKey] {
		walk(rid)
	}
	return out
}

// Clone returns a deep copy sharing no state with the receiver.
func (t *Tree) Clone() *Tree {
	c := New()
	for id, n := range t.nodes {
		dup := *n
		c.nodes[id] = &dup
	}
	for key, kids := range t.children {
		c.children[key] = slices.Clone(kids)
	}
	return c
}

// Validate checks arena integrity: every non-empty parent reference must
// resolve, every node must be reachable through the adjacency index, and
// the parent relation must be acyclic. Returns ErrTreeCorrupt when any
// check fails. Mutating operations preserve these invariants; Validate is
// for data loaded from external sources.
func (t *Tree) Validate() error {
	indexed := 0
	for key, kids := range t.children {
		if key != rootKey {
			if _, ok := t.nodes[key]; !ok {
				return ErrTreeCorrupt
			}
		}
		for _, id := range kids {
			n, ok := t.nodes[id]
			if !ok || t.levelKey(n.ParentID) != key {
				return ErrTreeCorrupt
			}
			indexed++
		}
	}
	if indexed != len(t.nodes) {
		return ErrTreeCorrupt
	}

	for id := range t.nodes {
		seen := map[string]bool{id: true}
		cur := t.nodes[id].ParentID
		for cur != "" {
			if seen[cur] {
				return ErrTreeCorrupt
			}
			seen[cur] = true
			p, ok := t.nodes[cur]
			if !ok {
				return ErrTreeCorrupt
			}
			cur = p.ParentID
		}
	}
	return nil
}
