package mindmap

import (
	"time"

	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/geom"
)

// Default node dimensions, used until the rendering layer reports measured
// sizes back to the model.
const (
	DefaultWidth  = 160.0
	DefaultHeight = 40.0
)

// Side indicates which half of a bidirectional (left-right) layout a node
// occupies. The side is meaningful for direct children of a root and is
// inherited by deeper descendants; single-direction layouts leave every
// node on SideRight.
type Side int

const (
	// SideRight places the node in the right subtree (the default).
	SideRight Side = iota
	// SideLeft places the node in the left subtree.
	SideLeft
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Node is a positioned element in the hierarchy.
//
// Geometry is mutable: X and Y are updated by layout passes and by direct
// drags, Width and Height change when the node's content is re-measured.
// The parent relation is owned by [Tree]; mutate it through [Tree.SetParent]
// rather than writing ParentID directly, so the adjacency index and the
// acyclicity invariant stay intact.
type Node struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"` // empty for roots
	Side     Side   `json:"side,omitempty"`
	Text     string `json:"text"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Collapsed hides the whole subtree below this node. Roots with two
	// independent subtrees additionally collapse each side separately.
	Collapsed      bool `json:"collapsed,omitempty"`
	CollapsedLeft  bool `json:"collapsedLeft,omitempty"`
	CollapsedRight bool `json:"collapsedRight,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// NewNode creates a node with a fresh id, the given text, and default
// geometry at the origin.
func NewNode(text string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:         uuid.NewString(),
		Text:       text,
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentID == "" }

// Rect returns the node's own rectangle (without any subtree bounds).
func (n *Node) Rect() geom.Rect {
	return geom.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// CollapsedToward reports whether the node hides children on the given
// side. For non-roots the side split does not apply and the generic
// Collapsed flag decides alone.
func (n *Node) CollapsedToward(side Side) bool {
	if n.Collapsed {
		return true
	}
	if !n.IsRoot() {
		return false
	}
	if side == SideLeft {
		return n.CollapsedLeft
	}
	return n.CollapsedRight
}
