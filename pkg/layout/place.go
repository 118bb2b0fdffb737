package layout

import (
	"math"

	"github.com/canopyhq/canopy/pkg/mindmap"
)

// PlaceSubtree lays out the visible descendants of a node from scratch:
// children stack vertically centered on their parent and sit one
// horizontal gap away, on the left or right according to their side.
// Existing descendant positions are discarded; the node itself and the
// rest of the tree stay put. Callers typically run a resolve pass
// afterwards to separate the placed subtree from its neighbors.
func (e *Engine) PlaceSubtree(t *mindmap.Tree, id string) {
	n, ok := t.Node(id)
	if !ok {
		return
	}
	if n.IsRoot() {
		var left, right []string
		for _, cid := range t.VisibleChildren(id) {
			c, _ := t.Node(cid)
			if c.Side == mindmap.SideLeft {
				left = append(left, cid)
			} else {
				right = append(right, cid)
			}
		}
		e.placeStack(t, n, right, mindmap.SideRight)
		e.placeStack(t, n, left, mindmap.SideLeft)
		return
	}
	e.placeStack(t, n, t.VisibleChildren(id), e.sideOf(t, id))
}

// placeStack positions kids in order as a vertical stack centered on the
// parent's vertical midpoint, each subtree centered within its slot.
func (e *Engine) placeStack(t *mindmap.Tree, parent *mindmap.Node, kids []string, side mindmap.Side) {
	if len(kids) == 0 {
		return
	}
	heights := make([]float64, len(kids))
	total := e.opts.VSpacing * float64(len(kids)-1)
	for i, cid := range kids {
		heights[i] = e.stackHeight(t, cid)
		total += heights[i]
	}

	y := parent.Y + parent.Height/2 - total/2
	for i, cid := range kids {
		c, _ := t.Node(cid)
		x := parent.X + parent.Width + e.opts.HSpacing
		if side == mindmap.SideLeft {
			x = parent.X - e.opts.HSpacing - c.Width
		}
		slotY := y + heights[i]/2 - c.Height/2
		_ = t.MoveSubtree(cid, x-c.X, slotY-c.Y)
		e.placeStack(t, c, t.VisibleChildren(cid), side)
		y += heights[i] + e.opts.VSpacing
	}
}

// stackHeight is the vertical room a subtree needs in a stack: the
// node's own height or the summed heights of its visible children,
// whichever is larger.
func (e *Engine) stackHeight(t *mindmap.Tree, id string) float64 {
	n, ok := t.Node(id)
	if !ok {
		return 0
	}
	kids := t.VisibleChildren(id)
	if len(kids) == 0 {
		return n.Height
	}
	sum := e.opts.VSpacing * float64(len(kids)-1)
	for _, cid := range kids {
		sum += e.stackHeight(t, cid)
	}
	return math.Max(n.Height, sum)
}

// sideOf reports which side of its root a node hangs from. The side flag
// lives on the root's direct children; deeper nodes inherit it.
func (e *Engine) sideOf(t *mindmap.Tree, id string) mindmap.Side {
	n, ok := t.Node(id)
	if !ok {
		return mindmap.SideRight
	}
	for n.ParentID != "" {
		p, ok := t.Node(n.ParentID)
		if !ok || p.IsRoot() {
			break
		}
		n = p
	}
	return n.Side
}
