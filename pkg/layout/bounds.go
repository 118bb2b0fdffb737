package layout

import (
	"github.com/canopyhq/canopy/pkg/geom"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// Bounds computes the padded bounding rect of a node and its visible
// subtree. Collapsed nodes contribute their own rect only, with no
// padding; expanded nodes contribute the union of their own rect and
// every visible child's bounds, padded by the engine spacing. Leaves get
// the padding applied to their own rect. Reports false for unknown ids.
func (e *Engine) Bounds(t *mindmap.Tree, id string) (BoundingRect, bool) {
	r, ok := e.boundsIn(t, id, nil)
	return BoundingRect{Rect: r, NodeID: id}, ok
}

// BoundsWithin is [Engine.Bounds] restricted to a visible subset:
// descendants missing from the set do not contribute to the result. A
// nil set means every node is visible.
func (e *Engine) BoundsWithin(t *mindmap.Tree, id string, visible map[string]bool) (BoundingRect, bool) {
	r, ok := e.boundsIn(t, id, visible)
	return BoundingRect{Rect: r, NodeID: id}, ok
}

// boundsIn recurses over the visible children only, so the footprint of
// a collapsed or culled branch never leaks into its ancestors. Callers
// must guarantee an acyclic tree; [mindmap.Tree] mutations preserve that.
func (e *Engine) boundsIn(t *mindmap.Tree, id string, visible map[string]bool) (geom.Rect, bool) {
	n, ok := t.Node(id)
	if !ok {
		return geom.Rect{}, false
	}
	own := n.Rect()
	if n.Collapsed {
		return own, true
	}
	b := own
	for _, cid := range t.VisibleChildren(id) {
		if visible != nil && !visible[cid] {
			continue
		}
		if cb, ok := e.boundsIn(t, cid, visible); ok {
			b = b.Union(cb)
		}
	}
	return b.Expand(e.opts.HSpacing, e.opts.VSpacing), true
}
