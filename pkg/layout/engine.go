// Package layout positions mindmap nodes in 2D space and resolves
// overlaps between sibling subtrees.
//
// The resolver is a bounded separation heuristic, not an energy
// minimizer. Each pass pushes overlapping sibling bounding rects apart
// along the axis of minimum overlap, splits the push between both
// subtrees, and gives up after a fixed iteration cap whether or not all
// overlap is gone. The strategies built on top choose which sibling
// groups to resolve: every group in the tree, only the levels touched by
// a set of moved nodes, or a caller-supplied visible subset.
//
// All resolution is synchronous and runs to completion; a pass never
// leaves the tree in a partially separated state between calls.
package layout

import (
	"github.com/canopyhq/canopy/pkg/geom"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// Engine resolves node overlaps for a tree using a fixed Options set.
// It holds no tree state and may be shared across documents. Construct
// with [New]; the zero value has no spacing and is not useful.
type Engine struct {
	opts Options
}

// New validates opts, fills defaults, and returns an engine.
func New(opts Options) (*Engine, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the effective options after defaulting.
func (e *Engine) Options() Options { return e.opts }

// BoundingRect is the padded rectangle enclosing a node and its visible
// descendants, tagged with the owning node id. It is derived on demand
// and never persisted.
type BoundingRect struct {
	geom.Rect
	NodeID string
}

// Positions snapshots every node's top-left corner. Rendering layers
// consume this map after a resolve pass instead of walking the tree.
func Positions(t *mindmap.Tree) map[string]geom.Point {
	out := make(map[string]geom.Point, t.NodeCount())
	for _, n := range t.Nodes() {
		out[n.ID] = geom.Point{X: n.X, Y: n.Y}
	}
	return out
}
