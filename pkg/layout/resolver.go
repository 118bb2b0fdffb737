package layout

import (
	"math"

	"github.com/canopyhq/canopy/pkg/geom"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// ResolveSiblings separates the overlapping members of one sibling
// group. ids must share a parent; parentID is empty for the root group.
// Subtrees move rigidly, so descendants keep their offsets relative to
// the moved sibling, and when a parent is given each sibling is also
// pushed clear of the parent's own rect.
//
// Reports whether the group verifiably converged: a full pass found no
// overlap before the iteration cap. When false, residual overlap may
// remain; callers treat that as acceptable rather than retrying.
func (e *Engine) ResolveSiblings(t *mindmap.Tree, ids []string, parentID string) bool {
	return e.resolveSiblings(t, ids, parentID, nil)
}

func (e *Engine) resolveSiblings(t *mindmap.Tree, ids []string, parentID string, visible map[string]bool) bool {
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if visible != nil && !visible[id] {
			continue
		}
		if t.Contains(id) {
			live = append(live, id)
		}
	}
	// Empty and singleton groups have nothing to separate.
	if len(live) < 2 {
		return true
	}

	var parentRect geom.Rect
	hasParent := false
	if parentID != "" {
		if p, ok := t.Node(parentID); ok {
			parentRect = p.Rect()
			hasParent = true
		}
	}

	// Rigid translation keeps cached bounds exact, so they are computed
	// once and shifted alongside the nodes.
	bounds := make([]geom.Rect, len(live))
	for i, id := range live {
		bounds[i], _ = e.boundsIn(t, id, visible)
	}

	for iter := 0; iter < e.opts.MaxIterations; iter++ {
		if !e.separatePass(t, live, bounds, parentRect, hasParent) {
			return true
		}
	}
	return false
}

// separatePass runs one pairwise separation sweep followed by the parent
// avoidance sweep. Reports whether anything overlapped.
func (e *Engine) separatePass(t *mindmap.Tree, ids []string, bounds []geom.Rect, parentRect geom.Rect, hasParent bool) bool {
	overlapped := false

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := bounds[i], bounds[j]
			if !a.Overlaps(b) {
				continue
			}
			overlapped = true

			// Push apart along the axis with the smaller overlap,
			// splitting the displacement between both subtrees.
			var dxa, dya, dxb, dyb float64
			if ox, oy := a.OverlapX(b), a.OverlapY(b); ox <= oy {
				step := math.Min(ox/2, e.opts.MaxStep)
				if a.CenterX() <= b.CenterX() {
					dxa, dxb = -step, step
				} else {
					dxa, dxb = step, -step
				}
			} else {
				step := math.Min(oy/2, e.opts.MaxStep)
				if a.CenterY() <= b.CenterY() {
					dya, dyb = -step, step
				} else {
					dya, dyb = step, -step
				}
			}

			_ = t.MoveSubtree(ids[i], dxa, dya)
			_ = t.MoveSubtree(ids[j], dxb, dyb)
			bounds[i] = bounds[i].Translate(dxa, dya)
			bounds[j] = bounds[j].Translate(dxb, dyb)
		}
	}

	if !hasParent {
		return overlapped
	}
	for i := range ids {
		if !bounds[i].Overlaps(parentRect) {
			continue
		}
		overlapped = true

		// The parent stays put: the sibling alone is pushed clear of the
		// parent's own rect, overlap plus one spacing unit.
		var dx, dy float64
		if ox, oy := bounds[i].OverlapX(parentRect), bounds[i].OverlapY(parentRect); ox <= oy {
			dx = ox + e.opts.HSpacing
			if bounds[i].CenterX() < parentRect.CenterX() {
				dx = -dx
			}
		} else {
			dy = oy + e.opts.VSpacing
			if bounds[i].CenterY() < parentRect.CenterY() {
				dy = -dy
			}
		}
		_ = t.MoveSubtree(ids[i], dx, dy)
		bounds[i] = bounds[i].Translate(dx, dy)
	}
	return overlapped
}
