package layout

import "github.com/canopyhq/canopy/pkg/mindmap"

// ResolveAll resolves every sibling group in the tree. Groups are
// visited post-order, children before their own group, so a subtree is
// internally consistent by the time it is separated from its siblings;
// the root group goes last. Reports whether every group converged.
func (e *Engine) ResolveAll(t *mindmap.Tree) bool {
	return e.resolveAll(t, nil)
}

// ResolveAllWithin is [Engine.ResolveAll] restricted to a visible
// subset. Group membership and bounds only consider nodes present in
// the set, so resolution cost scales with what is rendered rather than
// with total tree size.
func (e *Engine) ResolveAllWithin(t *mindmap.Tree, visible map[string]bool) bool {
	return e.resolveAll(t, visible)
}

func (e *Engine) resolveAll(t *mindmap.Tree, visible map[string]bool) bool {
	converged := true
	var walk func(id string)
	walk = func(id string) {
		if visible != nil && !visible[id] {
			return
		}
		kids := t.VisibleChildren(id)
		for _, cid := range kids {
			walk(cid)
		}
		if !e.resolveSiblings(t, kids, id, visible) {
			converged = false
		}
	}
	for _, rid := range t.Roots() {
		walk(rid)
	}
	if !e.resolveSiblings(t, t.Roots(), "", visible) {
		converged = false
	}
	return converged
}

// ResolveBottomUp resolves only the levels touched by the given moved
// nodes. Each node's ancestor chain is walked to the root and every
// distinct level on the way is resolved once, the root group always
// last; levels are keyed by parent id with the empty string standing in
// for the root group. A drag in a large tree therefore recomputes only
// its own chain, not the whole tree. Reports whether every resolved
// group converged.
func (e *Engine) ResolveBottomUp(t *mindmap.Tree, movedIDs []string) bool {
	return e.resolveBottomUp(t, movedIDs, nil)
}

// ResolveBottomUpWithin is [Engine.ResolveBottomUp] restricted to a
// visible subset.
func (e *Engine) ResolveBottomUpWithin(t *mindmap.Tree, movedIDs []string, visible map[string]bool) bool {
	return e.resolveBottomUp(t, movedIDs, visible)
}

func (e *Engine) resolveBottomUp(t *mindmap.Tree, movedIDs []string, visible map[string]bool) bool {
	converged := true
	resolved := make(map[string]bool)
	resolve := func(parentID string) {
		if resolved[parentID] {
			return
		}
		resolved[parentID] = true
		group := t.Roots()
		if parentID != "" {
			group = t.VisibleChildren(parentID)
		}
		if !e.resolveSiblings(t, group, parentID, visible) {
			converged = false
		}
	}

	for _, id := range movedIDs {
		n, ok := t.Node(id)
		if !ok {
			continue
		}
		for {
			resolve(n.ParentID)
			if n.ParentID == "" {
				break
			}
			p, ok := t.Node(n.ParentID)
			if !ok {
				break
			}
			n = p
		}
	}
	resolve("")
	return converged
}
