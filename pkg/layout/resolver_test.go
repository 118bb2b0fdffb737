package layout

import (
	"testing"

	"github.com/canopyhq/canopy/pkg/mindmap"
)

func TestResolveSiblingsSeparates(t *testing.T) {
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5})

	tree := mindmap.New()
	r1 := addNode(t, tree, "r1", "", 0, 0, 100, 40)
	r2 := addNode(t, tree, "r2", "", 50, 10, 100, 40)

	converged := e.ResolveSiblings(tree, tree.Roots(), "")
	if !converged {
		t.Error("ResolveSiblings() = false, want converged")
	}

	// The vertical overlap (40) is smaller than the horizontal (70), so
	// the pair splits 20 each along y and x stays put.
	if r1.X != 0 || r2.X != 50 {
		t.Errorf("x moved: r1.X = %v, r2.X = %v", r1.X, r2.X)
	}
	if r1.Y != -20 || r2.Y != 30 {
		t.Errorf("got r1.Y = %v, r2.Y = %v, want -20, 30", r1.Y, r2.Y)
	}

	a, _ := e.Bounds(tree, "r1")
	b, _ := e.Bounds(tree, "r2")
	if a.Rect.Overlaps(b.Rect) {
		t.Errorf("bounds still overlap: %+v vs %+v", a.Rect, b.Rect)
	}
}

func TestResolveSiblingsMinimumAxis(t *testing.T) {
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5})

	tree := mindmap.New()
	r1 := addNode(t, tree, "r1", "", 0, 0, 100, 40)
	r2 := addNode(t, tree, "r2", "", 110, 2, 100, 40)

	if !e.ResolveSiblings(tree, tree.Roots(), "") {
		t.Error("ResolveSiblings() = false, want converged")
	}

	// Horizontal overlap (10) beats vertical (48): push 5 each along x.
	if r1.X != -5 || r2.X != 115 {
		t.Errorf("got r1.X = %v, r2.X = %v, want -5, 115", r1.X, r2.X)
	}
	if r1.Y != 0 || r2.Y != 2 {
		t.Errorf("y moved: r1.Y = %v, r2.Y = %v", r1.Y, r2.Y)
	}
}

func TestResolveSiblingsTrivialGroups(t *testing.T) {
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5})

	tree := mindmap.New()
	r1 := addNode(t, tree, "r1", "", 30, 40, 100, 40)

	if !e.ResolveSiblings(tree, nil, "") {
		t.Error("ResolveSiblings(empty) = false, want true")
	}
	if !e.ResolveSiblings(tree, tree.Roots(), "") {
		t.Error("ResolveSiblings(singleton) = false, want true")
	}
	if r1.X != 30 || r1.Y != 40 {
		t.Errorf("singleton moved to (%v, %v)", r1.X, r1.Y)
	}
}

func TestResolveSiblingsCapReached(t *testing.T) {
	// A tiny step cap keeps the pair from separating within the
	// iteration budget; the resolver must report that and stop anyway.
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5, MaxStep: 3})

	tree := mindmap.New()
	addNode(t, tree, "r1", "", 0, 0, 100, 40)
	addNode(t, tree, "r2", "", 50, 2, 100, 40)

	if e.ResolveSiblings(tree, tree.Roots(), "") {
		t.Error("ResolveSiblings() = true, want cap reached")
	}

	a, _ := e.Bounds(tree, "r1")
	b, _ := e.Bounds(tree, "r2")
	if !a.Rect.Overlaps(b.Rect) {
		t.Error("expected residual overlap after hitting the iteration cap")
	}
}

func TestResolveSiblingsRigidSubtree(t *testing.T) {
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5})

	tree := mindmap.New()
	r1 := addNode(t, tree, "r1", "", 0, 0, 100, 40)
	c := addNode(t, tree, "c", "r1", 150, 0, 100, 40)
	addNode(t, tree, "r2", "", 30, 40, 100, 40)

	dx, dy := c.X-r1.X, c.Y-r1.Y
	if !e.ResolveSiblings(tree, tree.Roots(), "") {
		t.Error("ResolveSiblings() = false, want converged")
	}

	if got := c.X - r1.X; got != dx {
		t.Errorf("child x offset = %v, want %v", got, dx)
	}
	if got := c.Y - r1.Y; got != dy {
		t.Errorf("child y offset = %v, want %v", got, dy)
	}
}

func TestResolveSiblingsParentAvoidance(t *testing.T) {
	e := testEngine(t, Options{HSpacing: 10, VSpacing: 5})

	tree := mindmap.New()
	addNode(t, tree, "p", "", 0, 0, 100, 40)
	c1 := addNode(t, tree, "c1", "p", 0, -30, 100, 40)
	c2 := addNode(t, tree, "c2", "p", 0, 30, 100, 40)

	if !e.ResolveSiblings(tree, tree.Children("p"), "p") {
		t.Error("ResolveSiblings() = false, want converged")
	}

	// Each child overlapped the parent rect by 15 on y, so each gets
	// pushed overlap+spacing = 20 away from the parent center.
	if c1.Y != -50 {
		t.Errorf("c1.Y = %v, want -50", c1.Y)
	}
	if c2.Y != 50 {
		t.Errorf("c2.Y = %v, want 50", c2.Y)
	}

	p, _ := tree.Node("p")
	for _, c := range []*mindmap.Node{c1, c2} {
		b, _ := e.Bounds(tree, c.ID)
		if b.Rect.Overlaps(p.Rect()) {
			t.Errorf("%s bounds %+v still overlap parent rect %+v", c.ID, b.Rect, p.Rect())
		}
	}
	if p.X != 0 || p.Y != 0 {
		t.Errorf("parent moved to (%v, %v)", p.X, p.Y)
	}
}
