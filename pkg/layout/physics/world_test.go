package physics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/canopyhq/canopy/pkg/mindmap"
)

func buildTree(t *testing.T, nodes []mindmap.Node) *mindmap.Tree {
	t.Helper()
	tree, err := mindmap.FromNodes(nodes)
	if err != nil {
		t.Fatalf("FromNodes() error = %v", err)
	}
	return tree
}

func mustWorld(t *testing.T, cfg Config, tree *mindmap.Tree) *World {
	t.Helper()
	w, err := NewWorld(cfg, tree)
	if err != nil {
		t.Fatalf("NewWorld() error = %v", err)
	}
	return w
}

// centered returns a node whose box center lands on (cx, cy).
func centered(id, parentID string, cx, cy, w, h float64) mindmap.Node {
	return mindmap.Node{ID: id, ParentID: parentID, X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}

func TestCollisionGroups(t *testing.T) {
	tree := buildTree(t, []mindmap.Node{
		{ID: "r1", Width: 40, Height: 40},
		{ID: "r2", X: 500, Width: 40, Height: 40},
		{ID: "c1", ParentID: "r1", X: 100, Width: 40, Height: 40},
		{ID: "c2", ParentID: "r1", X: 200, Width: 40, Height: 40},
		{ID: "d1", ParentID: "c1", X: 300, Width: 40, Height: 40},
	})
	w := mustWorld(t, Config{}, tree)

	group := func(id string) int {
		t.Helper()
		g, ok := w.GroupOf(id)
		if !ok {
			t.Fatalf("GroupOf(%q) not found", id)
		}
		return g
	}

	// All roots share group 0.
	if group("r1") != 0 || group("r2") != 0 {
		t.Errorf("root groups = %d, %d, want 0, 0", group("r1"), group("r2"))
	}
	// True siblings share a group distinct from the root group.
	if group("c1") != group("c2") {
		t.Errorf("sibling groups differ: %d vs %d", group("c1"), group("c2"))
	}
	if group("c1") == 0 {
		t.Error("child group collides with roots")
	}
	// A different parent means a different group.
	if group("d1") == group("c1") || group("d1") == 0 {
		t.Errorf("grandchild group = %d, want distinct from %d and 0", group("d1"), group("c1"))
	}
}

func TestRepulsionSeparatesSiblings(t *testing.T) {
	// Two root bodies sit on their target ring (radius 100, own angles),
	// so repulsion is the only force in play.
	angle := 0.2
	bx, by := 100*math.Cos(angle), 100*math.Sin(angle)
	tree := buildTree(t, []mindmap.Node{
		centered("a", "", 100, 0, 40, 40),
		centered("b", "", bx, by, 40, 40),
	})
	w := mustWorld(t, Config{BaseSpringLength: 100, MinDistance: 30}, tree)

	a, b := w.Body("a"), w.Body("b")
	before := r2.Norm(r2.Sub(b.Pos(), a.Pos()))
	mid := r2.Scale(0.5, r2.Add(a.Pos(), b.Pos()))

	w.Step()

	after := r2.Norm(r2.Sub(b.Pos(), a.Pos()))
	if after <= before {
		t.Errorf("distance = %v after step, want > %v", after, before)
	}

	// The push is symmetric: the pair's midpoint stays put.
	midAfter := r2.Scale(0.5, r2.Add(a.Pos(), b.Pos()))
	if math.Abs(midAfter.X-mid.X) > 1e-9 || math.Abs(midAfter.Y-mid.Y) > 1e-9 {
		t.Errorf("midpoint drifted from %+v to %+v", mid, midAfter)
	}
}

func TestCrossGroupCollision(t *testing.T) {
	// Root a rests at equilibrium. Body b overlaps it but belongs to
	// another group, so with cross-group collision off a feels nothing.
	nodes := []mindmap.Node{
		centered("a", "", 100, 0, 40, 40),
		centered("c", "", -100, 0, 40, 40),
		centered("b", "c", 98, 20, 40, 40),
	}

	t.Run("disabled by default", func(t *testing.T) {
		w := mustWorld(t, Config{BaseSpringLength: 100, MinDistance: 30}, buildTree(t, nodes))
		w.Step()
		if got := w.Body("a").Pos(); got != (r2.Vec{X: 100, Y: 0}) {
			t.Errorf("a moved to %+v with cross-group collision disabled", got)
		}
	})

	t.Run("enabled multiplier", func(t *testing.T) {
		w := mustWorld(t, Config{BaseSpringLength: 100, MinDistance: 30, CrossGroupStrength: 1}, buildTree(t, nodes))
		w.Step()
		if got := w.Body("a").Pos(); got == (r2.Vec{X: 100, Y: 0}) {
			t.Error("a did not move with cross-group collision enabled")
		}
	})
}

func TestRadialConstraint(t *testing.T) {
	// Parent on ring 1 at angle 0; its child belongs on ring 2 at the
	// same angle, so the net pull is straight along +x.
	tree := buildTree(t, []mindmap.Node{
		centered("p", "", 100, 0, 40, 40),
		centered("k", "p", 150, 0, 40, 40),
	})
	w := mustWorld(t, Config{BaseSpringLength: 100, MinDistance: 5}, tree)

	w.Step()

	k := w.Body("k").Pos()
	if k.X <= 150 {
		t.Errorf("k.X = %v, want > 150 (pulled toward ring radius 200)", k.X)
	}
	if k.Y != 0 {
		t.Errorf("k.Y = %v, want 0", k.Y)
	}
	// The parent is already at its own target and stays put.
	if got := w.Body("p").Pos(); got != (r2.Vec{X: 100, Y: 0}) {
		t.Errorf("p moved to %+v", got)
	}
}

func TestAngularDamp(t *testing.T) {
	tests := []struct {
		name string
		gap  float64
		want float64
	}{
		{name: "clear of siblings", gap: 60, want: 1},
		{name: "half the window", gap: 15, want: 0.5},
		{name: "touching floors at 20 percent", gap: 0, want: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := buildTree(t, []mindmap.Node{
				{ID: "r", X: 1000, Y: 1000, Width: 40, Height: 40},
				{ID: "k1", ParentID: "r", X: 0, Y: 0, Width: 40, Height: 40},
				{ID: "k2", ParentID: "r", X: 40 + tt.gap, Y: 0, Width: 40, Height: 40},
			})
			w := mustWorld(t, Config{MinDistance: 30}, tree)

			if got := w.angularDamp(w.Body("k1")); got != tt.want {
				t.Errorf("angularDamp() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("no siblings", func(t *testing.T) {
		tree := buildTree(t, []mindmap.Node{{ID: "only", Width: 40, Height: 40}})
		w := mustWorld(t, Config{MinDistance: 30}, tree)
		if got := w.angularDamp(w.Body("only")); got != 1 {
			t.Errorf("angularDamp() = %v, want 1", got)
		}
	})
}

func TestSyncBack(t *testing.T) {
	tree := buildTree(t, []mindmap.Node{
		centered("a", "", 100, 0, 40, 40),
	})
	w := mustWorld(t, Config{}, tree)

	w.Body("a").pos = r2.Vec{X: 300, Y: 120}
	w.SyncBack()

	n, _ := tree.Node("a")
	if n.X != 280 || n.Y != 100 {
		t.Errorf("node at (%v, %v), want top-left (280, 100)", n.X, n.Y)
	}
}

func TestSnapshotLeavesTreeAlone(t *testing.T) {
	tree := buildTree(t, []mindmap.Node{
		centered("a", "", 10, 10, 40, 40),
		centered("b", "", 20, 15, 40, 40),
	})
	w := mustWorld(t, Config{}, tree)

	for i := 0; i < 5; i++ {
		w.Step()
	}
	snap := w.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d positions, want 2", len(snap))
	}

	// Stepping moves bodies, not nodes.
	na, _ := tree.Node("a")
	if na.X != -10 || na.Y != -10 {
		t.Errorf("tree mutated before sync-back: a at (%v, %v)", na.X, na.Y)
	}
	found := false
	for _, p := range snap {
		if p.ID == "a" && (p.X != -10 || p.Y != -10) {
			found = true
		}
	}
	if !found {
		t.Error("snapshot does not reflect simulated movement")
	}
}
