package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/canopyhq/canopy/pkg/geom"
	"github.com/canopyhq/canopy/pkg/mindmap"
)

// rootGroup is the collision group shared by all root bodies.
const rootGroup = 0

// Body is the dynamic box backing one node. Position is the box center;
// the node's top-left anchor is restored on sync-back.
type Body struct {
	ID    string
	pos   r2.Vec
	vel   r2.Vec
	force r2.Vec

	halfW, halfH float64
	group        int
	depth        int
	parentID     string
}

// Pos returns the current center position.
func (b *Body) Pos() r2.Vec { return b.pos }

// rect is the body's box as a top-left anchored rectangle.
func (b *Body) rect() geom.Rect {
	return geom.Rect{
		X:      b.pos.X - b.halfW,
		Y:      b.pos.Y - b.halfH,
		Width:  2 * b.halfW,
		Height: 2 * b.halfH,
	}
}

// World simulates the bodies for one tree. It keeps its own copy of the
// node geometry; the tree is untouched until [World.SyncBack]. A world
// is not safe for concurrent use; while a [Runner] drives it, no other
// goroutine may touch the world or the tree.
type World struct {
	cfg    Config
	tree   *mindmap.Tree
	bodies []*Body
	byID   map[string]*Body
	groups map[string]int // parent id -> collision group
}

// NewWorld builds a body for every node in the tree. Nodes without a
// rendered size fall back to the default node dimensions.
func NewWorld(cfg Config, tree *mindmap.Tree) (*World, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	w := &World{
		cfg:    cfg,
		tree:   tree,
		byID:   make(map[string]*Body),
		groups: map[string]int{"": rootGroup},
	}
	for _, n := range tree.Nodes() {
		width, height := n.Width, n.Height
		if width == 0 {
			width = mindmap.DefaultWidth
		}
		if height == 0 {
			height = mindmap.DefaultHeight
		}
		b := &Body{
			ID:       n.ID,
			pos:      r2.Vec{X: n.X + width/2, Y: n.Y + height/2},
			halfW:    width / 2,
			halfH:    height / 2,
			group:    w.groupFor(n.ParentID),
			depth:    tree.Depth(n.ID),
			parentID: n.ParentID,
		}
		w.bodies = append(w.bodies, b)
		w.byID[n.ID] = b
	}
	return w, nil
}

// groupFor lazily assigns collision groups: roots share group 0 and each
// distinct parent id gets the next index on first encounter.
func (w *World) groupFor(parentID string) int {
	if g, ok := w.groups[parentID]; ok {
		return g
	}
	g := len(w.groups)
	w.groups[parentID] = g
	return g
}

// GroupOf returns the collision group of a node's body.
func (w *World) GroupOf(id string) (int, bool) {
	b, ok := w.byID[id]
	if !ok {
		return 0, false
	}
	return b.group, true
}

// Body returns the body for a node id, or nil.
func (w *World) Body(id string) *Body { return w.byID[id] }

// Step advances the simulation by one fixed timestep: accumulate
// repulsion and polar constraint forces, then integrate.
func (w *World) Step() {
	for _, b := range w.bodies {
		b.force = r2.Vec{}
	}
	w.applyRepulsion()
	w.applyConstraints()

	dt := w.cfg.TimeStep
	for _, b := range w.bodies {
		b.vel = r2.Scale(w.cfg.VelocityRetention, r2.Add(b.vel, r2.Scale(dt, b.force)))
		b.pos = r2.Add(b.pos, r2.Scale(dt, b.vel))
	}
}

// applyRepulsion pushes pairs apart when their edge-to-edge distance
// falls below MinDistance. Same-group pairs repel at full strength;
// cross-group pairs are scaled by CrossGroupStrength, zero by default.
func (w *World) applyRepulsion() {
	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			a, b := w.bodies[i], w.bodies[j]
			strength := w.cfg.RepulsionStrength
			if a.group != b.group {
				strength *= w.cfg.CrossGroupStrength
				if strength == 0 {
					continue
				}
			}

			ra, rb := a.rect(), b.rect()
			gap := ra.EdgeDistance(rb)
			if gap >= w.cfg.MinDistance {
				continue
			}
			pen := w.cfg.MinDistance - gap
			if ra.Overlaps(rb) {
				pen = w.cfg.MinDistance + math.Min(ra.OverlapX(rb), ra.OverlapY(rb))
			}

			dir := r2.Sub(b.pos, a.pos)
			if n := r2.Norm(dir); n > 1e-9 {
				dir = r2.Scale(1/n, dir)
			} else {
				dir = r2.Vec{X: 1}
			}
			f := r2.Scale(strength*pen, dir)
			a.force = r2.Sub(a.force, f)
			b.force = r2.Add(b.force, f)
		}
	}
}

// applyConstraints pulls every body toward its polar target: radius
// BaseSpringLength*(depth+1) and the parent's current angle. Roots keep
// their own angle. The angular pull is damped while siblings crowd the
// body, down to the configured floor, never to zero.
func (w *World) applyConstraints() {
	for _, b := range w.bodies {
		targetRadius := w.cfg.BaseSpringLength * float64(b.depth+1)

		delta := r2.Sub(b.pos, w.cfg.Origin)
		radius := r2.Norm(delta)
		dir := r2.Vec{X: 1}
		if radius > 1e-9 {
			dir = r2.Scale(1/radius, delta)
		}

		// Circle attraction: toward the target ring along the current ray.
		radial := r2.Scale(w.cfg.RadialStrength*(targetRadius-radius), dir)
		b.force = r2.Add(b.force, radial)

		// Point attraction: toward the parent's angle on that ring.
		angle := w.angleOf(b)
		target := r2.Add(w.cfg.Origin, r2.Vec{
			X: targetRadius * math.Cos(angle),
			Y: targetRadius * math.Sin(angle),
		})
		damp := w.angularDamp(b)
		angular := r2.Scale(w.cfg.AngularStrength*damp, r2.Sub(target, b.pos))
		b.force = r2.Add(b.force, angular)
	}
}

// angleOf returns the body's target polar angle: the parent's current
// angle, or the body's own for roots and orphaned references.
func (w *World) angleOf(b *Body) float64 {
	ref := b
	if p, ok := w.byID[b.parentID]; ok {
		ref = p
	}
	delta := r2.Sub(ref.pos, w.cfg.Origin)
	return math.Atan2(delta.Y, delta.X)
}

// angularDamp scales the angular force by how crowded the body is: 1 at
// MinDistance or more of clearance from the nearest sibling, dropping
// linearly to the floor as the gap closes.
func (w *World) angularDamp(b *Body) float64 {
	gap := math.Inf(1)
	for _, o := range w.bodies {
		if o == b || o.group != b.group {
			continue
		}
		if d := b.rect().EdgeDistance(o.rect()); d < gap {
			gap = d
		}
	}
	if math.IsInf(gap, 1) || gap >= w.cfg.MinDistance {
		return 1
	}
	return math.Max(w.cfg.AngularDampingFloor, gap/w.cfg.MinDistance)
}

// Position is a rendered body position, top-left anchored like the node
// model.
type Position struct {
	ID            string
	X, Y          float64
	Width, Height float64
}

// Snapshot returns the current body positions for rendering while the
// simulation runs. The tree itself is not updated until sync-back.
func (w *World) Snapshot() []Position {
	out := make([]Position, len(w.bodies))
	for i, b := range w.bodies {
		r := b.rect()
		out[i] = Position{ID: b.ID, X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
	}
	return out
}

// SyncBack writes the simulated positions into the tree. The runner
// calls this exactly once when stopping; manual drivers call it when
// they are done stepping.
func (w *World) SyncBack() {
	for _, b := range w.bodies {
		n, ok := w.tree.Node(b.ID)
		if !ok {
			continue
		}
		n.X = b.pos.X - b.halfW
		n.Y = b.pos.Y - b.halfH
	}
}
