// Package geom provides the axis-aligned rectangle primitives used by the
// layout engine. All coordinates are in user units (typically pixels), with
// the origin at the top-left and y growing downward, matching the canvas
// coordinate system of the editor.
package geom

import "math"

// Point is a position in canvas coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Left returns the x coordinate of the left edge.
func (r Rect) Left() float64 { return r.X }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Top returns the y coordinate of the top edge.
func (r Rect) Top() float64 { return r.Y }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// CenterX returns the horizontal center point of the rectangle.
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }

// CenterY returns the vertical center point of the rectangle.
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// Area returns the rectangle's area.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Overlaps reports whether r and o intersect with positive area.
// Rectangles that merely touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.Left() < o.Right() && o.Left() < r.Right() &&
		r.Top() < o.Bottom() && o.Top() < r.Bottom()
}

// Contains reports whether o lies entirely within r (edges inclusive).
func (r Rect) Contains(o Rect) bool {
	return o.Left() >= r.Left() && o.Right() <= r.Right() &&
		o.Top() >= r.Top() && o.Bottom() <= r.Bottom()
}

// OverlapX returns the horizontal penetration depth between r and o,
// or 0 if they are disjoint on the x axis.
func (r Rect) OverlapX(o Rect) float64 {
	return overlap1D(r.Left(), r.Right(), o.Left(), o.Right())
}

// OverlapY returns the vertical penetration depth between r and o,
// or 0 if they are disjoint on the y axis.
func (r Rect) OverlapY(o Rect) float64 {
	return overlap1D(r.Top(), r.Bottom(), o.Top(), o.Bottom())
}

// overlap1D computes the length of the intersection of [aMin,aMax] and
// [bMin,bMax], clamped at zero.
func overlap1D(aMin, aMax, bMin, bMax float64) float64 {
	return math.Max(0, math.Min(aMax, bMax)-math.Max(aMin, bMin))
}

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	left := math.Min(r.Left(), o.Left())
	top := math.Min(r.Top(), o.Top())
	right := math.Max(r.Right(), o.Right())
	bottom := math.Max(r.Bottom(), o.Bottom())
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// Expand returns r grown symmetrically by dx on the left/right edges and
// dy on the top/bottom edges. Negative values shrink; the result is never
// inverted (width/height clamp at zero).
func (r Rect) Expand(dx, dy float64) Rect {
	out := Rect{
		X:      r.X - dx,
		Y:      r.Y - dy,
		Width:  r.Width + 2*dx,
		Height: r.Height + 2*dy,
	}
	if out.Width < 0 {
		out.X = r.CenterX()
		out.Width = 0
	}
	if out.Height < 0 {
		out.Y = r.CenterY()
		out.Height = 0
	}
	return out
}

// Translate returns r shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// EdgeDistance returns the shortest edge-to-edge distance between r and o,
// or 0 if they overlap or touch. Measured per axis: the reported value is
// the Euclidean gap between the closest points of the two rectangles.
func (r Rect) EdgeDistance(o Rect) float64 {
	dx := math.Max(0, math.Max(o.Left()-r.Right(), r.Left()-o.Right()))
	dy := math.Max(0, math.Max(o.Top()-r.Bottom(), r.Top()-o.Bottom()))
	return math.Hypot(dx, dy)
}
