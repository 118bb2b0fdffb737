package geom

import (
	"math"
	"testing"
)

func TestRectEdges(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 50, Height: 30}

	if r.Left() != 10 {
		t.Errorf("Left() = %v, want 10", r.Left())
	}
	if r.Right() != 60 {
		t.Errorf("Right() = %v, want 60", r.Right())
	}
	if r.Top() != 20 {
		t.Errorf("Top() = %v, want 20", r.Top())
	}
	if r.Bottom() != 50 {
		t.Errorf("Bottom() = %v, want 50", r.Bottom())
	}
	if r.CenterX() != 35 {
		t.Errorf("CenterX() = %v, want 35", r.CenterX())
	}
	if r.CenterY() != 35 {
		t.Errorf("CenterY() = %v, want 35", r.CenterY())
	}
}

func TestRectOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{
			name: "clear overlap",
			a:    Rect{X: 0, Y: 0, Width: 100, Height: 100},
			b:    Rect{X: 50, Y: 50, Width: 100, Height: 100},
			want: true,
		},
		{
			name: "disjoint horizontally",
			a:    Rect{X: 0, Y: 0, Width: 40, Height: 40},
			b:    Rect{X: 100, Y: 0, Width: 40, Height: 40},
			want: false,
		},
		{
			name: "disjoint vertically",
			a:    Rect{X: 0, Y: 0, Width: 40, Height: 40},
			b:    Rect{X: 0, Y: 100, Width: 40, Height: 40},
			want: false,
		},
		{
			name: "touching edges do not overlap",
			a:    Rect{X: 0, Y: 0, Width: 50, Height: 50},
			b:    Rect{X: 50, Y: 0, Width: 50, Height: 50},
			want: false,
		},
		{
			name: "contained rect overlaps",
			a:    Rect{X: 0, Y: 0, Width: 100, Height: 100},
			b:    Rect{X: 25, Y: 25, Width: 10, Height: 10},
			want: true,
		},
		{
			name: "identical rects overlap",
			a:    Rect{X: 5, Y: 5, Width: 20, Height: 20},
			b:    Rect{X: 5, Y: 5, Width: 20, Height: 20},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectOverlapExtents(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Rect
		wantX float64
		wantY float64
	}{
		{
			name:  "partial overlap both axes",
			a:     Rect{X: 0, Y: 0, Width: 100, Height: 100},
			b:     Rect{X: 80, Y: 90, Width: 100, Height: 100},
			wantX: 20,
			wantY: 10,
		},
		{
			name:  "disjoint",
			a:     Rect{X: 0, Y: 0, Width: 10, Height: 10},
			b:     Rect{X: 50, Y: 50, Width: 10, Height: 10},
			wantX: 0,
			wantY: 0,
		},
		{
			name:  "contained uses smaller extent",
			a:     Rect{X: 0, Y: 0, Width: 100, Height: 100},
			b:     Rect{X: 40, Y: 10, Width: 20, Height: 120},
			wantX: 20,
			wantY: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.OverlapX(tt.b); got != tt.wantX {
				t.Errorf("OverlapX() = %v, want %v", got, tt.wantX)
			}
			if got := tt.a.OverlapY(tt.b); got != tt.wantY {
				t.Errorf("OverlapY() = %v, want %v", got, tt.wantY)
			}
		})
	}
}

func TestRectUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{
			name: "disjoint rects",
			a:    Rect{X: 0, Y: 0, Width: 10, Height: 10},
			b:    Rect{X: 50, Y: 60, Width: 10, Height: 10},
			want: Rect{X: 0, Y: 0, Width: 60, Height: 70},
		},
		{
			name: "contained rect returns outer",
			a:    Rect{X: 0, Y: 0, Width: 100, Height: 100},
			b:    Rect{X: 20, Y: 20, Width: 10, Height: 10},
			want: Rect{X: 0, Y: 0, Width: 100, Height: 100},
		},
		{
			name: "negative coordinates",
			a:    Rect{X: -30, Y: -20, Width: 10, Height: 10},
			b:    Rect{X: 10, Y: 10, Width: 10, Height: 10},
			want: Rect{X: -30, Y: -20, Width: 50, Height: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Union(tt.b)
			if got != tt.want {
				t.Errorf("Union() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRectUnionContainsBoth(t *testing.T) {
	a := Rect{X: 3, Y: 7, Width: 15, Height: 4}
	b := Rect{X: -9, Y: 2, Width: 6, Height: 30}
	u := a.Union(b)

	if !u.Contains(a) {
		t.Errorf("union %+v does not contain %+v", u, a)
	}
	if !u.Contains(b) {
		t.Errorf("union %+v does not contain %+v", u, b)
	}
}

func TestRectExpand(t *testing.T) {
	tests := []struct {
		name   string
		r      Rect
		dx, dy float64
		want   Rect
	}{
		{
			name: "symmetric growth",
			r:    Rect{X: 10, Y: 10, Width: 20, Height: 20},
			dx:   5, dy: 3,
			want: Rect{X: 5, Y: 7, Width: 30, Height: 26},
		},
		{
			name: "zero is identity",
			r:    Rect{X: 1, Y: 2, Width: 3, Height: 4},
			dx:   0, dy: 0,
			want: Rect{X: 1, Y: 2, Width: 3, Height: 4},
		},
		{
			name: "shrink clamps at zero width",
			r:    Rect{X: 0, Y: 0, Width: 10, Height: 10},
			dx:   -20, dy: 0,
			want: Rect{X: 5, Y: 0, Width: 0, Height: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.Expand(tt.dx, tt.dy)
			if got != tt.want {
				t.Errorf("Expand(%v, %v) = %+v, want %+v", tt.dx, tt.dy, got, tt.want)
			}
		})
	}
}

func TestRectTranslate(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 5, Height: 5}
	got := r.Translate(-3, 7)
	want := Rect{X: 7, Y: 27, Width: 5, Height: 5}
	if got != want {
		t.Errorf("Translate() = %+v, want %+v", got, want)
	}
}

func TestRectEdgeDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float64
	}{
		{
			name: "overlapping is zero",
			a:    Rect{X: 0, Y: 0, Width: 10, Height: 10},
			b:    Rect{X: 5, Y: 5, Width: 10, Height: 10},
			want: 0,
		},
		{
			name: "horizontal gap",
			a:    Rect{X: 0, Y: 0, Width: 10, Height: 10},
			b:    Rect{X: 25, Y: 0, Width: 10, Height: 10},
			want: 15,
		},
		{
			name: "diagonal gap",
			a:    Rect{X: 0, Y: 0, Width: 10, Height: 10},
			b:    Rect{X: 13, Y: 14, Width: 10, Height: 10},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.EdgeDistance(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EdgeDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}
