package layout

import "math"

// Shape is an approximate bounding envelope used for overlap testing.
// Rotated icons use a Disc (rotation invariant); unrotated grid cells
// use an axis-aligned Rect.
type Shape interface {
	// Inflate grows the shape outward by d on every side.
	Inflate(d float64) Shape
	// Within reports whether the shape lies fully inside the canvas.
	Within(cv Canvas) bool
	// center and radius give a conservative disc cover, used for
	// clearance heuristics.
	center() (x, y float64)
	radius() float64
}

// Disc is a circle centered at (X, Y).
type Disc struct {
	X, Y, R float64
}

func (d Disc) Inflate(m float64) Shape { return Disc{d.X, d.Y, d.R + m} }

func (d Disc) Within(cv Canvas) bool {
	return d.X-d.R >= 0 && d.Y-d.R >= 0 && d.X+d.R <= cv.Width && d.Y+d.R <= cv.Height
}

func (d Disc) center() (float64, float64) { return d.X, d.Y }
func (d Disc) radius() float64            { return d.R }

// Rect is an axis-aligned rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) Inflate(m float64) Shape {
	return Rect{r.MinX - m, r.MinY - m, r.MaxX + m, r.MaxY + m}
}

func (r Rect) Within(cv Canvas) bool {
	return r.MinX >= 0 && r.MinY >= 0 && r.MaxX <= cv.Width && r.MaxY <= cv.Height
}

func (r Rect) center() (float64, float64) {
	return (r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2
}

func (r Rect) radius() float64 {
	return math.Hypot(r.MaxX-r.MinX, r.MaxY-r.MinY) / 2
}

// Intersects reports whether two shapes overlap. Shapes that merely
// touch do not intersect.
func Intersects(a, b Shape) bool {
	switch s := a.(type) {
	case Disc:
		switch t := b.(type) {
		case Disc:
			return discDisc(s, t)
		case Rect:
			return discRect(s, t)
		}
	case Rect:
		switch t := b.(type) {
		case Disc:
			return discRect(t, s)
		case Rect:
			return rectRect(s, t)
		}
	}
	// Unknown shape pair: fall back to the conservative disc covers.
	ax, ay := a.center()
	bx, by := b.center()
	return math.Hypot(ax-bx, ay-by) < a.radius()+b.radius()
}

func discDisc(a, b Disc) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	rr := a.R + b.R
	return dx*dx+dy*dy < rr*rr
}

func rectRect(a, b Rect) bool {
	return a.MinX < b.MaxX && b.MinX < a.MaxX && a.MinY < b.MaxY && b.MinY < a.MaxY
}

func discRect(d Disc, r Rect) bool {
	// Closest point of the rectangle to the disc center.
	cx := math.Max(r.MinX, math.Min(d.X, r.MaxX))
	cy := math.Max(r.MinY, math.Min(d.Y, r.MaxY))
	dx, dy := d.X-cx, d.Y-cy
	return dx*dx+dy*dy < d.R*d.R
}

// shapeFor builds the bounding shape of a w×h icon centered at (x, y).
// Any rotation forces the rotation-invariant disc cover.
func shapeFor(x, y, w, h, rotation float64) Shape {
	if rotation == 0 {
		return Rect{x - w/2, y - h/2, x + w/2, y + h/2}
	}
	return Disc{x, y, math.Hypot(w, h) / 2}
}
