package geometry

import "fmt"

// Point is a position in pixels within some coordinate space.
type Point struct {
	X float64
	Y float64
}

// Add returns the component-wise sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the component-wise difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Rect is an axis-aligned bounding box identified by its top-left origin.
type Rect struct {
	Origin Point
	Width  float64
	Height float64
}

// Contains reports whether the point lies inside the rectangle. Overlays are
// allowed to leave the parent surface, so callers use this for diagnostics
// only, never to clamp.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Origin.X && p.X < r.Origin.X+r.Width &&
		p.Y >= r.Origin.Y && p.Y < r.Origin.Y+r.Height
}

// Placement is the persistent transform of an overlay inside its parent
// surface: a parent-relative position, a rotation in degrees, and a uniform
// scale factor. Viewport coordinates are never stored.
type Placement struct {
	Position Point
	Rotation float64
	Scale    float64
}

// Style is the rendered form of a Placement: pixel offsets relative to the
// nearest positioned ancestor plus a transform expression.
type Style struct {
	LeftPx    float64
	TopPx     float64
	Transform string
}

// Style converts the placement into renderable offsets. The conversion is
// pure; it reads nothing outside the placement itself.
func (pl Placement) Style() Style {
	scale := pl.Scale
	if scale == 0 {
		scale = 1
	}
	return Style{
		LeftPx:    pl.Position.X,
		TopPx:     pl.Position.Y,
		Transform: fmt.Sprintf("rotate(%gdeg) scale(%g)", pl.Rotation, scale),
	}
}

// Translate returns a copy of the placement moved to the given position.
// Rotation and scale are untouched; dragging never changes them.
func (pl Placement) Translate(position Point) Placement {
	pl.Position = position
	return pl
}
