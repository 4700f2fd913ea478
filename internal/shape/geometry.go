package shape

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/lewtec/demarcador/internal/domain"
)

// LabelOffset is the distance between a shape and its label text.
const LabelOffset = 15

// Bounds returns the normalized bounding box of s.
func Bounds(s domain.Shape) r2.Box {
	switch s.Kind {
	case domain.KindRectangle:
		return normalized(s.Origin, r2.Add(s.Origin, r2.Vec{X: s.Width, Y: s.Height}))
	case domain.KindCircle:
		r := r2.Vec{X: s.Radius, Y: s.Radius}
		return r2.Box{Min: r2.Sub(s.Origin, r), Max: r2.Add(s.Origin, r)}
	case domain.KindPolygon:
		if len(s.Points) == 0 {
			return r2.Box{Min: s.Origin, Max: s.Origin}
		}
		b := r2.Box{Min: s.Points[0], Max: s.Points[0]}
		for _, p := range s.Points[1:] {
			b.Min.X = math.Min(b.Min.X, p.X)
			b.Min.Y = math.Min(b.Min.Y, p.Y)
			b.Max.X = math.Max(b.Max.X, p.X)
			b.Max.Y = math.Max(b.Max.Y, p.Y)
		}
		return b
	}
	return r2.Box{Min: s.Origin, Max: s.Origin}
}

func normalized(a, b r2.Vec) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: r2.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// Contains reports whether p falls inside s.
func Contains(s domain.Shape, p domain.Point) bool {
	switch s.Kind {
	case domain.KindRectangle:
		return Bounds(s).Contains(p)
	case domain.KindCircle:
		return r2.Norm(r2.Sub(p, s.Origin)) <= s.Radius
	case domain.KindPolygon:
		return insidePolygon(s.Points, p)
	}
	return false
}

// even-odd ray casting
func insidePolygon(points []domain.Point, p domain.Point) bool {
	if len(points) < 3 {
		return false
	}
	inside := false
	j := len(points) - 1
	for i := range points {
		a, b := points[i], points[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// HitTest returns the index of the top-most shape under p, or -1. Shapes
// drawn later are on top.
func HitTest(shapes []domain.Shape, p domain.Point) int {
	for i := len(shapes) - 1; i >= 0; i-- {
		if Contains(shapes[i], p) {
			return i
		}
	}
	return -1
}

// LabelAnchor is where the label text of s is drawn.
//
// Polygons use their first vertex rather than the centroid.
func LabelAnchor(s domain.Shape) domain.Point {
	switch s.Kind {
	case domain.KindRectangle:
		b := Bounds(s)
		return domain.Point{X: (b.Min.X + b.Max.X) / 2, Y: b.Min.Y - LabelOffset}
	case domain.KindCircle:
		return domain.Point{X: s.Origin.X, Y: s.Origin.Y - s.Radius - LabelOffset}
	}
	return domain.Point{X: s.Origin.X, Y: s.Origin.Y - LabelOffset}
}

// Draggable reports whether shapes of kind k can be moved as a whole.
func Draggable(k domain.Kind) bool {
	return k == domain.KindRectangle || k == domain.KindCircle
}

// MoveTo places the origin of a rectangle or circle at origin. It returns
// false for polygons, which cannot be moved.
func MoveTo(s domain.Shape, origin domain.Point) (domain.Shape, bool) {
	if !Draggable(s.Kind) {
		return s, false
	}
	s.Origin = origin
	return s, true
}
