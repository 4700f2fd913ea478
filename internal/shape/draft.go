// Package shape holds the geometry of annotation regions: drafting a shape
// from pointer positions, the minimum-size rules a committed shape must
// satisfy, hit-testing, label placement and the export record form.
package shape

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/lewtec/demarcador/internal/domain"
)

// DefaultMinSize is the smallest rectangle side or circle radius, in screen
// units, that is kept when a draw gesture ends.
const DefaultMinSize = 5

// Draft is a shape under construction during a draw gesture.
type Draft struct {
	Kind   domain.Kind
	Origin domain.Point
	Width  float64
	Height float64
	Radius float64
	Points []domain.Point
	Class  domain.ClassRef
	Color  string
}

// NewDraft starts a shape of the given kind at the pointer-down position.
func NewDraft(kind domain.Kind, start domain.Point, class domain.ClassRef, color string) Draft {
	d := Draft{
		Kind:   kind,
		Origin: start,
		Class:  class,
		Color:  color,
	}
	if kind == domain.KindPolygon {
		d.Points = []domain.Point{start}
	}
	return d
}

// Update recomputes the draft geometry for the current pointer position.
// Every call on a polygon draft appends a vertex. The input draft is not
// modified.
func Update(d Draft, current domain.Point) Draft {
	switch d.Kind {
	case domain.KindRectangle:
		d.Width = current.X - d.Origin.X
		d.Height = current.Y - d.Origin.Y
	case domain.KindCircle:
		d.Radius = r2.Norm(r2.Sub(current, d.Origin))
	case domain.KindPolygon:
		points := make([]domain.Point, len(d.Points), len(d.Points)+1)
		copy(points, d.Points)
		d.Points = append(points, current)
	}
	return d
}

// Rules are the constraints a committed shape must satisfy.
type Rules struct {
	MinSize float64
}

// DefaultRules uses DefaultMinSize.
var DefaultRules = Rules{MinSize: DefaultMinSize}

func (r Rules) minSize() float64 {
	if r.MinSize <= 0 {
		return DefaultMinSize
	}
	return r.MinSize
}

// Check returns an error describing why s cannot be committed.
func (r Rules) Check(s domain.Shape) error {
	min := r.minSize()
	switch s.Kind {
	case domain.KindRectangle:
		if math.Abs(s.Width) < min || math.Abs(s.Height) < min {
			return fmt.Errorf("rectangle %gx%g is smaller than %g", math.Abs(s.Width), math.Abs(s.Height), min)
		}
	case domain.KindCircle:
		if s.Radius < min {
			return fmt.Errorf("circle radius %g is smaller than %g", s.Radius, min)
		}
	case domain.KindPolygon:
		if n := distinctPoints(s.Points); n < 3 {
			return fmt.Errorf("polygon has %d distinct points, needs 3", n)
		}
	default:
		return fmt.Errorf("unknown shape kind %q", s.Kind)
	}
	return nil
}

// Finalize promotes the draft to a committed shape. It returns false when
// the draft fails the minimum-size rules, in which case the draft is to be
// dropped silently.
func (r Rules) Finalize(d Draft, id string, at time.Time) (domain.Shape, bool) {
	s := domain.Shape{
		ID:        id,
		Kind:      d.Kind,
		Origin:    d.Origin,
		Width:     d.Width,
		Height:    d.Height,
		Radius:    d.Radius,
		Points:    append([]domain.Point(nil), d.Points...),
		Class:     d.Class,
		Color:     d.Color,
		CreatedAt: at,
	}
	if d.Kind != domain.KindPolygon {
		s.Points = nil
	}
	if r.Check(s) != nil {
		return domain.Shape{}, false
	}
	return s, true
}

// Finalize applies DefaultRules.
func Finalize(d Draft, id string, at time.Time) (domain.Shape, bool) {
	return DefaultRules.Finalize(d, id, at)
}

func distinctPoints(points []domain.Point) int {
	seen := make(map[domain.Point]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}
