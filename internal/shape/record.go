package shape

import (
	"errors"
	"fmt"
	"time"

	"github.com/lewtec/demarcador/internal/domain"
)

// ClassRecord is the class reference carried by an export record.
type ClassRecord struct {
	ID   domain.ClassID `json:"id"`
	Name string         `json:"name"`
}

// Record is the interchange form of a shape. Exactly one geometry group is
// set depending on Type: BBox for rectangles, Center and Radius for circles,
// Points for polygons.
type Record struct {
	ID        string       `json:"id"`
	Type      domain.Kind  `json:"type"`
	Color     string       `json:"color"`
	Label     string       `json:"label,omitempty"`
	Class     ClassRecord  `json:"class"`
	BBox      []float64    `json:"bbox,omitempty"`
	Center    []float64    `json:"center,omitempty"`
	Radius    *float64     `json:"radius,omitempty"`
	Points    [][2]float64 `json:"points,omitempty"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
}

var ErrMalformedRecord = errors.New("malformed annotation record")

// ToRecord converts s to its export form. Rectangles are normalized so that
// the bbox is always [x_min, y_min, x_max, y_max].
func ToRecord(s domain.Shape) Record {
	r := Record{
		ID:    s.ID,
		Type:  s.Kind,
		Color: s.Color,
		Label: s.Label,
		Class: ClassRecord{ID: s.Class.ID, Name: s.Class.Name},
	}
	if !s.CreatedAt.IsZero() {
		at := s.CreatedAt
		r.CreatedAt = &at
	}
	switch s.Kind {
	case domain.KindRectangle:
		b := Bounds(s)
		r.BBox = []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	case domain.KindCircle:
		radius := s.Radius
		r.Center = []float64{s.Origin.X, s.Origin.Y}
		r.Radius = &radius
	case domain.KindPolygon:
		r.Points = make([][2]float64, len(s.Points))
		for i, p := range s.Points {
			r.Points[i] = [2]float64{p.X, p.Y}
		}
	}
	return r
}

// FromRecord rebuilds a shape from its export form. Rectangles come back in
// normalized form, with a non-negative width and height.
func FromRecord(r Record) (domain.Shape, error) {
	if r.ID == "" {
		return domain.Shape{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	s := domain.Shape{
		ID:    r.ID,
		Kind:  r.Type,
		Color: r.Color,
		Label: r.Label,
		Class: domain.ClassRef{ID: r.Class.ID, Name: r.Class.Name},
	}
	if r.CreatedAt != nil {
		s.CreatedAt = *r.CreatedAt
	}
	switch r.Type {
	case domain.KindRectangle:
		if len(r.BBox) != 4 {
			return domain.Shape{}, fmt.Errorf("%w: rectangle %s needs a bbox of 4 numbers", ErrMalformedRecord, r.ID)
		}
		if r.BBox[2] < r.BBox[0] || r.BBox[3] < r.BBox[1] {
			return domain.Shape{}, fmt.Errorf("%w: rectangle %s has an inverted bbox", ErrMalformedRecord, r.ID)
		}
		s.Origin = domain.Point{X: r.BBox[0], Y: r.BBox[1]}
		s.Width = r.BBox[2] - r.BBox[0]
		s.Height = r.BBox[3] - r.BBox[1]
	case domain.KindCircle:
		if len(r.Center) != 2 || r.Radius == nil {
			return domain.Shape{}, fmt.Errorf("%w: circle %s needs a center and a radius", ErrMalformedRecord, r.ID)
		}
		if *r.Radius < 0 {
			return domain.Shape{}, fmt.Errorf("%w: circle %s has a negative radius", ErrMalformedRecord, r.ID)
		}
		s.Origin = domain.Point{X: r.Center[0], Y: r.Center[1]}
		s.Radius = *r.Radius
	case domain.KindPolygon:
		if len(r.Points) == 0 {
			return domain.Shape{}, fmt.Errorf("%w: polygon %s has no points", ErrMalformedRecord, r.ID)
		}
		s.Points = make([]domain.Point, len(r.Points))
		for i, p := range r.Points {
			s.Points[i] = domain.Point{X: p[0], Y: p[1]}
		}
		s.Origin = s.Points[0]
	default:
		return domain.Shape{}, fmt.Errorf("%w: unknown type %q", ErrMalformedRecord, r.Type)
	}
	return s, nil
}
