package domain

import (
	"context"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a position on the canvas, in screen units.
type Point = r2.Vec

// Kind is the shape of an annotation. It is fixed when the shape is created.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindPolygon   Kind = "polygon"
)

// Valid reports whether k is one of the drawable kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRectangle, KindCircle, KindPolygon:
		return true
	}
	return false
}

// ClassRef is a weak reference to a registry class. The cached name is what
// gets rendered when the class no longer exists.
type ClassRef struct {
	ID   ClassID
	Name string
}

// Shape is a committed annotation region over an image.
//
// Origin is the anchor of the geometry: the corner where a rectangle drag
// started, the center of a circle and the first vertex of a polygon. Width
// and Height are kept as drawn (possibly negative).
type Shape struct {
	ID        string
	Kind      Kind
	Origin    Point
	Width     float64
	Height    float64
	Radius    float64
	Points    []Point
	Class     ClassRef
	Color     string
	Label     string
	CreatedAt time.Time
}

// DisplayLabel is the text rendered next to the shape.
func (s Shape) DisplayLabel() string {
	switch {
	case s.Class.Name == "":
		return s.Label
	case s.Label == "":
		return s.Class.Name
	}
	return s.Class.Name + " " + s.Label
}

// Clone returns a copy that shares no memory with s.
func (s Shape) Clone() Shape {
	if s.Points != nil {
		s.Points = append([]Point(nil), s.Points...)
	}
	return s
}

// CloneShapes deep-copies a shape list.
func CloneShapes(shapes []Shape) []Shape {
	if shapes == nil {
		return nil
	}
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

// AnnotationRepository stores the shapes of persisted images
type AnnotationRepository interface {
	// Replace swaps the full shape list of an image
	Replace(ctx context.Context, imageID int64, shapes []Shape) error

	// ForImage returns the shapes of an image in drawing order
	ForImage(ctx context.Context, imageID int64) ([]Shape, error)

	// CountByClass counts stored shapes per class id
	CountByClass(ctx context.Context) (map[ClassID]int64, error)
}
