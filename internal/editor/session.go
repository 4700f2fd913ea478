// Package editor implements the interactive part of region annotation: a
// drawing state machine that turns pointer gestures into shapes and a
// selection controller for moving, relabelling and deleting them.
//
// All of the mutable state lives in a Session value that is passed
// explicitly to the Drawer and the Selector, so independent canvases never
// share anything. None of the types here are safe for concurrent use; the
// caller serializes access the same way a UI event loop would.
package editor

import (
	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

// State is the drawing state of a session.
type State string

const (
	StateIdle    State = "idle"
	StateDrawing State = "drawing"
)

// EditSession is an open inline label edit.
type EditSession struct {
	ShapeID string `json:"shape_id"`
	Text    string `json:"text"`  // current value of the input
	Prior   string `json:"prior"` // label before the edit started
}

type dragGesture struct {
	shapeID string
	start   domain.Point
	last    domain.Point
}

// Session is the state of one canvas: the tool, the shapes of the image on
// display, the selection, the open edit and the draft being drawn.
type Session struct {
	tool     domain.Kind
	class    domain.Class
	color    string
	fallback string

	shapes   []domain.Shape
	selected string
	edit     *EditSession
	state    State
	draft    *shape.Draft
	drag     *dragGesture
	disabled bool

	counter int
}

// NewSession returns an idle session with the rectangle tool selected.
func NewSession(defaultColor string) *Session {
	return &Session{
		tool:     domain.KindRectangle,
		fallback: defaultColor,
		state:    StateIdle,
	}
}

func (s *Session) Tool() domain.Kind         { return s.tool }
func (s *Session) ActiveClass() domain.Class { return s.class }
func (s *Session) State() State              { return s.state }
func (s *Session) Selected() string          { return s.selected }
func (s *Session) Enabled() bool             { return !s.disabled }
func (s *Session) Drawing() bool             { return s.state == StateDrawing }

// Edit returns a copy of the open edit, or nil.
func (s *Session) Edit() *EditSession {
	if s.edit == nil {
		return nil
	}
	e := *s.edit
	return &e
}

// Draft returns a copy of the draft being drawn, or nil.
func (s *Session) Draft() *shape.Draft {
	if s.draft == nil {
		return nil
	}
	d := *s.draft
	d.Points = append([]domain.Point(nil), s.draft.Points...)
	return &d
}

// Shapes returns a copy of the working shape list.
func (s *Session) Shapes() []domain.Shape {
	return domain.CloneShapes(s.shapes)
}

// Shape returns a copy of the shape with the given id.
func (s *Session) Shape(id string) (domain.Shape, bool) {
	if i := s.index(id); i >= 0 {
		return s.shapes[i].Clone(), true
	}
	return domain.Shape{}, false
}

func (s *Session) index(id string) int {
	for i := range s.shapes {
		if s.shapes[i].ID == id {
			return i
		}
	}
	return -1
}

// drawColor is the color given to a new shape.
func (s *Session) drawColor() string {
	switch {
	case s.color != "":
		return s.color
	case s.class.Color != "":
		return s.class.Color
	}
	return s.fallback
}
