package editor

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

var (
	ErrUnknownShape = errors.New("unknown shape")
	ErrNotDraggable = errors.New("shape cannot be dragged")
	ErrNoEdit       = errors.New("no label edit in progress")
)

// Selector is the selection and edit controller.
type Selector struct {
	Events *Bus
	Logger *zap.Logger
}

func (c *Selector) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Select makes id the selected shape. An edit open on another shape is
// committed first.
func (c *Selector) Select(s *Session, id string) error {
	if s.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownShape, id)
	}
	if s.edit != nil && s.edit.ShapeID != id {
		c.CommitEdit(s, s.edit.Text)
	}
	if s.selected == id {
		return nil
	}
	s.selected = id
	c.Events.Emit(Event{Type: EventSelectionChanged, ShapeID: id})
	return nil
}

// Deselect clears the selection, committing an open edit. Calling it with
// nothing selected does nothing.
func (c *Selector) Deselect(s *Session) {
	if s.edit != nil {
		c.CommitEdit(s, s.edit.Text)
	}
	if s.selected == "" {
		return
	}
	s.selected = ""
	c.Events.Emit(Event{Type: EventSelectionChanged})
}

// StartEdit selects id and opens its label for editing.
func (c *Selector) StartEdit(s *Session, id string) error {
	if err := c.Select(s, id); err != nil {
		return err
	}
	if s.edit != nil && s.edit.ShapeID == id {
		return nil
	}
	label := s.shapes[s.index(id)].Label
	s.edit = &EditSession{ShapeID: id, Text: label, Prior: label}
	c.Events.Emit(Event{Type: EventEditStarted, ShapeID: id})
	return nil
}

// SetEditText changes the value of the open edit without committing it.
func (c *Selector) SetEditText(s *Session, text string) error {
	if s.edit == nil {
		return ErrNoEdit
	}
	s.edit.Text = text
	return nil
}

// CommitEdit writes newLabel to the edited shape unless it is blank, then
// closes the edit.
func (c *Selector) CommitEdit(s *Session, newLabel string) {
	if s.edit == nil {
		return
	}
	id := s.edit.ShapeID
	s.edit = nil
	if i := s.index(id); i >= 0 && strings.TrimSpace(newLabel) != "" && s.shapes[i].Label != newLabel {
		s.shapes[i].Label = newLabel
		c.Events.Emit(Event{Type: EventShapeUpdated, ShapeID: id})
	}
	c.Events.Emit(Event{Type: EventEditClosed, ShapeID: id})
}

// CancelEdit closes the edit and keeps the label it started from.
func (c *Selector) CancelEdit(s *Session) {
	if s.edit == nil {
		return
	}
	id, prior := s.edit.ShapeID, s.edit.Prior
	s.edit = nil
	if i := s.index(id); i >= 0 {
		s.shapes[i].Label = prior
	}
	c.Events.Emit(Event{Type: EventEditClosed, ShapeID: id})
}

// DragShape moves a rectangle or circle so that its origin is at origin.
// It is meant to be called once when the drag ends.
func (c *Selector) DragShape(s *Session, id string, origin domain.Point) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownShape, id)
	}
	moved, ok := shape.MoveTo(s.shapes[i], origin)
	if !ok {
		return fmt.Errorf("%w: %s is a %s", ErrNotDraggable, id, s.shapes[i].Kind)
	}
	s.shapes[i] = moved
	c.Events.Emit(Event{Type: EventShapeUpdated, ShapeID: id})
	return nil
}

// ChangeClass points a shape at another class.
func (c *Selector) ChangeClass(s *Session, id string, class domain.Class) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownShape, id)
	}
	s.shapes[i].Class = class.Ref()
	if class.Color != "" && s.color == "" {
		s.shapes[i].Color = class.Color
	}
	c.Events.Emit(Event{Type: EventShapeUpdated, ShapeID: id})
	return nil
}

// Delete removes a shape, clearing the selection and the edit when they
// were on it.
func (c *Selector) Delete(s *Session, id string) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownShape, id)
	}
	s.shapes = append(s.shapes[:i], s.shapes[i+1:]...)
	if s.edit != nil && s.edit.ShapeID == id {
		s.edit = nil
		c.Events.Emit(Event{Type: EventEditClosed, ShapeID: id})
	}
	if s.drag != nil && s.drag.shapeID == id {
		s.drag = nil
	}
	c.Events.Emit(Event{Type: EventShapeRemoved, ShapeID: id})
	if s.selected == id {
		s.selected = ""
		c.Events.Emit(Event{Type: EventSelectionChanged})
	}
	c.logger().Debug("shape deleted", zap.String("id", id))
	return nil
}
