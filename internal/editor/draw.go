package editor

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

// Drawer is the drawing state machine. It moves a session between Idle and
// Drawing and commits finished drafts.
type Drawer struct {
	Rules    shape.Rules
	NewID    func() string
	Now      func() time.Time
	Selector *Selector
	Events   *Bus
	Logger   *zap.Logger
}

func (d *Drawer) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d *Drawer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Drawer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// PointerDown starts a draft at p with the current tool and class. While a
// shape is selected or edited the press goes to the selector instead, which
// deselects and commits the open edit. It reports whether drawing started.
func (d *Drawer) PointerDown(s *Session, p domain.Point) bool {
	if s.disabled || s.state == StateDrawing {
		return false
	}
	if s.selected != "" || s.edit != nil {
		d.Selector.Deselect(s)
		return false
	}
	draft := shape.NewDraft(s.tool, p, s.class.Ref(), s.drawColor())
	s.draft = &draft
	s.state = StateDrawing
	d.Events.Emit(Event{Type: EventDraftChanged})
	return true
}

// PointerMove updates the draft geometry.
func (d *Drawer) PointerMove(s *Session, p domain.Point) {
	if s.state != StateDrawing || s.draft == nil {
		return
	}
	next := shape.Update(*s.draft, p)
	s.draft = &next
	d.Events.Emit(Event{Type: EventDraftChanged})
}

// PointerUp ends the gesture. A draft that passes the rules is appended,
// selected and opened for label editing, in that order. A draft that fails
// them is dropped without a trace.
func (d *Drawer) PointerUp(s *Session) (domain.Shape, bool) {
	if s.state != StateDrawing || s.draft == nil {
		return domain.Shape{}, false
	}
	draft := *s.draft
	s.draft = nil
	s.state = StateIdle
	d.Events.Emit(Event{Type: EventDraftChanged})

	committed, ok := d.Rules.Finalize(draft, d.newID(), d.now())
	if !ok {
		d.logger().Debug("draft discarded", zap.String("kind", string(draft.Kind)))
		return domain.Shape{}, false
	}
	committed.Label = s.nextLabel()
	s.shapes = append(s.shapes, committed)
	d.Events.Emit(Event{Type: EventShapeAdded, ShapeID: committed.ID})
	d.logger().Debug("shape added",
		zap.String("id", committed.ID),
		zap.String("kind", string(committed.Kind)),
		zap.String("label", committed.Label))

	if err := d.Selector.StartEdit(s, committed.ID); err != nil {
		d.logger().Warn("could not open label edit", zap.Error(err))
	}
	return committed.Clone(), true
}
