package editor

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

// DefaultColor is used for shapes when neither an override nor the class
// gives a color.
const DefaultColor = "#FF5722"

// ClassLookup resolves a class id against the registry.
type ClassLookup func(id domain.ClassID) (domain.Class, bool)

// Options configures an Editor. Zero values select the defaults.
type Options struct {
	Rules        shape.Rules
	NewID        func() string
	Now          func() time.Time
	Logger       *zap.Logger
	DefaultColor string
	Tool         domain.Kind
}

// Editor routes pointer and keyboard input of one canvas to the drawing
// state machine or the selection controller.
type Editor struct {
	session  *Session
	drawer   *Drawer
	selector *Selector
	events   *Bus
	logger   *zap.Logger
}

func New(opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultColor == "" {
		opts.DefaultColor = DefaultColor
	}
	if opts.Rules.MinSize == 0 {
		opts.Rules = shape.DefaultRules
	}
	events := NewBus()
	selector := &Selector{Events: events, Logger: logger}
	s := NewSession(opts.DefaultColor)
	if opts.Tool.Valid() {
		s.tool = opts.Tool
	}
	return &Editor{
		session: s,
		drawer: &Drawer{
			Rules:    opts.Rules,
			NewID:    opts.NewID,
			Now:      opts.Now,
			Selector: selector,
			Events:   events,
			Logger:   logger,
		},
		selector: selector,
		events:   events,
		logger:   logger,
	}
}

// Session exposes the underlying state for read access.
func (e *Editor) Session() *Session { return e.session }

// Subscribe registers l for change events and returns its cancel function.
func (e *Editor) Subscribe(l Listener) func() { return e.events.Subscribe(l) }

// Load replaces the working shapes with those of another image. Selection,
// edit, draft and drag state are dropped; the label counter is kept.
func (e *Editor) Load(shapes []domain.Shape) {
	s := e.session
	s.shapes = domain.CloneShapes(shapes)
	s.selected = ""
	s.edit = nil
	s.draft = nil
	s.drag = nil
	s.state = StateIdle
	e.events.Emit(Event{Type: EventShapesReplaced})
}

func (e *Editor) Shapes() []domain.Shape { return e.session.Shapes() }

// SetEnabled turns pointer input on or off, e.g. while a raster loads.
func (e *Editor) SetEnabled(enabled bool) {
	e.session.disabled = !enabled
	if !enabled {
		e.session.drag = nil
	}
}

func (e *Editor) Drawing() bool { return e.session.Drawing() }

// SetTool changes the tool used for the next draw.
func (e *Editor) SetTool(k domain.Kind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTool, k)
	}
	if e.session.tool != k {
		e.session.tool = k
		e.events.Emit(Event{Type: EventToolChanged})
	}
	return nil
}

// SetClass changes the class given to new shapes.
func (e *Editor) SetClass(c domain.Class) {
	e.session.class = c
	e.events.Emit(Event{Type: EventToolChanged})
}

// SetColor sets the per-shape color override. An empty value goes back to
// the class color.
func (e *Editor) SetColor(color string) {
	e.session.color = color
	e.events.Emit(Event{Type: EventToolChanged})
}

// ApplyClasses refreshes the cached class names of every shape and of the
// active class. Class ids are never changed.
func (e *Editor) ApplyClasses(classes []domain.Class) {
	byID := make(map[domain.ClassID]domain.Class, len(classes))
	for _, c := range classes {
		if c.ID != 0 {
			byID[c.ID] = c
		}
	}
	s := e.session
	for i := range s.shapes {
		c, ok := byID[s.shapes[i].Class.ID]
		if !ok || c.Name == s.shapes[i].Class.Name {
			continue
		}
		s.shapes[i].Class.Name = c.Name
		e.events.Emit(Event{Type: EventShapeUpdated, ShapeID: s.shapes[i].ID})
	}
	if c, ok := byID[s.class.ID]; ok {
		s.class = c
	}
}

// PointerDown handles a press at p. A press on a shape selects it and
// starts a drag gesture; a press on empty canvas either deselects or starts
// drawing.
func (e *Editor) PointerDown(p domain.Point) {
	s := e.session
	if s.disabled || s.state == StateDrawing {
		return
	}
	if i := shape.HitTest(s.shapes, p); i >= 0 {
		hit := s.shapes[i]
		if err := e.selector.Select(s, hit.ID); err != nil {
			e.logger.Warn("select failed", zap.Error(err))
			return
		}
		if shape.Draggable(hit.Kind) {
			s.drag = &dragGesture{shapeID: hit.ID, start: p, last: p}
		}
		return
	}
	e.drawer.PointerDown(s, p)
}

func (e *Editor) PointerMove(p domain.Point) {
	s := e.session
	if s.state == StateDrawing {
		e.drawer.PointerMove(s, p)
		return
	}
	if s.drag != nil {
		s.drag.last = p
	}
}

// PointerUp ends a draw or a drag. A drag moves the shape only now, once.
func (e *Editor) PointerUp() {
	s := e.session
	if s.state == StateDrawing {
		e.drawer.PointerUp(s)
		return
	}
	g := s.drag
	s.drag = nil
	if g == nil || g.last == g.start {
		return
	}
	cur, ok := s.Shape(g.shapeID)
	if !ok {
		return
	}
	origin := domain.Point{X: cur.Origin.X + g.last.X - g.start.X, Y: cur.Origin.Y + g.last.Y - g.start.Y}
	if err := e.selector.DragShape(s, g.shapeID, origin); err != nil {
		e.logger.Warn("drag failed", zap.Error(err))
	}
}

// DoubleClick opens the label of the shape under p for editing.
func (e *Editor) DoubleClick(p domain.Point) {
	s := e.session
	if s.disabled || s.state == StateDrawing {
		return
	}
	if i := shape.HitTest(s.shapes, p); i >= 0 {
		if err := e.selector.StartEdit(s, s.shapes[i].ID); err != nil {
			e.logger.Warn("start edit failed", zap.Error(err))
		}
	}
}

// Key handles a key press. Enter commits the open edit and Escape cancels
// it. Delete removes the selected shape when no edit is open.
func (e *Editor) Key(key string) {
	s := e.session
	switch key {
	case "Enter":
		if s.edit != nil {
			e.selector.CommitEdit(s, s.edit.Text)
		}
	case "Escape":
		e.selector.CancelEdit(s)
	case "Delete", "Backspace":
		if s.edit == nil && s.selected != "" {
			_ = e.selector.Delete(s, s.selected)
		}
	}
}

func (e *Editor) Select(id string) error { return e.selector.Select(e.session, id) }
func (e *Editor) Deselect()              { e.selector.Deselect(e.session) }
func (e *Editor) StartEdit(id string) error {
	return e.selector.StartEdit(e.session, id)
}
func (e *Editor) SetEditText(text string) error { return e.selector.SetEditText(e.session, text) }
func (e *Editor) CommitEdit(label string)       { e.selector.CommitEdit(e.session, label) }
func (e *Editor) CancelEdit()                   { e.selector.CancelEdit(e.session) }
func (e *Editor) DragShape(id string, origin domain.Point) error {
	return e.selector.DragShape(e.session, id, origin)
}
func (e *Editor) Delete(id string) error { return e.selector.Delete(e.session, id) }
func (e *Editor) ChangeClass(id string, c domain.Class) error {
	return e.selector.ChangeClass(e.session, id, c)
}

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrUnknownClass = errors.New("unknown class")
	ErrUnknownInput = errors.New("unknown input")
)

// Input is one serialized UI event.
type Input struct {
	Type    string         `json:"type"`
	X       float64        `json:"x,omitempty"`
	Y       float64        `json:"y,omitempty"`
	ShapeID string         `json:"shape_id,omitempty"`
	Tool    domain.Kind    `json:"tool,omitempty"`
	ClassID domain.ClassID `json:"class_id,omitempty"`
	Color   string         `json:"color,omitempty"`
	Text    string         `json:"text,omitempty"`
	Key     string         `json:"key,omitempty"`
}

func (in Input) point() domain.Point { return domain.Point{X: in.X, Y: in.Y} }

// Apply dispatches in. Class ids are resolved through lookup.
func (e *Editor) Apply(in Input, lookup ClassLookup) error {
	switch in.Type {
	case "tool":
		return e.SetTool(in.Tool)
	case "class", "change_class":
		c, ok := domain.Class{}, in.ClassID == 0
		if !ok && lookup != nil {
			c, ok = lookup(in.ClassID)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownClass, in.ClassID)
		}
		if in.Type == "class" {
			e.SetClass(c)
			return nil
		}
		return e.ChangeClass(in.ShapeID, c)
	case "color":
		e.SetColor(in.Color)
	case "pointerdown":
		e.PointerDown(in.point())
	case "pointermove":
		e.PointerMove(in.point())
	case "pointerup":
		e.PointerUp()
	case "dblclick":
		e.DoubleClick(in.point())
	case "select":
		return e.Select(in.ShapeID)
	case "deselect":
		e.Deselect()
	case "edit":
		return e.StartEdit(in.ShapeID)
	case "text":
		return e.SetEditText(in.Text)
	case "key":
		e.Key(in.Key)
	case "delete":
		return e.Delete(in.ShapeID)
	case "drag":
		return e.DragShape(in.ShapeID, in.point())
	default:
		return fmt.Errorf("%w: %q", ErrUnknownInput, in.Type)
	}
	return nil
}
