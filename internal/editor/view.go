package editor

import (
	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

// ShapeView is a shape as the canvas renders it.
type ShapeView struct {
	shape.Record
	Display  string     `json:"display"`
	Anchor   [2]float64 `json:"anchor"`
	Selected bool       `json:"selected"`
	Editing  bool       `json:"editing"`
	Dangling bool       `json:"dangling"`
}

// ClassCount is the number of shapes of one class.
type ClassCount struct {
	Class shape.ClassRecord `json:"class"`
	Count int               `json:"count"`
}

// View is a snapshot of the editor for rendering.
type View struct {
	Tool     domain.Kind    `json:"tool"`
	Class    domain.ClassID `json:"class_id"`
	Color    string         `json:"color"`
	State    State          `json:"state"`
	Enabled  bool           `json:"enabled"`
	Selected string         `json:"selected,omitempty"`
	Edit     *EditSession   `json:"edit,omitempty"`
	Draft    *shape.Record  `json:"draft,omitempty"`
	Shapes   []ShapeView    `json:"shapes"`
	Counts   []ClassCount   `json:"counts"`
}

// View renders the current state. A shape whose class id is set but
// unknown to lookup is flagged as dangling.
func (e *Editor) View(lookup ClassLookup) View {
	s := e.session
	v := View{
		Tool:     s.tool,
		Class:    s.class.ID,
		Color:    s.drawColor(),
		State:    s.state,
		Enabled:  !s.disabled,
		Selected: s.selected,
		Edit:     s.Edit(),
		Shapes:   make([]ShapeView, 0, len(s.shapes)),
		Counts:   []ClassCount{},
	}
	if d := s.draft; d != nil {
		r := shape.ToRecord(domain.Shape{
			Kind:   d.Kind,
			Origin: d.Origin,
			Width:  d.Width,
			Height: d.Height,
			Radius: d.Radius,
			Points: d.Points,
			Class:  d.Class,
			Color:  d.Color,
		})
		v.Draft = &r
	}

	counts := map[domain.ClassID]int{}
	for _, sh := range s.shapes {
		anchor := shape.LabelAnchor(sh)
		dangling := false
		if sh.Class.ID != 0 && lookup != nil {
			_, found := lookup(sh.Class.ID)
			dangling = !found
		}
		v.Shapes = append(v.Shapes, ShapeView{
			Record:   shape.ToRecord(sh),
			Display:  sh.DisplayLabel(),
			Anchor:   [2]float64{anchor.X, anchor.Y},
			Selected: sh.ID == s.selected,
			Editing:  s.edit != nil && s.edit.ShapeID == sh.ID,
			Dangling: dangling,
		})

		i, seen := counts[sh.Class.ID]
		if !seen {
			counts[sh.Class.ID] = len(v.Counts)
			v.Counts = append(v.Counts, ClassCount{Class: shape.ClassRecord{ID: sh.Class.ID, Name: sh.Class.Name}})
			i = len(v.Counts) - 1
		}
		v.Counts[i].Count++
	}
	return v
}
