package shape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/demarcador/internal/domain"
)

var scratch = domain.ClassRef{ID: 1, Name: "Scratch"}

func drag(kind domain.Kind, from domain.Point, to ...domain.Point) Draft {
	d := NewDraft(kind, from, scratch, "#ff8800")
	for _, p := range to {
		d = Update(d, p)
	}
	return d
}

func TestFinalize_Rectangle(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   domain.Point
		ok   bool
	}{
		{"too narrow", domain.Point{X: 104, Y: 160}, false},
		{"too short", domain.Point{X: 180, Y: 104.9}, false},
		{"both below", domain.Point{X: 101, Y: 101}, false},
		{"exactly minimum", domain.Point{X: 105, Y: 105}, true},
		{"dragged up and left", domain.Point{X: 20, Y: 30}, true},
		{"negative but too small", domain.Point{X: 96, Y: 40}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := drag(domain.KindRectangle, domain.Point{X: 100, Y: 100}, tt.to)
			s, ok := Finalize(d, "a", at)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, "a", s.ID)
				assert.Equal(t, at, s.CreatedAt)
				assert.Nil(t, s.Points)
			}
		})
	}
}

func TestFinalize_Circle(t *testing.T) {
	center := domain.Point{X: 200, Y: 200}

	_, ok := Finalize(drag(domain.KindCircle, center, domain.Point{X: 203, Y: 203}), "c", time.Now())
	assert.False(t, ok, "radius ~4.24 must be discarded")

	s, ok := Finalize(drag(domain.KindCircle, center, domain.Point{X: 210, Y: 200}, domain.Point{X: 230, Y: 200}), "c", time.Now())
	require.True(t, ok)
	assert.InDelta(t, 30, s.Radius, 1e-9)
	assert.Equal(t, center, s.Origin)
}

func TestFinalize_Polygon(t *testing.T) {
	t.Run("every move adds a vertex", func(t *testing.T) {
		d := drag(domain.KindPolygon, domain.Point{X: 0, Y: 0},
			domain.Point{X: 10, Y: 0}, domain.Point{X: 10, Y: 10}, domain.Point{X: 0, Y: 10})
		assert.Len(t, d.Points, 4)
		s, ok := Finalize(d, "p", time.Now())
		require.True(t, ok)
		assert.Equal(t, domain.Point{X: 0, Y: 0}, s.Origin)
	})

	t.Run("fewer than three points is a draft", func(t *testing.T) {
		_, ok := Finalize(drag(domain.KindPolygon, domain.Point{X: 0, Y: 0}, domain.Point{X: 10, Y: 0}), "p", time.Now())
		assert.False(t, ok)
	})

	t.Run("repeated points are not distinct", func(t *testing.T) {
		p := domain.Point{X: 3, Y: 3}
		_, ok := Finalize(drag(domain.KindPolygon, p, p, p, domain.Point{X: 9, Y: 9}), "p", time.Now())
		assert.False(t, ok)
	})
}

func TestUpdate_DoesNotModifyInput(t *testing.T) {
	d := NewDraft(domain.KindPolygon, domain.Point{X: 1, Y: 1}, scratch, "")
	next := Update(d, domain.Point{X: 2, Y: 2})
	assert.Len(t, d.Points, 1)
	assert.Len(t, next.Points, 2)
}

func TestRules_CustomMinSize(t *testing.T) {
	rules := Rules{MinSize: 20}
	d := drag(domain.KindRectangle, domain.Point{}, domain.Point{X: 15, Y: 30})
	_, ok := rules.Finalize(d, "r", time.Now())
	assert.False(t, ok)
	_, ok = Finalize(d, "r", time.Now())
	assert.True(t, ok)
}
