package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lewtec/demarcador/internal/domain"
)

func TestLabelAnchor(t *testing.T) {
	tests := []struct {
		name  string
		shape domain.Shape
		want  domain.Point
	}{
		{
			name:  "rectangle top center",
			shape: domain.Shape{Kind: domain.KindRectangle, Origin: domain.Point{X: 100, Y: 100}, Width: 80, Height: 60},
			want:  domain.Point{X: 140, Y: 85},
		},
		{
			name:  "rectangle drawn upwards",
			shape: domain.Shape{Kind: domain.KindRectangle, Origin: domain.Point{X: 100, Y: 100}, Width: -80, Height: -60},
			want:  domain.Point{X: 60, Y: 25},
		},
		{
			name:  "circle top",
			shape: domain.Shape{Kind: domain.KindCircle, Origin: domain.Point{X: 200, Y: 200}, Radius: 30},
			want:  domain.Point{X: 200, Y: 155},
		},
		{
			name: "polygon origin",
			shape: domain.Shape{Kind: domain.KindPolygon, Origin: domain.Point{X: 5, Y: 50},
				Points: []domain.Point{{X: 5, Y: 50}, {X: 50, Y: 90}, {X: 0, Y: 90}}},
			want: domain.Point{X: 5, Y: 35},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelAnchor(tt.shape))
		})
	}
}

func TestContains(t *testing.T) {
	rect := domain.Shape{Kind: domain.KindRectangle, Origin: domain.Point{X: 50, Y: 50}, Width: -40, Height: 20}
	assert.True(t, Contains(rect, domain.Point{X: 20, Y: 60}))
	assert.False(t, Contains(rect, domain.Point{X: 60, Y: 60}))

	circle := domain.Shape{Kind: domain.KindCircle, Origin: domain.Point{X: 0, Y: 0}, Radius: 10}
	assert.True(t, Contains(circle, domain.Point{X: 6, Y: 8}))
	assert.False(t, Contains(circle, domain.Point{X: 8, Y: 8}))

	triangle := domain.Shape{Kind: domain.KindPolygon, Points: []domain.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}}
	assert.True(t, Contains(triangle, domain.Point{X: 2, Y: 2}))
	assert.False(t, Contains(triangle, domain.Point{X: 8, Y: 8}))
}

func TestHitTest_TopMost(t *testing.T) {
	shapes := []domain.Shape{
		{ID: "below", Kind: domain.KindRectangle, Width: 100, Height: 100},
		{ID: "above", Kind: domain.KindCircle, Origin: domain.Point{X: 50, Y: 50}, Radius: 10},
	}
	assert.Equal(t, 1, HitTest(shapes, domain.Point{X: 50, Y: 50}))
	assert.Equal(t, 0, HitTest(shapes, domain.Point{X: 5, Y: 5}))
	assert.Equal(t, -1, HitTest(shapes, domain.Point{X: 500, Y: 5}))
}

func TestMoveTo(t *testing.T) {
	rect := domain.Shape{Kind: domain.KindRectangle, Width: 10, Height: 10}
	moved, ok := MoveTo(rect, domain.Point{X: 7, Y: 9})
	assert.True(t, ok)
	assert.Equal(t, domain.Point{X: 7, Y: 9}, moved.Origin)

	poly := domain.Shape{Kind: domain.KindPolygon, Points: []domain.Point{{X: 1, Y: 1}}}
	_, ok = MoveTo(poly, domain.Point{X: 7, Y: 9})
	assert.False(t, ok)
}
