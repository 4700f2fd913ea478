package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/demarcador/internal/domain"
)

func sampleImages() []domain.Image {
	id := int64(7)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Image{
		{
			ID: &id, RefID: "a", Name: "a.png", URL: "/asset/a",
			Annotations: []domain.Shape{
				{ID: "r1", Kind: domain.KindRectangle, Origin: domain.Point{X: 180, Y: 160}, Width: -80, Height: -60,
					Class: domain.ClassRef{ID: 1, Name: "Scratch"}, Color: "#f00", Label: "SCR-001", CreatedAt: at},
				{ID: "c1", Kind: domain.KindCircle, Origin: domain.Point{X: 200, Y: 200}, Radius: 30,
					Class: domain.ClassRef{ID: 2, Name: "Dent"}, Color: "#0f0", CreatedAt: at},
			},
		},
		{
			RefID: "b", Name: "b.jpg", URL: "blob:b",
			Annotations: []domain.Shape{
				{ID: "p1", Kind: domain.KindPolygon, Origin: domain.Point{X: 0, Y: 0},
					Points: []domain.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, Color: "#00f", CreatedAt: at},
			},
		},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleImages()))

	got, err := ImportAll(buf.Bytes())
	require.NoError(t, err)

	want := sampleImages()
	// rectangles come back normalized
	want[0].Annotations[0].Origin = domain.Point{X: 100, Y: 100}
	want[0].Annotations[0].Width = 80
	want[0].Annotations[0].Height = 60
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ImportAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_Schema(t *testing.T) {
	docs := ExportAll(sampleImages()[:1])
	raw, err := json.Marshal(docs[0])
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	annotations := generic["annotations"].([]any)
	rect := annotations[0].(map[string]any)
	assert.Equal(t, "rectangle", rect["type"])
	assert.Equal(t, []any{100.0, 100.0, 180.0, 160.0}, rect["bbox"])
	assert.Equal(t, map[string]any{"id": "1", "name": "Scratch"}, rect["class"])
	circle := annotations[1].(map[string]any)
	assert.Equal(t, []any{200.0, 200.0}, circle["center"])
	assert.Equal(t, 30.0, circle["radius"])
	assert.NotContains(t, circle, "bbox")
}

func TestExport_DeletedImageOnlyDropsItsShapes(t *testing.T) {
	images := sampleImages()
	before := ExportAll(images)

	after := ExportAll([]domain.Image{images[1]})

	require.Len(t, after, 1)
	assert.Equal(t, before[1], after[0])
}

func TestImportAll_Shapes(t *testing.T) {
	record := `{"id":"r1","type":"rectangle","color":"#f00","class":{"id":1,"name":"Scratch"},"bbox":[100,100,180,160]}`

	tests := []struct {
		name   string
		input  string
		images int
		shapes int
	}{
		{"array of documents", `[{"image":{"id":1,"name":"a","url":"u"},"annotations":[` + record + `]},{"image":{"name":"b"},"annotations":[]}]`, 2, 1},
		{"array of records", `[` + record + `,` + record + `]`, 1, 2},
		{"annotations object", `{"image":{"name":"a"},"annotations":[` + record + `]}`, 1, 1},
		{"items collection", `{"type":"AnnotationCollection","items":[{"annotations":[` + record + `]}]}`, 1, 1},
		{"empty array", `[]`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images, err := ImportAll([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, images, tt.images)
			if tt.images > 0 {
				assert.Len(t, images[0].Annotations, tt.shapes)
			}
		})
	}
}

func TestImportAll_ClassIDFromNumber(t *testing.T) {
	images, err := ImportAll([]byte(`{"annotations":[{"id":"r1","type":"rectangle","color":"","class":{"id":1,"name":"Surface Mark"},"bbox":[0,0,10,10]}]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassRef{ID: 1, Name: "Surface Mark"}, images[0].Annotations[0].Class)
}

func TestImportAll_Rejects(t *testing.T) {
	good := `{"id":"r1","type":"rectangle","color":"","class":{"id":1,"name":"x"},"bbox":[0,0,10,10]}`
	inputs := map[string]string{
		"not json":           `hello`,
		"empty":              ``,
		"unknown object":     `{"foo":[]}`,
		"scalar":             `42`,
		"bad type":           `[{"id":"x","type":"star","color":"","class":{"id":1,"name":"x"}}]`,
		"too small":          `[{"id":"x","type":"rectangle","color":"","class":{"id":1,"name":"x"},"bbox":[0,0,2,2]}]`,
		"one bad in a batch": `{"annotations":[` + good + `,{"id":"y","type":"circle","color":"","class":{"id":1,"name":"x"}}]}`,
		"mixed items":        `[{"annotations":[]}, 3]`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			images, err := ImportAll([]byte(input))
			assert.ErrorIs(t, err, ErrUnrecognizedDocument)
			assert.Nil(t, images)
		})
	}
}
