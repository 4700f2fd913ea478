// Package export converts annotated images to and from the JSON interchange
// document.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

var ErrUnrecognizedDocument = errors.New("unrecognized annotation document")

// ImageRecord identifies the image a document belongs to.
type ImageRecord struct {
	ID    *int64 `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	RefID string `json:"ref_id,omitempty"`
}

// Document is the annotation record of one image.
type Document struct {
	Image       ImageRecord    `json:"image"`
	Annotations []shape.Record `json:"annotations"`
}

// ExportImage builds the document of one image.
func ExportImage(img domain.Image) Document {
	doc := Document{
		Image: ImageRecord{
			ID:    img.ID,
			Name:  img.Name,
			URL:   img.URL,
			RefID: img.RefID,
		},
		Annotations: make([]shape.Record, 0, len(img.Annotations)),
	}
	for _, s := range img.Annotations {
		doc.Annotations = append(doc.Annotations, shape.ToRecord(s))
	}
	return doc
}

// ExportAll builds one document per image, in order.
func ExportAll(images []domain.Image) []Document {
	docs := make([]Document, 0, len(images))
	for _, img := range images {
		docs = append(docs, ExportImage(img))
	}
	return docs
}

// Encode writes the aggregate document for images to w.
func Encode(w io.Writer, images []domain.Image) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ExportAll(images)); err != nil {
		return fmt.Errorf("while encoding annotations: %w", err)
	}
	return nil
}

// ImportAll reads an annotation document. It accepts a plain array of
// image documents or of annotation records, an object with an
// "annotations" array and an object with an "items" array. Any malformed
// part rejects the whole document.
func ImportAll(data []byte) ([]domain.Image, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnrecognizedDocument)
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedDocument, err)
		}
		return importItems(items)
	case '{':
		var wrapper struct {
			Image       *ImageRecord      `json:"image"`
			Annotations []json.RawMessage `json:"annotations"`
			Items       []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedDocument, err)
		}
		switch {
		case wrapper.Annotations != nil:
			img, err := importDocument(wrapper.Image, wrapper.Annotations)
			if err != nil {
				return nil, err
			}
			return []domain.Image{img}, nil
		case wrapper.Items != nil:
			return importItems(wrapper.Items)
		}
	}
	return nil, fmt.Errorf("%w: expected an array, {\"annotations\": [...]} or {\"items\": [...]}", ErrUnrecognizedDocument)
}

// importItems reads a list that is either made of image documents or of
// bare annotation records. Bare records become a single image.
func importItems(items []json.RawMessage) ([]domain.Image, error) {
	if len(items) == 0 {
		return []domain.Image{}, nil
	}
	var probe struct {
		Image       *ImageRecord      `json:"image"`
		Annotations []json.RawMessage `json:"annotations"`
	}
	if err := json.Unmarshal(items[0], &probe); err != nil {
		return nil, fmt.Errorf("%w: item 1: %v", ErrUnrecognizedDocument, err)
	}
	if probe.Image == nil && probe.Annotations == nil {
		img, err := importDocument(nil, items)
		if err != nil {
			return nil, err
		}
		return []domain.Image{img}, nil
	}

	images := make([]domain.Image, 0, len(items))
	for i, raw := range items {
		var doc struct {
			Image       *ImageRecord      `json:"image"`
			Annotations []json.RawMessage `json:"annotations"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrUnrecognizedDocument, i+1, err)
		}
		if doc.Image == nil && doc.Annotations == nil {
			return nil, fmt.Errorf("%w: item %d is not an image document", ErrUnrecognizedDocument, i+1)
		}
		img, err := importDocument(doc.Image, doc.Annotations)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func importDocument(ref *ImageRecord, annotations []json.RawMessage) (domain.Image, error) {
	var img domain.Image
	if ref != nil {
		img.ID = ref.ID
		img.Name = ref.Name
		img.URL = ref.URL
		img.RefID = ref.RefID
	}
	img.Annotations = make([]domain.Shape, 0, len(annotations))
	for i, raw := range annotations {
		var rec shape.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return domain.Image{}, fmt.Errorf("%w: annotation %d: %v", ErrUnrecognizedDocument, i+1, err)
		}
		s, err := shape.FromRecord(rec)
		if err != nil {
			return domain.Image{}, fmt.Errorf("%w: annotation %d: %w", ErrUnrecognizedDocument, i+1, err)
		}
		if err := shape.DefaultRules.Check(s); err != nil {
			return domain.Image{}, fmt.Errorf("%w: annotation %d: %w", ErrUnrecognizedDocument, i+1, err)
		}
		img.Annotations = append(img.Annotations, s)
	}
	return img, nil
}
