package domain

import (
	"context"
	"time"
)

// Image is one raster of the annotation session together with its shapes.
//
// ID is nil until the image has been persisted. RefID is assigned on the
// client side and is the key used everywhere inside a session.
type Image struct {
	ID          *int64
	RefID       string
	Name        string
	URL         string
	File        string // blob path of a locally added image that was not saved yet
	Annotations []Shape
	IngestedAt  time.Time
}

// Pending reports whether the image only exists locally.
func (img Image) Pending() bool {
	return img.ID == nil
}

// Clone deep-copies the image and its shapes.
func (img Image) Clone() Image {
	if img.ID != nil {
		id := *img.ID
		img.ID = &id
	}
	img.Annotations = CloneShapes(img.Annotations)
	return img
}

// ImageRepository defines the interface for image storage operations
type ImageRepository interface {
	// Create creates a new image record and assigns its ID
	Create(ctx context.Context, img *Image) error

	// GetByRefID retrieves an image by its client reference
	GetByRefID(ctx context.Context, refID string) (*Image, error)

	// List retrieves all images, without annotations
	List(ctx context.Context) ([]*Image, error)

	// Count returns the total number of images
	Count(ctx context.Context) (int64, error)

	// Delete removes an image by ID
	Delete(ctx context.Context, id int64) error
}
