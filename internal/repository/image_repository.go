package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lewtec/demarcador/internal/domain"
)

// ImageRepository implements domain.ImageRepository on SQLite
type ImageRepository struct {
	db  DBTX
	now func() time.Time
}

// NewImageRepository creates a new ImageRepository
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db, now: time.Now}
}

// NewImageRepositoryWithTx creates a new ImageRepository with a transaction
func NewImageRepositoryWithTx(tx *sql.Tx) *ImageRepository {
	return &ImageRepository{db: tx, now: time.Now}
}

const imageColumns = `id, ref_id, name, url, file, ingested_at`

func scanImage(row interface{ Scan(...any) error }) (*domain.Image, error) {
	var (
		img domain.Image
		id  int64
	)
	if err := row.Scan(&id, &img.RefID, &img.Name, &img.URL, &img.File, &img.IngestedAt); err != nil {
		return nil, err
	}
	img.ID = &id
	return &img, nil
}

// Create inserts img and fills its ID and IngestedAt
func (r *ImageRepository) Create(ctx context.Context, img *domain.Image) error {
	if img.IngestedAt.IsZero() {
		img.IngestedAt = r.now().UTC().Truncate(time.Second)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO images (ref_id, name, url, file, ingested_at) VALUES (?, ?, ?, ?, ?)`,
		img.RefID, img.Name, img.URL, img.File, img.IngestedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	img.ID = &id
	return nil
}

// Update rewrites the descriptive fields of a persisted image
func (r *ImageRepository) Update(ctx context.Context, img *domain.Image) error {
	if img.ID == nil {
		return errors.New("image was never saved")
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE images SET name = ?, url = ?, file = ? WHERE id = ?`,
		img.Name, img.URL, img.File, *img.ID)
	return err
}

// GetByRefID retrieves an image by its client reference. A missing image
// is reported as nil without an error.
func (r *ImageRepository) GetByRefID(ctx context.Context, refID string) (*domain.Image, error) {
	img, err := scanImage(r.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE ref_id = ?`, refID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return img, nil
}

// List retrieves all images in insertion order
func (r *ImageRepository) List(ctx context.Context) ([]*domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	return result, rows.Err()
}

// Count returns the total number of images
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n)
	return n, err
}

// Delete removes an image and its annotations
func (r *ImageRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE image_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	return err
}

// Verify that ImageRepository implements domain.ImageRepository
var _ domain.ImageRepository = (*ImageRepository)(nil)
