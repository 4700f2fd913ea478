package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/shape"
)

// AnnotationRepository implements domain.AnnotationRepository. Each shape
// is stored as its export record.
type AnnotationRepository struct {
	db DBTX
	// pool is nil when the repository is bound to a transaction
	pool *sql.DB
}

// NewAnnotationRepository creates a new AnnotationRepository
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db, pool: db}
}

// NewAnnotationRepositoryWithTx creates a new AnnotationRepository with a transaction
func NewAnnotationRepositoryWithTx(tx *sql.Tx) *AnnotationRepository {
	return &AnnotationRepository{db: tx}
}

// Replace swaps the shapes of an image. Outside a transaction it opens its
// own.
func (r *AnnotationRepository) Replace(ctx context.Context, imageID int64, shapes []domain.Shape) error {
	if r.pool == nil {
		return replaceAnnotations(ctx, r.db, imageID, shapes)
	}
	return InTx(ctx, r.pool, func(tx *sql.Tx) error {
		return replaceAnnotations(ctx, tx, imageID, shapes)
	})
}

func replaceAnnotations(ctx context.Context, db DBTX, imageID int64, shapes []domain.Shape) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM annotations WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("while clearing annotations of image %d: %w", imageID, err)
	}
	for i, s := range shapes {
		record, err := json.Marshal(shape.ToRecord(s))
		if err != nil {
			return fmt.Errorf("while encoding shape %s: %w", s.ID, err)
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO annotations (image_id, position, shape_id, class_id, record) VALUES (?, ?, ?, ?, ?)`,
			imageID, i, s.ID, int64(s.Class.ID), string(record))
		if err != nil {
			return fmt.Errorf("while inserting shape %s: %w", s.ID, err)
		}
	}
	return nil
}

// ForImage returns the shapes of an image in drawing order
func (r *AnnotationRepository) ForImage(ctx context.Context, imageID int64) ([]domain.Shape, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record FROM annotations WHERE image_id = ? ORDER BY position`, imageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Shape{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec shape.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("while decoding stored annotation: %w", err)
		}
		s, err := shape.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CountByClass counts stored shapes per class id
func (r *AnnotationRepository) CountByClass(ctx context.Context) (map[domain.ClassID]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT class_id, COUNT(*) FROM annotations GROUP BY class_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[domain.ClassID]int64{}
	for rows.Next() {
		var (
			id domain.ClassID
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		result[id] = n
	}
	return result, rows.Err()
}

var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
