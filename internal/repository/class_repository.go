package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lewtec/demarcador/internal/domain"
)

// ClassRepository implements domain.ClassRepository on SQLite
type ClassRepository struct {
	db *sql.DB
}

// NewClassRepository creates a new ClassRepository
func NewClassRepository(db *sql.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List retrieves all classes ordered by id
func (r *ClassRepository) List(ctx context.Context) ([]domain.Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, prefix FROM classes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Class
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Prefix); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Save writes the whole list in one transaction. Classes with a zero id
// are inserted and get their id assigned; the others are updated, or
// inserted with their id when missing.
func (r *ClassRepository) Save(ctx context.Context, classes []domain.Class) ([]domain.Class, error) {
	out := append([]domain.Class(nil), classes...)
	err := InTx(ctx, r.db, func(tx *sql.Tx) error {
		for i := range out {
			c := &out[i]
			if c.ID == 0 {
				res, err := tx.ExecContext(ctx,
					`INSERT INTO classes (name, color, prefix) VALUES (?, ?, ?)`, c.Name, c.Color, c.Prefix)
				if err != nil {
					return fmt.Errorf("while inserting class %q: %w", c.Name, err)
				}
				id, err := res.LastInsertId()
				if err != nil {
					return err
				}
				c.ID = domain.ClassID(id)
				continue
			}
			_, err := tx.ExecContext(ctx, `
INSERT INTO classes (id, name, color, prefix) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color, prefix = excluded.prefix`,
				int64(c.ID), c.Name, c.Color, c.Prefix)
			if err != nil {
				return fmt.Errorf("while saving class %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a class by id. Annotations keep their reference.
func (r *ClassRepository) Delete(ctx context.Context, id domain.ClassID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, int64(id))
	return err
}

var _ domain.ClassRepository = (*ClassRepository)(nil)
