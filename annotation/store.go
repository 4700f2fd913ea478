package annotation

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path"

	"github.com/go-git/go-billy/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/repository"
)

// AssetPrefix is the URL path serving saved rasters.
const AssetPrefix = "/asset/"

// Store persists sessions: image rows, their annotation records and the
// raster files.
type Store struct {
	DB          *sql.DB
	Images      *repository.ImageRepository
	Classes     *repository.ClassRepository
	Annotations *repository.AnnotationRepository
	ImageFS     billy.Filesystem
	BlobFS      billy.Filesystem
	Logger      *zap.Logger
}

func NewStore(db *sql.DB, images, blobs billy.Filesystem, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		DB:          db,
		Images:      repository.NewImageRepository(db),
		Classes:     repository.NewClassRepository(db),
		Annotations: repository.NewAnnotationRepository(db),
		ImageFS:     images,
		BlobFS:      blobs,
		Logger:      logger.Named("store"),
	}
}

// LoadImages reads every saved image with its shapes.
func (s *Store) LoadImages(ctx context.Context) ([]domain.Image, error) {
	rows, err := s.Images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	out := make([]domain.Image, 0, len(rows))
	for _, img := range rows {
		shapes, err := s.Annotations.ForImage(ctx, *img.ID)
		if err != nil {
			return nil, fmt.Errorf("while loading annotations of %s: %w", img.Name, err)
		}
		img.Annotations = shapes
		out = append(out, *img)
	}
	return out, nil
}

// SaveImages writes images and their shapes in one transaction. Pending
// images get their blob copied into the images folder and are created; the
// others are updated. Blobs leave the upload area only after the commit.
// The returned list carries the assigned ids and asset URLs.
func (s *Store) SaveImages(ctx context.Context, images []domain.Image) ([]domain.Image, error) {
	out, _, err := s.save(ctx, images, false)
	return out, err
}

// SyncImages is SaveImages that also removes, in the same transaction, the
// saved images missing from the list. It returns how many were removed.
func (s *Store) SyncImages(ctx context.Context, images []domain.Image) ([]domain.Image, int, error) {
	return s.save(ctx, images, true)
}

func (s *Store) save(ctx context.Context, images []domain.Image, prune bool) ([]domain.Image, int, error) {
	var (
		out     []domain.Image
		copied  []string
		dropped []*domain.Image
	)
	err := repository.InTx(ctx, s.DB, func(tx *sql.Tx) error {
		imgs := repository.NewImageRepositoryWithTx(tx)
		anns := repository.NewAnnotationRepositoryWithTx(tx)
		out = make([]domain.Image, 0, len(images))
		for _, img := range images {
			img = img.Clone()
			if img.Pending() {
				stored, err := s.createImage(ctx, imgs, &img)
				if stored {
					copied = append(copied, img.File)
				}
				if err != nil {
					return err
				}
			} else if err := imgs.Update(ctx, &img); err != nil {
				return fmt.Errorf("while updating image %s: %w", img.Name, err)
			}
			if err := anns.Replace(ctx, *img.ID, img.Annotations); err != nil {
				return fmt.Errorf("while saving annotations of %s: %w", img.Name, err)
			}
			out = append(out, img)
		}
		if !prune {
			return nil
		}
		var err error
		dropped, err = deleteMissing(ctx, imgs, out)
		return err
	})
	if err != nil {
		for _, name := range copied {
			s.removeFile(s.ImageFS, name)
		}
		return nil, 0, err
	}
	for _, name := range copied {
		s.removeFile(s.BlobFS, name)
	}
	for _, img := range dropped {
		if img.File != "" {
			s.removeFile(s.ImageFS, img.File)
		}
	}
	s.Logger.Info("session saved", zap.Int("images", len(out)), zap.Int("removed", len(dropped)))
	return out, len(dropped), nil
}

// createImage reports whether it copied a blob into the images folder.
func (s *Store) createImage(ctx context.Context, imgs *repository.ImageRepository, img *domain.Image) (bool, error) {
	existing, err := imgs.GetByRefID(ctx, img.RefID)
	if err != nil {
		return false, fmt.Errorf("while looking up image %s: %w", img.RefID, err)
	}
	if existing != nil {
		img.ID = existing.ID
		return false, imgs.Update(ctx, img)
	}
	stored := false
	if img.File != "" && s.BlobFS != nil && s.ImageFS != nil {
		if err := copyFile(s.BlobFS, s.ImageFS, img.File); err != nil {
			return false, fmt.Errorf("while storing raster of %s: %w", img.Name, err)
		}
		stored = true
		img.URL = AssetPrefix + img.RefID
	}
	if err := imgs.Create(ctx, img); err != nil {
		return stored, fmt.Errorf("while creating image %s: %w", img.Name, err)
	}
	return stored, nil
}

func copyFile(from, to billy.Filesystem, name string) error {
	src, err := from.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := to.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Store) removeFile(fs billy.Filesystem, name string) {
	if fs == nil {
		return
	}
	if err := fs.Remove(name); err != nil {
		s.Logger.Warn("could not remove raster", zap.String("file", name), zap.Error(err))
	}
}

// ImportImages merges imported documents into the database by ref id, all
// or nothing. Images without a ref get a fresh one.
func (s *Store) ImportImages(ctx context.Context, images []domain.Image) (int, error) {
	err := repository.InTx(ctx, s.DB, func(tx *sql.Tx) error {
		imgs := repository.NewImageRepositoryWithTx(tx)
		anns := repository.NewAnnotationRepositoryWithTx(tx)
		for i := range images {
			img := &images[i]
			img.ID = nil
			if img.RefID == "" {
				img.RefID = uuid.NewString()
			}
			existing, err := imgs.GetByRefID(ctx, img.RefID)
			if err != nil {
				return fmt.Errorf("while looking up image %s: %w", img.RefID, err)
			}
			if existing == nil {
				if img.Name == "" {
					img.Name = path.Base(img.URL)
				}
				if err := imgs.Create(ctx, img); err != nil {
					return fmt.Errorf("while creating image %s: %w", img.RefID, err)
				}
			} else {
				img.ID = existing.ID
			}
			if err := anns.Replace(ctx, *img.ID, img.Annotations); err != nil {
				return fmt.Errorf("while importing annotations of %s: %w", img.RefID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(images), nil
}

func deleteMissing(ctx context.Context, imgs *repository.ImageRepository, keep []domain.Image) ([]*domain.Image, error) {
	refs := make(map[string]struct{}, len(keep))
	for _, img := range keep {
		refs[img.RefID] = struct{}{}
	}
	rows, err := imgs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	var removed []*domain.Image
	for _, img := range rows {
		if _, ok := refs[img.RefID]; ok {
			continue
		}
		if err := imgs.Delete(ctx, *img.ID); err != nil {
			return nil, fmt.Errorf("while deleting image %s: %w", img.Name, err)
		}
		removed = append(removed, img)
	}
	return removed, nil
}
