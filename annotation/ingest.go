package annotation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v6"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/session"
)

// Ingest copies every image of a flat folder into the images folder,
// named by content hash, and registers it. Each file is checked on its
// own: rejected files are reported in the returned error and do not stop
// the others.
func (s *Store) Ingest(ctx context.Context, src billy.Filesystem, limits session.Limits, workers int) ([]domain.Image, error) {
	if len(limits.Extensions) == 0 {
		limits.Extensions = session.DefaultExtensions
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = session.DefaultMaxBytes
	}
	entries, err := src.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("while listing ingest folder: %w", err)
	}

	var (
		mu       sync.Mutex
		result   *multierror.Error
		ingested []domain.Image
	)
	reject := func(name, messageID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		s.Logger.Info("file skipped", zap.String("name", name), zap.Error(err))
		result = multierror.Append(result, &session.FileError{Name: name, MessageID: messageID, Err: err})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, entry := range entries {
		if entry.IsDir() {
			reject(entry.Name(), domain.MsgFileUnreadable, fmt.Errorf("datasets must be organized in a flat folder structure"))
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
		if !slices.Contains(limits.Extensions, ext) {
			reject(name, domain.MsgFileBadExtension, fmt.Errorf("extension %q is not accepted", ext))
			continue
		}
		info, err := src.Stat(name)
		if err == nil && info.Size() > limits.MaxBytes {
			reject(name, domain.MsgFileTooLarge, fmt.Errorf("%s exceeds the %s limit",
				humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(limits.MaxBytes))))
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readFile(src, name)
			if err != nil {
				reject(name, domain.MsgFileUnreadable, err)
				return nil
			}
			if _, err := DecodeImage(bytes.NewReader(data)); err != nil {
				reject(name, domain.MsgFileUnreadable, fmt.Errorf("while checking if item is an image: %w", err))
				return nil
			}
			hash, err := HashReader(bytes.NewReader(data))
			if err != nil {
				reject(name, domain.MsgFileUnreadable, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			img, err := s.registerIngested(ctx, name, hash+"."+ext, hash, data)
			if err != nil {
				return err
			}
			if img != nil {
				ingested = append(ingested, *img)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ingested, err
	}
	return ingested, result.ErrorOrNil()
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// registerIngested stores one raster. Already known hashes are skipped.
func (s *Store) registerIngested(ctx context.Context, name, file, hash string, data []byte) (*domain.Image, error) {
	existing, err := s.Images.GetByRefID(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("while looking up %s: %w", name, err)
	}
	if existing != nil {
		s.Logger.Debug("already ingested", zap.String("name", name), zap.String("hash", hash))
		return nil, nil
	}
	out, err := s.ImageFS.Create(file)
	if err != nil {
		return nil, fmt.Errorf("while storing %s: %w", name, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return nil, fmt.Errorf("while storing %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("while storing %s: %w", name, err)
	}
	img := &domain.Image{RefID: hash, Name: name, URL: AssetPrefix + hash, File: file}
	if err := s.Images.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("while registering %s: %w", name, err)
	}
	s.Logger.Info("ingested", zap.String("name", name), zap.String("hash", hash))
	return img, nil
}
