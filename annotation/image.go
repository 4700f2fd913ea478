package annotation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-git/go-billy/v6"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/session"
)

var ErrNoRaster = errors.New("image has no raster source")

func DecodeImage(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// RasterSource reads the pixels of an image from wherever they live: the
// blob store for local additions, the images folder for saved images or
// a remote URL.
type RasterSource struct {
	Images billy.Filesystem
	Blobs  billy.Filesystem
	Client *http.Client
	Thumbs *ThumbnailCache
	Logger *zap.Logger
}

func (s *RasterSource) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Open returns the encoded raster of img.
func (s *RasterSource) Open(ctx context.Context, img domain.Image) (io.ReadCloser, error) {
	switch {
	case img.File != "" && img.Pending() && s.Blobs != nil:
		return s.Blobs.Open(img.File)
	case img.File != "" && s.Images != nil:
		return s.Images.Open(img.File)
	case strings.HasPrefix(img.URL, "http://") || strings.HasPrefix(img.URL, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
		if err != nil {
			return nil, err
		}
		client := s.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("while fetching %s: %w", img.URL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("while fetching %s: status %d", img.URL, resp.StatusCode)
		}
		return resp.Body, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRaster, img.RefID)
}

func (s *RasterSource) decode(ctx context.Context, img domain.Image) (image.Image, error) {
	f, err := s.Open(ctx, img)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("while decoding %s: %w", img.Name, err)
	}
	return m, nil
}

// Load decodes the raster so the canvas knows it is drawable.
func (s *RasterSource) Load(ctx context.Context, img domain.Image) error {
	m, err := s.decode(ctx, img)
	if err != nil {
		return err
	}
	b := m.Bounds()
	s.logger().Debug("raster ready", zap.String("ref", img.RefID), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	return ctx.Err()
}

// Thumbnail returns a PNG of img fitted in a size x size square.
func (s *RasterSource) Thumbnail(ctx context.Context, img domain.Image, size int) ([]byte, error) {
	if data, ok := s.Thumbs.Get(img.RefID, size); ok {
		return data, nil
	}
	m, err := s.decode(ctx, img)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Thumbnail(m, size, size, imaging.Lanczos), imaging.PNG); err != nil {
		return nil, fmt.Errorf("while encoding thumbnail: %w", err)
	}
	s.Thumbs.Put(img.RefID, size, buf.Bytes())
	return buf.Bytes(), nil
}

var _ session.RasterLoader = (*RasterSource)(nil)
