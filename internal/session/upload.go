package session

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
)

const (
	DefaultMaxBytes = 10 << 20
	BlobScheme      = "blob:"
)

var DefaultExtensions = []string{"png", "jpg", "jpeg"}

// Limits restricts which files can be added to a session.
type Limits struct {
	MaxBytes   int64
	Extensions []string
}

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	exts := l.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	l.Extensions = make([]string, len(exts))
	for i, ext := range exts {
		l.Extensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return l
}

// File is a local image offered for upload.
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// FileError is the rejection of a single file. MessageID is the notice
// that was raised for it.
type FileError struct {
	Name      string
	MessageID string
	Err       error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// AddImages validates and stores each file on its own. Rejected files are
// reported through the notifier and returned together as a multierror; the
// accepted ones are appended to the list regardless. When nothing was on
// display the first accepted image is shown.
func (m *Manager) AddImages(ctx context.Context, files []File) ([]domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limits := m.opts.Limits
	var (
		accepted []domain.Image
		result   *multierror.Error
	)
	for _, f := range files {
		img, ferr := m.storeLocked(f, limits)
		if ferr != nil {
			m.logger.Info("file rejected", zap.String("name", f.Name), zap.Error(ferr.Err))
			m.opts.Notifier.Notify(ctx, domain.Notice{
				Level:     domain.LevelError,
				MessageID: ferr.MessageID,
				Data: map[string]any{
					"Name":       f.Name,
					"Size":       humanize.IBytes(uint64(max(f.Size, 0))),
					"Limit":      humanize.IBytes(uint64(limits.MaxBytes)),
					"Extensions": strings.Join(limits.Extensions, ", "),
				},
			})
			result = multierror.Append(result, ferr)
			continue
		}
		accepted = append(accepted, img)
	}

	m.images = append(m.images, accepted...)
	if len(accepted) > 0 {
		m.opts.Notifier.Notify(ctx, domain.Notice{
			Level:     domain.LevelSuccess,
			MessageID: domain.MsgImagesAdded,
			Data:      map[string]any{"Count": len(accepted)},
		})
		if m.current < 0 {
			m.showLocked(ctx, len(m.images)-len(accepted))
		}
	}
	out := make([]domain.Image, len(accepted))
	for i, img := range accepted {
		out[i] = img.Clone()
	}
	return out, result.ErrorOrNil()
}

func (m *Manager) storeLocked(f File, limits Limits) (domain.Image, *FileError) {
	ext := extension(f.Name)
	if !slices.Contains(limits.Extensions, ext) {
		return domain.Image{}, &FileError{
			Name:      f.Name,
			MessageID: domain.MsgFileBadExtension,
			Err:       fmt.Errorf("extension %q is not one of %v", ext, limits.Extensions),
		}
	}
	if f.Size > limits.MaxBytes {
		return domain.Image{}, tooLarge(f, limits)
	}

	ref := m.opts.NewRef()
	img := domain.Image{RefID: ref, Name: f.Name, URL: BlobScheme + ref}
	if m.opts.Blobs == nil || f.Content == nil {
		return img, nil
	}

	blob := ref + "." + ext
	out, err := m.opts.Blobs.Create(blob)
	if err != nil {
		return domain.Image{}, &FileError{Name: f.Name, MessageID: domain.MsgFileUnreadable, Err: fmt.Errorf("while creating blob: %w", err)}
	}
	n, err := io.Copy(out, io.LimitReader(f.Content, limits.MaxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limits.MaxBytes {
		f.Size = n
		_ = m.opts.Blobs.Remove(blob)
		return domain.Image{}, tooLarge(f, limits)
	}
	if err != nil {
		_ = m.opts.Blobs.Remove(blob)
		return domain.Image{}, &FileError{Name: f.Name, MessageID: domain.MsgFileUnreadable, Err: fmt.Errorf("while copying upload: %w", err)}
	}
	img.File = blob
	return img, nil
}

func tooLarge(f File, limits Limits) *FileError {
	return &FileError{
		Name:      f.Name,
		MessageID: domain.MsgFileTooLarge,
		Err:       fmt.Errorf("%s exceeds the %s limit", humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(limits.MaxBytes))),
	}
}

// OpenBlob opens the stored content of a locally added image.
func (m *Manager) OpenBlob(img domain.Image) (io.ReadCloser, error) {
	if img.File == "" || m.opts.Blobs == nil {
		return nil, fmt.Errorf("%w: %s has no local content", ErrUnknownImage, img.RefID)
	}
	f, err := m.opts.Blobs.Open(img.File)
	if err != nil {
		return nil, fmt.Errorf("while opening blob %s: %w", img.File, err)
	}
	return f, nil
}
