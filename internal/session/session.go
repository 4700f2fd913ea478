// Package session manages the set of images being annotated and which of
// them is on the canvas.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-git/go-billy/v6"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/editor"
)

var (
	ErrUnknownImage   = errors.New("unknown image")
	ErrDrawInProgress = errors.New("a shape is being drawn")
	ErrNoImage        = errors.New("no image on display")
)

// RasterLoader fetches and decodes the raster of an image. It is called off
// the caller's goroutine.
type RasterLoader interface {
	Load(ctx context.Context, img domain.Image) error
}

type Options struct {
	Editor    *editor.Editor
	Loader    RasterLoader
	Blobs     billy.Filesystem
	Limits    Limits
	Confirmer domain.Confirmer
	Notifier  domain.Notifier
	Logger    *zap.Logger
	NewRef    func() string
}

// Manager owns the image list and the editor showing the current image.
// All methods are safe for concurrent use. Editor listeners run with the
// manager locked and must not call back into it.
type Manager struct {
	mu         sync.Mutex
	images     []domain.Image
	current    int
	loading    bool
	generation uint64

	editor *editor.Editor
	opts   Options
	logger *zap.Logger
}

func New(opts Options) *Manager {
	if opts.Editor == nil {
		opts.Editor = editor.New(editor.Options{Logger: opts.Logger})
	}
	if opts.Notifier == nil {
		opts.Notifier = domain.Discard
	}
	if opts.NewRef == nil {
		opts.NewRef = uuid.NewString
	}
	opts.Limits = opts.Limits.withDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		current: -1,
		editor:  opts.Editor,
		opts:    opts,
		logger:  logger.Named("session"),
	}
}

func ready(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// LoadImages replaces the image list and shows the first image.
func (m *Manager) LoadImages(ctx context.Context, images []domain.Image) <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.images = make([]domain.Image, 0, len(images))
	for _, img := range images {
		img = img.Clone()
		if img.RefID == "" {
			img.RefID = m.opts.NewRef()
		}
		m.images = append(m.images, img)
	}
	m.current = -1
	if len(m.images) == 0 {
		m.clearLocked()
		return ready(nil)
	}
	return m.showLocked(ctx, 0)
}

// SelectImage puts the image with the given ref on the canvas. The working
// shapes of the previous image are stored back first. Drawing stays
// disabled until the returned channel reports the raster load result.
func (m *Manager) SelectImage(ctx context.Context, ref string) (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(ref)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImage, ref)
	}
	if m.editor.Drawing() {
		return nil, ErrDrawInProgress
	}
	m.stashLocked()
	return m.showLocked(ctx, i), nil
}

// Next moves to the following image. At the end of the list nothing
// happens.
func (m *Manager) Next(ctx context.Context) (<-chan error, error) {
	return m.step(ctx, 1)
}

// Previous moves to the preceding image.
func (m *Manager) Previous(ctx context.Context) (<-chan error, error) {
	return m.step(ctx, -1)
}

func (m *Manager) step(ctx context.Context, delta int) (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.current + delta
	if m.current < 0 || target < 0 || target >= len(m.images) {
		return ready(nil), nil
	}
	if m.editor.Drawing() {
		return nil, ErrDrawInProgress
	}
	m.stashLocked()
	return m.showLocked(ctx, target), nil
}

func (m *Manager) indexLocked(ref string) int {
	for i := range m.images {
		if m.images[i].RefID == ref {
			return i
		}
	}
	return -1
}

func (m *Manager) stashLocked() {
	if m.current >= 0 && m.current < len(m.images) {
		m.images[m.current].Annotations = m.editor.Shapes()
	}
}

func (m *Manager) clearLocked() {
	m.current = -1
	m.loading = false
	m.generation++
	m.editor.Load(nil)
	m.editor.SetEnabled(false)
}

// showLocked swaps the editor to image i and starts the raster load.
func (m *Manager) showLocked(ctx context.Context, i int) <-chan error {
	m.current = i
	img := m.images[i].Clone()
	m.editor.Load(img.Annotations)
	m.editor.SetEnabled(false)
	m.generation++

	if m.opts.Loader == nil {
		m.loading = false
		m.editor.SetEnabled(true)
		return ready(nil)
	}

	m.loading = true
	gen := m.generation
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := m.opts.Loader.Load(ctx, img)
		m.finishLoad(ctx, gen, img, err)
		done <- err
	}()
	return done
}

func (m *Manager) finishLoad(ctx context.Context, gen uint64, img domain.Image, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		m.logger.Debug("stale raster load ignored", zap.String("ref", img.RefID))
		return
	}
	m.loading = false
	if err != nil {
		m.logger.Error("raster load failed", zap.String("ref", img.RefID), zap.Error(err))
		m.opts.Notifier.Notify(ctx, domain.Notice{
			Level:     domain.LevelError,
			MessageID: domain.MsgImageLoadFailed,
			Data:      map[string]any{"Name": img.Name},
		})
		return
	}
	m.editor.SetEnabled(true)
}

// DeleteImage removes an image and its shapes after the user confirms.
// It reports whether the image was removed.
func (m *Manager) DeleteImage(ctx context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(ref)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownImage, ref)
	}
	img := m.images[i]
	if m.opts.Confirmer != nil {
		ok, err := m.opts.Confirmer.Confirm(ctx, domain.MsgConfirmImageDelete, map[string]any{"Name": img.Name})
		if err != nil {
			return false, fmt.Errorf("while confirming image removal: %w", err)
		}
		if !ok {
			return false, nil
		}
	}

	m.images = append(m.images[:i], m.images[i+1:]...)
	switch {
	case i == m.current:
		m.clearLocked()
	case i < m.current:
		m.current--
	}
	if img.File != "" && m.opts.Blobs != nil {
		if err := m.opts.Blobs.Remove(img.File); err != nil {
			m.logger.Warn("could not remove blob", zap.String("file", img.File), zap.Error(err))
		}
	}
	m.opts.Notifier.Notify(ctx, domain.Notice{
		Level:     domain.LevelSuccess,
		MessageID: domain.MsgImageDeleted,
		Data:      map[string]any{"Name": img.Name},
	})
	return true, nil
}

// CommitAnnotations stores edited shape lists by image ref. When the image
// on display is among them, the editor is reloaded with its new shapes.
// Unknown refs are reported; the known ones are still applied.
func (m *Manager) CommitAnnotations(updates map[string][]domain.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stashLocked()
	var result *multierror.Error
	reload := false
	for ref, shapes := range updates {
		i := m.indexLocked(ref)
		if i < 0 {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrUnknownImage, ref))
			continue
		}
		m.images[i].Annotations = domain.CloneShapes(shapes)
		if i == m.current {
			reload = true
		}
	}
	if reload {
		m.editor.Load(m.images[m.current].Annotations)
	}
	return result.ErrorOrNil()
}

// ApplyClasses propagates class renames to the shapes of every image.
func (m *Manager) ApplyClasses(classes []domain.Class) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make(map[domain.ClassID]string, len(classes))
	for _, c := range classes {
		if c.ID != 0 {
			names[c.ID] = c.Name
		}
	}
	for i := range m.images {
		if i == m.current {
			continue
		}
		for j := range m.images[i].Annotations {
			ref := &m.images[i].Annotations[j].Class
			if name, ok := names[ref.ID]; ok {
				ref.Name = name
			}
		}
	}
	m.editor.ApplyClasses(classes)
}

// Images returns a copy of the list, including the unsaved work on the
// current image.
func (m *Manager) Images() []domain.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Image, len(m.images))
	for i, img := range m.images {
		out[i] = img.Clone()
	}
	if m.current >= 0 {
		out[m.current].Annotations = m.editor.Shapes()
	}
	return out
}

// Current returns the image on display.
func (m *Manager) Current() (domain.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 {
		return domain.Image{}, false
	}
	img := m.images[m.current].Clone()
	img.Annotations = m.editor.Shapes()
	return img, true
}

// Image returns the image with the given ref.
func (m *Manager) Image(ref string) (domain.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(ref)
	if i < 0 {
		return domain.Image{}, false
	}
	img := m.images[i].Clone()
	if i == m.current {
		img.Annotations = m.editor.Shapes()
	}
	return img, true
}

// Loading reports whether the raster of the current image is still loading.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// WithEditor runs fn with exclusive access to the editor.
func (m *Manager) WithEditor(fn func(ed *editor.Editor) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.editor)
}

// AppendImages adds already-built images, such as the ones of an import, to
// the end of the list. When nothing is on display the first one is shown.
func (m *Manager) AppendImages(ctx context.Context, images []domain.Image) <-chan error {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := len(m.images)
	for _, img := range images {
		img = img.Clone()
		if img.RefID == "" {
			img.RefID = m.opts.NewRef()
		}
		m.images = append(m.images, img)
	}
	if m.current >= 0 || first == len(m.images) {
		return ready(nil)
	}
	return m.showLocked(ctx, first)
}

// MarkSaved copies the persistence fields of saved images back into the
// session. Shapes are left alone, they may have changed since.
func (m *Manager) MarkSaved(saved []domain.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, img := range saved {
		i := m.indexLocked(img.RefID)
		if i < 0 {
			continue
		}
		cur := &m.images[i]
		if img.ID != nil {
			id := *img.ID
			cur.ID = &id
		}
		cur.URL = img.URL
		cur.File = img.File
		cur.IngestedAt = img.IngestedAt
	}
}
