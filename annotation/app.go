package annotation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/editor"
	"github.com/lewtec/demarcador/internal/export"
	"github.com/lewtec/demarcador/internal/registry"
	"github.com/lewtec/demarcador/internal/session"
)

// App ties the editor core to persistence and serves it over HTTP. There
// is one logical canvas per process.
type App struct {
	Store    *Store
	Session  *session.Manager
	Registry *registry.Registry
	Raster   *RasterSource
	Notices  *NoticeQueue
	Logger   *zap.Logger

	cfgMu sync.RWMutex
	cfg   *Config

	// raster loads outlive the request that started them
	ctx context.Context
}

func NewApp(ctx context.Context, cfg *Config, store *Store, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	notices := NewNoticeQueue(50, logger)
	raster := &RasterSource{
		Images: store.ImageFS,
		Blobs:  store.BlobFS,
		Client: &http.Client{Timeout: 30 * time.Second},
		Thumbs: NewThumbnailCache(256),
		Logger: logger.Named("raster"),
	}
	ed := editor.New(editor.Options{
		Rules:        cfg.ShapeRules(),
		Logger:       logger,
		DefaultColor: cfg.Editor.DefaultColor,
		Tool:         cfg.Editor.DefaultTool,
	})
	sess := session.New(session.Options{
		Editor:    ed,
		Loader:    raster,
		Blobs:     store.BlobFS,
		Limits:    cfg.SessionLimits(),
		Confirmer: ContextConfirmer,
		Notifier:  notices,
		Logger:    logger,
	})
	reg := registry.New(registry.Options{
		Store:     store.Classes,
		Confirmer: ContextConfirmer,
		Notifier:  notices,
		Logger:    logger,
	})
	SetLanguage(cfg.Language)
	return &App{
		Store:    store,
		Session:  sess,
		Registry: reg,
		Raster:   raster,
		Notices:  notices,
		Logger:   logger.Named("app"),
		cfg:      cfg,
		ctx:      ctx,
	}
}

// Config returns the config in use.
func (a *App) Config() *Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// SetConfig swaps the descriptive parts of the config: project and class
// descriptions and the language. Limits and editor defaults are only read
// at startup.
func (a *App) SetConfig(cfg *Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
	SetLanguage(cfg.Language)
}

// Reload reads the classes and images from the database and shows the
// first image.
func (a *App) Reload(ctx context.Context) error {
	classes, err := a.Store.Classes.List(ctx)
	if err != nil {
		return fmt.Errorf("while loading classes: %w", err)
	}
	a.Registry.Load(classes)

	images, err := a.Store.LoadImages(ctx)
	if err != nil {
		return fmt.Errorf("while loading images: %w", err)
	}
	a.Session.LoadImages(a.ctx, images)
	a.Logger.Info("session loaded", zap.Int("classes", len(classes)), zap.Int("images", len(images)))
	return nil
}

// lookup resolves class ids against a snapshot of the registry so it can
// be used while the session is locked.
func (a *App) lookup() editor.ClassLookup {
	classes := a.Registry.Classes()
	return func(id domain.ClassID) (domain.Class, bool) {
		if id == 0 {
			return domain.Class{}, false
		}
		for _, c := range classes {
			if c.ID == id {
				return c, true
			}
		}
		return domain.Class{}, false
	}
}

// SaveClasses validates and persists the registry, then pushes renames to
// every shape of the session.
func (a *App) SaveClasses(ctx context.Context) error {
	if err := a.Registry.Save(ctx); err != nil {
		return err
	}
	a.Session.ApplyClasses(a.Registry.Classes())
	return nil
}

// SaveSession writes every image of the session with its shapes. Images
// removed from the session are removed from the database too. A failed save
// leaves both the database and the session as they were.
func (a *App) SaveSession(ctx context.Context) (int, error) {
	images := a.Session.Images()
	saved, _, err := a.Store.SyncImages(ctx, images)
	if err != nil {
		a.Logger.Error("session save failed", zap.Error(err))
		a.Notices.Notify(ctx, domain.Notice{Level: domain.LevelError, MessageID: domain.MsgSessionSaveFailed})
		return 0, err
	}
	a.Session.MarkSaved(saved)
	a.Notices.Notify(ctx, domain.Notice{
		Level:     domain.LevelSuccess,
		MessageID: domain.MsgSessionSaved,
		Data:      map[string]any{"Count": len(saved)},
	})
	return len(saved), nil
}

// Import reads an annotation document into the session. Images already in
// the session get their shapes replaced, records that came without any
// image go to the image on display and the rest are appended. A malformed
// document changes nothing.
func (a *App) Import(ctx context.Context, data []byte) (int, error) {
	images, err := export.ImportAll(data)
	if err != nil {
		a.Logger.Info("import rejected", zap.Error(err))
		a.Notices.Notify(ctx, domain.Notice{
			Level:     domain.LevelError,
			MessageID: domain.MsgImportFailed,
			Data:      map[string]any{"Error": err.Error()},
		})
		return 0, err
	}

	updates := map[string][]domain.Shape{}
	var added []domain.Image
	for _, img := range images {
		if bareRecords(img) {
			if cur, ok := a.Session.Current(); ok {
				img.RefID = cur.RefID
			}
		}
		if _, ok := a.Session.Image(img.RefID); ok && img.RefID != "" {
			updates[img.RefID] = img.Annotations
			continue
		}
		img.ID = nil
		added = append(added, img)
	}
	if err := a.Session.CommitAnnotations(updates); err != nil {
		return 0, err
	}
	if len(added) > 0 {
		a.Session.AppendImages(a.ctx, added)
	}
	a.Notices.Notify(ctx, domain.Notice{
		Level:     domain.LevelSuccess,
		MessageID: domain.MsgImportDone,
		Data:      map[string]any{"Count": len(images)},
	})
	return len(images), nil
}

// bareRecords reports whether img was read from a plain array of annotation
// records, which names no image at all.
func bareRecords(img domain.Image) bool {
	return img.RefID == "" && img.ID == nil && img.Name == "" && img.URL == ""
}

// DeleteImage removes an image from the session once confirmed.
func (a *App) DeleteImage(ctx context.Context, ref string) (bool, error) {
	ok, err := a.Session.DeleteImage(ctx, ref)
	if ok {
		a.Raster.Thumbs.Forget(ref)
	}
	return ok, err
}

// Serve runs the HTTP server until ctx is done.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.GetHTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	a.Logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("while shutting down: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func stringOr(str, or string) string {
	if strings.TrimSpace(str) != "" {
		return str
	}
	return or
}

func quote(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", "\n> ")
}
