package annotation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/editor"
	"github.com/lewtec/demarcador/internal/export"
	"github.com/lewtec/demarcador/internal/registry"
	"github.com/lewtec/demarcador/internal/session"
)

const maxDocumentBytes = 32 << 20

func (a *App) GetHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleWelcome)
	mux.HandleFunc("GET /help", a.handleHelp)
	mux.HandleFunc("GET "+AssetPrefix+"{ref}", a.handleAsset)

	mux.HandleFunc("GET /api/images", a.handleImages)
	mux.HandleFunc("POST /api/images", a.handleUpload)
	mux.HandleFunc("POST /api/images/{ref}/select", a.handleSelect)
	mux.HandleFunc("POST /api/images/next", a.handleStep(a.Session.Next))
	mux.HandleFunc("POST /api/images/previous", a.handleStep(a.Session.Previous))
	mux.HandleFunc("DELETE /api/images/{ref}", a.handleDeleteImage)

	mux.HandleFunc("GET /api/classes", a.handleClasses)
	mux.HandleFunc("POST /api/classes", a.handleAddClass)
	mux.HandleFunc("PUT /api/classes/{index}", a.handleUpdateClass)
	mux.HandleFunc("DELETE /api/classes/{index}", a.handleDeleteClass)
	mux.HandleFunc("POST /api/classes/save", a.handleSaveClasses)

	mux.HandleFunc("GET /api/editor", a.handleEditor)
	mux.HandleFunc("POST /api/editor/events", a.handleEditorEvents)

	mux.HandleFunc("GET /api/export", a.handleExport)
	mux.HandleFunc("POST /api/import", a.handleImport)
	mux.HandleFunc("POST /api/save", a.handleSave)
	mux.HandleFunc("GET /api/notices", a.handleNotices)

	var handler http.Handler = mux
	handler = confirmMiddleware(handler)
	handler = i18nMiddleware(handler)
	handler = HTTPLogger(a.Logger, handler)
	return handler
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Warn("while writing response", zap.Error(err))
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownImage),
		errors.Is(err, editor.ErrUnknownShape),
		errors.Is(err, registry.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, session.ErrDrawInProgress):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNotDraggable),
		errors.Is(err, editor.ErrNoEdit),
		errors.Is(err, editor.ErrUnknownTool),
		errors.Is(err, editor.ErrUnknownClass),
		errors.Is(err, editor.ErrUnknownInput),
		errors.Is(err, export.ErrUnrecognizedDocument):
		return http.StatusBadRequest
	}
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed", zap.Error(err))
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// confirmRequired answers a destructive request that was not confirmed
// with the localized prompt the client should show.
func (a *App) confirmRequired(w http.ResponseWriter, r *http.Request, messageID string, data map[string]any) {
	a.writeJSON(w, http.StatusConflict, map[string]string{
		"confirm": Localize(r.Context(), messageID, data),
	})
}

func (a *App) renderPage(w http.ResponseWriter, r *http.Request, title, markdown string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderMarkdownPage(r.Context(), w, title, markdown); err != nil {
		a.Logger.Error("while rendering page", zap.String("title", title), zap.Error(err))
	}
}

func (a *App) handleWelcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := a.Config()
	title := Localize(ctx, "WelcomeTitle", nil)

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n", title)
	fmt.Fprintf(&md, "> %s\n\n", quote(stringOr(cfg.Meta.Description, Localize(ctx, "NoDescription", nil))))
	fmt.Fprintf(&md, "**%s:** %s\n\n", Localize(ctx, "Images", nil), humanize.Comma(int64(len(a.Session.Images()))))
	fmt.Fprintf(&md, "%s\n\n", Localize(ctx, "UploadLimit", map[string]any{
		"Extensions": strings.Join(cfg.Limits.Extensions, ", "),
		"Limit":      humanize.IBytes(uint64(cfg.Limits.MaxUploadBytes)),
	}))
	fmt.Fprintf(&md, "[%s](/help)\n", Localize(ctx, "HelpTitle", nil))
	a.renderPage(w, r, title, md.String())
}

func (a *App) handleHelp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg := a.Config()
	noDescription := Localize(ctx, "NoDescription", nil)
	title := Localize(ctx, "HelpTitle", nil)

	var md strings.Builder
	fmt.Fprintf(&md, "# [<](/) %s\n", title)
	fmt.Fprintf(&md, "> %s\n\n", quote(stringOr(cfg.Meta.Description, noDescription)))
	fmt.Fprintf(&md, "## %s\n\n", Localize(ctx, "Classes", nil))
	for _, c := range a.Registry.Classes() {
		if c.ID == 0 {
			continue
		}
		fmt.Fprintf(&md, "### %s (%s)\n", c.Name, editor.Prefix(c))
		help := cfg.ClassHelp(c.Name)
		if help == nil {
			fmt.Fprintf(&md, "> %s\n\n", noDescription)
			continue
		}
		fmt.Fprintf(&md, "> %s\n\n", quote(stringOr(help.Description, noDescription)))
		if len(help.Examples) > 0 {
			fmt.Fprintf(&md, "#### %s\n", Localize(ctx, "Examples", nil))
			for _, example := range help.Examples {
				fmt.Fprintf(&md, "![](%s%s?thumb=256)", AssetPrefix, example)
			}
			md.WriteString("\n\n")
		}
	}
	a.renderPage(w, r, title, md.String())
}

func (a *App) findImage(r *http.Request, ref string) (domain.Image, error) {
	if img, ok := a.Session.Image(ref); ok {
		return img, nil
	}
	img, err := a.Store.Images.GetByRefID(r.Context(), ref)
	if err != nil {
		return domain.Image{}, err
	}
	if img == nil {
		return domain.Image{}, fmt.Errorf("%w: %s", session.ErrUnknownImage, ref)
	}
	return *img, nil
}

func (a *App) handleAsset(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	img, err := a.findImage(r, ref)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if thumb := r.URL.Query().Get("thumb"); thumb != "" {
		size, err := strconv.Atoi(thumb)
		if err != nil || size <= 0 || size > 2048 {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "thumb must be between 1 and 2048"})
			return
		}
		data, err := a.Raster.Thumbnail(r.Context(), img, size)
		if err != nil {
			a.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
		return
	}

	f, err := a.Raster.Open(r.Context(), img)
	if errors.Is(err, ErrNoRaster) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	defer f.Close()
	if ct := mime.TypeByExtension(path.Ext(stringOr(img.File, img.Name))); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, f); err != nil {
		a.Logger.Warn("while serving asset", zap.String("ref", ref), zap.Error(err))
	}
}

type imageView struct {
	ID      *int64 `json:"id,omitempty"`
	RefID   string `json:"ref_id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Shapes  int    `json:"shapes"`
	Pending bool   `json:"pending"`
	Current bool   `json:"current"`
}

type imagesResponse struct {
	Images  []imageView `json:"images"`
	Loading bool        `json:"loading"`
}

func toImageView(img domain.Image, current string) imageView {
	return imageView{
		ID:      img.ID,
		RefID:   img.RefID,
		Name:    img.Name,
		URL:     img.URL,
		Shapes:  len(img.Annotations),
		Pending: img.Pending(),
		Current: img.RefID == current,
	}
}

func (a *App) images() imagesResponse {
	var current string
	if cur, ok := a.Session.Current(); ok {
		current = cur.RefID
	}
	images := a.Session.Images()
	out := imagesResponse{Images: make([]imageView, 0, len(images)), Loading: a.Session.Loading()}
	for _, img := range images {
		out.Images = append(out.Images, toImageView(img, current))
	}
	return out
}

func (a *App) handleImages(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.images())
}

type rejectedFile struct {
	Name      string `json:"name"`
	MessageID string `json:"id"`
	Error     string `json:"error"`
}

type uploadResponse struct {
	Accepted []imageView    `json:"accepted"`
	Rejected []rejectedFile `json:"rejected"`
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("while parsing upload: %v", err)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []session.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("while opening %s: %v", header.Filename, err)})
			return
		}
		defer f.Close()
		files = append(files, session.File{Name: header.Filename, Size: header.Size, Content: f})
	}
	if len(files) == 0 {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: `no files in the "files" field`})
		return
	}

	accepted, err := a.Session.AddImages(a.ctx, files)
	resp := uploadResponse{Accepted: make([]imageView, 0, len(accepted)), Rejected: []rejectedFile{}}
	for _, img := range accepted {
		resp.Accepted = append(resp.Accepted, toImageView(img, ""))
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			var ferr *session.FileError
			if errors.As(e, &ferr) {
				resp.Rejected = append(resp.Rejected, rejectedFile{Name: ferr.Name, MessageID: ferr.MessageID, Error: ferr.Err.Error()})
			}
		}
	}
	status := http.StatusOK
	if len(accepted) == 0 {
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, resp)
}

func (a *App) handleSelect(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Session.SelectImage(a.ctx, r.PathValue("ref")); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, a.images())
}

func (a *App) handleStep(step func(ctx context.Context) (<-chan error, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := step(a.ctx); err != nil {
			a.writeError(w, err)
			return
		}
		a.writeJSON(w, http.StatusAccepted, a.images())
	}
}

func (a *App) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	img, ok := a.Session.Image(ref)
	if !ok {
		a.writeError(w, fmt.Errorf("%w: %s", session.ErrUnknownImage, ref))
		return
	}
	removed, err := a.DeleteImage(r.Context(), ref)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !removed {
		a.confirmRequired(w, r, domain.MsgConfirmImageDelete, map[string]any{"Name": img.Name})
		return
	}
	a.writeJSON(w, http.StatusOK, a.images())
}

type classView struct {
	Index  int            `json:"index"`
	ID     domain.ClassID `json:"id"`
	Name   string         `json:"name"`
	Color  string         `json:"color"`
	Prefix string         `json:"prefix"`
	Error  string         `json:"error,omitempty"`
}

func (a *App) classes() []classView {
	errs := a.Registry.Errors()
	classes := a.Registry.Classes()
	out := make([]classView, 0, len(classes))
	for i, c := range classes {
		out = append(out, classView{Index: i, ID: c.ID, Name: c.Name, Color: c.Color, Prefix: c.Prefix, Error: errs[i]})
	}
	return out
}

func (a *App) handleClasses(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.classes())
}

func (a *App) handleAddClass(w http.ResponseWriter, r *http.Request) {
	a.Registry.AddBlank()
	a.writeJSON(w, http.StatusCreated, a.classes())
}

func classIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", registry.ErrIndexOutOfRange, r.PathValue("index"))
	}
	return index, nil
}

type classUpdate struct {
	Name   *string `json:"name"`
	Color  *string `json:"color"`
	Prefix *string `json:"prefix"`
}

func (a *App) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	index, err := classIndex(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	classes := a.Registry.Classes()
	if index < 0 || index >= len(classes) {
		a.writeError(w, fmt.Errorf("%w: %d", registry.ErrIndexOutOfRange, index))
		return
	}
	var update classUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("while decoding class: %v", err)})
		return
	}
	if update.Name != nil {
		if err := a.Registry.Rename(index, *update.Name); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if update.Color != nil || update.Prefix != nil {
		current := classes[index]
		color, prefix := current.Color, current.Prefix
		if update.Color != nil {
			color = *update.Color
		}
		if update.Prefix != nil {
			prefix = *update.Prefix
		}
		if err := a.Registry.Style(index, color, prefix); err != nil {
			a.writeError(w, err)
			return
		}
	}
	a.writeJSON(w, http.StatusOK, a.classes())
}

func (a *App) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	index, err := classIndex(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	var name string
	if classes := a.Registry.Classes(); index >= 0 && index < len(classes) {
		name = classes[index].Name
	}
	removed, err := a.Registry.Remove(r.Context(), index)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if !removed {
		a.confirmRequired(w, r, domain.MsgConfirmClassDelete, map[string]any{"Name": name})
		return
	}
	a.writeJSON(w, http.StatusOK, a.classes())
}

func (a *App) handleSaveClasses(w http.ResponseWriter, r *http.Request) {
	if err := a.SaveClasses(r.Context()); err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			a.writeError(w, err)
			return
		}
		a.writeJSON(w, status, a.classes())
		return
	}
	a.writeJSON(w, http.StatusOK, a.classes())
}

func (a *App) editorView() editor.View {
	lookup := a.lookup()
	var view editor.View
	a.Session.WithEditor(func(ed *editor.Editor) error {
		view = ed.View(lookup)
		return nil
	})
	return view
}

func (a *App) handleEditor(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.editorView())
}

// decodeInputs accepts either a bare array of inputs or {"events": [...]}.
func decodeInputs(body io.Reader) ([]editor.Input, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return nil, err
	}
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) > 0 && data[0] == '[' {
		var inputs []editor.Input
		err := json.Unmarshal(data, &inputs)
		return inputs, err
	}
	var wrapper struct {
		Events []editor.Input `json:"events"`
	}
	err = json.Unmarshal(data, &wrapper)
	return wrapper.Events, err
}

type eventsResponse struct {
	Applied int         `json:"applied"`
	Error   string      `json:"error,omitempty"`
	View    editor.View `json:"view"`
}

// handleEditorEvents applies events in order and stops at the first one
// that fails. The events before it stay applied.
func (a *App) handleEditorEvents(w http.ResponseWriter, r *http.Request) {
	inputs, err := decodeInputs(r.Body)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("while decoding events: %v", err)})
		return
	}

	lookup := a.lookup()
	applied := 0
	var view editor.View
	err = a.Session.WithEditor(func(ed *editor.Editor) error {
		defer func() { view = ed.View(lookup) }()
		for _, in := range inputs {
			if err := ed.Apply(in, lookup); err != nil {
				return fmt.Errorf("event %d (%s): %w", applied, in.Type, err)
			}
			applied++
		}
		return nil
	})
	resp := eventsResponse{Applied: applied, View: view}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = statusOf(err)
	}
	a.writeJSON(w, status, resp)
}

func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("annotations_%d.json", time.Now().Unix())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if err := export.Encode(w, a.Session.Images()); err != nil {
		a.Logger.Error("export failed", zap.Error(err))
	}
}

func (a *App) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		a.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}
	n, err := a.Import(r.Context(), data)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (a *App) handleSave(w http.ResponseWriter, r *http.Request) {
	n, err := a.SaveSession(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"saved": n})
}

func (a *App) handleNotices(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.Notices.Drain())
}
