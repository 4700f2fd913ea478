package annotation

import (
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/abiosoft/mold"
)

// TemplateManager renders views inside the shared layout using mold
type TemplateManager struct {
	mu     sync.RWMutex
	engine mold.Engine
}

// NewTemplateManager parses the layout and views found in fsys
func NewTemplateManager(fsys fs.FS) (*TemplateManager, error) {
	engine, err := mold.New(fsys)
	if err != nil {
		return nil, fmt.Errorf("while parsing templates: %w", err)
	}
	return &TemplateManager{engine: engine}, nil
}

// Render renders a view; mold wraps it in layout.html
func (tm *TemplateManager) Render(w io.Writer, view string, data any) error {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.engine.Render(w, view, data)
}
