package annotation

import (
	"context"
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates/*.html
	templateFS embed.FS

	templateManager *TemplateManager
)

func init() {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	templateManager, err = NewTemplateManager(sub)
	if err != nil {
		panic(err)
	}
}

// Markdown converts markdown to HTML
func Markdown(text string) template.HTML {
	return template.HTML(blackfriday.Run([]byte(text)))
}

// RenderMarkdownPage renders a markdown document as a full HTML page
func RenderMarkdownPage(ctx context.Context, w io.Writer, title, markdown string) error {
	localeMu.RLock()
	lang := currentLocale
	localeMu.RUnlock()
	return templateManager.Render(w, "page.html", map[string]any{
		"Title":   title,
		"Lang":    lang,
		"Content": Markdown(markdown),
	})
}
