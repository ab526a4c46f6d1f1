package markdownpages

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/pkg/errors"
)

var (
	//go:embed all:static
	_static embed.FS

	//go:embed templates/*.html
	_templates embed.FS

	staticFiles = http.FileServer(http.FS(_static))
)

// parseTemplates loads every page template. layout.html holds the "header"
// and "footer" blocks the others share.
func parseTemplates() (*template.Template, error) {
	t, err := template.New("markdownpages").ParseFS(_templates, "templates/*.html")
	return t, errors.Wrap(err, "templates")
}
