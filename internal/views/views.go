// Package views holds the portal's embedded templates and static assets.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"strings"

	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Layout is the chrome every page renders: navbar, toast and title.
type Layout struct {
	Title     string
	Active    string
	User      *models.User
	Flash     *session.Flash
	ModalOpen bool
}

var funcs = template.FuncMap{
	"lower": strings.ToLower,
}

func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// Static is the asset tree served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
