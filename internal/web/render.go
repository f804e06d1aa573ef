package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/karmicapp/karmic/internal/domain/user"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = parseTemplates()

func parseTemplates() map[string]*template.Template {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	pages := []string{"login_signup", "dashboard", "create_request", "chat"}
	set := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		set[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html"))
	}
	return set
}

// page carries the fields the shared layout needs on every render. User is
// nil on the login page.
type page struct {
	User  *user.User
	Rank  string
	Flash string
}

func (s *Server) viewerPage(w http.ResponseWriter, r *http.Request, viewer user.User) page {
	return page{
		User:  &viewer,
		Rank:  user.Rank(viewer.XP),
		Flash: popFlash(w, r),
	}
}

// render executes the named page into a buffer first, so a template failure
// still produces a clean error response.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	tmpl, ok := pageTemplates[name]
	if !ok {
		s.log.WithField("template", name).Error("unknown template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("template render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
