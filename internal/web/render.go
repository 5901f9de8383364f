package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"registry-console/internal/audit"
	"registry-console/internal/obs"
	"registry-console/internal/registry"
	"registry-console/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*.js
var staticFS embed.FS

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"displayName": registry.DisplayName,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"statusLabel": func(s string) string {
			switch s {
			case registry.StatusPendingTransfer:
				return "Pending Transfer"
			case registry.StatusFrozen:
				return "Frozen"
			case registry.StatusDeleted:
				return "Deleted"
			case registry.StatusActive:
				return "Active"
			default:
				return s
			}
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}
	t, err := template.New("console").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return t, nil
}

// page carries the fields every template shares plus one page-specific body.
type page struct {
	Title    string
	Session  session.Session
	SignedIn bool
	Flash    string
	Error    string
	Unread   int
	Path     string
	Data     any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, p page) {
	sess, state := s.store.Current()
	if state == session.StateAuthenticated {
		p.Session = sess
		p.SignedIn = true
		if p.Unread == 0 {
			_, p.Unread = s.poller.Snapshot()
		}
	}
	if p.Path == "" {
		p.Path = r.URL.Path
	}
	if p.Flash == "" {
		p.Flash = r.URL.Query().Get("flash")
	}
	if p.Error == "" {
		p.Error = r.URL.Query().Get("err")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.tmpl.ExecuteTemplate(w, name, p); err != nil {
		// Headers are gone; all we can do is log.
		logError(r, "render_failed", err)
	}
}

func logError(r *http.Request, msg string, err error) {
	obs.LogRequest(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "error",
		"msg":        msg,
		"request_id": audit.RequestID(r.Context()),
		"path":       r.URL.Path,
		"error":      err.Error(),
	})
}
