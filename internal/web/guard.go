package web

import (
	"net/http"
	"net/url"

	"registry-console/internal/audit"
	"registry-console/internal/session"
)

// sessionHandler is a page handler that needs the signed-in session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

// requireSession gates a route on an authenticated session. While the store
// is still loading it renders a transient placeholder instead of bouncing the
// operator to the login form; once unauthenticated it redirects to /login and
// preserves the attempted location in the next parameter.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, state := s.store.Current()
		switch state {
		case session.StateLoading:
			s.render(w, r, http.StatusOK, "loading.html", page{Title: "Loading"})
		case session.StateAuthenticated:
			ctx := audit.WithActor(r.Context(), sess.QualifiedID())
			next(w, r.WithContext(ctx), sess)
		default:
			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, "/login?next="+url.QueryEscape(target), http.StatusSeeOther)
		}
	}
}

// requireAdmin additionally bounces non-admin sessions back to the dashboard.
func (s *Server) requireAdmin(next sessionHandler) http.HandlerFunc {
	return s.requireSession(func(w http.ResponseWriter, r *http.Request, sess session.Session) {
		if !sess.IsAdmin() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	})
}
