package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"registry-console/internal/audit"
	"registry-console/internal/gateway"
	"registry-console/internal/session"
)

type loginData struct {
	Username string
	Org      string
	Next     string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, state := s.store.Current(); state == session.StateAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", page{
		Title: "Sign in",
		Data:  loginData{Next: safeNext(r.URL.Query().Get("next"))},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	org := strings.TrimSpace(r.PostFormValue("org"))
	next := safeNext(r.PostFormValue("next"))

	if err := s.store.Login(r.Context(), username, password, org); err != nil {
		msg := gateway.ServerMessage(err)
		if msg == "" {
			msg = "Sign-in failed. Check your credentials and try again."
		}
		s.render(w, r, http.StatusUnauthorized, "login.html", page{
			Title: "Sign in",
			Error: msg,
			Data:  loginData{Username: username, Org: org, Next: next},
		})
		return
	}

	sess, _ := s.store.Current()
	ctx := audit.WithActor(r.Context(), sess.QualifiedID())
	_ = audit.LogEvent(ctx, "console.login", map[string]any{"role": sess.Role})

	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

type registerData struct {
	Username string
	Email    string
	Org      string
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", page{Title: "Register", Data: registerData{}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	email := strings.TrimSpace(r.PostFormValue("email"))
	org := strings.TrimSpace(r.PostFormValue("org"))
	data := registerData{Username: username, Email: email, Org: org}

	if username == "" || password == "" {
		s.render(w, r, http.StatusBadRequest, "register.html", page{
			Title: "Register", Error: "Username and password are required.", Data: data,
		})
		return
	}

	err := s.api.Register(r.Context(), username, password, email, org)
	if err != nil {
		msg := gateway.ServerMessage(err)
		if errors.Is(err, gateway.ErrRegistrationDisabled) {
			// Deliberately distinct from the generic failure text.
			msg = "Self-service registration is disabled on this network. Ask an administrator to enroll you."
		} else if msg == "" {
			msg = "Registration failed. Try again later."
		}
		s.render(w, r, http.StatusBadRequest, "register.html", page{
			Title: "Register", Error: msg, Data: data,
		})
		return
	}

	http.Redirect(w, r, "/login?flash="+url.QueryEscape("Registration submitted. Sign in once an administrator approves the account."), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess session.Session) {
	// Server-side revocation is best-effort; local state clears regardless.
	if err := s.store.Logout(r.Context()); err != nil {
		logError(r, "logout_revocation_failed", err)
	}
	_ = audit.LogEvent(r.Context(), "console.logout", nil)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type settingsData struct {
	QualifiedID string
	ExpiresAt   string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, sess session.Session) {
	data := settingsData{QualifiedID: sess.QualifiedID()}
	if exp, ok := s.store.ExpiresAt(); ok {
		data.ExpiresAt = exp.Local().Format(time.RFC1123)
	}
	s.render(w, r, http.StatusOK, "settings.html", page{Title: "Settings", Data: data})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("confirm") != sess.Username {
		http.Redirect(w, r, "/settings?err="+url.QueryEscape("Type your username to confirm deactivation."), http.StatusSeeOther)
		return
	}

	if err := s.api.DeleteAccount(r.Context()); err != nil {
		msg := gateway.ServerMessage(err)
		if msg == "" {
			msg = "Deactivation failed. Try again later."
		}
		http.Redirect(w, r, "/settings?err="+url.QueryEscape(msg), http.StatusSeeOther)
		return
	}

	_ = audit.LogEvent(r.Context(), "console.account_deactivated", nil)
	if err := s.store.Logout(r.Context()); err != nil {
		logError(r, "logout_revocation_failed", err)
	}
	http.Redirect(w, r, "/login?flash="+url.QueryEscape("Account deactivated."), http.StatusSeeOther)
}

// safeNext keeps redirect targets on this console.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
