package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/karmicapp/karmic/internal/domain/user"
	"github.com/karmicapp/karmic/internal/metrics"
	"github.com/karmicapp/karmic/internal/services/accounts"
)

type loginPage struct {
	page
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in? Straight to the dashboard.
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if _, err := s.sessions.Resolve(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, "login_signup", loginPage{page: page{Flash: popFlash(w, r)}})
}

// handleLoginSubmit serves the combined form: the pressed button decides
// whether the credentials register a new account or open an existing one.
func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	action := r.FormValue("action")

	if username == "" || password == "" {
		setFlash(w, "Please enter both username and password.")
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
		return
	}

	switch action {
	case "signup":
		created, err := s.accounts.Register(r.Context(), username, password)
		switch {
		case errors.Is(err, accounts.ErrUsernameTaken):
			setFlash(w, fmt.Sprintf("User %q already exists. Please log in.", username))
			http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
			return
		case errors.Is(err, accounts.ErrEmptyCredentials):
			setFlash(w, "Please enter both username and password.")
			http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
			return
		case err != nil:
			s.fail(w, r, err, "/login_signup")
			return
		}
		metrics.RecordSignup()
		s.startSession(w, r, created,
			fmt.Sprintf("Registration successful! Welcome, %s. You start with %d Coins!", created.Username, created.Coins))

	case "login":
		u, err := s.accounts.Authenticate(r.Context(), username, password)
		switch {
		case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrEmptyCredentials):
			metrics.RecordLogin(false)
			setFlash(w, "Invalid username or password.")
			http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
			return
		case err != nil:
			s.fail(w, r, err, "/login_signup")
			return
		}
		metrics.RecordLogin(true)
		s.startSession(w, r, u, fmt.Sprintf("Welcome back, %s!", u.Username))

	default:
		http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		if err := s.sessions.Revoke(r.Context(), cookie.Value); err != nil {
			s.log.WithError(err).Warn("session revoke failed")
		}
	}
	s.clearSessionCookie(w)
	setFlash(w, "You have been successfully logged out.")
	http.Redirect(w, r, "/login_signup", http.StatusSeeOther)
}

// startSession issues a token for the user, sets the cookie and lands them
// on the dashboard.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u user.User, notice string) {
	token, err := s.sessions.Issue(r.Context(), u.ID)
	if err != nil {
		s.fail(w, r, err, "/login_signup")
		return
	}
	s.setSessionCookie(w, token)
	setFlash(w, notice)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail logs an unexpected error and sends the user back with a generic
// notice.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, location string) {
	s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	setFlash(w, "Something went wrong. Please try again.")
	http.Redirect(w, r, location, http.StatusSeeOther)
}
