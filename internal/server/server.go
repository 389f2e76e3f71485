// Package server exposes the dashboard, login, settings, and admin panel over
// HTTP.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/levelwatch/levelwatch/internal/auth"
	"github.com/levelwatch/levelwatch/internal/models"
	"github.com/levelwatch/levelwatch/internal/notify"
	"github.com/levelwatch/levelwatch/internal/render"
	"github.com/levelwatch/levelwatch/internal/watch"
)

const sessionCookie = "levelwatch_session"

// loginSession is one authenticated browser session.
type loginSession struct {
	username  string
	role      string
	createdAt time.Time
}

// Server wires the watch session, credential store, and renderer behind a
// gorilla/mux router.
type Server struct {
	session  *watch.Session
	users    *auth.Store
	renderer *render.Renderer
	sound    *notify.SoundCue

	refreshSeconds int

	mu     sync.Mutex
	logins map[string]loginSession
}

// New creates the HTTP server. sound may be nil when the cue is disabled at
// configuration time.
func New(session *watch.Session, users *auth.Store, renderer *render.Renderer, sound *notify.SoundCue, pollInterval time.Duration) *Server {
	refresh := int(pollInterval.Seconds())
	if refresh < 5 {
		refresh = 5
	}
	return &Server{
		session:        session,
		users:          users,
		renderer:       renderer,
		sound:          sound,
		refreshSeconds: refresh,
		logins:         make(map[string]loginSession),
	}
}

// Router configures all routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/login", s.handleLoginPage).Methods("GET")
	r.HandleFunc("/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/logout", s.handleLogout).Methods("GET", "POST")

	r.Handle("/", s.requireUser(s.handleDashboard)).Methods("GET")
	r.Handle("/settings", s.requireUser(s.handleSettings)).Methods("POST")
	r.Handle("/api/snapshot", s.requireUser(s.handleSnapshot)).Methods("GET")
	r.Handle("/api/refresh", s.requireUser(s.handleRefresh)).Methods("POST")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Handle("/users", s.requireAdmin(s.handleUsersPage)).Methods("GET")
	admin.Handle("/users", s.requireAdmin(s.handleUserAdd)).Methods("POST")
	admin.Handle("/users/delete", s.requireAdmin(s.handleUserDelete)).Methods("POST")
	admin.Handle("/users/password", s.requireAdmin(s.handleUserPassword)).Methods("POST")

	return r
}

// login records a new authenticated session and returns its cookie token.
func (s *Server) login(username, role string) string {
	token := uuid.New().String()
	s.mu.Lock()
	s.logins[token] = loginSession{username: username, role: role, createdAt: time.Now()}
	s.mu.Unlock()
	return token
}

// currentLogin resolves the request's cookie to an authenticated session.
func (s *Server) currentLogin(r *http.Request) (loginSession, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return loginSession{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	login, ok := s.logins[cookie.Value]
	return login, ok
}

func (s *Server) dropLogin(r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.logins, cookie.Value)
	s.mu.Unlock()
}

type authedHandler func(w http.ResponseWriter, r *http.Request, login loginSession)

// requireUser gates a handler behind a valid login cookie.
func (s *Server) requireUser(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, ok := s.currentLogin(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, login)
	})
}

// requireAdmin additionally requires the admin role.
func (s *Server) requireAdmin(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, ok := s.currentLogin(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if login.role != models.RoleAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next(w, r, login)
	})
}
