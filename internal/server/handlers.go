package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/levelwatch/levelwatch/internal/auth"
	"github.com/levelwatch/levelwatch/internal/logger"
	"github.com/levelwatch/levelwatch/internal/models"
	"github.com/levelwatch/levelwatch/internal/render"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	if err := s.users.Verify(username, password); err != nil {
		// The message never says which field was wrong.
		s.renderLogin(w, "Invalid login")
		return
	}

	role, err := s.users.Role(username)
	if err != nil {
		logger.Error("Failed to resolve role for %s: %v", username, err)
		s.renderLogin(w, "Invalid login")
		return
	}

	token := s.login(username, role)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.dropLogin(r)
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, login loginSession) {
	snapshot, polled := s.session.Snapshot()
	settings := s.session.Settings()

	sortOption := r.URL.Query().Get("sort")
	if sortOption != render.SortRunDown && sortOption != render.SortChange {
		sortOption = render.SortDefault
	}

	view := render.DashboardView{
		Title:          "Live Prices with P2L",
		Username:       login.username,
		IsAdmin:        login.role == models.RoleAdmin,
		GeneratedAt:    snapshot.TakenAt,
		NoData:         !polled || snapshot.NoData,
		Rows:           render.SortRows(snapshot.Rows, sortOption),
		AvgP2L:         snapshot.AvgP2L,
		RefreshSeconds: s.refreshSeconds,
		SortOption:     sortOption,
		Watchlist:      strings.Join(settings.Watchlist, ", "),
		Threshold:      settings.Threshold.StringFixed(1),
		SoundEnabled:   settings.SoundEnabled,
		TelegramOn:     settings.TelegramEnabled,
		Notice:         r.URL.Query().Get("notice"),
	}
	if snapshot.Alerting && settings.SoundEnabled && s.sound != nil {
		view.Sound = s.soundView()
	}

	if err := s.renderer.Dashboard(w, view); err != nil {
		logger.Error("Failed to render dashboard: %v", err)
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, login loginSession) {
	// The watch-list arrives as free-text comma-separated symbols.
	var watchlist []string
	for _, ticker := range strings.Split(r.FormValue("watchlist"), ",") {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if ticker != "" {
			watchlist = append(watchlist, ticker)
		}
	}
	s.session.SetWatchlist(watchlist)

	if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err == nil {
			err = s.session.SetThreshold(threshold)
		}
		if err != nil {
			http.Error(w, "threshold must be a negative number", http.StatusBadRequest)
			return
		}
	}

	s.session.SetToggles(r.FormValue("sound") != "", r.FormValue("telegram") != "")
	http.Redirect(w, r, "/?notice=Settings+saved", http.StatusSeeOther)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, login loginSession) {
	snapshot, polled := s.session.Snapshot()
	if !polled || snapshot.NoData {
		respondJSON(w, http.StatusOK, map[string]any{"no_data": true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"rows":     snapshot.Rows,
		"avg_p2l":  snapshot.AvgP2L,
		"taken_at": snapshot.TakenAt,
		"alerting": snapshot.Alerting,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, login loginSession) {
	s.session.Poll(r.Context())
	if r.Header.Get("Accept") == "application/json" {
		respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUsersPage(w http.ResponseWriter, r *http.Request, login loginSession) {
	s.renderUsers(w, login, r.URL.Query().Get("notice"), "")
}

func (s *Server) handleUserAdd(w http.ResponseWriter, r *http.Request, login loginSession) {
	err := s.users.AddUser(r.FormValue("username"), r.FormValue("password"), r.FormValue("role"))
	if err != nil {
		s.renderUsers(w, login, "", err.Error())
		return
	}
	http.Redirect(w, r, "/admin/users?notice=User+added", http.StatusSeeOther)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request, login loginSession) {
	err := s.users.RemoveUser(r.FormValue("username"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrProtectedUser) {
			status = http.StatusForbidden
		}
		if wantsJSON(r) {
			respondJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		s.renderUsers(w, login, "", err.Error())
		return
	}
	http.Redirect(w, r, "/admin/users?notice=User+removed", http.StatusSeeOther)
}

func (s *Server) handleUserPassword(w http.ResponseWriter, r *http.Request, login loginSession) {
	err := s.users.SetPassword(r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		s.renderUsers(w, login, "", err.Error())
		return
	}
	http.Redirect(w, r, "/admin/users?notice=Password+updated", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, errMsg string) {
	view := render.LoginView{Title: "Log in", Error: errMsg}
	if err := s.renderer.Login(w, view); err != nil {
		logger.Error("Failed to render login page: %v", err)
	}
}

func (s *Server) renderUsers(w http.ResponseWriter, login loginSession, notice, errMsg string) {
	users, err := s.users.ListUsers()
	if err != nil {
		logger.Error("Failed to list users: %v", err)
		http.Error(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	view := render.UsersView{
		Title:    "User management",
		Username: login.username,
		Users:    users,
		Notice:   notice,
		Error:    errMsg,
	}
	if err := s.renderer.Users(w, view); err != nil {
		logger.Error("Failed to render user panel: %v", err)
	}
}

func (s *Server) soundView() *render.SoundView {
	return &render.SoundView{
		Src:     template.URL(s.sound.Src()),
		Repeats: s.sound.Repeats(),
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
