// Package web serves the practice control panel: the start/stop button,
// the live counters, the practice log and the microphone consent prompt.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/christian-lee/practicetime/internal/session"
	"github.com/christian-lee/practicetime/internal/store"
)

const (
	tokenCookie = "practicetime_token"
	sessionTTL  = 24 * time.Hour
)

// Controller is the session lifecycle the panel drives.
type Controller interface {
	Toggle(ctx context.Context) (bool, error)
	Stop() error
	Running() bool
	Status() session.Status
	Subscribe(fn func(session.Status)) func()
}

// Journal exposes the practice log text.
type Journal interface {
	Text() string
}

// Store holds consent, history and panel users.
type Store interface {
	Grant() error
	Revoke() error
	RecentSessions(limit int) ([]store.Record, error)
	HasUsers() (bool, error)
	Authenticate(username, password string) (*store.User, error)
	SaveWebSession(token string, userID int64, expiry time.Time) error
	ValidWebSession(token string, now time.Time) bool
	DeleteWebSession(token string) error
}

// Update is the payload of every pushed message.
type Update struct {
	Status session.Status `json:"status"`
	Log    string         `json:"log"`
}

type Server struct {
	ctl     Controller
	journal Journal
	store   Store
	port    int
	hub     *Hub

	upgrader    websocket.Upgrader
	unsubscribe func()
	srv         *http.Server
}

func NewServer(ctl Controller, journal Journal, st Store, port int) *Server {
	s := &Server{
		ctl:     ctl,
		journal: journal,
		store:   st,
		port:    port,
		hub:     NewHub(),
	}
	s.unsubscribe = ctl.Subscribe(func(status session.Status) {
		s.hub.Broadcast(Message{Type: MsgUpdate, Payload: Update{Status: status, Log: journal.Text()}})
	})
	return s
}

// Handler returns the routed panel.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
	mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("POST /api/toggle", s.requireAuth(s.handleToggle))
	mux.HandleFunc("GET /api/log", s.requireAuth(s.handleLog))
	mux.HandleFunc("POST /api/permission", s.requireAuth(s.handlePermission))
	mux.HandleFunc("GET /api/history", s.requireAuth(s.handleHistory))
	mux.HandleFunc("GET /ws", s.requireAuth(s.handleWS))
	return mux
}

// Start listens in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("web control panel started", "addr", addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server error", "err", err)
		}
	}()
}

// Shutdown stops listening and disconnects live panels.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) authEnabled() bool {
	has, err := s.store.HasUsers()
	if err != nil {
		slog.Error("check users failed", "err", err)
		return true
	}
	return has
}

func (s *Server) isValidSession(r *http.Request) bool {
	cookie, err := r.Cookie(tokenCookie)
	if err != nil {
		return false
	}
	return s.store.ValidWebSession(cookie.Value, time.Now())
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() || s.isValidSession(r) {
			next(w, r)
			return
		}
		// API calls get 401, page requests redirect to login
		if strings.HasPrefix(r.URL.Path, "/api") || r.URL.Path == "/ws" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	username := r.FormValue("username")

	user, err := s.store.Authenticate(username, r.FormValue("password"))
	if err != nil {
		slog.Error("authenticate failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token := generateToken()
	if err := s.store.SaveWebSession(token, user.ID, time.Now().Add(sessionTTL)); err != nil {
		slog.Error("save web session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("user logged in", "username", username, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(tokenCookie); err == nil {
		s.store.DeleteWebSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   tokenCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if !s.authEnabled() || s.isValidSession(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginHTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	running, err := s.ctl.Toggle(r.Context())
	switch {
	case errors.Is(err, session.ErrPermissionRequired):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":              err.Error(),
			"permission_pending": true,
		})
		return
	case err != nil:
		slog.Warn("toggle failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("session toggled via web", "running", running, "ip", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]bool{"running": running})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.journal.Text())
}

// handlePermission answers the consent prompt: action=grant or action=deny.
func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var err error
	switch action := r.FormValue("action"); action {
	case "", "grant":
		err = s.store.Grant()
		slog.Info("🎤 microphone permission granted via web")
	case "deny":
		err = s.store.Revoke()
		slog.Info("🎤 microphone permission denied via web")
		if err == nil && s.ctl.Running() {
			if stopErr := s.ctl.Stop(); stopErr != nil && !errors.Is(stopErr, session.ErrNotRunning) {
				slog.Warn("stop after revoke failed", "err", stopErr)
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid action")
		return
	}
	if err != nil {
		slog.Error("update consent failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := s.store.RecentSessions(limit)
	if err != nil {
		slog.Error("load history failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade error", "err", err)
		return
	}

	slog.Debug("ws client connected", "ip", r.RemoteAddr)
	c := s.hub.Add(conn, Message{Type: MsgUpdate, Payload: Update{Status: s.ctl.Status(), Log: s.journal.Text()}})

	go func() {
		defer func() {
			s.hub.Remove(c)
			slog.Debug("ws client disconnected", "ip", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
