// Package api provides the local control API for relaunch.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/websocket"

	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/session"
	"github.com/rennerdo30/relaunch/internal/version"
)

// Controller is the session surface the API drives.
type Controller interface {
	Status() session.Status
	Logs() []string
	CheckNow(ctx context.Context, force bool) (bool, error)
}

// API provides the control API.
type API struct {
	controller Controller
	metrics    http.Handler
	hub        *WebSocketHub
	token      string

	// baseCtx bounds checks triggered over HTTP; they outlive the request.
	baseCtx context.Context
}

// Config holds API configuration.
type Config struct {
	Controller Controller
	Metrics    http.Handler  // Served at /metrics when set
	Hub        *WebSocketHub // Serves /api/v1/ws when set
	Token      string
	BaseCtx    context.Context
}

// New creates a new API server.
func New(cfg Config) *API {
	base := cfg.BaseCtx
	if base == nil {
		base = context.Background()
	}
	return &API{
		controller: cfg.Controller,
		metrics:    cfg.Metrics,
		hub:        cfg.Hub,
		token:      cfg.Token,
		baseCtx:    base,
	}
}

// Handler returns the HTTP handler for the API.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)

	// Auth middleware if token is set (WebSocket clients pass ?token=)
	if a.token != "" {
		r.Use(a.authMiddleware)
	}

	// The stream is long-lived, so it stays outside the timeout.
	if a.hub != nil {
		r.Handle("/api/v1/ws", websocket.Handler(a.hub.ServeWS))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		a.addAPIRoutes(r)
		if a.metrics != nil {
			r.Handle("/metrics", a.metrics)
		}
	})

	return r
}

// addAPIRoutes adds all API routes to the router.
func (a *API) addAPIRoutes(r chi.Router) {
	r.Get("/api/v1/health", a.handleHealth)
	r.Get("/api/v1/version", a.handleVersion)
	r.Get("/api/v1/status", a.handleStatus)
	r.Get("/api/v1/logs", a.handleLogs)
	r.Post("/api/v1/check", a.handleCheck)
}

func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			// Fallback to query parameter for WebSocket connections
			token = r.URL.Query().Get("token")
		}
		token = strings.TrimPrefix(token, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds common security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logging.Debug("API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, version.GetInfo())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if a.controller == nil {
		http.Error(w, "session not running", http.StatusServiceUnavailable)
		return
	}

	response := map[string]interface{}{
		"status":  "running",
		"version": version.Short(),
		"time":    time.Now().Format(time.RFC3339),
		"session": a.controller.Status(),
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.controller == nil {
		a.writeJSON(w, http.StatusOK, []string{})
		return
	}

	entries := a.controller.Logs()
	if lastStr := r.URL.Query().Get("last"); lastStr != "" {
		last, err := strconv.Atoi(lastStr)
		if err != nil || last < 0 {
			http.Error(w, "last must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if last < len(entries) {
			entries = entries[len(entries)-last:]
		}
	}

	a.writeJSON(w, http.StatusOK, entries)
}

// handleCheck starts a manual cycle in the background. The cycle usually
// outlives the request, so progress is visible through /logs and /ws.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	if a.controller == nil {
		http.Error(w, "session not running", http.StatusServiceUnavailable)
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "force must be a boolean", http.StatusBadRequest)
			return
		}
		force = parsed
	}

	if a.controller.Status().Updating {
		a.writeJSON(w, http.StatusConflict, map[string]string{"error": "update already in progress"})
		return
	}

	ctx := logging.ContextWith(a.baseCtx, "request_id", middleware.GetReqID(r.Context()))
	go func() {
		applied, err := a.controller.CheckNow(ctx, force)
		if err != nil {
			logging.FromContext(ctx).Warn("Manual update check failed", "error", err)
		}
		if a.hub != nil {
			event := CheckEvent{Applied: applied, Force: force}
			if err != nil {
				event.Error = err.Error()
			}
			a.hub.Broadcast(EventCheckFinished, event)
		}
	}()

	a.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "update check started",
		"force":   force,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
