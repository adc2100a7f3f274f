// Package web exposes the bot's read-only status API: today's solar
// events, the armed timetable, and prometheus metrics. It has no control
// surface; the process is driven entirely by its own schedule.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sunbot/internal/astro"
	"sunbot/internal/config"
	"sunbot/internal/log"
	"sunbot/internal/sched"
)

// Status is what the server reads from the running bot.
type Status interface {
	// Today returns the current day's events; nil before the first build.
	Today() *astro.DayEvents
}

// Server provides the HTTP status endpoints.
type Server struct {
	cfg    *config.Config
	status Status
	tt     *sched.Timetable
	mux    *http.ServeMux
}

// NewServer constructs a Server.
func NewServer(cfg *config.Config, status Status, tt *sched.Timetable) *Server {
	s := &Server{
		cfg:    cfg,
		status: status,
		tt:     tt,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/today", s.handleToday)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns the underlying http.Handler, wrapped with basic auth
// when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		log.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="sunbot", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleToday(w http.ResponseWriter, _ *http.Request) {
	ev := s.status.Today()
	if ev == nil {
		http.Error(w, "no day computed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, ev)
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.tt.Snapshot())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode failed", err)
	}
}

// Serve runs the server until ctx is canceled, then shuts down gracefully.
func Serve(ctx context.Context, cfg *config.Config, status Status, tt *sched.Timetable) error {
	s := NewServer(cfg, status, tt)
	srv := &http.Server{Addr: cfg.Listen, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
