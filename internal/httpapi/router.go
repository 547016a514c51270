// Package httpapi exposes the chat server over HTTP: health and metrics
// endpoints, a read-only status API and a WebSocket chat transport.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andy6609/roomchat/internal/chat"
)

type Config struct {
	AllowedOrigins []string
	RequestsPerMin int // 0 disables rate limiting
	MaxLineBytes   int
}

// NewRouter wires every route against srv.
func NewRouter(srv *chat.Server, cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:         300,
		}))
		if cfg.RequestsPerMin > 0 {
			r.Use(httprate.LimitByIP(cfg.RequestsPerMin, time.Minute))
		}
		r.Get("/rooms", roomsHandler(srv.Registry()))
		r.Get("/rooms/{roomID}", roomHandler(srv.Registry()))
		r.Get("/sessions", sessionsHandler(srv.Registry()))
	})

	r.Get("/ws", wsHandler(srv, origins, cfg.MaxLineBytes, logger))
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func roomsHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, reg.Rooms())
	}
}

func roomHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "roomID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "room id must be a number"})
			return
		}
		room, err := reg.GetRoom(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func sessionsHandler(reg *chat.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, reg.Sessions())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
