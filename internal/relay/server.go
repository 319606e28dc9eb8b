// Package relay exposes message building and delivery over HTTP. Callers
// POST a message document in the same shape Message.ToMap produces; the relay
// validates it through mattermost.FromMap, fills in the configured sender
// defaults and either echoes the webhook payload or forwards it.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mmhook/internal/config"
	"mmhook/internal/mattermost"
	"mmhook/internal/webhook"
)

// Sender delivers a message to an incoming webhook. *webhook.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, destination string, msg mattermost.Message) (*webhook.Result, error)
}

// Server holds the relay's dependencies.
type Server struct {
	Config  *config.Config
	Sender  Sender
	Logger  *slog.Logger
	Metrics *Metrics

	router *chi.Mux
}

// NewServer builds a Server and mounts its routes. metrics may be nil, in
// which case /metrics is not served.
func NewServer(cfg *config.Config, sender Sender, logger *slog.Logger, metrics *Metrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:  cfg,
		Sender:  sender,
		Logger:  logger,
		Metrics: metrics,
		router:  chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers middleware and routes.
//
// Middleware order:
//  1. Recoverer     - outermost, catches every panic.
//  2. RequestID     - correlation ID for logs, responses and the webhook call.
//  3. Security      - nosniff and frame headers on every response.
//  4. RequestLogger - structured access log.
//  5. Metrics       - request counts by route and status.
func (s *Server) mountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeaders)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(s.MetricsMiddleware)

	s.router.Get("/health", s.HandleHealth)
	if s.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	s.router.Post("/v1/messages", s.HandleSend)
	s.router.Post("/v1/messages/preview", s.HandlePreview)
}
