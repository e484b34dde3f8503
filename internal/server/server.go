/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the playback engine and session service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/soundbench/soundbench/internal/config"
	"github.com/soundbench/soundbench/internal/engine"
	"github.com/soundbench/soundbench/internal/logbuffer"
	"github.com/soundbench/soundbench/internal/session"
	"github.com/soundbench/soundbench/internal/telemetry"
	"github.com/soundbench/soundbench/internal/version"
)

// Clock is the render clock surface the status endpoint reports on.
type Clock interface {
	Running() bool
}

// Server bundles the HTTP router and its services.
type Server struct {
	cfg        *config.Config
	log        zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	eng       *engine.Engine
	clock     Clock
	sessions  *session.Service
	logBuffer *logbuffer.Buffer
	updates   *version.Checker
	plans     []*session.Plan
}

// New constructs the server and wires its routes. updates may be nil when
// the update checker is not running.
func New(cfg *config.Config, eng *engine.Engine, clock Clock, sessions *session.Service, logBuf *logbuffer.Buffer, updates *version.Checker, logger zerolog.Logger) (*Server, error) {
	plans, err := session.LoadPlans(cfg.PlanPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load plans: %w", err)
		}
		logger.Warn().Str("dir", cfg.PlanPath).Msg("plan directory missing, starting without plans")
	}

	s := &Server{
		cfg:       cfg,
		log:       logger.With().Str("component", "server").Logger(),
		eng:       eng,
		clock:     clock,
		sessions:  sessions,
		logBuffer: logBuf,
		updates:   updates,
		plans:     plans,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("soundbench-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Control endpoints must stay snappy; the websocket is exempt from the
	// timeout because it is long-lived.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(10 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	router.Get("/healthz", s.handleHealth)
	router.Get("/ws/events", s.handleEvents)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", s.handleVersion)

		r.Post("/transport/play", s.handlePlay)
		r.Post("/transport/pause", s.handlePause)
		r.Post("/transport/stop", s.handleStop)
		r.Post("/transport/seek", s.handleSeek)

		r.Post("/tracks/{index}/select", s.handleSelectTrack)
		r.Post("/loop", s.handleLoop)
		r.Post("/volume", s.handleVolume)
		r.Post("/mode", s.handleMode)

		r.Get("/plans", s.handlePlans)
		r.Get("/sessions", s.handleSessionHistory)
		r.Post("/sessions", s.handleSessionStart)
		r.Get("/sessions/current", s.handleSessionStatus)
		r.Post("/sessions/current/answer", s.handleSessionAnswer)
		r.Delete("/sessions/current", s.handleSessionAbort)

		r.Get("/logs", s.handleLogs)
	})

	s.router = router
	return s, nil
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
