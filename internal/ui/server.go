// Package ui provides the web dashboard for countymap.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/countymap/internal/dashboard"
	"github.com/leapstack-labs/countymap/internal/query"
	"github.com/leapstack-labs/countymap/internal/ui/notifier"
	"github.com/leapstack-labs/countymap/internal/ui/router"
	"golang.org/x/sync/errgroup"
)

// Server is the dashboard web server.
type Server struct {
	dash         *dashboard.Dashboard
	sessionStore *sessions.CookieStore
	port         int
	watch        bool
	templates    query.Source
	title        string
	dev          bool
	logger       *slog.Logger
	notifier     *notifier.Notifier[dashboard.Snapshot]
}

// Config holds configuration for the UI server.
type Config struct {
	Dashboard     *dashboard.Dashboard
	Port          int
	Watch         bool
	Templates     query.Source
	SessionSecret string
	Title         string
	Dev           bool
	Logger        *slog.Logger
}

// NewServer creates a new UI server instance. Every finished render is
// broadcast to the open dashboard tabs.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		dash:         cfg.Dashboard,
		sessionStore: sessionStore,
		port:         cfg.Port,
		watch:        cfg.Watch,
		templates:    cfg.Templates,
		title:        cfg.Title,
		dev:          cfg.Dev,
		logger:       logger,
		notifier:     notifier.New[dashboard.Snapshot](),
	}
	s.dash.Output().OnReplace(s.notifier.Broadcast)
	return s
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, router.Deps{
		Dashboard:    s.dash,
		SessionStore: s.sessionStore,
		Notifier:     s.notifier,
		Title:        s.title,
		IsDev:        s.dev,
	}); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return query.Watch(egctx, s.dash.Builder(), s.templates, s.logger, func() {
				s.rerender(egctx)
			})
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier[dashboard.Snapshot] {
	return s.notifier
}

// rerender redraws the map with the reloaded templates when one is on
// screen. The panel selection is left alone.
func (s *Server) rerender(ctx context.Context) {
	if s.dash.Output().Current().Render == nil {
		return
	}
	if _, err := s.dash.Generate(ctx); err != nil {
		s.logger.Warn("re-render after template reload failed", "error", err)
	}
}
