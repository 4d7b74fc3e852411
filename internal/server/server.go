package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paintress/paintress-sync/internal/db"
	"github.com/paintress/paintress-sync/internal/server/events"
	"github.com/paintress/paintress-sync/internal/version"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config *Config
	server *http.Server
	hub    *events.Hub
	db     *sqlx.DB
	svc    *Services
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := db.NewSqliteDB(db.WithPath(config.DBPath()), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, err
	}

	svc, err := NewServices(config, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	hub := events.NewHub()
	handler, err := SetupRoutes(config, svc, hub)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Server{
		config: config,
		hub:    hub,
		db:     sqlDB,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Services() *Services {
	return s.svc
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("server start", "version", version.Detailed(), "addr", s.config.HTTP.Addr, "blob", s.config.Blob.Backend, "auth", s.config.Auth.Enabled)
	defer slog.Info("server stop")

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.hub.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		if err := s.serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server failure", "error", err)
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.Shutdown(ctx)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

func (s *Server) serve(listener net.Listener) error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", listener.Addr(), "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ServeTLS(listener, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", listener.Addr())
	return s.server.Serve(listener)
}
