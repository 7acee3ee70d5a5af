package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onexay/objstore/internal/config"
	"github.com/onexay/objstore/internal/service"
)

// Server wraps the HTTP server configuration and dependencies.
type Server struct {
	srv             *http.Server
	svc             *service.Service
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates an HTTP server with routes and middleware.
func NewServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Server{
		srv: &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           Routes(svc),
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:             svc,
		shutdownTimeout: cfg.ShutdownTimeout.Duration,
		logger:          logger,
	}, nil
}

// Routes mounts the health check and the versioned API.
func Routes(svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/api/v1/", service.Handler(svc))
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = s.svc.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", slog.Duration("timeout", s.shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	return errors.Join(err, s.svc.Close())
}
