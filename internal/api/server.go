package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/koustreak/bucketview/internal/config"
	"github.com/koustreak/bucketview/internal/logger"
)

// Server is an http.Server with graceful shutdown.
type Server struct {
	srv     *http.Server
	handler *Handler
	cfg     config.ServerConfig
	log     *logger.Logger
}

// NewServer wires h's router into an http.Server using cfg's timeouts.
func NewServer(h *Handler, cfg config.ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h.Router(),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		handler: h,
		cfg:     cfg,
		log:     log,
	}
}

// Run listens on the configured address and serves until ctx is done,
// then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.handler.Close()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.handler.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", ln.Addr().String()).Logger().Info("http server listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx := context.Background()
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
