package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	server          *http.Server
	logger          *zap.SugaredLogger
	shutdownTimeout time.Duration
}

type Option func(s *Server)

func WithReadTimeout(d time.Duration) Option {
	return Option(func(s *Server) {
		s.server.ReadTimeout = d
	})
}

func WithWriteTimeout(d time.Duration) Option {
	return Option(func(s *Server) {
		s.server.WriteTimeout = d
	})
}

func WithShutdownTimeout(d time.Duration) Option {
	return Option(func(s *Server) {
		s.shutdownTimeout = d
	})
}

func New(addr string, h http.Handler, logger *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: 10 * time.Second,
	}
	for _, e := range opts {
		e(s)
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s.logger.Infof("listen=%s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.Serve: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.logger.Infof("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(sctx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
