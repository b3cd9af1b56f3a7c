package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pkglog "github.com/flenzi/company-service/pkg/log"
)

// Service names reported by the health server.
const (
	ProductServiceName = "company.v1.ProductService"
	UserServiceName    = "company.v1.UserService"
)

// Check probes a dependency.
type Check func(ctx context.Context) error

// Server wraps a grpc.Server exposing the standard health service and
// reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewServer creates the server with every service marked SERVING.
func NewServer(logger zerolog.Logger) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(pkglog.UnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(pkglog.StreamServerInterceptor(logger)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	srv := &Server{grpc: s, health: hs, logger: logger}
	srv.setAll(healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *Server) setAll(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, name := range []string{"", ProductServiceName, UserServiceName} {
		s.health.SetServingStatus(name, status)
	}
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Watch runs checks every interval and flips every service between SERVING
// and NOT_SERVING until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration, checks map[string]Check) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.probe(ctx, checks)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) probe(ctx context.Context, checks map[string]Check) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		if err := check(ctx); err != nil {
			if ctx.Err() != nil && ctx.Err() != context.DeadlineExceeded {
				return
			}
			s.logger.Warn().Err(err).Str("check", name).Msg("health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setAll(status)
}

// Shutdown reports NOT_SERVING, then stops gracefully, forcing the stop when
// ctx expires first.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
}
