package grpc

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	srv := NewServer(zerolog.New(io.Discard))

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return res.GetStatus()
}

func TestHealthServing(t *testing.T) {
	srv, c := startServer(t)
	defer srv.Shutdown(context.Background())

	for _, name := range []string{"", ProductServiceName, UserServiceName} {
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, name), name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: "company.v1.Unknown"})
	assert.Error(t, err)
}

func TestProbeFlipsStatus(t *testing.T) {
	srv, c := startServer(t)
	defer srv.Shutdown(context.Background())

	healthy := true
	checks := map[string]Check{
		"database": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	}

	healthy = false
	srv.probe(context.Background(), checks)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, c, ProductServiceName))

	healthy = true
	srv.probe(context.Background(), checks)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))
}

func TestShutdownReportsNotServing(t *testing.T) {
	srv, _ := startServer(t)

	srv.Shutdown(context.Background())

	resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: UserServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
