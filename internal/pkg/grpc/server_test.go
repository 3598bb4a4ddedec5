package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	s, err := NewServer("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)
	go s.Start()
	t.Cleanup(s.Stop)

	cc, err := grpclib.NewClient(s.Addr(), grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })
	return s, healthpb.NewHealthClient(cc)
}

func TestHealth(t *testing.T) {
	s, client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("serving after start", func(t *testing.T) {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("failing dependency flips to not serving", func(t *testing.T) {
		s.probe(ctx, map[string]Check{
			"redis":    func(context.Context) error { return errors.New("connection refused") },
			"database": func(context.Context) error { return nil },
		})
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

		s.probe(ctx, map[string]Check{"redis": func(context.Context) error { return nil }})
		resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestRecoveryHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	err := recoveryHandler(zap.New(core))("boom")

	assert.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])
}

func TestInterceptorLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := InterceptorLogger(zap.New(core))

	l.Log(context.Background(), logging.LevelInfo, "finished call", "grpc.method", "Check", "grpc.code", "OK")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "finished call", entry.Message)
	assert.Equal(t, "Check", entry.ContextMap()["grpc.method"])
}
