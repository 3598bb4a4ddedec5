// Package grpc 提供运维用的 gRPC 服务：标准健康检查，附带日志与 panic 恢复拦截器。
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported for the whole app.
const ServiceName = "socialsync"

// Check probes one dependency (database, redis...).
type Check func(ctx context.Context) error

type Server struct {
	server   *grpc.Server
	listener net.Listener
	address  string
	health   *health.Server
	logger   *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

func NewServer(address string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	logOpts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandler(recoveryHandler(logger)),
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpts...),
			logging.UnaryServerInterceptor(InterceptorLogger(logger), logOpts...),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpts...),
			logging.StreamServerInterceptor(InterceptorLogger(logger), logOpts...),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		server:   s,
		listener: listener,
		address:  listener.Addr().String(),
		health:   hs,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

func recoveryHandler(logger *zap.Logger) recovery.RecoveryHandlerFunc {
	return func(p any) error {
		logger.Error("recovered from panic in gRPC handler", zap.Any("panic", p), zap.Stack("stack"))
		return status.Error(codes.Internal, "internal error")
	}
}

// InterceptorLogger adapts zap to the go-grpc-middleware logger.
func InterceptorLogger(l *zap.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		f := make([]zap.Field, 0, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				key = fmt.Sprint(fields[i])
			}
			f = append(f, zap.Any(key, fields[i+1]))
		}
		logger := l.WithOptions(zap.AddCallerSkip(1)).With(f...)

		switch lvl {
		case logging.LevelDebug:
			logger.Debug(msg)
		case logging.LevelInfo:
			logger.Info(msg)
		case logging.LevelWarn:
			logger.Warn(msg)
		case logging.LevelError:
			logger.Error(msg)
		default:
			logger.Info(msg, zap.Int("unknown_level", int(lvl)))
		}
	})
}

// WatchDependencies runs checks every interval and flips the health status
// to NOT_SERVING while any of them fails. It returns when ctx is done.
func (s *Server) WatchDependencies(ctx context.Context, interval time.Duration, checks map[string]Check) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.probe(ctx, checks)
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) probe(ctx context.Context, checks map[string]Check) {
	serving := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(cctx)
		cancel()
		if err != nil {
			s.logger.Warn("dependency check failed", zap.String("dependency", name), zap.Error(err))
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, serving)
}

func (s *Server) Addr() string {
	return s.address
}

func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("address", s.address))
	return s.server.Serve(s.listener)
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping gRPC server")
		close(s.done)
		s.health.Shutdown()
		s.server.GracefulStop()
	})
}

// GetServer 获取底层 gRPC 服务器（用于注册服务）
func (s *Server) GetServer() *grpc.Server {
	return s.server
}
