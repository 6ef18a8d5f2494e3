// Package grpc поднимает gRPC сервер со стандартным протоколом проверки
// здоровья (grpc.health.v1) и reflection для grpcurl
package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName имя сервиса в ответах health check
const ServiceName = "pronote.assistant.v1.Assistant"

// Pinger проверяет доступность зависимости, обычно хранилища сессий
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server gRPC сервер проверки здоровья
type Server struct {
	pinger     Pinger
	interval   time.Duration
	health     *health.Server
	grpcServer *grpc.Server
	logger     *slog.Logger
}

// NewServer создает сервер. Статус пересчитывается каждые interval.
func NewServer(pinger Pinger, interval time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Включаем Reflection API для grpcurl и других инструментов
	reflection.Register(grpcServer)

	return &Server{
		pinger:     pinger,
		interval:   interval,
		health:     healthServer,
		grpcServer: grpcServer,
		logger:     logger,
	}
}

// Refresh проверяет хранилище и публикует статус
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve обслуживает lis до отмены ctx, затем останавливается
// с завершением текущих вызовов
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, s.interval/2)
				s.Refresh(pingCtx)
				cancel()
			case <-ctx.Done():
				s.health.Shutdown()
				s.grpcServer.GracefulStop()
				return
			case <-done:
				return
			}
		}
	}()

	s.logger.Info("grpc server listening", "addr", lis.Addr().String())
	// ErrServerStopped: контекст отменен раньше, чем Serve успел стартовать
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("ошибка запуска gRPC сервера: %w", err)
	}
	return nil
}

// Start создает TCP слушатель на port и вызывает Serve
func (s *Server) Start(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("ошибка создания TCP слушателя: %w", err)
	}
	return s.Serve(ctx, lis)
}
