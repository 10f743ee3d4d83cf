package grpc

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check sonde une dépendance (DB, cache, broker). nil = SERVING.
type Check func(ctx context.Context) error

// HealthServer expose le protocole grpc.health.v1 pour K8s/Docker.
// Chaque dépendance est un service nommé ; "" est l'état global.
type HealthServer struct {
	health  *health.Server
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthServer(checks map[string]Check) *HealthServer {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &HealthServer{
		health:  health.NewServer(),
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// NewServer construit le serveur gRPC instrumenté (propagation de trace OTEL).
func NewServer() *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
}

func (s *HealthServer) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, s.health)
	// Active la reflection pour grpcurl
	reflection.Register(grpcServer)
}

// Refresh exécute toutes les sondes et met à jour les statuts.
func (s *HealthServer) Refresh(ctx context.Context) bool {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](cctx)
		cancel()

		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			slog.Warn("❤️‍🩹 Health check failed", "dependency", name, "error", err)
		}
		s.health.SetServingStatus(name, status)
	}

	overall := grpc_health_v1.HealthCheckResponse_SERVING
	if !healthy {
		overall = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return healthy
}

// Watch rafraîchit les statuts jusqu'à l'annulation du contexte.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Shutdown passe tout en NOT_SERVING avant le GracefulStop.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}
