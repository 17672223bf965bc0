package grpc

import (
	"context"
	"time"

	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "traffic.Coordinator"

// HealthWatcher mirrors the coordinator storage health into the standard
// gRPC health service.
type HealthWatcher struct {
	srv      *health.Server
	coord    service.SessionCoordinator
	interval time.Duration
	l        logger.Logger

	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthWatcher(srv *health.Server, coord service.SessionCoordinator, interval time.Duration, l logger.Logger) *HealthWatcher {
	return &HealthWatcher{
		srv:      srv,
		coord:    coord,
		interval: interval,
		l:        l,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// Run polls until ctx is done, then marks everything NOT_SERVING.
func (w *HealthWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			w.srv.Shutdown()
			return nil
		case <-ticker.C:
			w.sync(ctx)
		}
	}
}

func (w *HealthWatcher) sync(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if !w.coord.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	if status == w.last {
		return
	}

	w.srv.SetServingStatus("", status)
	w.srv.SetServingStatus(ServiceName, status)
	w.last = status

	w.l.Infof(ctx, "gRPC health status changed to %s", status)
}
