package grpc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type healthStub struct {
	service.SessionCoordinator
	healthy atomic.Bool
}

func (h *healthStub) Healthy() bool { return h.healthy.Load() }

func check(t *testing.T, srv *health.Server, name string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: name})
	require.NoError(t, err)

	return resp.GetStatus()
}

func TestHealthWatcher_Sync(t *testing.T) {
	srv := health.NewServer()
	coord := &healthStub{}
	coord.healthy.Store(true)
	w := NewHealthWatcher(srv, coord, time.Hour, logger.InitializeTestZapLogger())

	w.sync(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, srv, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, srv, ""))

	coord.healthy.Store(false)
	w.sync(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, srv, ServiceName))
}

func TestHealthWatcher_RunStopsOnCancel(t *testing.T) {
	srv := health.NewServer()
	coord := &healthStub{}
	coord.healthy.Store(true)
	w := NewHealthWatcher(srv, coord, 5*time.Millisecond, logger.InitializeTestZapLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, srv, ServiceName))
}
