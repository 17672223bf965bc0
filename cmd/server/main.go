package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vogiaan1904/trafficroom/config"
	grpcDelivery "github.com/vogiaan1904/trafficroom/internal/delivery/grpc"
	httpDelivery "github.com/vogiaan1904/trafficroom/internal/delivery/http"
	"github.com/vogiaan1904/trafficroom/internal/delivery/kafka/consumer"
	"github.com/vogiaan1904/trafficroom/internal/delivery/kafka/producer"
	"github.com/vogiaan1904/trafficroom/internal/infra/redis"
	repo "github.com/vogiaan1904/trafficroom/internal/repository/redis"
	"github.com/vogiaan1904/trafficroom/internal/scheduler"
	"github.com/vogiaan1904/trafficroom/internal/service"
	"github.com/vogiaan1904/trafficroom/internal/token"
	pkgKafka "github.com/vogiaan1904/trafficroom/pkg/kafka"
	pkgLog "github.com/vogiaan1904/trafficroom/pkg/logger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 2 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer func() { _ = l.Sync() }()

	redisCli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(context.Background(), redisCli, l)

	ssRepo := repo.NewRedisSessionRepository(redisCli, l)
	histRepo := repo.NewRedisHistoryRepository(redisCli, l)
	userRepo := repo.NewRedisUserRepository(redisCli, l)

	// Notifier: Kafka when enabled, log otherwise
	var notifier service.Notifier = service.NewLogNotifier(l)
	var cons *consumer.Consumer
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod := producer.NewProducer(kafkaSyncProd, l)
		defer prod.Close()
		notifier = prod

		l.Infof(ctx, "Kafka enabled, brokers: %v", cfg.Kafka.Brokers)
	}

	// Services
	rankSvc := service.NewRankingService(histRepo, userRepo, l)
	coord := service.NewCoordinator(
		ssRepo,
		userRepo,
		rankSvc,
		token.NewGenerator(cfg.Session.PathPrefix, cfg.Session.TokenBytes),
		notifier,
		cfg.Session,
		cfg.Persistence,
		l,
	)

	if err := coord.Recover(ctx); err != nil {
		l.Errorf(ctx, "Failed to recover active session, starting idle: %v", err)
	}
	defer coord.Close()

	resetJob, err := scheduler.NewResetJob(cfg.Session.ResetSchedule, rankSvc, notifier, cfg.Session.ResetMessage, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to schedule ranking reset: %v", err)
	}

	// Hit consumer for remote edge listeners
	if cfg.Kafka.Enabled {
		kafkaConsGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ConsumerGroupID,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka consumer: %v", err)
		}
		cons = consumer.NewConsumer(kafkaConsGr, coord, l)
		defer func() {
			if err := cons.Close(); err != nil {
				l.Warnf(context.Background(), "Failed to close Kafka consumer: %v", err)
			}
		}()
	}

	// HTTP server
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(httpDelivery.NewHTTPHandler(coord, cfg.Session.RankLimit, l), cfg.JWT.Secret, l),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health server
	lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRpcPort))
	if err != nil {
		l.Fatalf(ctx, "gRPC server failed to listen: %v", err)
	}
	gRpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gRpcSrv, healthSrv)
	watcher := grpcDelivery.NewHealthWatcher(healthSrv, coord, healthCheckInterval, l)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Infof(gctx, "gRPC server is listening on port: %d", cfg.Server.GRpcPort)
		if err := gRpcSrv.Serve(lnr); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return watcher.Run(gctx)
	})

	if cons != nil {
		g.Go(func() error {
			return cons.Start(gctx)
		})
	}

	resetJob.Start()

	g.Go(func() error {
		<-gctx.Done()
		l.Info(context.Background(), "Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		resetJob.Stop(shutdownCtx)
		gRpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(context.Background(), "Server exited with error: %v", err)
	}

	l.Info(context.Background(), "Server exited")
}
