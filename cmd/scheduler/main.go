// Command scheduler runs the control service (C11): the three
// cooperative control loops, the periodic aggregation worker, and a
// small Gin HTTP surface for health checks, metrics, and scheduler
// start/stop, grounded on
// services/waving-service/cmd/api/main.go's wiring shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/scheduler-core/internal/aggregation"
	"github.com/wms-platform/scheduler-core/internal/config"
	"github.com/wms-platform/scheduler-core/internal/control"
	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/platform/events"
	"github.com/wms-platform/scheduler-core/internal/platform/logging"
	"github.com/wms-platform/scheduler-core/internal/platform/metrics"
	"github.com/wms-platform/scheduler-core/internal/platform/outbound"
	"github.com/wms-platform/scheduler-core/internal/platform/resilience"
	"github.com/wms-platform/scheduler-core/internal/wms"
)

const serviceName = "scheduler-core"

func main() {
	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()
	logger.Info("starting scheduler-core")

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	ctx := context.Background()
	mongoClient, err := connectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		logger.WithError(err).Error("failed to connect to mongodb")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()

	repo := historical.New(mongoClient.Database(cfg.Mongo.Database), logger, m, historical.Config{
		IQRFactor: cfg.RouteStatistics.IQRFactor, MinTripsForTrust: cfg.RouteStatistics.MinTripsForTrust,
	})

	agg := aggregation.New(repo, logger, aggregation.Config{Interval: cfg.WmsSync.AggregationInterval})
	if err := agg.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start aggregation worker")
	}
	defer agg.Stop()

	bus := events.New(func(t events.Type, r any) {
		logger.Event(ctx, "event_handler_panic", map[string]any{"type": string(t), "recovered": r})
	})

	publisher := outbound.NewPublisher(outbound.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
	if cfg.Kafka.Enabled {
		outbound.Subscribe(bus, publisher, []events.Type{
			events.BufferLevelChanged, events.PalletDelivered, events.PalletConsumed,
			events.PalletRequested, events.ForkliftStateChanged, events.TaskStreamCompleted,
		})
	}
	defer publisher.Close()

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("wms-adapter"), logger)
	adapter := wms.NewHTTPClient(cfg.WMS.BaseURL, cfg.WMS.Timeout, breaker)

	svc := control.New(cfg, adapter, repo, agg, bus, logger, m)
	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Error("failed to start control service")
		os.Exit(1)
	}
	logger.Info("control service started")

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(rctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1/scheduler")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"running": svc.IsRunning(), "stats": svc.Stats()})
	})
	api.POST("/stop", func(c *gin.Context) {
		svc.Stop()
		c.JSON(http.StatusOK, gin.H{"message": "control service stopped"})
	})
	api.POST("/start", func(c *gin.Context) {
		if svc.IsRunning() {
			c.JSON(http.StatusOK, gin.H{"message": "already running"})
			return
		}
		if err := svc.Start(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "control service started"})
	})

	srv := &http.Server{Addr: cfg.ServerAddr, Handler: router, ReadTimeout: 10 * time.Second, WriteTimeout: 30 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server error")
		}
	}()
	logger.Info("http server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	svc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server forced to shutdown")
	}
	logger.Info("shutdown complete")
}

func connectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	return client, nil
}
