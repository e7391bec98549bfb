// Command schedulerctl is the operator CLI for the scheduling core
// (SPEC_FULL.md §6): sync reference data from the WMS, recompute
// historical statistics, replay a wave backtest, and export predictor
// training data. Grounded on the corpus-wide convention of
// github.com/spf13/cobra for operator CLIs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/scheduler-core/internal/config"
	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/platform/logging"
	"github.com/wms-platform/scheduler-core/internal/platform/metrics"
	"github.com/wms-platform/scheduler-core/internal/platform/resilience"
	"github.com/wms-platform/scheduler-core/internal/wms"
)

type ctx struct {
	cfg     *config.Config
	logger  *logging.Logger
	repo    *historical.Repository
	adapter wms.Adapter
	client  *mongo.Client
}

func newCtx() (*ctx, error) {
	logger := logging.New(logging.DefaultConfig("schedulerctl"))
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	m := metrics.New(metrics.DefaultConfig("schedulerctl"))

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	repo := historical.New(client.Database(cfg.Mongo.Database), logger, m, historical.Config{
		IQRFactor: cfg.RouteStatistics.IQRFactor, MinTripsForTrust: cfg.RouteStatistics.MinTripsForTrust,
	})
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("wms-adapter"), logger)
	adapter := wms.NewHTTPClient(cfg.WMS.BaseURL, cfg.WMS.Timeout, breaker)

	return &ctx{cfg: cfg, logger: logger, repo: repo, adapter: adapter, client: client}, nil
}

func (c *ctx) close() {
	disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.client.Disconnect(disconnectCtx)
}

func main() {
	root := &cobra.Command{
		Use:           "schedulerctl",
		Short:         "Operate the warehouse scheduling core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSyncCmd(), newStatsCmd(), newBacktestCmd(), newTrainCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "schedulerctl: %v\n", err)
		os.Exit(1)
	}
}
