package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/scheduler-core/internal/aggregation"
	"github.com/wms-platform/scheduler-core/internal/backtest"
	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/predictor"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest <wave-number>",
		Short: "Replay a wave's historical log against the optimizer and report the comparison",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			waveNumber, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid wave number %q: %w", args[0], err)
			}

			c, err := newCtx()
			if err != nil {
				return err
			}
			defer c.close()

			agg := aggregation.New(c.repo, c.logger, aggregation.Config{Interval: c.cfg.WmsSync.AggregationInterval})
			if err := agg.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start aggregation cache: %w", err)
			}
			time.Sleep(2 * time.Second)
			defer agg.Stop()

			pred := predictor.New(agg, predictor.Config{})
			engine := backtest.New(c.repo, pred, c.logger)

			forklifts := make([]*domain.Forklift, c.cfg.Workers.ForkliftsCount)
			for i := range forklifts {
				forklifts[i] = domain.NewForklift(fmt.Sprintf("forklift-%d", i+1), "", 1.5, 15)
			}

			result, err := engine.Run(cmd.Context(), domain.NewID(), waveNumber, forklifts, backtest.Config{
				BufferCapacity: c.cfg.Buffer.Capacity,
			})
			if err != nil {
				return fmt.Errorf("replay wave %d: %w", waveNumber, err)
			}

			if err := os.MkdirAll(c.cfg.ReportsDir, 0o755); err != nil {
				return fmt.Errorf("create reports dir: %w", err)
			}
			reportPath := filepath.Join(c.cfg.ReportsDir, backtest.ReportFileName(waveNumber, result.GeneratedAt))
			f, err := os.Create(reportPath)
			if err != nil {
				return fmt.Errorf("create report file: %w", err)
			}
			defer f.Close()
			if err := backtest.WriteReport(f, result); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			artifact := historical.BacktestArtifact{
				RunID: result.RunID, WaveNumber: waveNumber, GeneratedAt: result.GeneratedAt,
				OriginalDays: result.Summary.OriginalDays, OptimizedDays: result.Summary.OptimizedDays,
				DaysSaved: result.Summary.DaysSaved, ImprovementPercent: result.Summary.ImprovementPercent,
				ReportPath: reportPath,
				Summary:    fmt.Sprintf("%d days -> %d days (%.1f%% improvement)", result.Summary.OriginalDays, result.Summary.OptimizedDays, result.Summary.ImprovementPercent),
			}
			if err := c.repo.SaveBacktestArtifact(cmd.Context(), artifact); err != nil {
				return fmt.Errorf("save backtest artifact: %w", err)
			}

			fmt.Printf("wave %d: %s\nreport written to %s\n", waveNumber, artifact.Summary, reportPath)
			return nil
		},
	}
	return cmd
}
