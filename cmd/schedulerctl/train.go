package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Export forklift route feature vectors for the offline predictor trainer",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCtx()
			if err != nil {
				return err
			}
			defer c.close()

			rows, err := c.repo.ExportTrainingRoutes(cmd.Context())
			if err != nil {
				return fmt.Errorf("export training routes: %w", err)
			}

			if outPath == "" {
				outPath = filepath.Join(c.cfg.ReportsDir, "training_routes.csv")
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()

			w := csv.NewWriter(f)
			if err := w.Write([]string{"from_zone", "to_zone", "weight_kg", "hour_of_day", "day_of_week", "duration_sec"}); err != nil {
				return err
			}
			for _, r := range rows {
				record := []string{
					r.FromZone, r.ToZone,
					strconv.FormatFloat(r.WeightKg, 'f', 2, 64),
					strconv.Itoa(r.HourOfDay), strconv.Itoa(r.DayOfWeek),
					strconv.FormatFloat(r.DurationSec, 'f', 2, 64),
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return err
			}

			fmt.Printf("exported %d training rows to %s\n", len(rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path (default <reports-dir>/training_routes.csv)")
	return cmd
}
