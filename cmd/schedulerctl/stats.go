package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "stats [workers|routes|picker-product]",
		Short:     "Recompute and print historical aggregate statistics",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"workers", "routes", "picker-product"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newCtx()
			if err != nil {
				return err
			}
			defer c.close()

			switch args[0] {
			case "workers":
				rows, err := c.repo.AggregateWorkersFromTasks(cmd.Context())
				if err != nil {
					return fmt.Errorf("aggregate workers: %w", err)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Worker\tRole\tTasks\tAvg(s)\tMedian(s)\tP90(s)\tPer hour\n")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f\t%.1f\t%.2f\n", r.WorkerID, r.Role, r.TaskCount, r.AvgDurationSec, r.MedianDurationSec, r.P90DurationSec, r.TasksPerHour)
				}
				return tw.Flush()
			case "routes":
				rows, err := c.repo.AggregateRoutes(cmd.Context())
				if err != nil {
					return fmt.Errorf("aggregate routes: %w", err)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "From\tTo\tMedian(s)\tConfidence\tTrimmed\tOutliers\n")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.2f\t%d\t%d\n", r.FromZone, r.ToZone, r.MedianSec, r.Confidence, r.TrimmedTrips, r.OutliersRemoved)
				}
				return tw.Flush()
			case "picker-product":
				rows, err := c.repo.AggregatePickerProduct(cmd.Context())
				if err != nil {
					return fmt.Errorf("aggregate picker-product: %w", err)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Picker\tSKU\tLines/min\tUnits/min\tKg/min\tConfidence\n")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n", r.PickerID, r.ProductSKU, r.LinesPerMinute, r.UnitsPerMinute, r.KgPerMinute, r.Confidence)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown stats target %q", args[0])
			}
		},
	}
	return cmd
}
