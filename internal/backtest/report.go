package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// ReportFileName builds the configured output filename,
// backtest_<wave>_<YYYYMMDD_HHMMSS>.txt, per §6.
func ReportFileName(waveNumber int, at time.Time) string {
	return fmt.Sprintf("backtest_%d_%s.txt", waveNumber, at.Format("20060102_150405"))
}

// WriteReport renders the detailed per-day-breakdown report (Open
// Question (a)) to w.
func WriteReport(w io.Writer, result Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "ОБЩАЯ ИНФОРМАЦИЯ\n")
	fmt.Fprintf(tw, "Run\t%s\n", result.RunID)
	fmt.Fprintf(tw, "Wave\t%d\n", result.WaveNumber)
	fmt.Fprintf(tw, "Generated\t%s\n", result.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Fact records\t%d\n", len(result.FactTimeline))
	fmt.Fprintf(tw, "Optimized assignments\t%d\n", len(result.OptimizedPlan))
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "РЕЗУЛЬТАТЫ СРАВНЕНИЯ\n")
	fmt.Fprintf(tw, "Original days\t%d\n", result.Summary.OriginalDays)
	fmt.Fprintf(tw, "Optimized days\t%d\n", result.Summary.OptimizedDays)
	fmt.Fprintf(tw, "Days saved\t%d\n", result.Summary.DaysSaved)
	fmt.Fprintf(tw, "Improvement\t%.1f%%\n", result.Summary.ImprovementPercent)
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "РАЗБИВКА ПО ДНЯМ\n")
	fmt.Fprintf(tw, "Date\tWorkers\tFact pallets\tOpt pallets\tDelta\tBuffer end\tFact active(s)\tOpt active(s)\tImprovement\n")
	for _, d := range result.Summary.PerDay {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.2f\t%.0f\t%.0f\t%.1f%%\n",
			d.Date, d.Workers, d.FactPallets, d.OptimizedPallets, d.Delta, d.BufferLevelEnd,
			d.FactActiveSec, d.OptimizedActiveSec, d.ImprovementPercent)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "РАЗБИВКА ПО РАБОТНИКАМ\n")
	fmt.Fprintf(tw, "Worker\tTasks\tWall clock\tActive\n")
	for _, wt := range result.Summary.PerWorker {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", wt.WorkerID, wt.TaskCount, wt.WallClock.Round(time.Second), wt.ActiveDuration.Round(time.Second))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "ИСТОЧНИКИ ОЦЕНКИ ВРЕМЕНИ\n")
	for source, count := range result.Summary.DurationSources {
		fmt.Fprintf(tw, "%s\t%d\n", source, count)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "ФАКТИЧЕСКОЕ РАСПИСАНИЕ\n")
	fmt.Fprintf(tw, "Worker\tRole\tStart\tEnd\tProduct\tFrom\tTo\tWeight(kg)\tBuffer\n")
	for _, ev := range result.FactSchedule {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f\t%.2f\n",
			ev.WorkerID, ev.Role, ev.StartedAt.Format(time.RFC3339), ev.EndedAt.Format(time.RFC3339),
			ev.Product, ev.FromBin, ev.ToBin, ev.WeightKg, ev.BufferAtStart)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "ОПТИМИЗИРОВАННОЕ РАСПИСАНИЕ\n")
	fmt.Fprintf(tw, "Worker\tStart\tEnd\tDuration(s)\tProduct\tWeight(kg)\tBuffer\n")
	for _, ev := range result.OptimizedPlan {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\t%.1f\t%.2f\n",
			ev.WorkerID, ev.StartedAt.Format(time.RFC3339), ev.EndedAt.Format(time.RFC3339),
			ev.DurationSec, ev.Product, ev.WeightKg, ev.BufferAtStart)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "ЖУРНАЛ РЕШЕНИЙ\n")
	fmt.Fprintf(tw, "Seq\tTime\tDecision\tWorker\tConstraint\tBuffer before\tBuffer after\tReason\n")
	for _, d := range result.DecisionLog {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			d.Sequence, formatTime(d.SimulatedAt), d.Type, d.WorkerID, d.Constraint,
			d.BufferBefore, d.BufferAfter, d.Reason)
	}

	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
