package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the phases of a training run
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	ModelInitTime    time.Duration
	BackwardPassTime time.Duration
	UpdateTime       time.Duration
	EvaluationTime   time.Duration
	SaveTime         time.Duration
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	if steps > 0 {
		fmt.Fprintf(Output, "Average time per batch: %v\n", stats.TotalTime/time.Duration(steps))
	}
	fmt.Fprintf(Output, "Batches completed: %d\n", steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	printShare("Data loading", stats.DataLoadingTime, stats.TotalTime)
	printShare("Model initialization", stats.ModelInitTime, stats.TotalTime)
	printShare("Backpropagation", stats.BackwardPassTime, stats.TotalTime)
	printShare("Weight updates", stats.UpdateTime, stats.TotalTime)
	printShare("Validation", stats.EvaluationTime, stats.TotalTime)
	printShare("Saving", stats.SaveTime, stats.TotalTime)
	if steps > 0 {
		fmt.Fprintln(Output, "\nPerformance metrics:")
		fmt.Fprintf(Output, "  Average backpropagation time per batch: %v\n", stats.BackwardPassTime/time.Duration(steps))
		fmt.Fprintf(Output, "  Average update time per batch: %v\n", stats.UpdateTime/time.Duration(steps))
	}
}

func printShare(name string, d, total time.Duration) {
	fmt.Fprintf(Output, "  %s: %v (%.1f%%)\n", name, d, Share(d, total))
}

// Share returns d as a percentage of total, or 0 when total is zero.
func Share(d, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(d) / float64(total) * 100
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
