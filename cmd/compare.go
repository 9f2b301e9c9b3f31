package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploysim/serversim/config"
	"github.com/deploysim/serversim/resultsdb"
	"github.com/deploysim/serversim/sim/trace"
)

var (
	compareSave       bool
	compareResultsDB  string
	compareTraceLevel string
)

var compareCmd = &cobra.Command{
	Use:   "compare <scenario-a.yaml> <scenario-b.yaml>",
	Short: "Run two scenarios and diff their summary metrics",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !trace.IsValidTraceLevel(compareTraceLevel) {
			return fmt.Errorf("invalid --trace level %q (want none, requests, or full)", compareTraceLevel)
		}

		a, err := runOne(cmd, args[0], compareTraceLevel)
		if err != nil {
			return fmt.Errorf("running %s: %w", args[0], err)
		}
		b, err := runOne(cmd, args[1], compareTraceLevel)
		if err != nil {
			return fmt.Errorf("running %s: %w", args[1], err)
		}

		diff := resultsdb.CompareRuns(a, b)
		bold := color.New(color.Bold)
		bold.Fprintf(cmd.OutOrStdout(), "\ncomparison: %s -> %s\n", args[0], args[1])
		fmt.Fprintf(cmd.OutOrStdout(), "  throughput delta:        %+.3f\n", diff.Throughput)
		fmt.Fprintf(cmd.OutOrStdout(), "  avg response time delta: %+.3f\n", diff.AvgResponseTime)
		fmt.Fprintf(cmd.OutOrStdout(), "  p99 response time delta: %+.3f\n", diff.P99)

		if compareSave {
			if compareResultsDB == "" {
				return fmt.Errorf("--save requires --results-db")
			}
			store, err := resultsdb.Open(compareResultsDB)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(a); err != nil {
				return err
			}
			if err := store.Save(b); err != nil {
				return err
			}
			logrus.Infof("saved both run summaries to %s", compareResultsDB)
		}
		return nil
	},
}

// runOne loads, builds, and runs a single scenario file to its horizon,
// printing its own summary before returning the reduced metrics compare
// diffs. Shared with `run`'s single-scenario path via summarize/
// printSummary.
func runOne(cmd *cobra.Command, path string, traceLevelStr string) (resultsdb.RunSummary, error) {
	sc, err := config.LoadFile(path)
	if err != nil {
		return resultsdb.RunSummary{}, err
	}
	built, err := sc.Build(trace.TraceLevel(traceLevelStr))
	if err != nil {
		return resultsdb.RunSummary{}, err
	}
	for _, g := range built.Groups {
		g.ActivateUsers()
	}
	if err := built.Scheduler.Run(sc.Horizon); err != nil {
		return resultsdb.RunSummary{}, err
	}

	printSummary(cmd.OutOrStdout(), path, sc, built)
	summary := summarize(path, sc, built)
	summary.RecordedAt = time.Now()
	return summary, nil
}

func init() {
	compareCmd.Flags().BoolVar(&compareSave, "save", false, "Persist both run summaries to --results-db")
	compareCmd.Flags().StringVar(&compareResultsDB, "results-db", "", "SQLite file to save run summaries to (required with --save)")
	compareCmd.Flags().StringVar(&compareTraceLevel, "trace", "none", "Trace level (none, requests, full)")
}
