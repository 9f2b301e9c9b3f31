package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploysim/serversim/config"
	"github.com/deploysim/serversim/resultsdb"
	"github.com/deploysim/serversim/sim/trace"
	"github.com/deploysim/serversim/telemetry"
)

var (
	scenarioPath string
	traceLevel   string
	metricsAddr  string
	resultsPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scenario to its horizon and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !trace.IsValidTraceLevel(traceLevel) {
			return fmt.Errorf("invalid --trace level %q (want none, requests, or full)", traceLevel)
		}

		sc, err := config.LoadFile(scenarioPath)
		if err != nil {
			return err
		}
		logrus.Infof("loaded scenario %s (run_id=%s, seed=%d, horizon=%.2f)", scenarioPath, sc.RunID, sc.Seed, sc.Horizon)

		built, err := sc.Build(trace.TraceLevel(traceLevel))
		if err != nil {
			return err
		}

		for _, g := range built.Groups {
			g.ActivateUsers()
		}

		logrus.Infof("running to horizon=%.2f", sc.Horizon)
		if err := built.Scheduler.Run(sc.Horizon); err != nil {
			return err
		}
		logrus.Info("run complete")

		printSummary(cmd.OutOrStdout(), scenarioPath, sc, built)

		if resultsPath != "" {
			store, err := resultsdb.Open(resultsPath)
			if err != nil {
				return err
			}
			defer store.Close()

			summary := summarize(scenarioPath, sc, built)
			summary.RecordedAt = time.Now()
			if err := store.Save(summary); err != nil {
				return err
			}
			logrus.Infof("saved run summary to %s", resultsPath)
		}

		if metricsAddr != "" {
			exporter := telemetry.NewExporter()
			exporter.ReportServers(built.Servers)
			exporter.ReportGroups(built.Groups)
			logrus.Infof("serving metrics on %s/metrics", metricsAddr)
			return exporter.Serve(metricsAddr)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, requests, full)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address after the run (e.g. :9090)")
	runCmd.Flags().StringVar(&resultsPath, "results-db", "", "If set, persist the run summary to this SQLite file")
	_ = runCmd.MarkFlagRequired("scenario")
}
