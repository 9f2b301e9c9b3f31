package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/deploysim/serversim/config"
	"github.com/deploysim/serversim/resultsdb"
)

// printSummary writes a human-readable report of one completed run's
// server and user-group metrics, colorizing utilization the way
// abdul-hamid-achik-hitspec's packages/stress/reporter.go colorizes its
// own pass/fail/warning output: red above 0.9, yellow above 0.7, green
// otherwise.
func printSummary(w io.Writer, scenarioName string, sc *config.Scenario, built *config.Built) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	bold := color.New(color.Bold)

	bold.Fprintf(w, "scenario: %s  (run_id=%s)\n", scenarioName, sc.RunID)

	names := make([]string, 0, len(built.Servers))
	for name := range built.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		srv := built.Servers[name]
		util, err := srv.HwUtilization()
		utilStr := "n/a"
		c := green
		if err == nil {
			utilStr = fmt.Sprintf("%.2f", util)
			switch {
			case util > 0.9:
				c = red
			case util > 0.7:
				c = yellow
			}
		}
		throughput, _ := srv.Throughput()
		fmt.Fprintf(w, "  server %-16s hw_util=", name)
		c.Fprintf(w, "%s", utilStr)
		fmt.Fprintf(w, "  throughput=%.3f  hw_queue=%d  thread_queue=%d\n",
			throughput, srv.HwQueueLength(), srv.ThreadQueueLength())
	}

	for _, g := range built.Groups {
		avg, err := g.AvgResponseTime("")
		if err != nil {
			fmt.Fprintf(w, "  user_group %-12s no completed requests yet\n", g.Name)
			continue
		}
		quantiles, _ := g.ResponseTimeQuantiles("", nil)
		fmt.Fprintf(w, "  user_group %-12s avg_response_time=%.3f  p99=%.3f  responded=%d  unresponded=%d\n",
			g.Name, avg, quantiles[0.99], g.RespondedRequestCount(""), g.UnrespondedRequestCount())
	}
}

// summarize reduces a completed run down to the handful of scalar
// metrics resultsdb persists: overall throughput (summed across servers)
// and the first UserGroup's response-time distribution, which is the
// metric `cmd compare` diffs.
func summarize(scenarioName string, sc *config.Scenario, built *config.Built) resultsdb.RunSummary {
	var throughput float64
	for _, srv := range built.Servers {
		if v, err := srv.Throughput(); err == nil {
			throughput += v
		}
	}

	var avg, p50, p95, p99 float64
	if len(built.Groups) > 0 {
		g := built.Groups[0]
		avg, _ = g.AvgResponseTime("")
		qs, err := g.ResponseTimeQuantiles("", []float64{0.5, 0.95, 0.99})
		if err == nil {
			p50, p95, p99 = qs[0.5], qs[0.95], qs[0.99]
		}
	}

	return resultsdb.RunSummary{
		RunID:           sc.RunID,
		ScenarioName:    scenarioName,
		Seed:            sc.Seed,
		Horizon:         sc.Horizon,
		Throughput:      throughput,
		AvgResponseTime: avg,
		P50:             p50,
		P95:             p95,
		P99:             p99,
	}
}
