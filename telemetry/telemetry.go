// Package telemetry provides optional, post-run Prometheus gauge export:
// server utilization, queue length, and throughput, plus per-UserGroup
// response time, all read once after a Scheduler.Run completes. No
// metric is read from inside the event loop, so enabling telemetry never
// perturbs a run's determinism. Grounded on etalazz-vsa's
// cmd/tfd-sim/main.go and cmd/tfd-proxy/main.go, which register
// prometheus.Counter/Gauge/Histogram instruments directly against
// prometheus.DefaultRegisterer (here a private *prometheus.Registry,
// since a simulator may run many scenarios in one process) and serve
// them via promhttp.Handler().
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deploysim/serversim/sim"
)

// Exporter holds the gauge vectors a simulation run reports into.
type Exporter struct {
	registry *prometheus.Registry

	hwUtilization     *prometheus.GaugeVec
	threadUtilization *prometheus.GaugeVec
	hwQueueLength     *prometheus.GaugeVec
	threadQueueLength *prometheus.GaugeVec
	throughput        *prometheus.GaugeVec
	responseTime      *prometheus.GaugeVec
}

// NewExporter constructs an Exporter with a private registry, so that
// running multiple scenarios in one process (as `cmd compare` does) never
// collides on prometheus.DefaultRegisterer.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		hwUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_hw_utilization",
			Help: "Hardware-thread utilization ((cum_service_time - cum_queue_time) / (capacity * now)) of a server",
		}, []string{"server"}),
		threadUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_thread_utilization",
			Help: "Software-thread utilization of a server",
		}, []string{"server"}),
		hwQueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_hw_queue_length",
			Help: "Current hardware-thread wait-queue length of a server",
		}, []string{"server"}),
		threadQueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_thread_queue_length",
			Help: "Current software-thread wait-queue length of a server",
		}, []string{"server"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_server_throughput",
			Help: "Completions per virtual-time unit of a server",
		}, []string{"server"}),
		responseTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "serversim_usergroup_avg_response_time",
			Help: "Mean response time observed by a UserGroup",
		}, []string{"user_group"}),
	}
	e.registry.MustRegister(
		e.hwUtilization, e.threadUtilization,
		e.hwQueueLength, e.threadQueueLength,
		e.throughput, e.responseTime,
	)
	return e
}

// ReportServers sets the per-server gauges from each Server's current
// derived metrics. Metrics not yet ready (sim.ProbeNotReady, e.g. before
// the clock has advanced) are left at their zero value rather than
// aborting the whole report.
func (e *Exporter) ReportServers(servers map[string]*sim.Server) {
	for name, srv := range servers {
		if v, err := srv.HwUtilization(); err == nil {
			e.hwUtilization.WithLabelValues(name).Set(v)
		}
		if v, err := srv.ThreadUtilization(); err == nil {
			e.threadUtilization.WithLabelValues(name).Set(v)
		}
		e.hwQueueLength.WithLabelValues(name).Set(float64(srv.HwQueueLength()))
		e.threadQueueLength.WithLabelValues(name).Set(float64(srv.ThreadQueueLength()))
		if v, err := srv.Throughput(); err == nil {
			e.throughput.WithLabelValues(name).Set(v)
		}
	}
}

// ReportGroups sets the per-UserGroup response-time gauge.
func (e *Exporter) ReportGroups(groups []*sim.UserGroup) {
	for _, g := range groups {
		if v, err := g.AvgResponseTime(""); err == nil {
			e.responseTime.WithLabelValues(g.Name).Set(v)
		}
	}
}

// Serve starts a blocking HTTP server exposing the exporter's registry at
// /metrics on addr (e.g. ":9090"). It does not return until the listener
// fails.
func (e *Exporter) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
