package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine loop metrics
	DetectionTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_detection_ticks_total",
			Help: "Total detection ticks executed",
		},
	)

	DetectionErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_detection_errors_total",
			Help: "Process snapshot or storage failures during detection",
		},
	)

	// Session metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_sessions_started_total",
			Help: "Total gaming sessions started",
		},
	)

	SessionsStopped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_sessions_stopped_total",
			Help: "Total gaming sessions finalized",
		},
	)

	SessionWriteErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_session_write_errors_total",
			Help: "Storage write failures during session transitions",
		},
	)

	GamingState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_gaming_state",
			Help: "1 while at least one session is open, else 0",
		},
	)

	// Limit metrics
	OverLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_over_limit",
			Help: "1 while today's playtime exceeds the configured limit, else 0",
		},
	)
)

func init() {
	prometheus.MustRegister(
		DetectionTicks,
		DetectionErrors,
		SessionsStarted,
		SessionsStopped,
		SessionWriteErrors,
		GamingState,
		OverLimit,
	)
}

// Handler serves the prometheus scrape endpoint, mounted by the web server.
func Handler() http.Handler {
	return promhttp.Handler()
}
