package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "open_connections",
			Help:      "Currently registered websocket connections.",
		},
	)

	AuthenticatedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "authenticated_identities",
			Help:      "Identities with at least one bound socket.",
		},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "commands_total",
			Help:      "Dispatched client commands by type.",
		},
		[]string{"command"},
	)

	ProtocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "protocol_errors_total",
			Help:      "Protocol errors replied to senders, by kind.",
		},
		[]string{"kind"},
	)

	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)

	SendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "send_failures_total",
			Help:      "Outbound sends that failed and removed their socket.",
		},
	)

	DroppedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatter",
			Name:      "dropped_frames_total",
			Help:      "Inbound frames dropped because they failed to decode.",
		},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatter",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent handling one command in the dispatch loop.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"command"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(OpenConnections, AuthenticatedIdentities, CommandsTotal,
		ProtocolErrors, AuthAttempts, SendFailures, DroppedFrames,
		DispatchDuration, buildInfo, uptime)
}

// Handler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.Handler()).
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ObserveQueueDepth registers a gauge sampling the dispatch queue length.
func ObserveQueueDepth(depth func() float64) {
	Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "chatter",
			Name:      "dispatch_queue_depth",
			Help:      "Envelopes waiting in the dispatch queue.",
		},
		depth,
	))
}
