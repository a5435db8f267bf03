// Package metrics exposes operational counters and gauges at /metrics,
// on the same HTTP surfaces as the introspection routes described in
// SPEC_FULL.md §E.3 (GET /status on the ship, GET /links on the
// offshore, which do not read these metrics), via Prometheus, following the
// instrumentation style vango-go-vango uses (prometheus/client_golang
// counters and gauges registered against a package-level registry and
// served by promhttp).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Registry is the process-wide collector registry both binaries publish
// their metrics into.
var Registry = prometheus.NewRegistry()

var (
	// LinkUp reports whether the single ship<->offshore link is currently
	// connected (1) or not (0).
	LinkUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shiplink_link_up",
		Help: "1 if the ship<->offshore link is currently connected.",
	})

	// FramesSent counts frames handed off to the OS, by frame type.
	FramesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shiplink_frames_sent_total",
		Help: "Frames sent on the link, by type.",
	}, []string{"type"})

	// FramesReceived counts frames decoded off the link, by frame type.
	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shiplink_frames_received_total",
		Help: "Frames received on the link, by type.",
	}, []string{"type"})

	// QueueDepth reports the ship's FIFO scheduler backlog.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shiplink_ship_queue_depth",
		Help: "Number of client transactions waiting on the ship FIFO scheduler.",
	})

	// TunnelsActive reports the number of CONNECT tunnels currently open
	// (0 or 1 per link, since only one link exists at a time, but tracked
	// as a gauge for symmetry with the offshore, which may serve several
	// concurrent links).
	TunnelsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shiplink_tunnels_active",
		Help: "Number of CONNECT tunnels currently active.",
	})

	// OffshoreLinksAccepted counts inbound links the offshore has ever
	// accepted.
	OffshoreLinksAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shiplink_offshore_links_accepted_total",
		Help: "Total number of links accepted by the offshore listener.",
	})
)

func init() {
	Registry.MustRegister(LinkUp, FramesSent, FramesReceived, QueueDepth, TunnelsActive, OffshoreLinksAccepted)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
