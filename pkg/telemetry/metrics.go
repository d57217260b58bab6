package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PermissionPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flux",
		Name:      "permission_polls_total",
		Help:      "Completed permission status polls.",
	})
	PermissionPollsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flux",
		Name:      "permission_polls_dropped_total",
		Help:      "Poll ticks skipped because a previous poll was still in flight.",
	})
	PermissionQueryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flux",
		Name:      "permission_query_failures_total",
		Help:      "Authorization status queries that could not be answered by the OS.",
	}, []string{"kind"})
	PermissionGrantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flux",
		Name:      "permission_grant_requests_total",
		Help:      "Grant requests forwarded to the OS.",
	}, []string{"kind"})
	PermissionGranted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flux",
		Name:      "permission_granted",
		Help:      "1 when the permission was granted at the last poll, 0 otherwise.",
	}, []string{"permission"})
	EventStreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "flux",
		Name:      "event_stream_connections",
		Help:      "Open WebSocket event stream connections.",
	})
)
