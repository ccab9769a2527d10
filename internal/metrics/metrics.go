// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SLAPollsTotal counts completed SLA poll ticks.
	SLAPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_sla_polls_total",
			Help: "Total number of SLA poll ticks",
		},
	)

	// SLAFetchErrorsTotal counts failed SLA fetches per scanner.
	SLAFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_sla_fetch_errors_total",
			Help: "Total number of failed SLA fetches",
		},
		[]string{"scanner"},
	)

	// ScannerSLA tracks the latest SLA reading per scanner.
	ScannerSLA = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_scanner_sla",
			Help: "Latest SLA reading per scanner",
		},
		[]string{"scanner"},
	)

	// AlertsDispatchedTotal counts alerts forwarded to the notifier.
	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_dispatched_total",
			Help: "Total number of alerts forwarded to the chat layer",
		},
		[]string{"kind"},
	)

	// AlertsSuppressedTotal counts alerts dropped as duplicates.
	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_suppressed_total",
			Help: "Total number of alerts suppressed as duplicates",
		},
		[]string{"kind"},
	)

	// NotifyErrorsTotal counts failed deliveries to the chat layer.
	NotifyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_notify_errors_total",
			Help: "Total number of failed chat deliveries",
		},
	)

	// ChainEventsTotal counts log events received per chain.
	ChainEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_chain_events_total",
			Help: "Total number of log events received",
		},
		[]string{"chain"},
	)

	// ChainReconnectsTotal counts websocket reconnect attempts per chain.
	ChainReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_chain_reconnects_total",
			Help: "Total number of websocket reconnect attempts",
		},
		[]string{"chain"},
	)

	// ChainConnected reports the subscription state per chain (1 = subscribed).
	ChainConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_chain_connected",
			Help: "Whether the chain subscription is established",
		},
		[]string{"chain"},
	)
)
