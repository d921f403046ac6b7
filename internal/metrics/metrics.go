// Package metrics defines the prometheus collectors for the listening-party
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection registry metrics
var (
	// ConnectionsOpen tracks currently registered live connections.
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_open",
			Help: "Currently registered websocket connections",
		},
	)

	// ConnectionsTotal tracks total accepted websocket connections.
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_connections_total",
			Help: "Total accepted websocket connections",
		},
	)

	// ConnectionRejectionsTotal tracks upgrades rejected by connection limits.
	ConnectionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_connection_rejections_total",
			Help: "Websocket upgrades rejected by connection limits, by reason",
		},
		[]string{"reason"},
	)

	// FramesSent tracks frames accepted into per-connection outboxes.
	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_frames_sent_total",
			Help: "Frames queued to per-connection outboxes",
		},
	)

	// FramesDropped tracks frames evicted by the drop-oldest outbox policy.
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_frames_dropped_total",
			Help: "Frames dropped because a connection outbox was full",
		},
	)

	// PingFailures tracks failed keepalive pings (client likely gone).
	PingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_ping_failures_total",
			Help: "Keepalive pings that failed to write",
		},
	)
)

// Protocol dispatcher metrics
var (
	// RequestsTotal tracks inbound protocol frames by opcode and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "protocol_requests_total",
			Help: "Inbound protocol requests by opcode and status",
		},
		[]string{"op_code", "status"},
	)
)

// Lobby registry metrics
var (
	// LobbiesLive tracks the number of live lobbies.
	LobbiesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lobbies_live",
			Help: "Currently live lobbies",
		},
	)

	// BroadcastsTotal tracks lobby fan-out pushes by kind.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lobby_broadcasts_total",
			Help: "Lobby fan-out pushes by kind",
		},
		[]string{"kind"},
	)
)

// Notification delivery metrics
var (
	// NotificationsDeliveredLive tracks notifications pushed to a live connection.
	NotificationsDeliveredLive = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_delivered_live_total",
			Help: "Notifications pushed to a live connection",
		},
	)

	// NotificationsPersisted tracks notifications written to the durable store.
	NotificationsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_persisted_total",
			Help: "Notifications written to the durable store",
		},
	)

	// NotificationPersistFailures tracks persistence failures after retries.
	NotificationPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_persist_failures_total",
			Help: "Notification store writes that failed after retries",
		},
	)
)
