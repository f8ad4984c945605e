package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchesTotal tracks dispatch calls by terminal notification status
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_service_dispatches_total",
			Help: "Total number of dispatch calls by outcome status",
		},
		[]string{"type", "status"},
	)

	// ChannelSendsTotal tracks per-channel send outcomes
	ChannelSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_service_channel_sends_total",
			Help: "Total number of channel send attempts by outcome",
		},
		[]string{"channel", "status"},
	)

	// ChannelSendDuration tracks channel send duration
	ChannelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_service_channel_send_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// QueueDepth tracks the number of pending rows in the notification queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_service_queue_depth",
			Help: "Current number of pending queued notifications",
		},
	)

	// QueueExhaustedTotal tracks queue rows that spent their retry budget
	QueueExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_service_queue_exhausted_total",
			Help: "Total number of queued notifications that exhausted retries",
		},
	)

	// RateLimitedTotal tracks sends rejected by a destination rate limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_service_rate_limited_total",
			Help: "Total number of sends rejected by the destination rate limiter",
		},
		[]string{"channel"},
	)

	// RealtimeConnections tracks live websocket connections in the directory
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivery_service_realtime_connections",
			Help: "Current number of live realtime connections",
		},
	)

	// ConsumerEventsTotal tracks events handled by the AMQP consumer
	ConsumerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_service_consumer_events_total",
			Help: "Total number of consumed host-application events",
		},
		[]string{"routing_key", "outcome"},
	)
)
