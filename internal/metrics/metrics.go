package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	ChatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderdesk_chat_connections",
			Help: "Currently open chat connections",
		},
	)

	ChatUpgradesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_chat_upgrades_rejected_total",
			Help: "WebSocket upgrades refused for bad credentials",
		},
	)

	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_messages_stored_total",
			Help: "Total chat messages persisted",
		},
		[]string{"scope"}, // "order" or "support"
	)

	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_messages_delivered_total",
			Help: "Per-recipient chat message deliveries",
		},
	)

	DeliveryDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_delivery_drops_total",
			Help: "Deliveries skipped because a recipient could not accept",
		},
	)

	// Business metrics
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_orders_created_total",
			Help: "Total orders created",
		},
	)

	FilesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_files_uploaded_total",
			Help: "Total files uploaded",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
