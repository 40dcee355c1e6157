package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_searches_total",
			Help: "Total number of lead search runs",
		},
		[]string{"trigger", "status"},
	)

	leadsCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_collected_total",
			Help: "Total number of leads stored from searches",
		},
	)

	messagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_messages_sent_total",
			Help: "Total number of messages handed to the delivery workflow",
		},
	)

	sendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_send_failures_total",
			Help: "Total number of failed bulk send calls",
		},
	)

	scheduledFires = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduled_searches_fired_total",
			Help: "Total number of scheduled searches that came due and fired",
		},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of inbound webhook callbacks",
		},
		[]string{"type"},
	)
)

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordSearch(trigger, status string) {
	searchesTotal.WithLabelValues(trigger, status).Inc()
}

func RecordLeadsCollected(n int) {
	leadsCollected.Add(float64(n))
}

func RecordMessagesSent(n int) {
	messagesSent.Add(float64(n))
}

func RecordSendFailure() {
	sendFailures.Inc()
}

func RecordScheduledFire() {
	scheduledFires.Inc()
}

func RecordWebhookEvent(eventType string) {
	webhookEvents.WithLabelValues(eventType).Inc()
}
