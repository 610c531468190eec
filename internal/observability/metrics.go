package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geochat_http_requests_total",
			Help: "Total number of HTTP requests processed by the geochat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geochat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geochat_messages_total",
			Help: "Chat messages appended to the log, by kind.",
		},
		[]string{"kind"},
	)
	nearbyQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geochat_nearby_queries_total",
			Help: "Proximity searches served.",
		},
	)
	chatPurgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geochat_chat_purges_total",
			Help: "Times the chat log was purged because no eligible users remained.",
		},
	)
	leaveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geochat_leave_failures_total",
			Help: "Leave messages that could not be written.",
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geochat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geochat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geochat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesTotal,
		nearbyQueriesTotal,
		chatPurgesTotal,
		leaveFailuresTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessage(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func IncNearbyQuery() {
	nearbyQueriesTotal.Inc()
}

func IncChatPurge() {
	chatPurgesTotal.Inc()
}

func IncLeaveFailure() {
	leaveFailuresTotal.Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
