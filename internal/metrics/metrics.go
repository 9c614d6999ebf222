package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for NotificationsDropped.
const (
	ReasonProjectNotFound  = "project_not_found"
	ReasonMeetingNotFound  = "meeting_not_found"
	ReasonTemplateNotFound = "template_not_found"
	ReasonUserNotFound     = "user_not_found"
	ReasonPublish          = "publish"
	ReasonSlowConsumer     = "slow_consumer"
	ReasonEmail            = "email"
	ReasonPush             = "push"
)

// Metrics holds the service's collectors. Build one per registry.
type Metrics struct {
	NotificationsPersisted *prometheus.CounterVec
	NotificationsPublished *prometheus.CounterVec
	NotificationsDropped   *prometheus.CounterVec
	WSConnections          *prometheus.GaugeVec
	WSRejected             *prometheus.CounterVec
	WorkerRuns             *prometheus.CounterVec
	WorkerDuration         *prometheus.HistogramVec
	EventsConsumed         *prometheus.CounterVec
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NotificationsPersisted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_persisted_total",
				Help: "Notification rows written, by category",
			},
			[]string{"category"},
		),
		NotificationsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_published_total",
				Help: "Frames published to a group, by group kind",
			},
			[]string{"group_kind"},
		),
		NotificationsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_dropped_total",
				Help: "Notifications silently skipped, by reason",
			},
			[]string{"reason"},
		),
		WSConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ws_connections_active",
				Help: "Open WebSocket consumers, by stream",
			},
			[]string{"stream"},
		),
		WSRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ws_connections_rejected_total",
				Help: "WebSocket connections closed during connect, by close code",
			},
			[]string{"stream", "code"},
		),
		WorkerRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_runs_total",
				Help: "Scheduled task executions, by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		WorkerDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "worker_run_duration_seconds",
				Help: "Duration of scheduled task executions",
			},
			[]string{"task"},
		),
		EventsConsumed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "domain_events_consumed_total",
				Help: "Domain events read from Kafka, by event type and outcome",
			},
			[]string{"event", "outcome"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// NewUnregistered builds collectors that are not exported anywhere, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Dropped counts one silently skipped notification.
func (m *Metrics) Dropped(reason string) {
	m.NotificationsDropped.WithLabelValues(reason).Inc()
}
