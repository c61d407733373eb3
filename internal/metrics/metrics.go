package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sparkclean"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "code"},
	)

	realtimeChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_changes_total",
			Help:      "Row changes published to realtime subscribers.",
		},
		[]string{"table", "type"},
	)

	realtimeDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_dropped_subscribers_total",
			Help:      "Subscribers disconnected for falling behind.",
		},
	)

	realtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscribers",
			Help:      "Active realtime subscriptions.",
		},
	)

	outboxTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_tasks_total",
			Help:      "Outbox task executions by type and result.",
		},
		[]string{"task_type", "result"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Sign in attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, realtimeChanges, realtimeDropped,
			realtimeSubscribers, outboxTasks, authAttempts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncRealtimeChange(table, changeType string) {
	realtimeChanges.WithLabelValues(table, changeType).Inc()
}

func IncRealtimeDropped() {
	realtimeDropped.Inc()
}

func SetRealtimeSubscribers(n int) {
	realtimeSubscribers.Set(float64(n))
}

// IncOutbox records a task result: completed, retry or failed.
func IncOutbox(taskType, result string) {
	outboxTasks.WithLabelValues(taskType, result).Inc()
}

func IncAuth(result string) {
	authAttempts.WithLabelValues(result).Inc()
}
