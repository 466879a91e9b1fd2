package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketbook"

var (
	once sync.Once

	projections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projections_total",
			Help:      "Count of availability projections by booking mode.",
		},
		[]string{"mode"},
	)

	slotRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_rejections_total",
			Help:      "Count of rejected slot picks by reason.",
		},
		[]string{"reason"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Count of check-in attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of owner notifications by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of mirror API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Mirror API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(projections, slotRejections, checkIns, notifications, httpRequests, httpDuration)
	})
}

func IncProjection(mode string) {
	if mode == "" {
		mode = "single"
	}
	projections.WithLabelValues(mode).Inc()
}

func IncSlotRejection(reason string) {
	slotRejections.WithLabelValues(reason).Inc()
}

func IncCheckIn(outcome string) {
	checkIns.WithLabelValues(outcome).Inc()
}

func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// ObserveRequest records one served request.
func ObserveRequest(route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
