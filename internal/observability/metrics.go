package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "awenet",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "awenet",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	linkFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "awenet",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "Frames written or decoded, by direction and kind.",
		},
		[]string{"direction", "kind"},
	)
	linkSentBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "awenet",
			Subsystem: "link",
			Name:      "sent_bytes_total",
			Help:      "Bytes written to the peer.",
		},
	)
	linkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "awenet",
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Receive loop errors reported to subscribers, by code.",
		},
		[]string{"code"},
	)
	linkAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "awenet",
			Subsystem: "link",
			Name:      "attempt_duration_seconds",
			Help:      "Connect and accept attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role", "result"},
	)
	linkEstablished = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "awenet",
			Subsystem: "link",
			Name:      "established",
			Help:      "Number of established links in this process.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, linkFrames, linkSentBytes, linkErrors, linkAttempts, linkEstablished)
	})
}

// Handler serves the default registry in the text exposition format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(direction, kind string) {
	RegisterMetrics()
	linkFrames.WithLabelValues(direction, kind).Inc()
}

func RecordSentBytes(n int) {
	RegisterMetrics()
	linkSentBytes.Add(float64(n))
}

func RecordLinkError(code string) {
	RegisterMetrics()
	linkErrors.WithLabelValues(code).Inc()
}

func RecordAttempt(role, result string, duration time.Duration) {
	RegisterMetrics()
	linkAttempts.WithLabelValues(role, result).Observe(duration.Seconds())
}

// LinkUp and LinkDown track the established gauge.
func LinkUp() {
	RegisterMetrics()
	linkEstablished.Inc()
}

func LinkDown() {
	RegisterMetrics()
	linkEstablished.Dec()
}
