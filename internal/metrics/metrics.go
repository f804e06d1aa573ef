package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "karmic",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "karmic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	requestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "marketplace",
			Name:      "transitions_total",
			Help:      "Total number of request lifecycle transitions.",
		},
		[]string{"transition"},
	)

	coinsSettled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "marketplace",
			Name:      "coins_settled_total",
			Help:      "Total coins released from escrow to helpers.",
		},
	)

	messagesPosted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total number of chat messages posted.",
		},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total number of login attempts.",
		},
		[]string{"result"},
	)

	signups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "karmic",
			Subsystem: "auth",
			Name:      "signups_total",
			Help:      "Total number of accounts registered.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		requestTransitions,
		coinsSettled,
		messagesPosted,
		loginAttempts,
		signups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTransition counts a completed request lifecycle transition.
func RecordTransition(transition string) {
	if transition == "" {
		transition = "unknown"
	}
	requestTransitions.WithLabelValues(transition).Inc()
}

// RecordSettlement counts the coins released by a settlement.
func RecordSettlement(coins int64) {
	if coins > 0 {
		coinsSettled.Add(float64(coins))
	}
}

// RecordMessage counts a posted chat message.
func RecordMessage() {
	messagesPosted.Inc()
}

// RecordSignup counts a completed registration.
func RecordSignup() {
	signups.Inc()
}

// RecordLogin counts a login attempt by outcome.
func RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	loginAttempts.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack passes through so websocket upgrades keep working behind the
// instrumentation.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// canonicalPath collapses per-request URLs so the path label stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")

	switch parts[0] {
	case "accept_task", "helper_confirm", "requester_approve", "send_message":
		return "/" + parts[0] + "/:id"
	case "chat":
		if len(parts) >= 3 && parts[2] == "ws" {
			return "/chat/:id/ws"
		}
		if len(parts) >= 2 {
			return "/chat/:id"
		}
		return "/chat"
	default:
		return "/" + parts[0]
	}
}
