package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	portalCalls *prometheus.CounterVec
	aiCalls     *prometheus.CounterVec
	logins      *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
}

func newMetrics(registry prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		portalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_portal_calls_total",
			Help: "Pronote portal calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_ai_calls_total",
			Help: "AI completions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_logins_total",
			Help: "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_rate_limited_total",
			Help: "Requests refused by the per-IP rate limiter.",
		}, []string{"route"}),
	}
	registry.MustRegister(m.requests, m.duration, m.portalCalls, m.aiCalls, m.logins, m.rateLimited)
	return m
}

func (m *metrics) observeRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
