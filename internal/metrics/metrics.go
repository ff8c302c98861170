// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus collectors for HTTP traffic, auth
// events, order status changes and rate limiting.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/ambatobuy/internal/apperr"
	"codeberg.org/oliverandrich/ambatobuy/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the collectors. A nil Registry gets a fresh one with
// Go runtime and process collectors.
type Options struct {
	Registry  *prometheus.Registry
	Namespace string
	Buckets   []float64
}

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	Duration         *prometheus.HistogramVec
	InFlight         prometheus.Gauge
	AuthEvents       *prometheus.CounterVec
	OrderTransitions *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

// register adds c to reg, reusing an already registered collector of the
// same type.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// New creates and registers the collectors.
func New(opts Options) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "ambatobuy"
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{registry: reg}
	var err error

	if m.Requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.Duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}

	if m.InFlight, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})); err != nil {
		return nil, err
	}

	if m.AuthEvents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Authentication events such as signups, logins and verifications.",
	}, []string{"event"})); err != nil {
		return nil, err
	}

	if m.OrderTransitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "status_transitions_total",
		Help:      "Pre-order status changes. Creation is recorded with from=\"new\".",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}

	if m.RateLimited, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})); err != nil {
		return nil, err
	}

	return m, nil
}

// AuthEvent counts an auth event.
func (m *Metrics) AuthEvent(event string) {
	m.AuthEvents.WithLabelValues(event).Inc()
}

// OrderTransition counts a status change.
func (m *Metrics) OrderTransition(from, to models.OrderStatus) {
	label := string(from)
	if label == "" {
		label = "new"
	}
	m.OrderTransitions.WithLabelValues(label, string(to)).Inc()
}

// RateLimitDenied counts a rejected request.
func (m *Metrics) RateLimitDenied(string) {
	m.RateLimited.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count, latency and in-flight requests.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := prometheus.Labels{
				"method": c.Request().Method,
				"route":  route,
				"status": strconv.Itoa(statusOf(c, err)),
			}
			m.Requests.With(labels).Inc()
			m.Duration.With(labels).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// statusOf returns the status the response has or will have once err is
// handled by the error handler.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.From(err).Status()
}
