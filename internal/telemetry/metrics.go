package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the domain counters exported over OTLP and the HTTP
// request metrics scraped by Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	gateDecision *prometheus.CounterVec

	userUpserts   metric.Int64Counter
	groupsCreated metric.Int64Counter
	membersAdded  metric.Int64Counter
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gateDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_gate_decisions_total",
			Help:      "Identity gate outcomes.",
		}, []string{"decision"}),
	}
	registry.MustRegister(m.httpRequests, m.httpDuration, m.gateDecision)

	meter := otel.Meter(namespace)
	var err error
	if m.userUpserts, err = meter.Int64Counter(namespace+"_user_upserts_total",
		metric.WithDescription("User upserts by outcome"), metric.WithUnit("1")); err != nil {
		slog.Warn("Failed to create user upsert counter", "error", err)
	}
	if m.groupsCreated, err = meter.Int64Counter(namespace+"_groups_created_total",
		metric.WithDescription("Groups created"), metric.WithUnit("1")); err != nil {
		slog.Warn("Failed to create group counter", "error", err)
	}
	if m.membersAdded, err = meter.Int64Counter(namespace+"_group_members_added_total",
		metric.WithDescription("Members added to groups"), metric.WithUnit("1")); err != nil {
		slog.Warn("Failed to create member counter", "error", err)
	}

	return m
}

// Middleware records request count and latency labelled by the matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path

		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) RecordGateDecision(decision string) {
	m.gateDecision.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordUserUpsert(ctx context.Context, inserted bool) {
	if m.userUpserts == nil {
		return
	}
	m.userUpserts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("inserted", inserted)))
}

func (m *Metrics) RecordGroupCreated(ctx context.Context) {
	if m.groupsCreated == nil {
		return
	}
	m.groupsCreated.Add(ctx, 1)
}

func (m *Metrics) RecordMemberAdded(ctx context.Context, role string) {
	if m.membersAdded == nil {
		return
	}
	m.membersAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}
