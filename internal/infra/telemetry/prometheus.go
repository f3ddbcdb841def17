package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mistmcp/internal/domain"
)

type PrometheusMetrics struct {
	sessionsActive          prometheus.Gauge
	sessionsCreated         prometheus.Counter
	sessionsExpired         prometheus.Counter
	materializations        *prometheus.CounterVec
	materializationFailures *prometheus.CounterVec
	visibilityDenials       prometheus.Counter
	manageTools             *prometheus.CounterVec
	toolCalls               *prometheus.CounterVec
	toolCallDuration        *prometheus.HistogramVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mistmcp_sessions_active",
				Help: "Current number of tracked client sessions",
			},
		),
		sessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mistmcp_sessions_created_total",
				Help: "Total number of client sessions created",
			},
		),
		sessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mistmcp_sessions_expired_total",
				Help: "Total number of client sessions removed after idling past the timeout",
			},
		),
		materializations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistmcp_tool_materializations_total",
				Help: "Total number of tools materialized into the registry",
			},
			[]string{"category"},
		),
		materializationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistmcp_tool_materialization_failures_total",
				Help: "Total number of failed tool materializations",
			},
			[]string{"category"},
		),
		visibilityDenials: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mistmcp_visibility_denials_total",
				Help: "Total number of tool calls rejected because the tool is not visible to the session",
			},
		),
		manageTools: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistmcp_manage_tools_total",
				Help: "Total number of tool visibility changes requested by agents",
			},
			[]string{"outcome"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistmcp_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "status"},
		),
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mistmcp_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
	}
}

func (p *PrometheusMetrics) SetActiveSessions(count int) {
	p.sessionsActive.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveSessionCreated() {
	p.sessionsCreated.Inc()
}

func (p *PrometheusMetrics) ObserveSessionsExpired(count int) {
	if count <= 0 {
		return
	}
	p.sessionsExpired.Add(float64(count))
}

func (p *PrometheusMetrics) ObserveMaterialization(category string, err error) {
	if err != nil {
		p.materializationFailures.WithLabelValues(category).Inc()
		return
	}
	p.materializations.WithLabelValues(category).Inc()
}

func (p *PrometheusMetrics) ObserveVisibilityDenied() {
	p.visibilityDenials.Inc()
}

func (p *PrometheusMetrics) ObserveManageTools(outcome domain.ManageOutcome) {
	p.manageTools.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusMetrics) ObserveToolCall(metric domain.ToolCallMetric) {
	status := "success"
	switch {
	case metric.Denied:
		status = "denied"
	case metric.Err != nil:
		status = "error"
	}
	p.toolCalls.WithLabelValues(metric.Tool, status).Inc()
	if !metric.Denied {
		p.toolCallDuration.WithLabelValues(metric.Tool).Observe(metric.Duration.Seconds())
	}
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
