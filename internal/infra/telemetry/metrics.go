package telemetry

import "mistmcp/internal/domain"

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) SetActiveSessions(_ int) {}

func (n *NoopMetrics) ObserveSessionCreated() {}

func (n *NoopMetrics) ObserveSessionsExpired(_ int) {}

func (n *NoopMetrics) ObserveMaterialization(_ string, _ error) {}

func (n *NoopMetrics) ObserveVisibilityDenied() {}

func (n *NoopMetrics) ObserveManageTools(_ domain.ManageOutcome) {}

func (n *NoopMetrics) ObserveToolCall(_ domain.ToolCallMetric) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
