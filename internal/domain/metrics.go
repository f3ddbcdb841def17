package domain

import "time"

// ManageOutcome labels the result of a visibility-control call.
type ManageOutcome string

const (
	// ManageOutcomeChanged indicates the session state was updated.
	ManageOutcomeChanged ManageOutcome = "changed"
	// ManageOutcomeUnchanged indicates nothing valid was requested.
	ManageOutcomeUnchanged ManageOutcome = "unchanged"
	// ManageOutcomeListed indicates a read-only category listing.
	ManageOutcomeListed ManageOutcome = "listed"
	// ManageOutcomeNoSession indicates no session could be resolved.
	ManageOutcomeNoSession ManageOutcome = "no_session"
)

// ToolCallMetric captures one dispatched tool call.
type ToolCallMetric struct {
	Tool     string
	Denied   bool
	Err      error
	Duration time.Duration
}

// Metrics records operational metrics for sessions and tool visibility.
type Metrics interface {
	SetActiveSessions(count int)
	ObserveSessionCreated()
	ObserveSessionsExpired(count int)
	ObserveMaterialization(category string, err error)
	ObserveVisibilityDenied()
	ObserveManageTools(outcome ManageOutcome)
	ObserveToolCall(metric ToolCallMetric)
}
