package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldSession    = "session"
	FieldCategory   = "category"
	FieldTool       = "tool"
	FieldMode       = "mode"
	FieldChangeID   = "change_id"
	FieldDurationMs = "duration_ms"
)

const (
	EventSessionCreated   = "session_created"
	EventSessionExpired   = "session_expired"
	EventToolMaterialized = "tool_materialized"
	EventResolveFailure   = "resolve_failure"
	EventVisibilityDenied = "visibility_denied"
	EventToolsChanged     = "tools_changed"
	EventNotifyFailure    = "notify_failure"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func SessionField(key string) zap.Field {
	return zap.String(FieldSession, key)
}

func CategoryField(category string) zap.Field {
	return zap.String(FieldCategory, category)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func ModeField(mode string) zap.Field {
	return zap.String(FieldMode, mode)
}

func ChangeIDField(id string) zap.Field {
	return zap.String(FieldChangeID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
