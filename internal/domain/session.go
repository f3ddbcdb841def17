package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ToolMode selects how a session's visible tool set is computed.
type ToolMode string

const (
	// ToolModeAll exposes every registered tool without session filtering.
	ToolModeAll ToolMode = "all"
	// ToolModeManaged exposes exactly the session's enabled tools.
	ToolModeManaged ToolMode = "managed"
	// ToolModeCustom exposes defaults plus caller-selected categories, per request.
	ToolModeCustom ToolMode = "custom"
)

// ParseToolMode parses a mode name; empty input yields the default mode.
func ParseToolMode(raw string) (ToolMode, error) {
	switch ToolMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultToolMode, nil
	case ToolModeAll:
		return ToolModeAll, nil
	case ToolModeManaged:
		return ToolModeManaged, nil
	case ToolModeCustom:
		return ToolModeCustom, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidToolMode, raw)
	}
}

// ToolSet is a set of tool or category names.
type ToolSet map[string]struct{}

func NewToolSet(names ...string) ToolSet {
	set := make(ToolSet, len(names))
	set.Add(names...)
	return set
}

func (s ToolSet) Add(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		s[name] = struct{}{}
	}
}

func (s ToolSet) Remove(names ...string) {
	for _, name := range names {
		delete(s, name)
	}
}

func (s ToolSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s ToolSet) Clone() ToolSet {
	out := make(ToolSet, len(s))
	for name := range s {
		out[name] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s ToolSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Session is a point-in-time view of one client's visibility state.
// Values handed out by the session store never alias its internal sets.
type Session struct {
	ID                string
	Mode              ToolMode
	EnabledTools      ToolSet
	EnabledCategories ToolSet
	CreatedAt         time.Time
	LastActivity      time.Time
}

func (s Session) Clone() Session {
	out := s
	out.EnabledTools = s.EnabledTools.Clone()
	out.EnabledCategories = s.EnabledCategories.Clone()
	return out
}

// Expired reports whether the session has been idle longer than timeout.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}

// SessionInfo is the read-only introspection view of a session.
type SessionInfo struct {
	ID                string    `json:"sessionId"`
	Mode              ToolMode  `json:"toolsMode"`
	EnabledTools      []string  `json:"enabledTools"`
	EnabledCategories []string  `json:"enabledCategories"`
	CreatedAt         time.Time `json:"createdAt"`
	LastActivity      time.Time `json:"lastActivity"`
	Expired           bool      `json:"isExpired"`
}

func (s Session) Info(now time.Time, timeout time.Duration) SessionInfo {
	return SessionInfo{
		ID:                s.ID,
		Mode:              s.Mode,
		EnabledTools:      s.EnabledTools.Sorted(),
		EnabledCategories: s.EnabledCategories.Sorted(),
		CreatedAt:         s.CreatedAt,
		LastActivity:      s.LastActivity,
		Expired:           s.Expired(now, timeout),
	}
}

// SessionsSnapshot summarizes every live session for operators.
type SessionsSnapshot struct {
	Total        int           `json:"totalSessions"`
	Sessions     []SessionInfo `json:"sessions"`
	DefaultTools []string      `json:"defaultTools"`
}
