package toolregistry

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
)

// Unit is a materializable tool implementation.
type Unit struct {
	Tool     *mcp.Tool
	Handler  mcp.ToolHandler
	Category string
}

// Entry is a read-only view of a registered tool.
type Entry struct {
	Name     string
	Category string
	Enabled  bool
	Tool     *mcp.Tool
}

type entry struct {
	unit    Unit
	enabled bool
}

// Registry is the process-wide set of materialized tools, backed by the MCP server.
type Registry struct {
	server *mcp.Server
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New(server *mcp.Server, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		server:  server,
		logger:  logger.Named("tool_registry"),
		entries: make(map[string]*entry),
	}
}

// Insert registers unit if no tool with the same name exists. New entries start disabled.
func (r *Registry) Insert(unit Unit) bool {
	if unit.Tool == nil || unit.Tool.Name == "" || unit.Handler == nil {
		return false
	}
	name := unit.Tool.Name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return false
	}
	r.entries[name] = &entry{unit: unit}
	r.order = append(r.order, name)
	if r.server != nil {
		r.server.AddTool(unit.Tool, unit.Handler)
	}
	r.logger.Debug("tool registered", zap.String("tool", name), zap.String("category", unit.Category))
	return true
}

func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return domain.E(domain.CodeNotFound, "set enabled", name, domain.ErrToolNotFound)
	}
	e.enabled = enabled
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return ok && e.enabled
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Entries lists registered tools in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, Entry{
			Name:     name,
			Category: e.unit.Category,
			Enabled:  e.enabled,
			Tool:     e.unit.Tool,
		})
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Refresh re-registers an existing tool so the server emits tools/list_changed.
func (r *Registry) Refresh(name string) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok || r.server == nil {
		return false
	}
	r.server.AddTool(e.unit.Tool, e.unit.Handler)
	return true
}
