package visibility

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/telemetry"
	"mistmcp/internal/infra/toolregistry"
)

// Sessions resolves the stored state behind a session key.
type Sessions interface {
	GetOrCreate(key string, mode domain.ToolMode) (domain.Session, error)
	DefaultEnabledTools() []string
}

// Materializer loads and enables tools for custom-mode selections.
type Materializer interface {
	EnsureLoaded(category, tool string) bool
	Enable(tool string) bool
}

type Options struct {
	Registry     *toolregistry.Registry
	Catalog      domain.Catalog
	Sessions     Sessions
	Materializer Materializer
	Scopes       ScopeResolver
	Logger       *zap.Logger
	Metrics      domain.Metrics
}

// Filter decides which registered tools each request may list and call.
type Filter struct {
	registry     *toolregistry.Registry
	catalog      domain.Catalog
	sessions     Sessions
	materializer Materializer
	scopes       ScopeResolver
	logger       *zap.Logger
	metrics      domain.Metrics
}

func NewFilter(opts Options) *Filter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		registry:     opts.Registry,
		catalog:      opts.Catalog,
		sessions:     opts.Sessions,
		materializer: opts.Materializer,
		scopes:       opts.Scopes,
		logger:       logger.Named("visibility"),
		metrics:      opts.Metrics,
	}
}

// VisibleSet computes the tool names visible to scope. It returns all=true
// when no filtering applies. Names are always restricted to tools that are
// registered and enabled.
func (f *Filter) VisibleSet(scope RequestScope) (set domain.ToolSet, all bool) {
	if scope.Mode == domain.ToolModeAll {
		return nil, true
	}

	var wanted domain.ToolSet
	switch {
	case scope.Mode == domain.ToolModeCustom:
		wanted = f.customSet(scope.Categories)
	case !scope.HasSession():
		wanted = domain.NewToolSet(f.sessions.DefaultEnabledTools()...)
	default:
		session, err := f.sessions.GetOrCreate(scope.SessionKey, scope.Mode)
		if err != nil {
			f.logger.Debug("session unavailable, using defaults", telemetry.SessionField(scope.SessionKey), zap.Error(err))
			wanted = domain.NewToolSet(f.sessions.DefaultEnabledTools()...)
		} else {
			wanted = session.EnabledTools
		}
	}

	out := make(domain.ToolSet, len(wanted))
	for name := range wanted {
		if f.registry.Enabled(name) {
			out.Add(name)
		}
	}
	return out, false
}

// customSet is the defaults plus every operation of the selected categories.
// It is recomputed per request and never stored.
func (f *Filter) customSet(categories []string) domain.ToolSet {
	set := domain.NewToolSet(f.sessions.DefaultEnabledTools()...)
	for _, name := range categories {
		category, ok := f.catalog.Category(domain.NormalizeCategoryName(name))
		if !ok || category.Write {
			continue
		}
		for _, tool := range category.Tools {
			if f.materializer != nil && f.materializer.EnsureLoaded(category.Name, tool) {
				f.materializer.Enable(tool)
			}
			set.Add(tool)
		}
	}
	return set
}

// ListVisible returns the visible tools in registry order.
func (f *Filter) ListVisible(scope RequestScope) []*mcp.Tool {
	set, all := f.VisibleSet(scope)
	entries := f.registry.Entries()
	out := make([]*mcp.Tool, 0, len(entries))
	for _, entry := range entries {
		if all || set.Has(entry.Name) {
			out = append(out, entry.Tool)
		}
	}
	return out
}

// Check reports whether scope may dispatch tool.
func (f *Filter) Check(scope RequestScope, tool string) error {
	set, all := f.VisibleSet(scope)
	if all || set.Has(tool) {
		return nil
	}
	return &domain.VisibilityError{Tool: tool, Session: scope.SessionKey}
}

// Middleware filters tools/list results and guards tools/call dispatch.
func (f *Filter) Middleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			switch method {
			case "tools/list":
				result, err := next(ctx, method, req)
				if err != nil {
					return result, err
				}
				list, ok := result.(*mcp.ListToolsResult)
				if !ok {
					return result, nil
				}
				scope := f.scopes.Resolve(req)
				return &mcp.ListToolsResult{Meta: list.Meta, Tools: f.ListVisible(scope)}, nil
			case "tools/call":
				params, ok := req.GetParams().(*mcp.CallToolParamsRaw)
				if !ok || params == nil {
					return next(ctx, method, req)
				}
				return f.dispatch(ctx, method, req, params.Name, next)
			}
			return next(ctx, method, req)
		}
	}
}

func (f *Filter) dispatch(ctx context.Context, method string, req mcp.Request, tool string, next mcp.MethodHandler) (mcp.Result, error) {
	scope := f.scopes.Resolve(req)
	if err := f.Check(scope, tool); err != nil {
		f.logger.Info("tool call rejected",
			telemetry.EventField(telemetry.EventVisibilityDenied),
			telemetry.SessionField(scope.SessionKey),
			telemetry.ToolField(tool),
			telemetry.ModeField(string(scope.Mode)),
		)
		if f.metrics != nil {
			f.metrics.ObserveVisibilityDenied()
			f.metrics.ObserveToolCall(domain.ToolCallMetric{Tool: tool, Denied: true})
		}
		return deniedResult(err), nil
	}

	start := time.Now()
	result, err := next(ctx, method, req)
	if f.metrics != nil {
		callErr := err
		if res, ok := result.(*mcp.CallToolResult); ok && callErr == nil && res != nil && res.IsError {
			callErr = errors.New("tool returned error result")
		}
		f.metrics.ObserveToolCall(domain.ToolCallMetric{Tool: tool, Err: callErr, Duration: time.Since(start)})
	}
	return result, err
}

func deniedResult(err error) *mcp.CallToolResult {
	structured := map[string]any{
		"error":   "tool_disabled_for_session",
		"message": err.Error(),
	}
	var visErr *domain.VisibilityError
	if errors.As(err, &visErr) {
		structured["tool_name"] = visErr.Tool
		structured["hint"] = visErr.Hint()
	}
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		StructuredContent: structured,
	}
}
