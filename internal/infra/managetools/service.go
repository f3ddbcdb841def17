package managetools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/elicitation"
	"mistmcp/internal/infra/telemetry"
	"mistmcp/internal/infra/toolregistry"
	"mistmcp/internal/infra/visibility"
)

const toolDescription = "Used to reconfigure the MCP server and define a different list of tools based on the use case " +
	"(monitor, troubleshooting, ...). IMPORTANT: This tool requires user confirmation after execution before proceeding with other actions."

type Sessions interface {
	GetOrCreate(key string, mode domain.ToolMode) (domain.Session, error)
	Modify(key string, fn func(session *domain.Session)) (domain.Session, error)
	DefaultEnabledTools() []string
}

type Loader interface {
	EnsureLoaded(category, tool string) bool
	Enable(tool string) bool
}

// Notifier tells connected clients that the visible tool list may have changed.
type Notifier interface {
	NotifyToolListChanged(ctx context.Context, session *mcp.ServerSession, summary string) error
}

// Confirmer asks the user to approve enabling write categories.
type Confirmer interface {
	Confirm(ctx context.Context, session *mcp.ServerSession, message string) (elicitation.Decision, error)
}

type Options struct {
	Catalog    domain.Catalog
	Sessions   Sessions
	Loader     Loader
	Notifier   Notifier
	Confirmer  Confirmer
	Scopes     visibility.ScopeResolver
	AllowWrite bool
	Logger     *zap.Logger
	Metrics    domain.Metrics
	// NewChangeID overrides change id generation in tests.
	NewChangeID func() string
}

// Service implements the manageMcpTools visibility-control tool.
type Service struct {
	catalog     domain.Catalog
	sessions    Sessions
	loader      Loader
	notifier    Notifier
	confirmer   Confirmer
	scopes      visibility.ScopeResolver
	allowWrite  bool
	logger      *zap.Logger
	metrics     domain.Metrics
	newChangeID func() string
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newChangeID := opts.NewChangeID
	if newChangeID == nil {
		newChangeID = uuid.NewString
	}
	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = elicitation.NewConfirmer(elicitation.Options{Logger: logger})
	}
	return &Service{
		catalog:     opts.Catalog,
		sessions:    opts.Sessions,
		loader:      opts.Loader,
		notifier:    opts.Notifier,
		confirmer:   confirmer,
		scopes:      opts.Scopes,
		allowWrite:  opts.AllowWrite,
		logger:      logger.Named("manage_tools"),
		metrics:     opts.Metrics,
		newChangeID: newChangeID,
	}
}

// Tool describes manageMcpTools to clients.
func (s *Service) Tool() *mcp.Tool {
	return &mcp.Tool{
		Name:        domain.ManageToolsName,
		Description: toolDescription,
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"enable_mcp_tools_categories": categoryListSchema(
					fmt.Sprintf("Enable tools within the MCP based on the tool category. Accepts a list, a single name, a comma-separated string or a JSON-encoded list. Available: %s",
						strings.Join(s.catalog.Names(), ", "))),
				"disable_mcp_tools_categories": categoryListSchema("Disable previously enabled tool categories for this session. Same encodings as enable_mcp_tools_categories."),
				"configuration_requested": {
					Type: "boolean",
					Description: "Request the 'write' API endpoints used to create or configure resources in the Mist Cloud. " +
						"Do not use it unless explicitly requested by the user, and ask the user for confirmation before using any 'write' tool.",
				},
				"list_available_categories": {
					Type:        "boolean",
					Description: "Only list the available tool categories without changing anything.",
				},
			},
		},
		Annotations: &mcp.ToolAnnotations{
			Title:           domain.ManageToolsName,
			DestructiveHint: boolPtr(false),
			OpenWorldHint:   boolPtr(false),
		},
	}
}

func categoryListSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: description,
		AnyOf: []*jsonschema.Schema{
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			{Type: "string"},
		},
	}
}

// Unit packages the tool for the registry.
func (s *Service) Unit() toolregistry.Unit {
	return toolregistry.Unit{Tool: s.Tool(), Handler: s.Handle}
}

// Handle is the MCP tool handler.
func (s *Service) Handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args []byte
	if req != nil && req.Params != nil {
		args = req.Params.Arguments
	}
	request, err := ParseArguments(args)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		}, nil
	}

	var session *mcp.ServerSession
	scope := visibility.RequestScope{Mode: domain.DefaultToolMode}
	if req != nil {
		scope = s.scopes.Resolve(req)
		session = req.Session
	}

	result := s.Apply(ctx, scope, session, request)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: result.Message}},
		StructuredContent: result,
	}, nil
}

// Apply runs one visibility change for the session identified by scope.
// Disables are processed before enables and the session update is atomic.
func (s *Service) Apply(ctx context.Context, scope visibility.RequestScope, session *mcp.ServerSession, req Request) Result {
	result := Result{
		ChangeID:  s.newChangeID(),
		SessionID: scope.SessionKey,
	}

	if !req.Mutates() {
		result.AvailableCategories = s.summaries()
		if current, ok := s.current(scope); ok {
			result.ActiveCategories = current.EnabledCategories.Sorted()
			result.ActiveTools = current.EnabledTools.Sorted()
		}
		result.Message = listingMessage(result)
		s.observe(domain.ManageOutcomeListed)
		return result
	}

	if _, err := s.sessions.GetOrCreate(scope.SessionKey, scope.Mode); err != nil {
		result.Warnings = append(result.Warnings, "No client session could be resolved; tool visibility was not changed.")
		result.ActiveTools = s.sessions.DefaultEnabledTools()
		result.Message = noSessionMessage(result)
		s.logger.Warn("tool change without session", telemetry.ChangeIDField(result.ChangeID), zap.Error(err))
		s.observe(domain.ManageOutcomeNoSession)
		return result
	}

	// Confirmation may wait on the user, so it runs before the session is locked.
	approved := s.confirmWrites(ctx, session, req, &result)

	updated, err := s.sessions.Modify(scope.SessionKey, func(current *domain.Session) {
		s.disable(current, req.Disable, &result)
		s.enable(current, req.Enable, approved, &result)
	})
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Session state could not be updated: %v", err))
		result.ActiveTools = s.sessions.DefaultEnabledTools()
		result.Message = noSessionMessage(result)
		s.logger.Warn("session update failed", telemetry.SessionField(scope.SessionKey), zap.Error(err))
		s.observe(domain.ManageOutcomeNoSession)
		return result
	}

	result.ActiveCategories = updated.EnabledCategories.Sorted()
	result.ActiveTools = updated.EnabledTools.Sorted()
	result.RequiresConfirmation = true
	if req.ListAvailableCategories {
		result.AvailableCategories = s.summaries()
	}
	changed := len(result.Enabled) > 0 || len(result.Disabled) > 0
	result.Message = confirmationMessage(result)

	s.logger.Info("session tools changed",
		telemetry.EventField(telemetry.EventToolsChanged),
		telemetry.SessionField(scope.SessionKey),
		telemetry.ChangeIDField(result.ChangeID),
		zap.Strings("enabled", result.Enabled),
		zap.Strings("disabled", result.Disabled),
		zap.Strings("warnings", result.Warnings),
	)

	if changed {
		s.notify(ctx, session, result)
		s.observe(domain.ManageOutcomeChanged)
	} else {
		s.observe(domain.ManageOutcomeUnchanged)
	}
	return result
}

func (s *Service) disable(current *domain.Session, categories []string, result *Result) {
	var candidates []string
	for _, name := range categories {
		category, ok := s.catalog.Category(name)
		if !ok {
			result.Unknown = append(result.Unknown, name)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s -> Unknown category", name))
			continue
		}
		if !current.EnabledCategories.Has(name) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s -> not enabled", name))
			continue
		}
		current.EnabledCategories.Remove(name)
		result.Disabled = append(result.Disabled, name)
		candidates = append(candidates, category.Tools...)
	}

	defaults := domain.NewToolSet(s.sessions.DefaultEnabledTools()...)
	for _, tool := range candidates {
		if defaults.Has(tool) || s.stillGranted(current, tool) {
			continue
		}
		current.EnabledTools.Remove(tool)
	}
}

// stillGranted reports whether another enabled category of the session contains tool.
func (s *Service) stillGranted(current *domain.Session, tool string) bool {
	for _, owner := range s.catalog.CategoriesOf(tool) {
		if current.EnabledCategories.Has(owner) {
			return true
		}
	}
	return false
}

// confirmWrites gates every requested write category and returns the approved ones.
// Rejected categories are recorded in result.
func (s *Service) confirmWrites(ctx context.Context, session *mcp.ServerSession, req Request, result *Result) map[string]bool {
	approved := make(map[string]bool)
	for _, name := range req.Enable {
		category, ok := s.catalog.Category(name)
		if !ok || !category.Write {
			continue
		}
		var reason string
		switch {
		case !s.allowWrite:
			reason = "write tools are disabled on this server"
		case !req.ConfigurationRequested:
			reason = "write tools require configuration_requested=true"
		default:
			decision, err := s.confirmer.Confirm(ctx, session, writeConfirmMessage(category))
			if err != nil {
				s.logger.Warn("write confirmation failed",
					telemetry.CategoryField(name),
					telemetry.ChangeIDField(result.ChangeID),
					zap.Error(err),
				)
			}
			if decision.Approved() {
				approved[name] = true
				continue
			}
			reason = declinedReason(decision)
		}
		result.Gated = append(result.Gated, name)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s -> %s", name, reason))
	}
	return approved
}

func writeConfirmMessage(category domain.Category) string {
	return fmt.Sprintf("The AI agent wants to enable the '%s' tools (%d tools). These tools can create, modify or delete "+
		"resources in your Mist organization. Do you approve?", category.Name, len(category.Tools))
}

func declinedReason(decision elicitation.Decision) string {
	switch decision {
	case elicitation.DecisionUnsupported:
		return "the client does not support user confirmation (elicitation); write tools stay disabled"
	case elicitation.DecisionDecline:
		return "declined by the user"
	default:
		return "user confirmation was cancelled"
	}
}

func (s *Service) enable(current *domain.Session, categories []string, approved map[string]bool, result *Result) {
	for _, name := range categories {
		category, ok := s.catalog.Category(name)
		if !ok {
			result.Unknown = append(result.Unknown, name)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s -> Unknown category", name))
			continue
		}
		if category.Write && !approved[name] {
			continue
		}

		loaded := 0
		for _, tool := range category.Tools {
			if s.loader.EnsureLoaded(name, tool) && s.loader.Enable(tool) {
				current.EnabledTools.Add(tool)
				loaded++
				continue
			}
			result.Failed = append(result.Failed, tool)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s.%s -> failed to load the tool", name, tool))
		}
		if loaded > 0 {
			current.EnabledCategories.Add(name)
			result.Enabled = append(result.Enabled, name)
		}
	}
}

func (s *Service) notify(ctx context.Context, session *mcp.ServerSession, result Result) {
	if s.notifier == nil {
		return
	}
	summary := fmt.Sprintf("Tools changed (%s): enabled=%v disabled=%v", result.ChangeID, result.Enabled, result.Disabled)
	if err := s.notifier.NotifyToolListChanged(ctx, session, summary); err != nil {
		s.logger.Warn("tool list change notification failed",
			telemetry.EventField(telemetry.EventNotifyFailure),
			telemetry.ChangeIDField(result.ChangeID),
			zap.Error(err),
		)
	}
}

func (s *Service) current(scope visibility.RequestScope) (domain.Session, bool) {
	if !scope.HasSession() {
		return domain.Session{}, false
	}
	session, err := s.sessions.GetOrCreate(scope.SessionKey, scope.Mode)
	return session, err == nil
}

func (s *Service) summaries() []CategorySummary {
	categories := s.catalog.Categories()
	out := make([]CategorySummary, 0, len(categories))
	for _, category := range categories {
		out = append(out, CategorySummary{
			Name:        category.Name,
			Description: category.Description,
			ToolCount:   len(category.Tools),
			Write:       category.Write,
		})
	}
	return out
}

func (s *Service) observe(outcome domain.ManageOutcome) {
	if s.metrics != nil {
		s.metrics.ObserveManageTools(outcome)
	}
}

func boolPtr(v bool) *bool {
	return &v
}
