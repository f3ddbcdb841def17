package managetools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/elicitation"
	"mistmcp/internal/infra/loader"
	"mistmcp/internal/infra/session"
	"mistmcp/internal/infra/toolregistry"
	"mistmcp/internal/infra/visibility"
)

type echoResolver struct{}

func (echoResolver) Resolve(_ string, tool string) (toolregistry.Unit, error) {
	return toolregistry.Unit{
		Tool: &mcp.Tool{Name: tool, InputSchema: &jsonschema.Schema{Type: "object"}},
		Handler: func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: tool}}}, nil
		},
	}, nil
}

// failingResolver fails for the listed tools and echoes the rest.
type failingResolver map[string]bool

func (r failingResolver) Resolve(category, tool string) (toolregistry.Unit, error) {
	if r[tool] {
		return toolregistry.Unit{}, errors.New("operation missing from manifest")
	}
	return echoResolver{}.Resolve(category, tool)
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []string
	err       error
}

func (n *recordingNotifier) NotifyToolListChanged(_ context.Context, _ *mcp.ServerSession, summary string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

func testCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog([]domain.Category{
		{Name: "self_account", Tools: []string{domain.GetSelfName}},
		{Name: "orgs", Description: "Organization endpoints", Tools: []string{"getOrg", "searchOrgEvents"}},
		{Name: "orgs_sites", Tools: []string{"searchOrgEvents", "countOrgSites"}},
		{Name: "sites", Tools: []string{"getSiteInfo"}},
		{Name: "write", Tools: []string{"updateOrgConfigurationObjects"}, Write: true},
	})
	require.NoError(t, err)
	return catalog
}

type stubConfirmer struct {
	mu       sync.Mutex
	decision elicitation.Decision
	err      error
	messages []string
}

func (c *stubConfirmer) Confirm(_ context.Context, _ *mcp.ServerSession, message string) (elicitation.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return c.decision, c.err
}

func (c *stubConfirmer) asked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

type fixture struct {
	service   *Service
	store     *session.Store
	registry  *toolregistry.Registry
	notifier  *recordingNotifier
	confirmer *stubConfirmer
}

type fixtureOptions struct {
	server     *mcp.Server
	allowWrite bool
	resolver   loader.Resolver
}

func newFixture(t *testing.T, server *mcp.Server, allowWrite bool) *fixture {
	t.Helper()
	return newFixtureWith(t, fixtureOptions{server: server, allowWrite: allowWrite})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	resolver := opts.resolver
	if resolver == nil {
		resolver = echoResolver{}
	}
	allowWrite := opts.allowWrite
	catalog := testCatalog(t)
	registry := toolregistry.New(opts.server, zap.NewNop())
	store := session.NewStore(session.Options{Timeout: time.Hour})
	l := loader.New(loader.Options{Catalog: catalog, Registry: registry, Resolver: resolver})
	notifier := &recordingNotifier{}
	confirmer := &stubConfirmer{decision: elicitation.DecisionAccept}
	service := NewService(Options{
		Catalog:     catalog,
		Sessions:    store,
		Loader:      l,
		Notifier:    notifier,
		Confirmer:   confirmer,
		Scopes:      visibility.ScopeResolver{Transport: "stdio", DefaultMode: domain.ToolModeManaged},
		AllowWrite:  allowWrite,
		NewChangeID: func() string { return "change-1" },
	})
	require.NoError(t, l.RegisterBuiltin(service.Unit()))
	require.NoError(t, l.LoadDefaults(store.DefaultEnabledTools()))
	return &fixture{service: service, store: store, registry: registry, notifier: notifier, confirmer: confirmer}
}

var sessionA = visibility.RequestScope{SessionKey: "a", Mode: domain.ToolModeManaged}

func TestNormalizeCategories_Equivalence(t *testing.T) {
	inputs := []string{
		`["orgs","sites"]`,
		`"orgs, sites"`,
		`"[\"orgs\",\"sites\"]"`,
		`["Orgs", "sites", "orgs"]`,
	}
	for _, input := range inputs {
		got, err := NormalizeCategories(json.RawMessage(input))
		require.NoError(t, err, input)
		if diff := cmp.Diff([]string{"orgs", "sites"}, got); diff != "" {
			t.Fatalf("input %s (-want +got):\n%s", input, diff)
		}
	}

	single, err := NormalizeCategories(json.RawMessage(`"orgs"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"orgs"}, single)

	empty, err := NormalizeCategories(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = NormalizeCategories(json.RawMessage(`42`))
	require.Error(t, err)
	_, err = NormalizeCategories(json.RawMessage(`"[\"orgs\""`))
	require.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	req, err := ParseArguments(json.RawMessage(`{"enable_mcp_tools_categories":"orgs","configuration_required":true}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"orgs"}, req.Enable)
	assert.True(t, req.ConfigurationRequested)
	assert.True(t, req.Mutates())

	req, err = ParseArguments(nil)
	require.NoError(t, err)
	assert.False(t, req.Mutates())

	_, err = ParseArguments(json.RawMessage(`[1]`))
	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeInvalidArgument, code)
}

func TestApply_EnableCategory(t *testing.T) {
	f := newFixture(t, nil, false)

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs"}})

	assert.True(t, result.RequiresConfirmation)
	assert.Equal(t, "change-1", result.ChangeID)
	assert.Equal(t, []string{"orgs"}, result.Enabled)
	assert.Len(t, result.ActiveTools, 4)
	assert.ElementsMatch(t, []string{domain.GetSelfName, domain.ManageToolsName, "getOrg", "searchOrgEvents"}, result.ActiveTools)
	assert.Contains(t, result.Message, "STOP: USER CONFIRMATION REQUIRED")
	assert.Equal(t, 1, f.notifier.count())

	assert.True(t, f.registry.Enabled("getOrg"))
	current, ok := f.store.Get("a")
	require.True(t, ok)
	assert.True(t, current.EnabledCategories.Has("orgs"))

	// Enabling again is idempotent.
	again := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs"}})
	assert.Equal(t, result.ActiveTools, again.ActiveTools)
}

func TestApply_DisableReturnsToDefaults(t *testing.T) {
	f := newFixture(t, nil, false)
	f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs"}})

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Disable: []string{"orgs"}})

	assert.Equal(t, []string{"orgs"}, result.Disabled)
	assert.Equal(t, []string{domain.GetSelfName, domain.ManageToolsName}, result.ActiveTools)
	assert.Empty(t, result.ActiveCategories)
	// Disabling never unloads or disables globally.
	assert.True(t, f.registry.Enabled("getOrg"))
}

func TestApply_DisableKeepsSharedOperations(t *testing.T) {
	f := newFixture(t, nil, false)
	f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs", "orgs_sites"}})

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Disable: []string{"orgs_sites"}})

	assert.Contains(t, result.ActiveTools, "searchOrgEvents")
	assert.NotContains(t, result.ActiveTools, "countOrgSites")
	assert.Equal(t, []string{"orgs"}, result.ActiveCategories)
}

func TestApply_DisableNotEnabledWarns(t *testing.T) {
	f := newFixture(t, nil, false)

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Disable: []string{"sites", "self_account"}})

	assert.Empty(t, result.Disabled)
	assert.Contains(t, result.Warnings, "sites -> not enabled")
	assert.Contains(t, result.ActiveTools, domain.GetSelfName)
}

func TestApply_UnknownCategoryLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t, nil, false)

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"nope"}})

	assert.Equal(t, []string{"nope"}, result.Unknown)
	assert.Contains(t, result.Warnings, "nope -> Unknown category")
	assert.Equal(t, []string{domain.GetSelfName, domain.ManageToolsName}, result.ActiveTools)
	assert.Zero(t, f.notifier.count())
}

func TestApply_WriteCategoriesAreGated(t *testing.T) {
	f := newFixture(t, nil, false)
	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"write"}, ConfigurationRequested: true})
	assert.Equal(t, []string{"write"}, result.Gated)
	assert.NotContains(t, result.ActiveTools, "updateOrgConfigurationObjects")

	f = newFixture(t, nil, true)
	result = f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"write"}})
	assert.Equal(t, []string{"write"}, result.Gated)
	assert.Zero(t, f.confirmer.asked())

	result = f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"write"}, ConfigurationRequested: true})
	assert.Empty(t, result.Gated)
	assert.Equal(t, []string{"write"}, result.Enabled)
	assert.Contains(t, result.ActiveTools, "updateOrgConfigurationObjects")
	require.Equal(t, 1, f.confirmer.asked())
	assert.Contains(t, f.confirmer.messages[0], "'write'")
}

func TestApply_WriteCategoryNeedsUserApproval(t *testing.T) {
	cases := []struct {
		decision elicitation.Decision
		err      error
		warning  string
	}{
		{elicitation.DecisionDecline, nil, "write -> declined by the user"},
		{elicitation.DecisionCancel, errors.New("client went away"), "write -> user confirmation was cancelled"},
		{elicitation.DecisionUnsupported, nil, "write -> the client does not support user confirmation (elicitation); write tools stay disabled"},
	}
	for _, tc := range cases {
		t.Run(string(tc.decision), func(t *testing.T) {
			f := newFixture(t, nil, true)
			f.confirmer.decision = tc.decision
			f.confirmer.err = tc.err

			result := f.service.Apply(context.Background(), sessionA, nil, Request{
				Enable:                 []string{"write", "sites"},
				ConfigurationRequested: true,
			})

			assert.Equal(t, []string{"write"}, result.Gated)
			assert.Equal(t, []string{"sites"}, result.Enabled)
			assert.Contains(t, result.Warnings, tc.warning)
			assert.NotContains(t, result.ActiveTools, "updateOrgConfigurationObjects")
			assert.False(t, f.registry.Has("updateOrgConfigurationObjects"))
		})
	}
}

func TestApply_WriteConfirmationBypassed(t *testing.T) {
	f := newFixture(t, nil, true)
	f.service.confirmer = elicitation.NewConfirmer(elicitation.Options{Disabled: true})

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"write"}, ConfigurationRequested: true})

	assert.Empty(t, result.Gated)
	assert.Contains(t, result.ActiveTools, "updateOrgConfigurationObjects")
}

func TestApply_ResolutionFailureKeepsRemainingTools(t *testing.T) {
	f := newFixtureWith(t, fixtureOptions{resolver: failingResolver{"getOrg": true}})

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs"}})

	assert.True(t, result.RequiresConfirmation)
	assert.Equal(t, []string{"orgs"}, result.Enabled)
	assert.Equal(t, []string{"getOrg"}, result.Failed)
	assert.Contains(t, result.Warnings, "orgs.getOrg -> failed to load the tool")
	assert.Contains(t, result.ActiveTools, "searchOrgEvents")
	assert.NotContains(t, result.ActiveTools, "getOrg")
	assert.False(t, f.registry.Has("getOrg"))

	current, ok := f.store.Get("a")
	require.True(t, ok)
	assert.True(t, current.EnabledCategories.Has("orgs"))
	assert.True(t, current.EnabledTools.Has("searchOrgEvents"))
}

func TestApply_NotificationFailureKeepsChange(t *testing.T) {
	f := newFixture(t, nil, false)
	f.notifier.err = errors.New("transport closed")

	result := f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"sites"}})

	assert.Equal(t, 1, f.notifier.count())
	assert.True(t, result.RequiresConfirmation)
	assert.Equal(t, []string{"sites"}, result.Enabled)
	assert.Contains(t, result.Message, "STOP: USER CONFIRMATION REQUIRED")

	current, ok := f.store.Get("a")
	require.True(t, ok)
	assert.True(t, current.EnabledTools.Has("getSiteInfo"))
	assert.True(t, current.EnabledCategories.Has("sites"))
}

func TestApply_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t, nil, false)
	sessionB := visibility.RequestScope{SessionKey: "b", Mode: domain.ToolModeManaged}

	f.service.Apply(context.Background(), sessionA, nil, Request{Enable: []string{"orgs"}})
	result := f.service.Apply(context.Background(), sessionB, nil, Request{Enable: []string{"sites"}})

	assert.NotContains(t, result.ActiveTools, "getOrg")
	a, _ := f.store.Get("a")
	assert.False(t, a.EnabledTools.Has("getSiteInfo"))
}

func TestApply_WithoutSession(t *testing.T) {
	f := newFixture(t, nil, false)

	result := f.service.Apply(context.Background(), visibility.RequestScope{Mode: domain.ToolModeManaged}, nil, Request{Enable: []string{"orgs"}})

	assert.False(t, result.RequiresConfirmation)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, []string{domain.GetSelfName, domain.ManageToolsName}, result.ActiveTools)
	assert.Zero(t, f.store.Len())
}

func TestApply_ListAvailableCategories(t *testing.T) {
	f := newFixture(t, nil, false)

	result := f.service.Apply(context.Background(), sessionA, nil, Request{ListAvailableCategories: true})

	assert.False(t, result.RequiresConfirmation)
	require.Len(t, result.AvailableCategories, 5)
	assert.Equal(t, CategorySummary{Name: "orgs", Description: "Organization endpoints", ToolCount: 2}, result.AvailableCategories[1])
	assert.True(t, result.AvailableCategories[4].Write)
	assert.Contains(t, result.Message, "- orgs (2 tools): Organization endpoints")
	assert.Zero(t, f.notifier.count())
}

func TestHandle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "mistmcp", Version: "test"}, &mcp.ServerOptions{HasTools: true})
	f := newFixture(t, server, false)
	f.service.notifier = RegistryNotifier{Registry: f.registry}
	filter := visibility.NewFilter(visibility.Options{
		Registry: f.registry,
		Catalog:  testCatalog(t),
		Sessions: f.store,
		Scopes:   visibility.ScopeResolver{Transport: "stdio", DefaultMode: domain.ToolModeManaged},
	})
	server.AddReceivingMiddleware(filter.Middleware())

	changed := make(chan struct{}, 16)
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, &mcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *mcp.ToolListChangedRequest) {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      domain.ManageToolsName,
		Arguments: map[string]any{"enable_mcp_tools_categories": "orgs"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "AGENT INSTRUCTION")

	structured, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, structured["requires_confirmation"])

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no tools/list_changed notification received")
	}

	list, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{domain.GetSelfName, domain.ManageToolsName, "getOrg", "searchOrgEvents"}, names)

	bad, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      domain.ManageToolsName,
		Arguments: map[string]any{"enable_mcp_tools_categories": 7},
	})
	require.NoError(t, err)
	assert.True(t, bad.IsError)
}

func TestHandle_WriteCategoryElicitsUser(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "mistmcp", Version: "test"}, &mcp.ServerOptions{HasTools: true})
	f := newFixture(t, server, true)
	f.service.confirmer = elicitation.NewConfirmer(elicitation.Options{})
	filter := visibility.NewFilter(visibility.Options{
		Registry: f.registry,
		Catalog:  testCatalog(t),
		Sessions: f.store,
		Scopes:   visibility.ScopeResolver{Transport: "stdio", DefaultMode: domain.ToolModeManaged},
	})
	server.AddReceivingMiddleware(filter.Middleware())

	prompts := make(chan string, 1)
	ct, st := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, &mcp.ClientOptions{
		ElicitationHandler: func(_ context.Context, req *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
			prompts <- req.Params.Message
			return &mcp.ElicitResult{Action: "accept", Content: map[string]any{"confirm": true}}, nil
		},
	})
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name: domain.ManageToolsName,
		Arguments: map[string]any{
			"enable_mcp_tools_categories": []string{"write"},
			"configuration_requested":     true,
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	select {
	case prompt := <-prompts:
		assert.Contains(t, prompt, "'write'")
	default:
		t.Fatal("user was not asked to approve write tools")
	}

	list, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(list.Tools))
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "updateOrgConfigurationObjects")
}
