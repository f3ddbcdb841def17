package app

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/catalog"
	"mistmcp/internal/infra/elicitation"
	"mistmcp/internal/infra/loader"
	"mistmcp/internal/infra/managetools"
	"mistmcp/internal/infra/mistapi"
	"mistmcp/internal/infra/operations"
	"mistmcp/internal/infra/session"
	"mistmcp/internal/infra/telemetry"
	"mistmcp/internal/infra/toolregistry"
	"mistmcp/internal/infra/visibility"
)

const sweeperHealthCheck = "session-sweeper"

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

func NewCatalog(ctx context.Context, cfg ServeConfig, logger *zap.Logger) (domain.Catalog, error) {
	return catalog.NewLoader(logger).Load(ctx, cfg.CatalogPath)
}

func NewManifest(ctx context.Context, cfg ServeConfig, toolCatalog domain.Catalog, logger *zap.Logger) (*operations.Manifest, error) {
	manifest, err := operations.LoadManifest(ctx, cfg.OperationsPath, logger)
	if err != nil {
		return nil, err
	}
	if missing := manifest.Missing(toolCatalog); len(missing) > 0 {
		logger.Warn("catalog operations without a manifest entry will be skipped", zap.Strings("operations", missing))
	}
	return manifest, nil
}

func NewMistClient(cfg ServeConfig, logger *zap.Logger) (*mistapi.Client, error) {
	client, err := mistapi.NewClient(mistapi.Options{
		Host:    cfg.MistHost,
		Token:   cfg.MistToken,
		Timeout: cfg.MistTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if !client.Configured() {
		logger.Warn("no Mist API token configured; API tools will fail until MIST_APITOKEN is set")
	}
	return client, nil
}

func NewResolver(cfg ServeConfig, manifest *operations.Manifest, client *mistapi.Client, logger *zap.Logger) *operations.Resolver {
	format, _ := operations.ParseResponseFormat(cfg.ResponseFormat)
	return operations.NewResolver(operations.ResolverOptions{
		Manifest: manifest,
		Client:   client,
		Format:   format,
		Logger:   logger,
	})
}

func NewMCPServer(cfg ServeConfig) *mcp.Server {
	return mcp.NewServer(&mcp.Implementation{
		Name:    "mistmcp",
		Title:   "Mist MCP Server",
		Version: Version,
	}, &mcp.ServerOptions{
		Instructions: Instructions(cfg.ToolMode()),
		HasTools:     true,
	})
}

func NewToolRegistry(server *mcp.Server, logger *zap.Logger) *toolregistry.Registry {
	return toolregistry.New(server, logger)
}

func NewSessionStore(cfg ServeConfig, health *telemetry.HealthTracker, metrics domain.Metrics, logger *zap.Logger) *session.Store {
	return session.NewStore(session.Options{
		Defaults:  domain.DefaultEnabledTools(),
		Timeout:   cfg.SessionTimeout,
		Logger:    logger,
		Metrics:   metrics,
		Heartbeat: health.Register(sweeperHealthCheck, 2*cfg.SweepInterval),
	})
}

func NewToolLoader(
	toolCatalog domain.Catalog,
	registry *toolregistry.Registry,
	resolver *operations.Resolver,
	metrics domain.Metrics,
	logger *zap.Logger,
) *loader.Loader {
	return loader.New(loader.Options{
		Catalog:  toolCatalog,
		Registry: registry,
		Resolver: resolver,
		Logger:   logger,
		Metrics:  metrics,
	})
}

func NewScopeResolver(cfg ServeConfig) visibility.ScopeResolver {
	return visibility.ScopeResolver{
		Transport:   cfg.Normalize().Transport,
		DefaultMode: cfg.ToolMode(),
	}
}

func NewVisibilityFilter(
	registry *toolregistry.Registry,
	toolCatalog domain.Catalog,
	store *session.Store,
	toolLoader *loader.Loader,
	scopes visibility.ScopeResolver,
	metrics domain.Metrics,
	logger *zap.Logger,
) *visibility.Filter {
	return visibility.NewFilter(visibility.Options{
		Registry:     registry,
		Catalog:      toolCatalog,
		Sessions:     store,
		Materializer: toolLoader,
		Scopes:       scopes,
		Logger:       logger,
		Metrics:      metrics,
	})
}

func NewConfirmer(cfg ServeConfig, logger *zap.Logger) *elicitation.Confirmer {
	if cfg.EnableWriteTools && cfg.DisableElicitation {
		logger.Warn("write tools are enabled without user confirmation; use only with trusted agents")
	}
	return elicitation.NewConfirmer(elicitation.Options{
		Disabled: cfg.DisableElicitation,
		Logger:   logger,
	})
}

func NewManageTools(
	cfg ServeConfig,
	toolCatalog domain.Catalog,
	store *session.Store,
	toolLoader *loader.Loader,
	registry *toolregistry.Registry,
	scopes visibility.ScopeResolver,
	confirmer *elicitation.Confirmer,
	metrics domain.Metrics,
	logger *zap.Logger,
) *managetools.Service {
	return managetools.NewService(managetools.Options{
		Catalog:    toolCatalog,
		Sessions:   store,
		Loader:     toolLoader,
		Notifier:   managetools.RegistryNotifier{Registry: registry},
		Confirmer:  confirmer,
		Scopes:     scopes,
		AllowWrite: cfg.EnableWriteTools,
		Logger:     logger,
		Metrics:    metrics,
	})
}
