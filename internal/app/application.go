package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/loader"
	"mistmcp/internal/infra/managetools"
	"mistmcp/internal/infra/session"
	"mistmcp/internal/infra/telemetry"
	"mistmcp/internal/infra/toolregistry"
	"mistmcp/internal/infra/visibility"
)

// Application wires the MCP server, the visibility layer and the transports.
type Application struct {
	ctx    context.Context
	cfg    ServeConfig
	logger *zap.Logger

	registry *prometheus.Registry
	health   *telemetry.HealthTracker

	catalog  domain.Catalog
	server   *mcp.Server
	tools    *toolregistry.Registry
	sessions *session.Store
	loader   *loader.Loader
	filter   *visibility.Filter
	manage   *managetools.Service

	prepareOnce sync.Once
	prepareErr  error
}

// ApplicationOptions captures dependencies and settings for Application.
type ApplicationOptions struct {
	Context     context.Context
	ServeConfig ServeConfig
	Logger      *zap.Logger
	Registry    *prometheus.Registry
	Health      *telemetry.HealthTracker
	Catalog     domain.Catalog
	Server      *mcp.Server
	Tools       *toolregistry.Registry
	Sessions    *session.Store
	Loader      *loader.Loader
	Filter      *visibility.Filter
	ManageTools *managetools.Service
}

func NewApplication(opts ApplicationOptions) *Application {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		ctx:      ctx,
		cfg:      opts.ServeConfig,
		logger:   logger.Named("app"),
		registry: opts.Registry,
		health:   opts.Health,
		catalog:  opts.Catalog,
		server:   opts.Server,
		tools:    opts.Tools,
		sessions: opts.Sessions,
		loader:   opts.Loader,
		filter:   opts.Filter,
		manage:   opts.ManageTools,
	}
}

// Server exposes the MCP server, mostly for in-process clients.
func (a *Application) Server() *mcp.Server {
	return a.server
}

// Sessions exposes the session store for introspection.
func (a *Application) Sessions() *session.Store {
	return a.sessions
}

// Prepare installs the visibility middleware and materializes the startup
// tool set. It runs once; later calls return the first result.
func (a *Application) Prepare() error {
	a.prepareOnce.Do(func() {
		a.prepareErr = a.prepare()
	})
	return a.prepareErr
}

func (a *Application) prepare() error {
	a.server.AddReceivingMiddleware(a.filter.Middleware())

	mode := a.cfg.ToolMode()
	if mode == domain.ToolModeAll {
		loaded := a.loader.LoadAll(domain.ManageToolsName)
		if !a.tools.Enabled(domain.GetSelfName) {
			return domain.E(domain.CodeFailedPrecond, "prepare", "getSelf could not be loaded", domain.ErrToolNotFound)
		}
		a.logger.Info("all tools loaded", zap.Int("tools", loaded))
		return nil
	}

	if err := a.loader.RegisterBuiltin(a.manage.Unit()); err != nil {
		return err
	}
	if err := a.loader.LoadDefaults(a.sessions.DefaultEnabledTools()); err != nil {
		return err
	}
	a.logger.Info("default tools loaded",
		telemetry.ModeField(string(mode)),
		zap.Strings("tools", a.sessions.DefaultEnabledTools()),
		zap.Int("categories", a.catalog.Len()),
	)
	return nil
}

// Run starts the server and blocks until ctx is cancelled or the transport ends.
func (a *Application) Run() error {
	if err := a.Prepare(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	defer a.sessions.Close()

	go a.sessions.Run(ctx, a.cfg.SweepInterval)

	if a.cfg.MetricsAddr != "" {
		go func() {
			err := telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
				Addr:          a.cfg.MetricsAddr,
				EnableMetrics: true,
				EnableHealthz: true,
				Health:        a.health,
				Registry:      a.registry,
				Sessions:      a.sessions,
			}, a.logger)
			if err != nil {
				a.logger.Warn("observability server stopped", zap.Error(err))
			}
		}()
	}

	a.logger.Info("mistmcp starting",
		zap.String("transport", a.cfg.Transport),
		telemetry.ModeField(string(a.cfg.ToolMode())),
		zap.Bool("write_tools", a.cfg.EnableWriteTools),
		zap.String("version", Version),
	)

	if strings.EqualFold(a.cfg.Transport, TransportHTTP) {
		return a.serveHTTP(ctx)
	}
	err := a.server.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// HTTPHandler serves the streamable HTTP transport on the configured path.
// Every connection gets its own Mcp-Session-Id and therefore its own session.
func (a *Application) HTTPHandler() http.Handler {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return a.server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(a.cfg.Path, visibility.QueryBridge(handler))
	return mux
}

func (a *Application) serveHTTP(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.cfg.ListenAddr(),
		Handler:           a.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("streamable HTTP listening",
			zap.String("addr", server.Addr),
			zap.String("path", a.cfg.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("streamable HTTP server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("streamable HTTP shutdown error", zap.Error(err))
			return err
		}
		a.logger.Info("streamable HTTP stopped")
		return nil
	}
}
