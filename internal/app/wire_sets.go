//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewMetricsRegistry,
	NewMetrics,
	NewHealthTracker,
)

var ToolingSet = wire.NewSet(
	NewCatalog,
	NewManifest,
	NewMistClient,
	NewResolver,
	NewMCPServer,
	NewToolRegistry,
	NewToolLoader,
)

var VisibilitySet = wire.NewSet(
	NewSessionStore,
	NewScopeResolver,
	NewVisibilityFilter,
	NewConfirmer,
	NewManageTools,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	ToolingSet,
	VisibilitySet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)
