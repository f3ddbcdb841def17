package loader

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/telemetry"
	"mistmcp/internal/infra/toolregistry"
)

// Resolver produces the implementation unit for one catalog operation.
type Resolver interface {
	Resolve(category, tool string) (toolregistry.Unit, error)
}

type Options struct {
	Catalog  domain.Catalog
	Registry *toolregistry.Registry
	Resolver Resolver
	Logger   *zap.Logger
	Metrics  domain.Metrics
}

// Loader materializes catalog operations into the registry on first use.
// Materialization is global; whether a session sees a tool is decided elsewhere.
type Loader struct {
	catalog  domain.Catalog
	registry *toolregistry.Registry
	resolver Resolver
	logger   *zap.Logger
	metrics  domain.Metrics

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	builtins map[string]toolregistry.Unit
}

func New(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		catalog:  opts.Catalog,
		registry: opts.Registry,
		resolver: opts.Resolver,
		logger:   logger.Named("tool_loader"),
		metrics:  opts.Metrics,
		locks:    make(map[string]*sync.Mutex),
		builtins: make(map[string]toolregistry.Unit),
	}
}

// RegisterBuiltin makes a tool that lives outside the catalog loadable by name.
func (l *Loader) RegisterBuiltin(unit toolregistry.Unit) error {
	if unit.Tool == nil || unit.Tool.Name == "" || unit.Handler == nil {
		return domain.E(domain.CodeInvalidArgument, "register builtin", "tool and handler are required", nil)
	}
	l.mu.Lock()
	l.builtins[unit.Tool.Name] = unit
	l.mu.Unlock()
	return nil
}

func (l *Loader) builtin(name string) (toolregistry.Unit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	unit, ok := l.builtins[name]
	return unit, ok
}

// opLock returns the lock serializing resolution of one operation.
func (l *Loader) opLock(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[name] = lock
	}
	return lock
}

// EnsureLoaded makes sure tool is present in the registry. It never fails
// loudly: unknown categories, unknown operations and resolution errors are
// logged and reported as false.
func (l *Loader) EnsureLoaded(category, tool string) bool {
	if l.registry.Has(tool) {
		return true
	}

	if unit, ok := l.builtin(tool); ok {
		l.registry.Insert(unit)
		return l.registry.Has(tool)
	}

	entry, ok := l.catalog.Category(category)
	if !ok {
		l.resolveFailed(category, tool, domain.ErrCategoryNotFound)
		return false
	}
	if !slices.Contains(entry.Tools, tool) {
		l.resolveFailed(category, tool, fmt.Errorf("%w: not in category", domain.ErrToolNotFound))
		return false
	}

	lock := l.opLock(tool)
	lock.Lock()
	defer lock.Unlock()
	if l.registry.Has(tool) {
		return true
	}

	if l.resolver == nil {
		l.resolveFailed(category, tool, errors.New("no resolver configured"))
		return false
	}
	unit, err := l.resolver.Resolve(category, tool)
	if err != nil {
		l.resolveFailed(category, tool, err)
		return false
	}
	unit.Category = category
	if !l.registry.Insert(unit) && !l.registry.Has(tool) {
		l.resolveFailed(category, tool, errors.New("registry rejected implementation unit"))
		return false
	}

	l.logger.Info("tool materialized",
		telemetry.EventField(telemetry.EventToolMaterialized),
		telemetry.CategoryField(category),
		telemetry.ToolField(tool),
	)
	if l.metrics != nil {
		l.metrics.ObserveMaterialization(category, nil)
	}
	return true
}

func (l *Loader) resolveFailed(category, tool string, err error) {
	l.logger.Warn("tool materialization skipped",
		telemetry.EventField(telemetry.EventResolveFailure),
		telemetry.CategoryField(category),
		telemetry.ToolField(tool),
		zap.Error(err),
	)
	if l.metrics != nil {
		l.metrics.ObserveMaterialization(category, err)
	}
}

// Enable marks a materialized tool as globally available.
func (l *Loader) Enable(tool string) bool {
	if err := l.registry.SetEnabled(tool, true); err != nil {
		l.logger.Warn("enable failed", telemetry.ToolField(tool), zap.Error(err))
		return false
	}
	return true
}

// Disable clears the global flag. The tool stays registered.
func (l *Loader) Disable(tool string) bool {
	if err := l.registry.SetEnabled(tool, false); err != nil {
		l.logger.Warn("disable failed", telemetry.ToolField(tool), zap.Error(err))
		return false
	}
	return true
}

// LoadDefaults materializes and enables the tools every session starts with.
func (l *Loader) LoadDefaults(defaults []string) error {
	for _, tool := range defaults {
		category := ""
		if owners := l.catalog.CategoriesOf(tool); len(owners) > 0 {
			category = owners[0]
		}
		if !l.EnsureLoaded(category, tool) || !l.Enable(tool) {
			return domain.E(domain.CodeFailedPrecond, "load defaults", fmt.Sprintf("default tool %q unavailable", tool), domain.ErrToolNotFound)
		}
	}
	return nil
}

// LoadAll materializes and enables every catalog operation except skip.
// It returns the number of tools that ended up enabled.
func (l *Loader) LoadAll(skip ...string) int {
	loaded := 0
	seen := make(map[string]struct{})
	for _, category := range l.catalog.Categories() {
		for _, tool := range category.Tools {
			if _, ok := seen[tool]; ok || slices.Contains(skip, tool) {
				continue
			}
			seen[tool] = struct{}{}
			if l.EnsureLoaded(category.Name, tool) && l.Enable(tool) {
				loaded++
			}
		}
	}
	l.logger.Info("catalog materialized", zap.Int("tools", loaded))
	return loaded
}
