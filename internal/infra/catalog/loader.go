package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mistmcp/internal/domain"
)

//go:embed builtin/catalog.yaml
var builtinFS embed.FS

const builtinCatalogPath = "builtin/catalog.yaml"

type Loader struct {
	logger *zap.Logger
}

type rawCategory struct {
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools"`
	Write       bool     `yaml:"write"`
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

// Load reads the catalog artifact at path, or the compiled-in catalog when path is empty.
func (l *Loader) Load(ctx context.Context, path string) (domain.Catalog, error) {
	var (
		data   []byte
		err    error
		source = path
	)
	if strings.TrimSpace(path) == "" {
		source = "builtin"
		data, err = builtinFS.ReadFile(builtinCatalogPath)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	catalog, err := Parse(data)
	if err != nil {
		return domain.Catalog{}, err
	}
	l.logger.Info("tool catalog loaded",
		zap.String("source", source),
		zap.Int("categories", catalog.Len()),
		zap.Int("tools", len(catalog.Tools())),
	)
	return catalog, nil
}

// Parse decodes a catalog document (YAML or JSON) keeping category order.
func Parse(data []byte) (domain.Catalog, error) {
	if err := validateCatalogSchema(data); err != nil {
		return domain.Catalog{}, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return domain.Catalog{}, fmt.Errorf("%w: empty document", domain.ErrInvalidCatalog)
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return domain.Catalog{}, fmt.Errorf("%w: top level must be a mapping", domain.ErrInvalidCatalog)
	}

	var errs []string
	categories := make([]domain.Category, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		var raw rawCategory
		if err := mapping.Content[i+1].Decode(&raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key.Value, err))
			continue
		}
		categories = append(categories, domain.Category{
			Name:        key.Value,
			Description: strings.TrimSpace(raw.Description),
			Tools:       raw.Tools,
			Write:       raw.Write,
		})
	}
	if len(errs) > 0 {
		return domain.Catalog{}, fmt.Errorf("%w: %s", domain.ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return domain.NewCatalog(categories)
}

// Builtin returns the compiled-in catalog.
func Builtin() (domain.Catalog, error) {
	data, err := builtinFS.ReadFile(builtinCatalogPath)
	if err != nil {
		return domain.Catalog{}, errors.Join(domain.ErrInvalidCatalog, err)
	}
	return Parse(data)
}
