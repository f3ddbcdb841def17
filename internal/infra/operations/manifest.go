package operations

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
)

//go:embed builtin/operations.yaml
var builtinFS embed.FS

const builtinManifestPath = "builtin/operations.yaml"

type ParamLocation string

const (
	InPath  ParamLocation = "path"
	InQuery ParamLocation = "query"
	InBody  ParamLocation = "body"
)

type Param struct {
	Name        string
	In          ParamLocation
	Type        string
	Format      string
	Description string
	Required    bool
	Enum        []string
}

// Operation describes one remote API call exposed as a tool.
type Operation struct {
	Name        string
	Title       string
	Description string
	Method      string
	Path        string
	ReadOnly    bool
	Destructive bool
	Params      []Param
}

// Manifest indexes operation definitions by tool name.
type Manifest struct {
	order  []string
	byName map[string]Operation
}

type rawManifest struct {
	Operations []rawOperation `mapstructure:"operations"`
}

type rawOperation struct {
	Name        string     `mapstructure:"name"`
	Title       string     `mapstructure:"title"`
	Description string     `mapstructure:"description"`
	Method      string     `mapstructure:"method"`
	Path        string     `mapstructure:"path"`
	ReadOnly    bool       `mapstructure:"readOnly"`
	Destructive bool       `mapstructure:"destructive"`
	Params      []rawParam `mapstructure:"params"`
}

type rawParam struct {
	Name        string   `mapstructure:"name"`
	In          string   `mapstructure:"in"`
	Type        string   `mapstructure:"type"`
	Format      string   `mapstructure:"format"`
	Description string   `mapstructure:"description"`
	Required    bool     `mapstructure:"required"`
	Enum        []string `mapstructure:"enum"`
}

var (
	pathParamPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	validMethods     = map[string]struct{}{"GET": {}, "POST": {}, "PUT": {}, "DELETE": {}}
	validTypes       = map[string]struct{}{"string": {}, "integer": {}, "number": {}, "boolean": {}, "object": {}, "array": {}}
)

// LoadManifest reads the operations manifest at path, or the compiled-in one when path is empty.
func LoadManifest(ctx context.Context, path string, logger *zap.Logger) (*Manifest, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		data   []byte
		err    error
		source = path
	)
	if strings.TrimSpace(path) == "" {
		source = "builtin"
		data, err = builtinFS.ReadFile(builtinManifestPath)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read operations manifest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	logger.Named("operations").Info("operations manifest loaded",
		zap.String("source", source),
		zap.Int("operations", manifest.Len()),
	)
	return manifest, nil
}

func ParseManifest(data []byte) (*Manifest, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("parse operations manifest: %w", err)
	}
	var raw rawManifest
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode operations manifest: %w", err)
	}
	if len(raw.Operations) == 0 {
		return nil, errors.New("operations manifest: no operations defined")
	}

	m := &Manifest{byName: make(map[string]Operation, len(raw.Operations))}
	var errs []string
	for i, rawOp := range raw.Operations {
		op := normalizeOperation(rawOp)
		if opErrs := validateOperation(op, i); len(opErrs) > 0 {
			errs = append(errs, opErrs...)
			continue
		}
		if _, dup := m.byName[op.Name]; dup {
			errs = append(errs, fmt.Sprintf("operations[%d]: duplicate name %q", i, op.Name))
			continue
		}
		m.byName[op.Name] = op
		m.order = append(m.order, op.Name)
	}
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return m, nil
}

func normalizeOperation(raw rawOperation) Operation {
	op := Operation{
		Name:        strings.TrimSpace(raw.Name),
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Method:      strings.ToUpper(strings.TrimSpace(raw.Method)),
		Path:        strings.TrimSpace(raw.Path),
		ReadOnly:    raw.ReadOnly,
		Destructive: raw.Destructive,
	}
	if op.Title == "" {
		op.Title = op.Name
	}
	if op.Method == "" {
		op.Method = "GET"
	}
	for _, p := range raw.Params {
		param := Param{
			Name:        strings.TrimSpace(p.Name),
			In:          ParamLocation(strings.ToLower(strings.TrimSpace(p.In))),
			Type:        strings.ToLower(strings.TrimSpace(p.Type)),
			Format:      strings.TrimSpace(p.Format),
			Description: strings.TrimSpace(p.Description),
			Required:    p.Required,
			Enum:        p.Enum,
		}
		if param.In == "" {
			param.In = InQuery
		}
		if param.Type == "" {
			param.Type = "string"
		}
		if param.In == InPath {
			param.Required = true
		}
		op.Params = append(op.Params, param)
	}
	return op
}

func validateOperation(op Operation, index int) []string {
	var errs []string
	if op.Name == "" {
		errs = append(errs, fmt.Sprintf("operations[%d]: name is required", index))
	}
	if _, ok := validMethods[op.Method]; !ok {
		errs = append(errs, fmt.Sprintf("operations[%d]: unsupported method %q", index, op.Method))
	}
	if !strings.HasPrefix(op.Path, "/") {
		errs = append(errs, fmt.Sprintf("operations[%d]: path must start with /", index))
	}

	declared := make(map[string]Param, len(op.Params))
	bodies := 0
	for j, p := range op.Params {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("operations[%d].params[%d]: name is required", index, j))
			continue
		}
		if _, dup := declared[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("operations[%d].params[%d]: duplicate name %q", index, j, p.Name))
		}
		declared[p.Name] = p
		switch p.In {
		case InPath, InQuery:
		case InBody:
			bodies++
		default:
			errs = append(errs, fmt.Sprintf("operations[%d].params[%d]: in must be path, query or body", index, j))
		}
		if _, ok := validTypes[p.Type]; !ok {
			errs = append(errs, fmt.Sprintf("operations[%d].params[%d]: unsupported type %q", index, j, p.Type))
		}
	}
	if bodies > 1 {
		errs = append(errs, fmt.Sprintf("operations[%d]: at most one body param is allowed", index))
	}
	for _, match := range pathParamPattern.FindAllStringSubmatch(op.Path, -1) {
		if p, ok := declared[match[1]]; !ok || p.In != InPath {
			errs = append(errs, fmt.Sprintf("operations[%d]: path placeholder %q has no path param", index, match[1]))
		}
	}
	return errs
}

func (m *Manifest) Operation(name string) (Operation, bool) {
	if m == nil {
		return Operation{}, false
	}
	op, ok := m.byName[name]
	return op, ok
}

func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Missing lists catalog operations that have no manifest entry.
func (m *Manifest) Missing(catalog domain.Catalog) []string {
	var missing []string
	for _, name := range catalog.Tools() {
		if _, ok := m.Operation(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
