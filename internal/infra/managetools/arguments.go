package managetools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mistmcp/internal/domain"
)

// Request is a normalized manageMcpTools invocation.
type Request struct {
	Enable                  []string
	Disable                 []string
	ConfigurationRequested  bool
	ListAvailableCategories bool
}

// Mutates reports whether the request asks for any visibility change.
func (r Request) Mutates() bool {
	return len(r.Enable) > 0 || len(r.Disable) > 0
}

type rawArguments struct {
	Enable                  json.RawMessage `json:"enable_mcp_tools_categories"`
	Disable                 json.RawMessage `json:"disable_mcp_tools_categories"`
	ConfigurationRequested  *bool           `json:"configuration_requested"`
	ConfigurationRequired   *bool           `json:"configuration_required"`
	ListAvailableCategories *bool           `json:"list_available_categories"`
}

// ParseArguments decodes tool-call arguments. Category lists may be a JSON
// array, a single name, a comma-separated string, or a JSON-encoded array.
func ParseArguments(data json.RawMessage) (Request, error) {
	var raw rawArguments
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Request{}, domain.E(domain.CodeInvalidArgument, "parse arguments", "arguments must be an object", err)
		}
	}

	enable, err := NormalizeCategories(raw.Enable)
	if err != nil {
		return Request{}, domain.E(domain.CodeInvalidArgument, "parse arguments", "enable_mcp_tools_categories: "+err.Error(), err)
	}
	disable, err := NormalizeCategories(raw.Disable)
	if err != nil {
		return Request{}, domain.E(domain.CodeInvalidArgument, "parse arguments", "disable_mcp_tools_categories: "+err.Error(), err)
	}

	return Request{
		Enable:                  enable,
		Disable:                 disable,
		ConfigurationRequested:  flag(raw.ConfigurationRequested) || flag(raw.ConfigurationRequired),
		ListAvailableCategories: flag(raw.ListAvailableCategories),
	}, nil
}

func flag(v *bool) bool {
	return v != nil && *v
}

// NormalizeCategories turns any accepted category-list encoding into
// normalized, de-duplicated names in request order.
func NormalizeCategories(data json.RawMessage) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var names []string
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &names); err != nil {
			return nil, fmt.Errorf("expected a list of category names: %w", err)
		}
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil, err
		}
		parsed, err := splitCategoryString(text)
		if err != nil {
			return nil, err
		}
		names = parsed
	default:
		return nil, fmt.Errorf("expected a string or a list of strings")
	}
	return dedupe(names), nil
}

func splitCategoryString(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		var names []string
		if err := json.Unmarshal([]byte(text), &names); err != nil {
			return nil, fmt.Errorf("invalid JSON-encoded category list: %w", err)
		}
		return names, nil
	}
	return strings.Split(text, ","), nil
}

func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = domain.NormalizeCategoryName(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
