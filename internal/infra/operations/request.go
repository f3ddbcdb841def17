package operations

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"mistmcp/internal/infra/mistapi"
)

// BuildRequest maps tool arguments onto the operation's path, query and body.
func (op Operation) BuildRequest(args map[string]any) (mistapi.Request, error) {
	req := mistapi.Request{Method: op.Method}
	path := op.Path
	query := url.Values{}

	for _, p := range op.Params {
		value, present := args[p.Name]
		if !present || value == nil {
			if p.Required {
				return mistapi.Request{}, fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		switch p.In {
		case InPath:
			text, err := scalarString(value)
			if err != nil {
				return mistapi.Request{}, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			if strings.TrimSpace(text) == "" {
				return mistapi.Request{}, fmt.Errorf("parameter %q must not be empty", p.Name)
			}
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(text))
		case InQuery:
			if list, ok := value.([]any); ok {
				for _, item := range list {
					text, err := scalarString(item)
					if err != nil {
						return mistapi.Request{}, fmt.Errorf("parameter %q: %w", p.Name, err)
					}
					query.Add(p.Name, text)
				}
				continue
			}
			text, err := scalarString(value)
			if err != nil {
				return mistapi.Request{}, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			if text == "" {
				continue
			}
			query.Set(p.Name, text)
		case InBody:
			req.Body = value
		}
	}

	req.Path = path
	if len(query) > 0 {
		req.Query = query
	}
	return req, nil
}

func scalarString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", value)
	}
}
