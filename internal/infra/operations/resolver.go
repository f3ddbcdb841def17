package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/mistapi"
	"mistmcp/internal/infra/toolregistry"
)

type ResponseFormat string

const (
	FormatJSON   ResponseFormat = "json"
	FormatString ResponseFormat = "string"
)

func ParseResponseFormat(raw string) (ResponseFormat, error) {
	switch ResponseFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatString:
		return FormatString, nil
	default:
		return "", fmt.Errorf("unsupported response format %q (want json or string)", raw)
	}
}

// Caller performs a Mist API request.
type Caller interface {
	Do(ctx context.Context, req mistapi.Request) (mistapi.Response, error)
}

type ResolverOptions struct {
	Manifest *Manifest
	Client   Caller
	Format   ResponseFormat
	Logger   *zap.Logger
}

// Resolver turns catalog operation ids into tool implementation units.
type Resolver struct {
	manifest *Manifest
	client   Caller
	format   ResponseFormat
	logger   *zap.Logger
}

func NewResolver(opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	return &Resolver{
		manifest: opts.Manifest,
		client:   opts.Client,
		format:   format,
		logger:   logger.Named("operations"),
	}
}

func (r *Resolver) Resolve(category, name string) (toolregistry.Unit, error) {
	op, ok := r.manifest.Operation(name)
	if !ok {
		return toolregistry.Unit{}, domain.E(domain.CodeNotFound, "resolve operation", name, domain.ErrToolNotFound)
	}
	if r.client == nil {
		return toolregistry.Unit{}, domain.E(domain.CodeUnavailable, "resolve operation", "mist api client is not configured", nil)
	}
	return toolregistry.Unit{
		Tool:     op.Tool(),
		Handler:  r.handler(op),
		Category: category,
	}, nil
}

func (r *Resolver) handler(op Operation) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("invalid arguments for %s: %v", op.Name, err), nil), nil
			}
		}

		apiReq, err := op.BuildRequest(args)
		if err != nil {
			return errorResult(fmt.Sprintf("%s: %v", op.Name, err), nil), nil
		}

		start := time.Now()
		resp, err := r.client.Do(ctx, apiReq)
		if err != nil {
			r.logger.Warn("mist api call failed",
				zap.String("tool", op.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			var apiErr *mistapi.APIError
			if errors.As(err, &apiErr) {
				return errorResult(apiErr.Error(), map[string]any{
					"status_code": apiErr.Status,
					"message":     apiErr.Message,
				}), nil
			}
			return errorResult(err.Error(), nil), nil
		}
		return r.render(resp), nil
	}
}

func (r *Resolver) render(resp mistapi.Response) *mcp.CallToolResult {
	data := json.RawMessage(bytes.TrimSpace(resp.Data))
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	text := string(data)
	if r.format == FormatString {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
	}

	var structured any = data
	switch {
	case data[0] != '{':
		wrapped := map[string]any{"results": data}
		if resp.Next != "" {
			wrapped["next"] = resp.Next
		}
		structured = wrapped
	case resp.Next != "":
		var object map[string]any
		if err := json.Unmarshal(data, &object); err == nil {
			if _, ok := object["next"]; !ok {
				object["next"] = resp.Next
			}
			structured = object
		}
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: structured,
	}
}

func errorResult(message string, structured map[string]any) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
	if structured != nil {
		result.StructuredContent = structured
	}
	return result
}
