package visibility

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mistmcp/internal/domain"
)

// RequestScope is everything the filter needs to know about the caller of one request.
type RequestScope struct {
	SessionKey string
	Mode       domain.ToolMode
	// Categories is the per-request selection used in custom mode.
	Categories []string
}

func (s RequestScope) HasSession() bool {
	return s.SessionKey != ""
}

// ScopeResolver derives a RequestScope from an incoming MCP request.
type ScopeResolver struct {
	Transport   string
	DefaultMode domain.ToolMode
}

func (r ScopeResolver) Resolve(req mcp.Request) RequestScope {
	scope := RequestScope{Mode: r.DefaultMode}
	if scope.Mode == "" {
		scope.Mode = domain.DefaultToolMode
	}
	if req == nil {
		return scope
	}

	if session, ok := req.GetSession().(*mcp.ServerSession); ok && session != nil {
		if strings.EqualFold(strings.TrimSpace(r.Transport), "http") {
			scope.SessionKey = session.ID()
		} else {
			scope.SessionKey = domain.StdioSessionKey
		}
	}

	if extra := req.GetExtra(); extra != nil && extra.Header != nil {
		applyHeaders(&scope, extra.Header)
	}
	return scope
}

func applyHeaders(scope *RequestScope, header http.Header) {
	if raw := header.Get(domain.ModeHeader); raw != "" {
		if mode, err := domain.ParseToolMode(raw); err == nil {
			scope.Mode = mode
		}
	}
	raw := header.Get(domain.CategoriesHeader)
	if raw == "" {
		return
	}
	for _, part := range strings.Split(raw, ",") {
		if name := domain.NormalizeCategoryName(part); name != "" {
			scope.Categories = append(scope.Categories, name)
		}
	}
	if len(scope.Categories) > 0 && header.Get(domain.ModeHeader) == "" {
		scope.Mode = domain.ToolModeCustom
	}
}

// QueryBridge copies the mode and categories query parameters into request
// headers so MCP handlers can read them from the request extra.
func QueryBridge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if mode := query.Get("mode"); mode != "" && r.Header.Get(domain.ModeHeader) == "" {
			r.Header.Set(domain.ModeHeader, mode)
		}
		if categories := query.Get("categories"); categories != "" && r.Header.Get(domain.CategoriesHeader) == "" {
			r.Header.Set(domain.CategoriesHeader, categories)
		}
		next.ServeHTTP(w, r)
	})
}
