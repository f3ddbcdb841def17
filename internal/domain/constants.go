package domain

import "time"

const (
	// GetSelfName is the identity lookup tool every session can call.
	GetSelfName = "getSelf"
	// ManageToolsName is the visibility-control tool.
	ManageToolsName = "manageMcpTools"

	// StdioSessionKey identifies the single client of a stdio transport.
	StdioSessionKey = "stdio"

	DefaultToolMode                   = ToolModeManaged
	DefaultTransport                  = "stdio"
	DefaultHTTPHost                   = "127.0.0.1"
	DefaultHTTPPort                   = 8000
	DefaultHTTPPath                   = "/mcp"
	DefaultResponseFormat             = "json"
	DefaultSessionTimeout             = 60 * time.Minute
	DefaultSessionSweepInterval       = 5 * time.Minute
	DefaultObservabilityListenAddress = "127.0.0.1:9090"
	DefaultMistRequestTimeout         = 30 * time.Second

	// ModeHeader and CategoriesHeader carry per-request selection hints
	// from the HTTP query string into MCP request handling.
	ModeHeader       = "X-Mistmcp-Mode"
	CategoriesHeader = "X-Mistmcp-Categories"
)

// DefaultEnabledTools returns the tools granted to every session.
func DefaultEnabledTools() []string {
	return []string{GetSelfName, ManageToolsName}
}
