package managetools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/toolregistry"
)

// RegistryNotifier triggers tools/list_changed by re-registering the
// manageMcpTools tool, then logs the change summary to the calling session.
type RegistryNotifier struct {
	Registry *toolregistry.Registry
}

func (n RegistryNotifier) NotifyToolListChanged(ctx context.Context, session *mcp.ServerSession, summary string) error {
	if n.Registry == nil || !n.Registry.Refresh(domain.ManageToolsName) {
		return errors.New("tool list change could not be announced")
	}
	if session == nil {
		return nil
	}
	return session.Log(ctx, &mcp.LoggingMessageParams{
		Logger: "mistmcp",
		Level:  "info",
		Data:   summary,
	})
}
