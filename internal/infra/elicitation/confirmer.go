package elicitation

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Decision is the outcome of asking the user to approve an action.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
	DecisionCancel  Decision = "cancel"
	// DecisionUnsupported means the client never declared elicitation support.
	DecisionUnsupported Decision = "unsupported"
	// DecisionBypassed means confirmation is switched off for the process.
	DecisionBypassed Decision = "bypassed"
)

// Approved reports whether the action may proceed.
func (d Decision) Approved() bool {
	return d == DecisionAccept || d == DecisionBypassed
}

type Options struct {
	// Disabled skips elicitation and approves every request.
	Disabled bool
	Logger   *zap.Logger
}

// Confirmer asks the connected user to approve an action through elicitation/create.
type Confirmer struct {
	disabled bool
	logger   *zap.Logger
}

func NewConfirmer(opts Options) *Confirmer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{disabled: opts.Disabled, logger: logger.Named("elicitation")}
}

// Supported reports whether the client of session declared elicitation support at initialize.
func Supported(session *mcp.ServerSession) bool {
	if session == nil {
		return false
	}
	params := session.InitializeParams()
	return params != nil && params.Capabilities != nil && params.Capabilities.Elicitation != nil
}

// Confirm presents message to the user and maps the reply to a Decision.
// A transport failure returns DecisionCancel with the error.
func (c *Confirmer) Confirm(ctx context.Context, session *mcp.ServerSession, message string) (Decision, error) {
	if c.disabled {
		c.logger.Warn("elicitation disabled; approving without user confirmation", zap.String("message", message))
		return DecisionBypassed, nil
	}
	if !Supported(session) {
		c.logger.Debug("client does not support elicitation")
		return DecisionUnsupported, nil
	}

	res, err := session.Elicit(ctx, &mcp.ElicitParams{
		Message:         message,
		RequestedSchema: confirmSchema(),
	})
	if err != nil {
		c.logger.Warn("elicitation request failed", zap.Error(err))
		return DecisionCancel, fmt.Errorf("elicit confirmation: %w", err)
	}
	if res == nil {
		return DecisionCancel, nil
	}

	decision := Decision(res.Action)
	switch decision {
	case DecisionAccept, DecisionDecline, DecisionCancel:
	default:
		decision = DecisionCancel
	}
	c.logger.Debug("elicitation answered", zap.String("action", string(decision)))
	return decision, nil
}

func confirmSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"confirm": {
				Type:        "boolean",
				Description: "Approve the change",
			},
		},
	}
}
