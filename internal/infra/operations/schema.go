package operations

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// InputSchema renders the operation parameters as a JSON object schema.
func (op Operation) InputSchema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(op.Params)),
	}
	for _, p := range op.Params {
		prop := &jsonschema.Schema{
			Type:        p.Type,
			Format:      p.Format,
			Description: p.Description,
		}
		if len(p.Enum) > 0 {
			prop.Enum = make([]any, 0, len(p.Enum))
			for _, value := range p.Enum {
				prop.Enum = append(prop.Enum, value)
			}
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

func (op Operation) Tool() *mcp.Tool {
	destructive := op.Destructive
	openWorld := true
	return &mcp.Tool{
		Name:        op.Name,
		Description: op.Description,
		InputSchema: op.InputSchema(),
		Annotations: &mcp.ToolAnnotations{
			Title:           op.Title,
			ReadOnlyHint:    op.ReadOnly,
			DestructiveHint: &destructive,
			IdempotentHint:  op.ReadOnly,
			OpenWorldHint:   &openWorld,
		},
	}
}
