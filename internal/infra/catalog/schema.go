package catalog

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"mistmcp/internal/domain"
)

const catalogSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "required": ["tools"],
    "properties": {
      "description": {"type": "string"},
      "tools": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      },
      "write": {"type": "boolean"}
    }
  }
}`

var catalogSchemaLoader = gojsonschema.NewStringLoader(catalogSchema)

func validateCatalogSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCatalog, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: empty document", domain.ErrInvalidCatalog)
	}

	result, err := gojsonschema.Validate(catalogSchemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: schema validation failed: %v", domain.ErrInvalidCatalog, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidCatalog, strings.Join(msgs, "; "))
}
