package operations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mistmcp/internal/infra/catalog"
)

func TestLoadManifest_BuiltinCoversBuiltinCatalog(t *testing.T) {
	manifest, err := LoadManifest(context.Background(), "", zap.NewNop())
	require.NoError(t, err)

	cat, err := catalog.Builtin()
	require.NoError(t, err)
	assert.Empty(t, manifest.Missing(cat))

	op, ok := manifest.Operation("getOrg")
	require.True(t, ok)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "/api/v1/orgs/{org_id}", op.Path)
	assert.True(t, op.ReadOnly)
	require.Len(t, op.Params, 1)
	assert.Equal(t, InPath, op.Params[0].In)
	assert.True(t, op.Params[0].Required)

	update, ok := manifest.Operation("updateOrgConfigurationObjects")
	require.True(t, ok)
	assert.True(t, update.Destructive)
	assert.False(t, update.ReadOnly)
}

func TestParseManifest_Defaults(t *testing.T) {
	manifest, err := ParseManifest([]byte(`
operations:
  - name: listThings
    path: /api/v1/things
    params:
      - name: limit
        type: integer
      - name: label
`))
	require.NoError(t, err)

	op, ok := manifest.Operation("listThings")
	require.True(t, ok)
	assert.Equal(t, "GET", op.Method)
	assert.Equal(t, "listThings", op.Title)
	assert.Equal(t, InQuery, op.Params[0].In)
	assert.Equal(t, "string", op.Params[1].Type)
	assert.Equal(t, []string{"listThings"}, manifest.Names())
}

func TestParseManifest_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty": `operations: []`,
		"missing name": `
operations:
  - path: /api/v1/self
`,
		"bad method": `
operations:
  - name: x
    method: PATCHY
    path: /api/v1/self
`,
		"undeclared placeholder": `
operations:
  - name: x
    path: /api/v1/orgs/{org_id}
`,
		"duplicate": `
operations:
  - name: x
    path: /api/v1/self
  - name: x
    path: /api/v1/self
`,
		"bad location": `
operations:
  - name: x
    path: /api/v1/self
    params:
      - {name: a, in: header}
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(content))
			require.Error(t, err)
		})
	}
}

func TestOperation_InputSchema(t *testing.T) {
	manifest, err := LoadManifest(context.Background(), "", nil)
	require.NoError(t, err)
	op, ok := manifest.Operation("countOrgSites")
	require.True(t, ok)

	schema := op.InputSchema()
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"org_id"}, schema.Required)
	require.Contains(t, schema.Properties, "distinct")
	assert.NotEmpty(t, schema.Properties["distinct"].Enum)
	assert.Equal(t, "uuid", schema.Properties["org_id"].Format)

	tool := op.Tool()
	assert.Equal(t, "countOrgSites", tool.Name)
	require.NotNil(t, tool.Annotations)
	assert.True(t, tool.Annotations.ReadOnlyHint)
	require.NotNil(t, tool.Annotations.DestructiveHint)
	assert.False(t, *tool.Annotations.DestructiveHint)
}
