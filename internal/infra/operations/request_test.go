package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	op := Operation{
		Name:   "updateThing",
		Method: "PUT",
		Path:   "/api/v1/orgs/{org_id}/{object_type}/{object_id}",
		Params: []Param{
			{Name: "org_id", In: InPath, Type: "string", Required: true},
			{Name: "object_type", In: InPath, Type: "string", Required: true},
			{Name: "object_id", In: InPath, Type: "string", Required: true},
			{Name: "dry_run", In: InQuery, Type: "boolean"},
			{Name: "tags", In: InQuery, Type: "array"},
			{Name: "payload", In: InBody, Type: "object", Required: true},
		},
	}

	req, err := op.BuildRequest(map[string]any{
		"org_id":      "o1",
		"object_type": "wlans",
		"object_id":   "a/b",
		"dry_run":     true,
		"tags":        []any{"x", float64(2)},
		"payload":     map[string]any{"ssid": "guest"},
		"unknown":     "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/api/v1/orgs/o1/wlans/a%2Fb", req.Path)
	assert.Equal(t, "true", req.Query.Get("dry_run"))
	assert.Equal(t, []string{"x", "2"}, req.Query["tags"])
	assert.Equal(t, map[string]any{"ssid": "guest"}, req.Body)
}

func TestBuildRequest_Errors(t *testing.T) {
	op := Operation{
		Name:   "getOrg",
		Method: "GET",
		Path:   "/api/v1/orgs/{org_id}",
		Params: []Param{{Name: "org_id", In: InPath, Type: "string", Required: true}},
	}

	_, err := op.BuildRequest(map[string]any{})
	require.ErrorContains(t, err, "missing required parameter")

	_, err = op.BuildRequest(map[string]any{"org_id": " "})
	require.ErrorContains(t, err, "must not be empty")

	_, err = op.BuildRequest(map[string]any{"org_id": map[string]any{}})
	require.ErrorContains(t, err, "unsupported value")
}
