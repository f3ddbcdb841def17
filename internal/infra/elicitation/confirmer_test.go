package elicitation

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type elicitHandler func(context.Context, *mcp.ElicitRequest) (*mcp.ElicitResult, error)

func connectSession(t *testing.T, handler elicitHandler) *mcp.ServerSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "mistmcp", Version: "test"}, nil)
	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	var opts *mcp.ClientOptions
	if handler != nil {
		opts = &mcp.ClientOptions{ElicitationHandler: handler}
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "0.1.0"}, opts)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return ss
}

func TestConfirm_MapsClientAction(t *testing.T) {
	cases := []struct {
		action string
		want   Decision
	}{
		{"accept", DecisionAccept},
		{"decline", DecisionDecline},
		{"cancel", DecisionCancel},
		{"shrug", DecisionCancel},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			var seen string
			ss := connectSession(t, func(_ context.Context, req *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
				seen = req.Params.Message
				return &mcp.ElicitResult{Action: tc.action}, nil
			})

			got, err := NewConfirmer(Options{}).Confirm(context.Background(), ss, "Enable write tools?")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want == DecisionAccept, got.Approved())
			assert.Equal(t, "Enable write tools?", seen)
		})
	}
}

func TestConfirm_AcceptWithContent(t *testing.T) {
	ss := connectSession(t, func(context.Context, *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
		return &mcp.ElicitResult{Action: "accept", Content: map[string]any{"confirm": true}}, nil
	})

	got, err := NewConfirmer(Options{}).Confirm(context.Background(), ss, "ok?")
	require.NoError(t, err)
	assert.Equal(t, DecisionAccept, got)
}

func TestConfirm_UnsupportedClient(t *testing.T) {
	ss := connectSession(t, nil)
	assert.False(t, Supported(ss))

	got, err := NewConfirmer(Options{}).Confirm(context.Background(), ss, "ok?")
	require.NoError(t, err)
	assert.Equal(t, DecisionUnsupported, got)
	assert.False(t, got.Approved())

	got, err = NewConfirmer(Options{}).Confirm(context.Background(), nil, "ok?")
	require.NoError(t, err)
	assert.Equal(t, DecisionUnsupported, got)
}

func TestConfirm_DisabledBypasses(t *testing.T) {
	got, err := NewConfirmer(Options{Disabled: true}).Confirm(context.Background(), nil, "ok?")
	require.NoError(t, err)
	assert.Equal(t, DecisionBypassed, got)
	assert.True(t, got.Approved())
}

func TestConfirm_ClientErrorCancels(t *testing.T) {
	ss := connectSession(t, func(context.Context, *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
		return nil, errors.New("user went away")
	})

	got, err := NewConfirmer(Options{}).Confirm(context.Background(), ss, "ok?")
	require.Error(t, err)
	assert.Equal(t, DecisionCancel, got)
}
