package server

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omjikush09/aggroso/internal/config"
)

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DataDir = t.TempDir()
	return cfg
}

// call sends one JSON-RPC request and decodes the result field into v.
func call(t *testing.T, handle func(context.Context, json.RawMessage) any, method string, v any) {
	t.Helper()
	msg := `{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":{}}`
	resp := handle(context.Background(), json.RawMessage(msg))

	raw, err := json.Marshal(resp)
	require.NoError(t, err, "encoding response")

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope), "decoding response")
	require.Nil(t, envelope.Error, "%s failed", method)
	require.NoError(t, json.Unmarshal(envelope.Result, v), "decoding %s result: %s", method, envelope.Result)
}

func TestNew_RegistersEverything(t *testing.T) {
	s, cleanup, err := New(context.Background(), newTestConfig(t), nil)
	require.NoError(t, err)
	defer cleanup()

	handle := func(ctx context.Context, msg json.RawMessage) any { return s.HandleMessage(ctx, msg) }

	var tools struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	call(t, handle, "tools/list", &tools)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"spec_export", "spec_generate", "spec_health", "spec_history", "spec_update",
		"task_add", "task_combine", "task_edit", "task_group", "task_reorder",
	}, names)

	var prompts struct {
		Prompts []struct {
			Name string `json:"name"`
		} `json:"prompts"`
	}
	call(t, handle, "prompts/list", &prompts)
	assert.Len(t, prompts.Prompts, 2)

	var res struct {
		Resources []struct {
			URI string `json:"uri"`
		} `json:"resources"`
	}
	call(t, handle, "resources/list", &res)
	require.Len(t, res.Resources, 1)
	assert.Equal(t, "specgen://history", res.Resources[0].URI)
}

func TestNew_BadStoreConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = ""

	_, cleanup, err := New(context.Background(), cfg, nil)
	require.Error(t, err, "postgres without DSN")
	cleanup()
}

func TestServerInstructions_NamesTools(t *testing.T) {
	text := serverInstructions()
	for _, name := range []string{"spec_generate", "task_combine", "spec_export"} {
		assert.Contains(t, text, name)
	}
}
