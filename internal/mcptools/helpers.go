// Package mcptools provides MCP tool handlers for specifications and their
// task lists.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// User-facing failures (bad arguments, unknown spec, failed save) come back
// as tool results with IsError set, never as Go errors.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/validate"
)

// SpecService is the subset of service.Service the tools need.
type SpecService interface {
	Generate(ctx context.Context, in specs.GenerateInput) (*specs.Specification, error)
	History(ctx context.Context) ([]specs.Specification, error)
	Get(ctx context.Context, id string) (*specs.Specification, error)
	Update(ctx context.Context, id string, p specs.UpdatePayload) (*specs.Specification, error)
	ReplaceTasks(ctx context.Context, specID string, tasks []specs.Task) error
	Health(ctx context.Context) service.HealthReport
}

var _ SpecService = (*service.Service)(nil)

// Messages mirrored from the HTTP API.
const (
	msgNotFound     = "Spec not found"
	msgSaveFailed   = "Failed to save spec"
	msgFetchFailed  = "Failed to fetch history"
	msgUpdateFailed = "Failed to update spec"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringsArg extracts a list of non-blank strings. Non-string items are skipped.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// rawArgs re-encodes the named arguments that are present as a JSON object,
// so they can go through the same schema validation as HTTP bodies.
func rawArgs(req mcp.CallToolRequest, keys ...string) ([]byte, error) {
	args := req.GetArguments()
	doc := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := args[k]; ok && v != nil {
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

// errorResult maps a service error to a tool error result. Validation and
// not-found errors keep their own message; anything else gets fallback.
func errorResult(err error, fallback string) *mcp.CallToolResult {
	if ve, ok := validate.AsError(err); ok {
		return mcp.NewToolResultError(ve.Error())
	}
	if errors.Is(err, specs.ErrNotFound) {
		return mcp.NewToolResultError(msgNotFound)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", fallback, err))
}

// jsonResult renders headline followed by v as indented JSON.
func jsonResult(headline string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	if headline == "" {
		return mcp.NewToolResultText(string(data)), nil
	}
	return mcp.NewToolResultText(headline + "\n\n" + string(data)), nil
}
