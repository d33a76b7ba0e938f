// Package resources implements MCP resource handlers for SpecGen.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (specgen://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omjikush09/aggroso/internal/specs"
)

// HistoryURI addresses the recent-specs resource.
const HistoryURI = "specgen://history"

// HistorySource lists the most recent specs.
type HistorySource interface {
	History(ctx context.Context) ([]specs.Specification, error)
}

// Handler manages SpecGen resource endpoints.
type Handler struct {
	src HistorySource
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(src HistorySource) *Handler {
	return &Handler{src: src}
}

// HistoryResource returns the MCP resource definition for recent specs.
func (h *Handler) HistoryResource() mcp.Resource {
	return mcp.NewResource(
		HistoryURI,
		"Recent Specs",
		mcp.WithResourceDescription("The most recently generated specifications, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleHistory returns the recent specs as a JSON array.
func (h *Handler) HandleHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := h.src.History(ctx)
	if err != nil {
		return errorResource(req.Params.URI, "Failed to fetch history: "+err.Error()), nil
	}
	if list == nil {
		list = []specs.Specification{}
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling history: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
