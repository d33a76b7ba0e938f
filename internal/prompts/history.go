package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// HistoryPrompt handles the specgen-history MCP prompt.
// It instructs the AI to list recent specs and reopen one.
type HistoryPrompt struct{}

// NewHistoryPrompt creates a HistoryPrompt.
func NewHistoryPrompt() *HistoryPrompt {
	return &HistoryPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *HistoryPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specgen-history",
		mcp.WithPromptDescription(
			"Review recently generated specs and pick one to keep working on.",
		),
	)
}

// Handle processes the specgen-history prompt request.
func (p *HistoryPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Recent specs",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `spec_history` to list my recent specs.\n\n" +
						"Then:\n" +
						"1. Show them newest first with goal, template and task count\n" +
						"2. Ask which one I want to open\n" +
						"3. Run `spec_export` for that id and show me the result",
				),
			},
		},
	}, nil
}
