// Package prompts implements MCP prompt handlers for SpecGen.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the specgen-start MCP prompt.
// It guides the AI to collect a goal and generate a first specification.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specgen-start",
		mcp.WithPromptDescription(
			"Turn a project goal into user stories and engineering tasks, "+
				"then help organize the task list.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the project should achieve"),
		),
		mcp.WithArgument("template",
			mcp.ArgumentDescription("Project flavour: 'web', 'mobile' or 'tool'. Default: web"),
		),
	)
}

// Handle processes the specgen-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := ""
	template := "web"
	if args := req.Params.Arguments; args != nil {
		if g, ok := args["goal"]; ok && g != "" {
			goal = g
		}
		if t, ok := args["template"]; ok && t != "" {
			template = t
		}
	}

	first := "1. Ask me for the project goal, who the users are, and any constraints (e.g. GDPR)\n" +
		fmt.Sprintf("2. Run `spec_generate` with my answers and template='%s'\n", template)
	description := "Start a new spec"
	if goal != "" {
		first = fmt.Sprintf("1. Ask me who the users are and whether there are constraints (both optional)\n"+
			"2. Run `spec_generate` with goal='%s', my answers, and template='%s'\n", goal, template)
		description = fmt.Sprintf("Start a new spec: %s", goal)
	}

	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"I want to turn a project idea into a specification.\n\n" +
						"Please:\n" +
						first +
						"3. Show me the stories and the tasks grouped by label\n" +
						"4. Offer to organize the tasks: `task_reorder`, `task_edit`, `task_group`, `task_combine`, `task_add`\n" +
						"5. When I'm done, run `spec_export` and give me the markdown",
				),
			},
		},
	}, nil
}
