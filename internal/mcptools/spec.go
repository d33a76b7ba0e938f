package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/templates"
	"github.com/omjikush09/aggroso/internal/validate"
)

// ─── GenerateTool ───────────────────────────────────────────────────────────

// GenerateTool handles the spec_generate MCP tool.
type GenerateTool struct {
	svc       SpecService
	validator *validate.Validator
}

// NewGenerateTool creates a GenerateTool.
func NewGenerateTool(svc SpecService, v *validate.Validator) *GenerateTool {
	return &GenerateTool{svc: svc, validator: v}
}

// Definition returns the MCP tool definition for spec_generate.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_generate",
		mcp.WithDescription(
			"Generate and save a project specification from a goal. "+
				"Produces two user stories and the baseline engineering tasks (setup, backend, frontend), "+
				"plus a compliance task when constraints are given.",
		),
		mcp.WithString("goal",
			mcp.Required(),
			mcp.Description("What the project should achieve (e.g. 'Expense tracker')"),
		),
		mcp.WithString("users",
			mcp.Description("Who the project is for (default: users)"),
		),
		mcp.WithString("constraints",
			mcp.Description("Constraints the project must comply with (e.g. 'GDPR')"),
		),
		mcp.WithString("template",
			mcp.Description("Project flavour (default: web)"),
			mcp.Enum(string(specs.TemplateWeb), string(specs.TemplateMobile), string(specs.TemplateTool)),
		),
	)
}

// Handle processes the spec_generate tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := rawArgs(req, "goal", "users", "constraints", "template")
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	in, err := t.validator.Generate(body)
	if err != nil {
		return errorResult(err, msgSaveFailed), nil
	}

	spec, err := t.svc.Generate(ctx, in)
	if err != nil {
		return errorResult(err, msgSaveFailed), nil
	}
	return jsonResult(fmt.Sprintf("Spec saved: %s", spec.ID), spec)
}

// ─── HistoryTool ────────────────────────────────────────────────────────────

// HistoryTool handles the spec_history MCP tool.
type HistoryTool struct {
	svc SpecService
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(svc SpecService) *HistoryTool {
	return &HistoryTool{svc: svc}
}

// Definition returns the MCP tool definition for spec_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_history",
		mcp.WithDescription("List the most recently generated specifications, newest first."),
		mcp.WithBoolean("full",
			mcp.Description("Return the full specifications as JSON instead of a one-line summary each (default: false)"),
		),
	)
}

// Handle processes the spec_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := t.svc.History(ctx)
	if err != nil {
		return errorResult(err, msgFetchFailed), nil
	}
	if list == nil {
		list = []specs.Specification{}
	}
	if boolArg(req, "full", false) {
		return jsonResult("", list)
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No specs yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Recent specs (%d)\n\n", len(list))
	for _, s := range list {
		fmt.Fprintf(&b, "- `%s` %s (%s, %d stories, %d tasks, %s)\n",
			s.ID, s.Input.Goal, s.Input.Template, len(s.Output.Stories), len(s.Output.Tasks),
			s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ExportTool ─────────────────────────────────────────────────────────────

// ExportTool handles the spec_export MCP tool.
type ExportTool struct {
	svc       SpecService
	validator *validate.Validator
	renderer  *templates.Renderer
}

// NewExportTool creates an ExportTool.
func NewExportTool(svc SpecService, v *validate.Validator, r *templates.Renderer) *ExportTool {
	return &ExportTool{svc: svc, validator: v, renderer: r}
}

// Definition returns the MCP tool definition for spec_export.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_export",
		mcp.WithDescription("Export a specification as markdown: user stories, then engineering tasks grouped by label."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
	)
}

// Handle processes the spec_export tool call.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.validator.SpecID(req.GetString("id", ""))
	if err != nil {
		return errorResult(err, msgFetchFailed), nil
	}
	spec, err := t.svc.Get(ctx, id)
	if err != nil {
		return errorResult(err, msgFetchFailed), nil
	}
	doc, err := t.renderer.Markdown(*spec)
	if err != nil {
		return nil, fmt.Errorf("rendering export: %w", err)
	}
	return mcp.NewToolResultText(doc), nil
}

// ─── UpdateTool ─────────────────────────────────────────────────────────────

// UpdateTool handles the spec_update MCP tool.
type UpdateTool struct {
	svc       SpecService
	validator *validate.Validator
}

// NewUpdateTool creates an UpdateTool.
func NewUpdateTool(svc SpecService, v *validate.Validator) *UpdateTool {
	return &UpdateTool{svc: svc, validator: v}
}

// Definition returns the MCP tool definition for spec_update.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_update",
		mcp.WithDescription(
			"Replace the tasks and/or stories of a specification. Each given list replaces the stored one "+
				"entirely and in order; an empty list clears it. At least one of tasks or stories is required.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithArray("tasks",
			mcp.Description("Ordered tasks: objects with id, content, group and completed"),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithArray("stories",
			mcp.Description("Ordered stories: objects with id and content"),
			mcp.Items(map[string]any{"type": "object"}),
		),
	)
}

// Handle processes the spec_update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.validator.SpecID(req.GetString("id", ""))
	if err != nil {
		return errorResult(err, msgUpdateFailed), nil
	}
	body, err := rawArgs(req, "tasks", "stories")
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	payload, err := t.validator.Update(body)
	if err != nil {
		return errorResult(err, msgUpdateFailed), nil
	}

	spec, err := t.svc.Update(ctx, id, payload)
	if err != nil {
		return errorResult(err, msgUpdateFailed), nil
	}
	return jsonResult(fmt.Sprintf("Spec updated: %s", spec.ID), spec)
}

// ─── HealthTool ─────────────────────────────────────────────────────────────

// HealthTool handles the spec_health MCP tool.
type HealthTool struct {
	svc SpecService
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(svc SpecService) *HealthTool {
	return &HealthTool{svc: svc}
}

// Definition returns the MCP tool definition for spec_health.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_health",
		mcp.WithDescription("Report backend uptime and database reachability."),
	)
}

// Handle processes the spec_health tool call. A degraded report is still a
// successful call; only the status field says otherwise.
func (t *HealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := t.svc.Health(ctx)
	return jsonResult(fmt.Sprintf("Status: %s", report.Status), report)
}
