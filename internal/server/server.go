// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools/prompts/resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/omjikush09/aggroso/internal/config"
	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/mcptools"
	"github.com/omjikush09/aggroso/internal/prompts"
	"github.com/omjikush09/aggroso/internal/resources"
	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/store"
	"github.com/omjikush09/aggroso/internal/templates"
	"github.com/omjikush09/aggroso/internal/validate"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New opens the configured store and creates the MCP server with all tools,
// prompts, and resources registered.
//
// The returned cleanup function closes the store and must be called on
// shutdown (typically via defer). It is always non-nil and safe to call
// even when New fails.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = logging.Discard()
	}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}

	svc := service.New(st,
		service.WithLogger(logger),
		service.WithHistoryLimit(cfg.History.Limit),
	)
	s, err := NewWithService(svc, logger)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return s, cleanup, nil
}

// NewWithService builds the MCP server over an existing service.
func NewWithService(svc mcptools.SpecService, logger *slog.Logger) (*server.MCPServer, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	validator, err := validate.New()
	if err != nil {
		return nil, fmt.Errorf("compiling request schemas: %w", err)
	}
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating template renderer: %w", err)
	}

	s := server.NewMCPServer(
		"specgen",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Spec tools ---

	generateTool := mcptools.NewGenerateTool(svc, validator)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	historyTool := mcptools.NewHistoryTool(svc)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	exportTool := mcptools.NewExportTool(svc, validator, renderer)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	updateTool := mcptools.NewUpdateTool(svc, validator)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	healthTool := mcptools.NewHealthTool(svc)
	s.AddTool(healthTool.Definition(), healthTool.Handle)

	// --- Task organizer tools ---

	taskOpts := []mcptools.TaskOption{mcptools.WithTaskLogger(logger)}

	addTool := mcptools.NewAddTaskTool(svc, validator, taskOpts...)
	s.AddTool(addTool.Definition(), addTool.Handle)

	editTool := mcptools.NewEditTaskTool(svc, validator, taskOpts...)
	s.AddTool(editTool.Definition(), editTool.Handle)

	reorderTool := mcptools.NewReorderTaskTool(svc, validator, taskOpts...)
	s.AddTool(reorderTool.Definition(), reorderTool.Handle)

	groupTool := mcptools.NewGroupTasksTool(svc, validator, taskOpts...)
	s.AddTool(groupTool.Definition(), groupTool.Handle)

	combineTool := mcptools.NewCombineTasksTool(svc, validator, taskOpts...)
	s.AddTool(combineTool.Definition(), combineTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	historyPrompt := prompts.NewHistoryPrompt()
	s.AddPrompt(historyPrompt.Definition(), historyPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(svc)
	s.AddResource(resourceHandler.HistoryResource(), resourceHandler.HandleHistory)

	return s, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use SpecGen.
func serverInstructions() string {
	return `You have access to SpecGen, which turns a project goal into user stories
and engineering tasks and keeps them organized.

## Generating
Call spec_generate with a goal. users, constraints and template (web, mobile, tool)
are optional. Every spec gets two user stories and three baseline tasks
(setup, backend, frontend); a compliance task is added when constraints are given.

## Organizing tasks
Each task has an id, content, a free-text group label and a completed flag.
- task_reorder: move a task (by ids or by indices)
- task_edit: change a task's text or completion
- task_group: label several tasks at once (blank label = ungrouped)
- task_combine: merge two or more tasks into one, in the slot of the first
- task_add: append a task (default group: planning)
Every change saves the whole task list. Use spec_update to replace tasks
or stories wholesale.

## Reviewing
spec_history lists the five most recent specs. spec_export renders one as markdown.
spec_health reports whether the database is reachable.`
}
