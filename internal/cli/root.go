// Package cli implements the specgen command tree.
//
// serve and mcp own the database; every other command talks to a running
// API through internal/client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/omjikush09/aggroso/internal/client"
	"github.com/omjikush09/aggroso/internal/config"
	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/server"
)

// app carries the state shared by every command: global flags, then the
// configuration and logger resolved from them.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	apiURL     string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "specgen",
		Short: "Turn a project goal into user stories and engineering tasks",
		Long: `specgen generates a project specification (user stories and engineering tasks)
from a short goal, stores it, and lets you organize the task list: reorder,
edit, group, combine and add tasks.

Run "specgen serve" for the HTTP API or "specgen mcp" for an MCP server over
stdio. The remaining commands are clients of a running API.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.apiURL, "api-url", "", "API base URL for client commands")

	root.AddCommand(
		newServeCmd(a),
		newMCPCmd(a),
		newGenerateCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newHealthCmd(a),
		newTasksCmd(a),
		newVersionCmd(),
	)
	return root
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// load resolves configuration and the logger. Flags beat env, env beats file.
// Logs always go to stderr; stdout belongs to command output and, for mcp,
// to the protocol.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.apiURL != "" {
		cfg.Client.BaseURL = a.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.LoggingConfig()
	lc.Output = cmd.ErrOrStderr()
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) client() (*client.Client, error) {
	c, err := client.New(a.cfg.Client.BaseURL,
		client.WithHTTPClient(&http.Client{Timeout: a.cfg.Client.Timeout}),
		client.WithUserAgent("specgen/"+server.Version),
	)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return c, nil
}
