package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/omjikush09/aggroso/internal/api"
	"github.com/omjikush09/aggroso/internal/server"
	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on the configured address (default :3001) until interrupted.

Routes:
  POST /api/generate
  GET  /api/history
  GET  /api/spec/{id}
  GET  /api/spec/{id}/markdown
  PUT  /api/spec/{id}
  GET  /api/health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	st, err := store.Open(ctx, a.cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("store close failed", "error", err)
		}
	}()

	svc := service.New(st,
		service.WithLogger(a.logger),
		service.WithHistoryLimit(a.cfg.History.Limit),
	)
	handler, err := api.NewRouter(svc, api.Options{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Logger:         a.logger,
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	srv := api.NewServer(handler, api.ServerConfig{
		Address:         a.cfg.Server.Addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		IdleTimeout:     a.cfg.Server.IdleTimeout,
	}, a.logger)

	a.logger.Info("starting specgen api",
		"version", server.Version,
		"driver", a.cfg.Database.Driver,
		"addr", a.cfg.Server.Addr,
	)
	return srv.Run(ctx)
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: `Run an MCP server on stdin/stdout. Add it to your AI tool's MCP config:

  {
    "mcpServers": {
      "specgen": {
        "command": "specgen",
        "args": ["mcp"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, cleanup, err := server.New(ctx, a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			stdio := mcpserver.NewStdioServer(s)
			stdio.SetErrorLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelError))

			err = stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
