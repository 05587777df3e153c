package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/xbrlmcp/internal/app"
	"github.com/jonwraymond/xbrlmcp/internal/config"
)

type serveOptions struct {
	configFile string
	dotEnv     []string
	addr       string
	path       string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Example: `  xbrlmcp serve --addr 0.0.0.0:8081
  xbrlmcp serve --config /etc/xbrlmcp.yaml
  # clients connect to http://host:8081/mcp?username=..&password=..&client_id=..&client_secret=..`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "path to a YAML configuration file")
	flags.StringSliceVar(&opts.dotEnv, "env-file", []string{".env"}, ".env files to load when present")
	flags.StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	flags.StringVar(&opts.path, "path", "", "MCP endpoint path (overrides server.path)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func loadConfig(ctx context.Context, cmd *cobra.Command, opts *serveOptions) (*config.Config, error) {
	cfg, err := config.NewLoader().WithDotEnv(opts.dotEnv...).Load(ctx, opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("path") {
		cfg.Server.Path = opts.path
	}
	if flags.Changed("log-level") {
		cfg.Observe.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := loadConfig(ctx, cmd, opts)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, *cfg, app.Options{})
	if err != nil {
		return err
	}
	return a.ListenAndServe(ctx)
}
