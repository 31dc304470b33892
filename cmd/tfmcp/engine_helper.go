package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tfmcp/internal/config"
	"tfmcp/internal/errors"
	"tfmcp/internal/query"
	"tfmcp/internal/slogutil"
)

// runtimeEnv bundles what every command needs.
type runtimeEnv struct {
	root    string
	cfg     *config.Config
	logs    *slogutil.LoggerFactory
	logger  *slog.Logger
	engine  *query.Engine
	cleanup func()
}

// loadConfig resolves configuration for root: --config, then the config
// file search, then flag overrides.
func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFromPath(configPath)
	} else {
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		return nil, errors.New(errors.InvalidParameter, "failed to load configuration", err)
	}
	if registryURL != "" {
		cfg.Registry.BaseURL = registryURL
	}
	if concurrency > 0 {
		cfg.Registry.MaxConcurrency = concurrency
	}
	return cfg, nil
}

// cliLevel is nil unless -v or --quiet was given, so the configured level
// applies by default.
func cliLevel() *slog.Level {
	if verbosity == 0 && !quiet {
		return nil
	}
	l := slogutil.LevelFromVerbosity(verbosity, quiet)
	return &l
}

// newRuntime loads configuration and builds the engine. mcpMode selects the
// MCP log file instead of the CLI one.
func newRuntime(mcpMode bool) (*runtimeEnv, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	logs := slogutil.NewLoggerFactory(root, cfg, cliLevel())
	logger := logs.CLILogger()
	if mcpMode {
		logger = logs.MCPLogger()
	}

	engine, err := query.NewEngine(cfg, query.Options{Logger: logger})
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	return &runtimeEnv{
		root:   root,
		cfg:    cfg,
		logs:   logs,
		logger: logger,
		engine: engine,
		cleanup: func() {
			if err := logs.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: closing logs: %v\n", err)
			}
		},
	}, nil
}

// newContext returns a context cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// dirArg returns the optional directory argument.
func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
