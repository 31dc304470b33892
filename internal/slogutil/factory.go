package slogutil

import (
	"io"
	"log/slog"
	"os"

	"tfmcp/internal/config"
	"tfmcp/internal/paths"
	"tfmcp/internal/version"
)

// LoggerFactory builds loggers from configuration.
// Level precedence: CLI flag > config > info.
type LoggerFactory struct {
	root     string
	cfg      config.LoggingConfig
	cliLevel *slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a factory. cliLevel is nil when no CLI flag was
// given.
func NewLoggerFactory(root string, cfg *config.Config, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{root: root, cfg: cfg.Logging, cliLevel: cliLevel}
}

// Level is the effective level.
func (f *LoggerFactory) Level() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.cfg.Level != "" {
		return LevelFromString(f.cfg.Level)
	}
	return slog.LevelInfo
}

// MCPLogger logs the stdio server. Stdout carries the protocol, so output
// goes to stderr and, when file logging is on, to .tfmcp/logs/mcp.log.
func (f *LoggerFactory) MCPLogger() *slog.Logger {
	return f.build(paths.MCPLogPath(f.root), "mcp")
}

// CLILogger logs one-shot commands to stderr and optionally cli.log.
func (f *LoggerFactory) CLILogger() *slog.Logger {
	return f.build(paths.CLILogPath(f.root), "cli")
}

func (f *LoggerFactory) build(path, subsystem string) *slog.Logger {
	level := f.Level()
	handlers := []slog.Handler{NewFormatLogger(os.Stderr, level, f.cfg.Format).Handler()}

	if f.cfg.File && f.root != "" {
		if _, err := paths.EnsureLogsDir(f.root); err == nil {
			if l, closer, err := NewFileLoggerWithRotation(path, level, f.cfg.Format, f.cfg.MaxSize, f.cfg.MaxBackups); err == nil {
				handlers = append(handlers, l.Handler())
				f.closers = append(f.closers, closer)
			}
		}
	}

	if r := f.cfg.Remote; r != nil && r.Enabled {
		base := map[string]string{"service": "tfmcp", "subsystem": subsystem, "version": version.Version}
		if lh, err := NewLokiHandler(r, base, level); err == nil {
			lh.Start()
			handlers = append(handlers, lh)
			f.closers = append(f.closers, lh)
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return NewTeeLogger(handlers...)
}

// AuditWriter opens the audit log, or returns nil when auditing is off or
// there is no root to write under.
func (f *LoggerFactory) AuditWriter() (io.Writer, error) {
	if !f.cfg.Audit || f.root == "" {
		return nil, nil
	}
	if _, err := paths.EnsureLogsDir(f.root); err != nil {
		return nil, err
	}
	rf, err := OpenRotatingFile(paths.AuditLogPath(f.root), ParseSize(f.cfg.MaxSize), f.cfg.MaxBackups)
	if err != nil {
		return nil, err
	}
	f.closers = append(f.closers, rf)
	return rf, nil
}

// NewTeeLogger creates a logger that writes to multiple destinations.
func NewTeeLogger(handlers ...slog.Handler) *slog.Logger {
	return slog.New(NewTeeHandler(handlers...))
}

// Close closes every file and remote sink opened by the factory.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
