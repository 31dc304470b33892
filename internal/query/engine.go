// Package query is the facade the MCP server and the CLI call into. It wires
// configuration into the registry engine and the health analyzer and shapes
// their results for callers.
package query

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"tfmcp/internal/cache"
	"tfmcp/internal/config"
	"tfmcp/internal/errors"
	"tfmcp/internal/health"
	"tfmcp/internal/registry"
	"tfmcp/internal/version"
)

var tracer = otel.Tracer("tfmcp/internal/query")

// Options are the collaborators NewEngine would otherwise build itself.
type Options struct {
	// Transport replaces the HTTP transport, mainly for tests.
	Transport registry.Transport
	// Clock drives cache expiry.
	Clock  cache.Clock
	Logger *slog.Logger
}

// Engine is the central coordinator.
type Engine struct {
	config   *config.Config
	logger   *slog.Logger
	caches   *registry.Caches
	registry *registry.Engine
	analyzer *health.Analyzer
	started  time.Time
}

// NewEngine validates cfg and builds an engine from it.
func NewEngine(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.InvalidParameter, "invalid configuration", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	transport := opts.Transport
	if transport == nil {
		ua := cfg.Registry.UserAgent
		if ua == "" {
			ua = version.UserAgent()
		}
		transport = registry.NewHTTPTransport(registry.TransportOptions{
			UserAgent:      ua,
			RequestTimeout: cfg.Registry.RequestTimeout(),
			RetryMax:       cfg.Registry.RetryMax,
			Logger:         logger.With("component", "http"),
		})
	}

	var cacheOpts []cache.Option
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
	}
	caches := registry.NewCaches(cacheOpts...)

	reg := registry.NewEngine(registry.EngineOptions{
		Client:     registry.NewClient(cfg.Registry.BaseURL, transport, logger),
		Caches:     caches,
		Namespaces: cfg.Registry.Namespaces,
		TTLs:       cfg.Cache.TTLs(),
		Batch: registry.BatchOptions{
			MaxConcurrency: cfg.Registry.MaxConcurrency,
			Deadline:       cfg.Registry.BatchTimeout(),
		},
		Logger: logger.With("component", "registry"),
	})

	return &Engine{
		config:   cfg,
		logger:   logger,
		caches:   caches,
		registry: reg,
		analyzer: health.NewAnalyzer(cfg.Health, logger.With("component", "health")),
		started:  time.Now(),
	}, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.config }

// Status describes the running engine.
type Status struct {
	Version    string              `json:"version"`
	BaseURL    string              `json:"baseUrl"`
	Namespaces []string            `json:"namespaces"`
	Uptime     string              `json:"uptime"`
	Cache      registry.CacheStats `json:"cache"`
}

// CacheStats reports the registry caches together with engine settings.
func (e *Engine) CacheStats() Status {
	return Status{
		Version:    version.Version,
		BaseURL:    e.config.Registry.BaseURL,
		Namespaces: e.registry.Namespaces(),
		Uptime:     time.Since(e.started).Round(time.Second).String(),
		Cache:      e.registry.CacheStats(),
	}
}

// SweepCaches drops expired cache entries and returns how many went.
func (e *Engine) SweepCaches() int {
	n := e.caches.Sweep()
	if n > 0 {
		e.logger.Debug("swept expired cache entries", "removed", n)
	}
	return n
}

// Provenance records how a registry answer was produced.
type Provenance struct {
	Cached     bool     `json:"cached"`
	Namespaces []string `json:"namespaces,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Warnings   []string `json:"warnings,omitempty"`
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
