package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tfmcp/internal/health"
	"tfmcp/internal/registry"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// Config is the complete tfmcp configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Registry RegistryConfig    `json:"registry" mapstructure:"registry"`
	Cache    CacheConfig       `json:"cache" mapstructure:"cache"`
	Health   health.Thresholds `json:"health" mapstructure:"health"`
	Logging  LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// RegistryConfig controls how the registry is reached.
type RegistryConfig struct {
	BaseURL          string   `json:"baseUrl" mapstructure:"baseUrl"`
	Namespaces       []string `json:"namespaces" mapstructure:"namespaces"`
	MaxConcurrency   int      `json:"maxConcurrency" mapstructure:"maxConcurrency"`
	BatchTimeoutMs   int      `json:"batchTimeoutMs" mapstructure:"batchTimeoutMs"`
	RequestTimeoutMs int      `json:"requestTimeoutMs" mapstructure:"requestTimeoutMs"`
	RetryMax         int      `json:"retryMax" mapstructure:"retryMax"`
	UserAgent        string   `json:"userAgent,omitempty" mapstructure:"userAgent"`
}

// BatchTimeout is the overall deadline of one batch resolution.
func (r RegistryConfig) BatchTimeout() time.Duration {
	return time.Duration(r.BatchTimeoutMs) * time.Millisecond
}

// RequestTimeout bounds a single HTTP attempt.
func (r RegistryConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutMs) * time.Millisecond
}

// CacheConfig holds per-class cache lifetimes.
type CacheConfig struct {
	ProviderTtlSeconds int `json:"providerTtlSeconds" mapstructure:"providerTtlSeconds"`
	ModuleTtlSeconds   int `json:"moduleTtlSeconds" mapstructure:"moduleTtlSeconds"`
	DocsTtlSeconds     int `json:"docsTtlSeconds" mapstructure:"docsTtlSeconds"`
	VersionsTtlSeconds int `json:"versionsTtlSeconds" mapstructure:"versionsTtlSeconds"`
	SearchTtlSeconds   int `json:"searchTtlSeconds" mapstructure:"searchTtlSeconds"`
	// SweepIntervalSeconds is how often the MCP server drops expired entries;
	// zero disables sweeping.
	SweepIntervalSeconds int `json:"sweepIntervalSeconds" mapstructure:"sweepIntervalSeconds"`
}

// TTLs converts the configured lifetimes for the registry engine.
func (c CacheConfig) TTLs() registry.TTLs {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return registry.TTLs{
		Provider: sec(c.ProviderTtlSeconds),
		Module:   sec(c.ModuleTtlSeconds),
		Docs:     sec(c.DocsTtlSeconds),
		Versions: sec(c.VersionsTtlSeconds),
		Search:   sec(c.SearchTtlSeconds),
	}
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"` // human or json
	Level  string `json:"level" mapstructure:"level"`
	// File enables logging to .tfmcp/logs under the working root.
	File       bool   `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups"`
	// Audit records every MCP tool call in .tfmcp/logs/audit.log.
	Audit  bool             `json:"audit" mapstructure:"audit"`
	Remote *RemoteLogConfig `json:"remote,omitempty" mapstructure:"remote"`
}

// RemoteLogConfig ships logs to a Loki endpoint.
type RemoteLogConfig struct {
	Enabled       bool              `json:"enabled" mapstructure:"enabled"`
	Endpoint      string            `json:"endpoint" mapstructure:"endpoint"`
	Labels        map[string]string `json:"labels,omitempty" mapstructure:"labels"`
	BatchSize     int               `json:"batchSize,omitempty" mapstructure:"batchSize"`
	FlushInterval string            `json:"flushInterval,omitempty" mapstructure:"flushInterval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Registry: RegistryConfig{
			BaseURL:          registry.DefaultBaseURL,
			Namespaces:       append([]string(nil), registry.DefaultNamespaces...),
			MaxConcurrency:   registry.DefaultMaxConcurrency,
			BatchTimeoutMs:   30000,
			RequestTimeoutMs: 10000,
			RetryMax:         2,
		},
		Cache: CacheConfig{
			ProviderTtlSeconds:   600,
			ModuleTtlSeconds:     600,
			DocsTtlSeconds:       1800,
			VersionsTtlSeconds:   300,
			SearchTtlSeconds:     300,
			SweepIntervalSeconds: 300,
		},
		Health: health.DefaultThresholds(),
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
			Audit:      true,
		},
	}
}

// LoadResult describes where a configuration came from.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// LoadConfig loads configuration for root, applying environment overrides.
func LoadConfig(root string) (*Config, error) {
	res, err := LoadConfigWithDetails(root)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadConfigWithDetails loads the file named by TFMCP_CONFIG_PATH, or
// .tfmcp/config.{json,yaml,toml} under root, on top of the defaults. A
// missing file is not an error.
func LoadConfigWithDetails(root string) (*LoadResult, error) {
	res := &LoadResult{}

	if p := os.Getenv("TFMCP_CONFIG_PATH"); p != "" {
		cfg, err := LoadConfigFromPath(p)
		if err != nil {
			return nil, err
		}
		res.Config, res.ConfigPath = cfg, p
	} else {
		v := newViper()
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(root, ".tfmcp"))
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			res.Config, res.UsedDefaults = DefaultConfig(), true
		case err != nil:
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		default:
			cfg, err := decode(v)
			if err != nil {
				return nil, err
			}
			res.Config, res.ConfigPath = cfg, v.ConfigFileUsed()
		}
	}

	res.EnvOverrides = applyEnvOverrides(res.Config)
	return res, nil
}

// LoadConfigFromPath reads one config file. The format follows the file
// extension.
func LoadConfigFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("registry", structMap(d.Registry))
	v.SetDefault("cache", structMap(d.Cache))
	v.SetDefault("health", structMap(d.Health))
	v.SetDefault("logging", structMap(d.Logging))
	return v
}

// structMap renders a section as a map keyed by its json names so viper
// can merge partial files over it.
func structMap(section any) map[string]any {
	data, _ := json.Marshal(section)
	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return out
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	return cfg, nil
}

// Save writes the configuration to .tfmcp/config.json under root.
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".tfmcp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Registry.BaseURL == "" {
		return &ConfigError{Field: "registry.baseUrl", Message: "must not be empty"}
	}
	if len(c.Registry.Namespaces) == 0 {
		return &ConfigError{Field: "registry.namespaces", Message: "at least one namespace is required"}
	}
	if c.Registry.MaxConcurrency < 1 {
		return &ConfigError{Field: "registry.maxConcurrency", Message: "must be positive"}
	}
	if c.Registry.BatchTimeoutMs < 1 || c.Registry.RequestTimeoutMs < 1 {
		return &ConfigError{Field: "registry", Message: "timeouts must be positive"}
	}
	if c.Registry.RetryMax < 0 {
		return &ConfigError{Field: "registry.retryMax", Message: "must not be negative"}
	}
	for name, ttl := range map[string]int{
		"providerTtlSeconds": c.Cache.ProviderTtlSeconds,
		"moduleTtlSeconds":   c.Cache.ModuleTtlSeconds,
		"docsTtlSeconds":     c.Cache.DocsTtlSeconds,
		"versionsTtlSeconds": c.Cache.VersionsTtlSeconds,
		"searchTtlSeconds":   c.Cache.SearchTtlSeconds,
	} {
		if ttl < 1 {
			return &ConfigError{Field: "cache." + name, Message: "must be positive"}
		}
	}
	if err := c.Health.Validate(); err != nil {
		return &ConfigError{Field: "health", Message: err.Error()}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// EnvOverride records one applied environment variable.
type EnvOverride struct {
	EnvVar string
	Path   string
	Value  string
}

// envVarMappings maps environment variables to config paths.
var envVarMappings = map[string]string{
	"TFMCP_REGISTRY_URL":              "registry.baseUrl",
	"TFMCP_REGISTRY_NAMESPACES":       "registry.namespaces",
	"TFMCP_REGISTRY_MAX_CONCURRENCY":  "registry.maxConcurrency",
	"TFMCP_REGISTRY_BATCH_TIMEOUT_MS": "registry.batchTimeoutMs",
	"TFMCP_REGISTRY_TIMEOUT_MS":       "registry.requestTimeoutMs",
	"TFMCP_REGISTRY_RETRY_MAX":        "registry.retryMax",
	"TFMCP_CACHE_PROVIDER_TTL":        "cache.providerTtlSeconds",
	"TFMCP_CACHE_MODULE_TTL":          "cache.moduleTtlSeconds",
	"TFMCP_CACHE_DOCS_TTL":            "cache.docsTtlSeconds",
	"TFMCP_HEALTH_MAX_VARIABLES":      "health.maxVariables",
	"TFMCP_HEALTH_MAX_DEPTH":          "health.maxDepth",
	"TFMCP_LOG_LEVEL":                 "logging.level",
	"TFMCP_LOG_FORMAT":                "logging.format",
	"TFMCP_LOG_FILE":                  "logging.file",
	"TFMCP_LOG_AUDIT":                 "logging.audit",
}

// GetSupportedEnvVars lists the recognised environment variables.
func GetSupportedEnvVars() []string {
	out := make([]string, 0, len(envVarMappings)+1)
	for k := range envVarMappings {
		out = append(out, k)
	}
	out = append(out, "TFMCP_CONFIG_PATH")
	sort.Strings(out)
	return out
}

// applyEnvOverrides applies set variables in a stable order. Values that do
// not parse are skipped.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	names := make([]string, 0, len(envVarMappings))
	for k := range envVarMappings {
		names = append(names, k)
	}
	sort.Strings(names)

	var applied []EnvOverride
	for _, name := range names {
		val, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		path := envVarMappings[name]
		if applyOverride(cfg, path, val) {
			applied = append(applied, EnvOverride{EnvVar: name, Path: path, Value: val})
		}
	}
	return applied
}

func applyOverride(cfg *Config, path, val string) bool {
	setInt := func(dst *int) bool {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return false
		}
		*dst = n
		return true
	}
	setBool := func(dst *bool) bool {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false
		}
		*dst = b
		return true
	}

	switch path {
	case "registry.baseUrl":
		cfg.Registry.BaseURL = val
	case "registry.namespaces":
		var ns []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ns = append(ns, s)
			}
		}
		if len(ns) == 0 {
			return false
		}
		cfg.Registry.Namespaces = ns
	case "registry.maxConcurrency":
		return setInt(&cfg.Registry.MaxConcurrency)
	case "registry.batchTimeoutMs":
		return setInt(&cfg.Registry.BatchTimeoutMs)
	case "registry.requestTimeoutMs":
		return setInt(&cfg.Registry.RequestTimeoutMs)
	case "registry.retryMax":
		return setInt(&cfg.Registry.RetryMax)
	case "cache.providerTtlSeconds":
		return setInt(&cfg.Cache.ProviderTtlSeconds)
	case "cache.moduleTtlSeconds":
		return setInt(&cfg.Cache.ModuleTtlSeconds)
	case "cache.docsTtlSeconds":
		return setInt(&cfg.Cache.DocsTtlSeconds)
	case "health.maxVariables":
		return setInt(&cfg.Health.MaxVariables)
	case "health.maxDepth":
		return setInt(&cfg.Health.MaxDepth)
	case "logging.level":
		cfg.Logging.Level = val
	case "logging.format":
		cfg.Logging.Format = val
	case "logging.file":
		return setBool(&cfg.Logging.File)
	case "logging.audit":
		return setBool(&cfg.Logging.Audit)
	default:
		return false
	}
	return true
}
