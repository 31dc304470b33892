package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range GetSupportedEnvVars() {
		if v, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, v) })
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Registry.BaseURL != "https://registry.terraform.io" {
		t.Errorf("BaseURL = %q", cfg.Registry.BaseURL)
	}
	want := []string{"hashicorp", "terraform-providers", "community"}
	if strings.Join(cfg.Registry.Namespaces, ",") != strings.Join(want, ",") {
		t.Errorf("Namespaces = %v, want %v", cfg.Registry.Namespaces, want)
	}
	if cfg.Registry.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.Registry.MaxConcurrency)
	}
	if cfg.Registry.BatchTimeout() != 30*time.Second {
		t.Errorf("BatchTimeout = %v, want 30s", cfg.Registry.BatchTimeout())
	}
	ttls := cfg.Cache.TTLs()
	if ttls.Provider != 10*time.Minute || ttls.Docs != 30*time.Minute || ttls.Versions != 5*time.Minute {
		t.Errorf("TTLs = %+v", ttls)
	}
	if cfg.Health.MaxVariables != 20 || cfg.Health.MaxDepth != 3 {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if !cfg.Logging.Audit {
		t.Error("audit logging should be on by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 99 }, "version"},
		{"empty namespaces", func(c *Config) { c.Registry.Namespaces = nil }, "registry.namespaces"},
		{"zero concurrency", func(c *Config) { c.Registry.MaxConcurrency = 0 }, "registry.maxConcurrency"},
		{"zero timeout", func(c *Config) { c.Registry.RequestTimeoutMs = 0 }, "registry"},
		{"zero ttl", func(c *Config) { c.Cache.DocsTtlSeconds = 0 }, "cache.docsTtlSeconds"},
		{"health", func(c *Config) { c.Health.MaxDepth = 0 }, "health"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			ce, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "registry.baseUrl", Message: "must not be empty"}
	want := "config error in field 'registry.baseUrl': must not be empty"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	clearEnv(t)
	res, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if !res.UsedDefaults || res.ConfigPath != "" {
		t.Errorf("UsedDefaults = %v ConfigPath = %q", res.UsedDefaults, res.ConfigPath)
	}
	if res.Config.Registry.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", res.Config.Registry.MaxConcurrency)
	}
}

func TestLoadConfig_Formats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"config.json", `{"registry": {"maxConcurrency": 4}, "health": {"maxVariables": 30}}`},
		{"config.yaml", "registry:\n  maxConcurrency: 4\nhealth:\n  maxVariables: 30\n"},
		{"config.toml", "[registry]\nmaxConcurrency = 4\n\n[health]\nmaxVariables = 30\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			clearEnv(t)
			root := t.TempDir()
			if err := os.MkdirAll(filepath.Join(root, ".tfmcp"), 0755); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(root, ".tfmcp", tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			res, err := LoadConfigWithDetails(root)
			if err != nil {
				t.Fatalf("LoadConfigWithDetails() error = %v", err)
			}
			cfg := res.Config
			if res.ConfigPath != path {
				t.Errorf("ConfigPath = %q, want %q", res.ConfigPath, path)
			}
			if cfg.Registry.MaxConcurrency != 4 {
				t.Errorf("MaxConcurrency = %d, want 4", cfg.Registry.MaxConcurrency)
			}
			if cfg.Health.MaxVariables != 30 {
				t.Errorf("MaxVariables = %d, want 30", cfg.Health.MaxVariables)
			}
			// Unset keys keep their defaults.
			if cfg.Registry.BaseURL != "https://registry.terraform.io" || cfg.Health.MaxDepth != 3 {
				t.Errorf("defaults lost: %+v %+v", cfg.Registry, cfg.Health)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestLoadConfig_EnvConfigPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.json")
	if err := os.WriteFile(path, []byte(`{"cache": {"docsTtlSeconds": 60}}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TFMCP_CONFIG_PATH", path)

	res, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if res.ConfigPath != path || res.Config.Cache.DocsTtlSeconds != 60 {
		t.Errorf("res = %+v", res)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFromPath(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := LoadConfigFromPath(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		applied  int
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "log level",
			env:     map[string]string{"TFMCP_LOG_LEVEL": "debug"},
			applied: 1,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("Level = %q", cfg.Logging.Level)
				}
			},
		},
		{
			name:    "namespaces list",
			env:     map[string]string{"TFMCP_REGISTRY_NAMESPACES": "acme, hashicorp"},
			applied: 1,
			validate: func(t *testing.T, cfg *Config) {
				if strings.Join(cfg.Registry.Namespaces, ",") != "acme,hashicorp" {
					t.Errorf("Namespaces = %v", cfg.Registry.Namespaces)
				}
			},
		},
		{
			name:    "ints and bools",
			env:     map[string]string{"TFMCP_REGISTRY_MAX_CONCURRENCY": "2", "TFMCP_LOG_AUDIT": "false"},
			applied: 2,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Registry.MaxConcurrency != 2 || cfg.Logging.Audit {
					t.Errorf("cfg = %+v %+v", cfg.Registry, cfg.Logging)
				}
			},
		},
		{
			name:    "invalid int ignored",
			env:     map[string]string{"TFMCP_HEALTH_MAX_DEPTH": "deep"},
			applied: 0,
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Health.MaxDepth != 3 {
					t.Errorf("MaxDepth = %d, want default 3", cfg.Health.MaxDepth)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			overrides := applyEnvOverrides(cfg)
			if len(overrides) != tt.applied {
				t.Errorf("len(overrides) = %d, want %d", len(overrides), tt.applied)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestConfig_Save(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Registry.Namespaces = []string{"acme"}
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(loaded.Registry.Namespaces) != 1 || loaded.Registry.Namespaces[0] != "acme" {
		t.Errorf("Namespaces = %v, want [acme]", loaded.Registry.Namespaces)
	}
}
