package main

import (
	"github.com/spf13/cobra"

	"tfmcp/internal/version"
)

var (
	configPath  string
	verbosity   int
	quiet       bool
	registryURL string
	concurrency int
	formatFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "tfmcp",
	Short: "tfmcp - Terraform registry resolution and module health analysis",
	Long: `tfmcp resolves Terraform providers and modules against a registry, with
namespace fallback and caching, and analyzes Terraform configurations for
module cohesion, coupling and structural issues.

It runs either as an MCP server over stdio or as a one-shot CLI.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("tfmcp version {{.Version}}\n")
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to a config file (default: .tfmcp/config.{json,yaml,toml})")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Silence logging")
	pf.StringVar(&registryURL, "registry-url", "", "Registry base URL (overrides config)")
	pf.IntVar(&concurrency, "concurrency", 0, "Maximum concurrent registry requests (overrides config)")
	pf.StringVar(&formatFlag, "format", string(FormatJSON), "Output format: json, yaml, toml or human")
}
