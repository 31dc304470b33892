package main

import (
	"github.com/spf13/cobra"

	"tfmcp/internal/mcp"
	"tfmcp/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol (MCP) server.

The server speaks newline-delimited JSON-RPC 2.0 on stdin/stdout and exposes
registry resolution and module health analysis as tools:
  - resolveProvider, resolveModule, resolveBatch, listVersions
  - searchProviders, searchModules, getProviderDocs
  - buildDependencyGraph, analyzeModuleHealth, suggestRefactoring
  - resolveDependencies, getCacheStats

Logs go to stderr, never stdout. This command is normally started by an MCP
client rather than by hand.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(true)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	server := mcp.NewMCPServer(version.Version, rt.engine, rt.logger)
	audit, err := rt.logs.AuditWriter()
	if err != nil {
		rt.logger.Warn("Audit log unavailable", "error", err.Error())
	} else if audit != nil {
		server.SetAuditWriter(audit)
	}

	ctx, stop := newContext()
	defer stop()
	if err := server.Start(ctx); err != nil {
		rt.logger.Error("MCP server error", "error", err.Error())
		return err
	}
	return nil
}
