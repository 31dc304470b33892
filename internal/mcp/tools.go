package mcp

import (
	"context"

	"tfmcp/internal/envelope"
)

// Tool is a tool definition as listed by tools/list.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler handles a tool call and returns an envelope response.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (*envelope.Response, error)

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "minimum": 0, "description": description}
}

var dirProp = stringProp("Directory containing the root Terraform module (default: working directory)")

// GetToolDefinitions returns all tool definitions
func (s *MCPServer) GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "resolveProvider",
			Description: "Resolve a Terraform provider in the registry. Without a namespace the configured namespaces are tried in order.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":      stringProp("Provider source: name, namespace/name or host/namespace/name"),
				"namespace": stringProp("Namespace to use when name has none; disables fallback"),
				"version":   stringProp("Version constraint, e.g. \"~> 5.0\""),
			}, "name"),
		},
		{
			Name:        "resolveModule",
			Description: "Resolve a Terraform registry module by source address.",
			InputSchema: objectSchema(map[string]interface{}{
				"source":  stringProp("Module source: name/provider, namespace/name/provider or host/namespace/name/provider"),
				"version": stringProp("Version constraint"),
			}, "source"),
		},
		{
			Name:        "resolveBatch",
			Description: "Resolve many providers and modules concurrently. One failure does not affect the others.",
			InputSchema: objectSchema(map[string]interface{}{
				"queries": map[string]interface{}{
					"type":        "array",
					"description": "Queries to resolve",
					"items": objectSchema(map[string]interface{}{
						"kind": map[string]interface{}{
							"type": "string",
							"enum": []string{"provider", "module"},
						},
						"source":  stringProp("Provider or module source address"),
						"version": stringProp("Version constraint"),
					}, "kind", "source"),
				},
				"maxConcurrency": intProp("Override the configured concurrency limit"),
			}, "queries"),
		},
		{
			Name:        "listVersions",
			Description: "List the published versions of a provider or module, newest first, and the version a constraint selects.",
			InputSchema: objectSchema(map[string]interface{}{
				"source": stringProp("Provider or module source address"),
				"kind": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"provider", "module"},
					"default": "provider",
				},
				"version": stringProp("Version constraint to select with"),
			}, "source"),
		},
		{
			Name:        "searchProviders",
			Description: "Search the registry for providers.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": stringProp("Search term"),
				"limit": intProp("Maximum results (default 20, max 100)"),
			}, "query"),
		},
		{
			Name:        "searchModules",
			Description: "Search the registry for modules.",
			InputSchema: objectSchema(map[string]interface{}{
				"query": stringProp("Search term"),
				"limit": intProp("Maximum results (default 20, max 100)"),
			}, "query"),
		},
		{
			Name:        "getProviderDocs",
			Description: "List documentation pages of a provider version, optionally filtered by category and title.",
			InputSchema: objectSchema(map[string]interface{}{
				"name":     stringProp("Provider source"),
				"version":  stringProp("Version constraint"),
				"category": stringProp("resources, data-sources, guides, functions or overview"),
				"term":     stringProp("Case-insensitive title filter"),
			}, "name"),
		},
		{
			Name:        "buildDependencyGraph",
			Description: "Build the resource dependency graph of a Terraform configuration and report cycles and dangling references.",
			InputSchema: objectSchema(map[string]interface{}{"dir": dirProp}),
		},
		{
			Name:        "analyzeModuleHealth",
			Description: "Score every module boundary of a Terraform configuration for cohesion, coupling and structural issues.",
			InputSchema: objectSchema(map[string]interface{}{"dir": dirProp}),
		},
		{
			Name:        "suggestRefactoring",
			Description: "Suggest refactorings with migration steps for the modules of a Terraform configuration.",
			InputSchema: objectSchema(map[string]interface{}{
				"dir":    dirProp,
				"module": stringProp("Restrict to one module (name or path)"),
			}),
		},
		{
			Name:        "resolveDependencies",
			Description: "Resolve every registry provider and module a Terraform configuration depends on.",
			InputSchema: objectSchema(map[string]interface{}{
				"dir":            dirProp,
				"maxConcurrency": intProp("Override the configured concurrency limit"),
			}),
		},
		{
			Name:        "getCacheStats",
			Description: "Report registry cache sizes, hit counts and configuration.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
	}
}

// RegisterTools registers all tool handlers
func (s *MCPServer) RegisterTools() {
	s.tools["resolveProvider"] = s.toolResolveProvider
	s.tools["resolveModule"] = s.toolResolveModule
	s.tools["resolveBatch"] = s.toolResolveBatch
	s.tools["listVersions"] = s.toolListVersions
	s.tools["searchProviders"] = s.toolSearchProviders
	s.tools["searchModules"] = s.toolSearchModules
	s.tools["getProviderDocs"] = s.toolGetProviderDocs
	s.tools["buildDependencyGraph"] = s.toolBuildDependencyGraph
	s.tools["analyzeModuleHealth"] = s.toolAnalyzeModuleHealth
	s.tools["suggestRefactoring"] = s.toolSuggestRefactoring
	s.tools["resolveDependencies"] = s.toolResolveDependencies
	s.tools["getCacheStats"] = s.toolGetCacheStats
}
