package mcp

import (
	"context"
	"fmt"
	"strings"

	"tfmcp/internal/depgraph"
	"tfmcp/internal/envelope"
	"tfmcp/internal/errors"
	"tfmcp/internal/health"
	"tfmcp/internal/output"
	"tfmcp/internal/query"
	"tfmcp/internal/registry"
)

// maxHealthDrilldowns caps the refactoring follow-ups suggested after an
// analysis.
const maxHealthDrilldowns = 3

func providerArgs(params map[string]interface{}) (registry.Query, error) {
	name, err := requireString(params, "name")
	if err != nil {
		return registry.Query{}, err
	}
	constraint, err := stringParam(params, "version")
	if err != nil {
		return registry.Query{}, err
	}
	namespace, err := stringParam(params, "namespace")
	if err != nil {
		return registry.Query{}, err
	}
	q, err := registry.ParseProviderSource(name, constraint)
	if err != nil {
		return registry.Query{}, invalidParam("name", err.Error())
	}
	if q.Namespace == "" && namespace != "" {
		q = q.WithNamespace(namespace)
	}
	return q, nil
}

func parseSource(kind registry.Kind, source, constraint string) (registry.Query, error) {
	switch kind {
	case registry.KindProvider:
		return registry.ParseProviderSource(source, constraint)
	case registry.KindModule:
		return registry.ParseModuleSource(source, constraint)
	}
	return registry.Query{}, fmt.Errorf("unknown kind %q", kind)
}

func recordDrilldowns(rec registry.Record) []output.Drilldown {
	addr := rec.Namespace + "/" + rec.Name
	if rec.Kind == registry.KindModule {
		addr += "/" + rec.Provider
		return []output.Drilldown{
			{Label: "List published versions", Query: "listVersions " + addr + " --kind=module", RelevanceScore: 0.6},
		}
	}
	return []output.Drilldown{
		{Label: "Browse provider documentation", Query: "getProviderDocs " + addr, RelevanceScore: 0.8},
		{Label: "List published versions", Query: "listVersions " + addr + " --kind=provider", RelevanceScore: 0.6},
	}
}

func (s *MCPServer) toolResolveProvider(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	q, err := providerArgs(params)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ResolveProvider(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewToolResponse().
		Data(res.Record).
		WithProvenance(&res.Provenance, res.Record.Namespace).
		WithDrilldowns(recordDrilldowns(res.Record)).
		Build(), nil
}

func (s *MCPServer) toolResolveModule(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	source, err := requireString(params, "source")
	if err != nil {
		return nil, err
	}
	constraint, err := stringParam(params, "version")
	if err != nil {
		return nil, err
	}
	q, err := registry.ParseModuleSource(source, constraint)
	if err != nil {
		return nil, invalidParam("source", err.Error())
	}
	res, err := s.engine.ResolveModule(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewToolResponse().
		Data(res.Record).
		WithProvenance(&res.Provenance, res.Record.Namespace).
		WithDrilldowns(recordDrilldowns(res.Record)).
		Build(), nil
}

func (s *MCPServer) toolResolveBatch(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	raw, ok := params["queries"].([]interface{})
	if !ok {
		return nil, invalidParam("queries", "expected an array")
	}
	queries := make([]registry.Query, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, invalidParam(fmt.Sprintf("queries[%d]", i), "expected an object")
		}
		kind, err := stringParam(obj, "kind")
		if err != nil {
			return nil, err
		}
		source, err := requireString(obj, "source")
		if err != nil {
			return nil, invalidParam(fmt.Sprintf("queries[%d].source", i), "required")
		}
		constraint, err := stringParam(obj, "version")
		if err != nil {
			return nil, err
		}
		q, err := parseSource(registry.Kind(kind), source, constraint)
		if err != nil {
			return nil, invalidParam(fmt.Sprintf("queries[%d]", i), err.Error())
		}
		queries = append(queries, q)
	}
	concurrency, err := intParam(params, "maxConcurrency", 0)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.ResolveBatch(ctx, queries, query.BatchOptions{MaxConcurrency: concurrency})
	if err != nil {
		return nil, err
	}
	return NewToolResponse().Data(res).WithBatch(res).Build(), nil
}

func (s *MCPServer) toolListVersions(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	source, err := requireString(params, "source")
	if err != nil {
		return nil, err
	}
	kind, err := stringParam(params, "kind")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = string(registry.KindProvider)
	}
	constraint, err := stringParam(params, "version")
	if err != nil {
		return nil, err
	}
	q, err := parseSource(registry.Kind(kind), source, constraint)
	if err != nil {
		return nil, invalidParam("source", err.Error())
	}
	res, err := s.engine.Versions(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := NewToolResponse().Data(res)
	if constraint != "" && res.Selected == "" {
		resp.Warning(fmt.Sprintf("no published version satisfies %q", constraint))
	}
	return resp.Build(), nil
}

func (s *MCPServer) toolSearchProviders(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	return s.search(ctx, params, s.engine.SearchProviders)
}

func (s *MCPServer) toolSearchModules(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	return s.search(ctx, params, s.engine.SearchModules)
}

type searchFunc func(ctx context.Context, term string, limit int) (*query.SearchResult, error)

func (s *MCPServer) search(ctx context.Context, params map[string]interface{}, fn searchFunc) (*envelope.Response, error) {
	term, err := requireString(params, "query")
	if err != nil {
		return nil, err
	}
	limit, err := intParam(params, "limit", 0)
	if err != nil {
		return nil, err
	}
	res, err := fn(ctx, term, limit)
	if err != nil {
		return nil, err
	}

	var drilldowns []output.Drilldown
	for i, rec := range res.Records {
		if i == 3 {
			break
		}
		d := output.Drilldown{
			Label:          "Resolve " + rec.ID,
			RelevanceScore: 0.9 - 0.1*float64(i),
		}
		if rec.Kind == registry.KindModule {
			d.Query = "resolveModule " + rec.Namespace + "/" + rec.Name + "/" + rec.Provider
		} else {
			d.Query = "resolveProvider " + rec.Namespace + "/" + rec.Name
		}
		drilldowns = append(drilldowns, d)
	}
	return NewToolResponse().Data(res).WithDrilldowns(drilldowns).Build(), nil
}

func (s *MCPServer) toolGetProviderDocs(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	q, err := providerArgs(params)
	if err != nil {
		return nil, err
	}
	category, err := stringParam(params, "category")
	if err != nil {
		return nil, err
	}
	term, err := stringParam(params, "term")
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ProviderDocs(ctx, q, category, term)
	if err != nil {
		return nil, err
	}
	return NewToolResponse().
		Data(res).
		WithTruncation(len(res.Docs) < res.Total, len(res.Docs), res.Total, "filtered").
		Build(), nil
}

func countDangling(findings []depgraph.Finding) int {
	n := 0
	for _, f := range findings {
		if f.Kind == depgraph.DanglingReference {
			n++
		}
	}
	return n
}

func (s *MCPServer) toolBuildDependencyGraph(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	dir, err := dirParam(params)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.GraphDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	resp := NewToolResponse().Data(res).FromConfig(res.Warnings, countDangling(res.Findings))
	if len(res.Findings) > 0 && !strings.ContainsAny(dir, " \t") {
		resp.WithDrilldowns([]output.Drilldown{
			{Label: "Fix graph findings", Query: "suggestRefactoring " + dir, RelevanceScore: 0.7},
		})
	}
	return resp.Build(), nil
}

func healthDrilldowns(dir string, reports []health.Report) []output.Drilldown {
	if strings.ContainsAny(dir, " \t") {
		return nil
	}
	var out []output.Drilldown
	for _, r := range reports {
		if len(r.Suggestions) == 0 {
			continue
		}
		out = append(out, output.Drilldown{
			Label:          fmt.Sprintf("Refactor %s (score %d)", r.Module, r.Score),
			Query:          "suggestRefactoring " + dir + " " + r.Module,
			RelevanceScore: 1 - float64(r.Score)/100,
		})
	}
	output.SortDrilldowns(out)
	if len(out) > maxHealthDrilldowns {
		out = out[:maxHealthDrilldowns]
	}
	return out
}

func (s *MCPServer) toolAnalyzeModuleHealth(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	dir, err := dirParam(params)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.AnalyzeDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	return NewToolResponse().
		Data(res).
		FromConfig(res.Warnings, res.Summary.Findings[depgraph.DanglingReference]).
		WithDrilldowns(healthDrilldowns(dir, res.Reports)).
		Build(), nil
}

// ModuleSuggestions are the refactorings proposed for one module.
type ModuleSuggestions struct {
	Module      string              `json:"module"`
	Path        string              `json:"path"`
	Score       int                 `json:"score"`
	Suggestions []health.Suggestion `json:"suggestions"`
}

// RefactoringResult is the output of suggestRefactoring.
type RefactoringResult struct {
	Root    string              `json:"root"`
	Modules []ModuleSuggestions `json:"modules"`
}

func (s *MCPServer) toolSuggestRefactoring(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	dir, err := dirParam(params)
	if err != nil {
		return nil, err
	}
	module, err := stringParam(params, "module")
	if err != nil {
		return nil, err
	}
	res, err := s.engine.AnalyzeDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	out := RefactoringResult{Root: res.Root, Modules: []ModuleSuggestions{}}
	for _, r := range res.Reports {
		if module != "" && r.Module != module && r.Path != module {
			continue
		}
		out.Modules = append(out.Modules, ModuleSuggestions{
			Module:      r.Module,
			Path:        r.Path,
			Score:       r.Score,
			Suggestions: s.engine.SuggestRefactoring(r),
		})
	}
	if module != "" && len(out.Modules) == 0 {
		return nil, errors.New(errors.NotFound, fmt.Sprintf("module %q not found in %s", module, res.Root), nil).
			WithDrilldowns(errors.Drilldown{Label: "List modules", Query: "analyzeModuleHealth " + dir})
	}
	return NewToolResponse().
		Data(out).
		FromConfig(res.Warnings, res.Summary.Findings[depgraph.DanglingReference]).
		Build(), nil
}

func (s *MCPServer) toolResolveDependencies(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	dir, err := dirParam(params)
	if err != nil {
		return nil, err
	}
	concurrency, err := intParam(params, "maxConcurrency", 0)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ResolveDependencies(ctx, dir, query.BatchOptions{MaxConcurrency: concurrency})
	if err != nil {
		return nil, err
	}
	resp := NewToolResponse().Data(res).WithBatch(res.Batch)
	for _, w := range res.Warnings {
		resp.Warning(w)
	}
	return resp.Build(), nil
}

func (s *MCPServer) toolGetCacheStats(ctx context.Context, params map[string]interface{}) (*envelope.Response, error) {
	return OperationalResponse(s.engine.CacheStats()), nil
}
