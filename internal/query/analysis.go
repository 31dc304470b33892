package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hashicorp/go-multierror"

	"tfmcp/internal/depgraph"
	"tfmcp/internal/errors"
	"tfmcp/internal/health"
	"tfmcp/internal/refactor"
	"tfmcp/internal/tfmodel"
)

// LoadResult is a loaded configuration plus the problems that did not stop
// it from loading.
type LoadResult struct {
	Config   *tfmodel.Config
	Warnings []string
}

// LoadConfig loads the configuration rooted at dir. Files that fail to
// parse become warnings as long as the root module loaded.
func (e *Engine) LoadConfig(ctx context.Context, dir string) (*LoadResult, error) {
	if dir == "" {
		dir = "."
	}
	cfg, err := tfmodel.LoadDir(ctx, dir)
	if cfg == nil || len(cfg.Modules) == 0 || cfg.Module(tfmodel.RootPath) == nil {
		if err == nil {
			err = fmt.Errorf("no modules loaded from %s", dir)
		}
		return nil, errors.New(errors.ConfigParseError, "failed to load Terraform configuration", err)
	}

	res := &LoadResult{Config: cfg}
	if err != nil {
		var merr *multierror.Error
		if stderrors.As(err, &merr) {
			for _, w := range merr.Errors {
				res.Warnings = append(res.Warnings, w.Error())
			}
		} else {
			res.Warnings = append(res.Warnings, err.Error())
		}
		e.logger.Warn("configuration loaded with errors", "dir", dir, "problems", len(res.Warnings))
	}
	return res, nil
}

// BuildDependencyGraph builds the resource graph of cfg.
func (e *Engine) BuildDependencyGraph(cfg *tfmodel.Config) *depgraph.Graph {
	return depgraph.Build(cfg)
}

// AnalyzeModuleHealth scores every module boundary of g and attaches
// refactoring suggestions to each report.
func (e *Engine) AnalyzeModuleHealth(ctx context.Context, g *depgraph.Graph) []health.Report {
	_, span := tracer.Start(ctx, "health.analyze")
	defer span.End()

	reports := e.analyzer.Analyze(g)
	issues := 0
	for i := range reports {
		reports[i].Suggestions = e.SuggestRefactoring(reports[i])
		issues += len(reports[i].Issues)
	}
	span.SetAttributes(
		attribute.Int("health.modules", len(reports)),
		attribute.Int("health.issues", issues),
	)
	return reports
}

// SuggestRefactoring turns a report's issues into suggestions.
func (e *Engine) SuggestRefactoring(r health.Report) []health.Suggestion {
	s := refactor.Advise(r)
	if s == nil {
		s = []health.Suggestion{}
	}
	return s
}

// Summary aggregates an analysis run.
type Summary struct {
	Modules      int                          `json:"modules"`
	Resources    int                          `json:"resources"`
	AverageScore float64                      `json:"averageScore"`
	LowestScore  int                          `json:"lowestScore"`
	Issues       map[health.Severity]int      `json:"issues"`
	Findings     map[depgraph.FindingKind]int `json:"findings,omitempty"`
}

// AnalysisResult is the health assessment of a configuration directory.
type AnalysisResult struct {
	Root       string                `json:"root"`
	Summary    Summary               `json:"summary"`
	Reports    []health.Report       `json:"reports"`
	Couplings  []health.PairCoupling `json:"couplings"`
	Warnings   []string              `json:"warnings,omitempty"`
	DurationMs int64                 `json:"durationMs"`
}

// AnalyzeDir loads dir, builds its graph and analyzes it.
func (e *Engine) AnalyzeDir(ctx context.Context, dir string) (*AnalysisResult, error) {
	start := time.Now()
	loaded, err := e.LoadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	g := e.BuildDependencyGraph(loaded.Config)
	reports := e.AnalyzeModuleHealth(ctx, g)
	couplings := e.analyzer.Couplings(g)
	if couplings == nil {
		couplings = []health.PairCoupling{}
	}

	res := &AnalysisResult{
		Root:       loaded.Config.Root,
		Summary:    summarize(g, reports),
		Reports:    reports,
		Couplings:  couplings,
		Warnings:   loaded.Warnings,
		DurationMs: elapsedMs(start),
	}
	e.logger.Info("analysis complete",
		"root", res.Root,
		"modules", res.Summary.Modules,
		"averageScore", res.Summary.AverageScore)
	return res, nil
}

func summarize(g *depgraph.Graph, reports []health.Report) Summary {
	s := Summary{
		Modules:   len(reports),
		Resources: len(g.Nodes),
		Issues:    map[health.Severity]int{},
	}
	if len(reports) == 0 {
		return s
	}
	total := 0
	s.LowestScore = reports[0].Score
	for _, r := range reports {
		total += r.Score
		if r.Score < s.LowestScore {
			s.LowestScore = r.Score
		}
		for _, i := range r.Issues {
			s.Issues[i.Severity]++
		}
	}
	s.AverageScore = float64(total) / float64(len(reports))
	if len(g.Findings) > 0 {
		s.Findings = map[depgraph.FindingKind]int{}
		for _, f := range g.Findings {
			s.Findings[f.Kind]++
		}
	}
	return s
}

// GraphNode is a node rendered by address.
type GraphNode struct {
	Key    string `json:"key"`
	Module string `json:"module"`
	Type   string `json:"type"`
	Data   bool   `json:"data,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// GraphEdge is an edge rendered by node key.
type GraphEdge struct {
	From   string            `json:"from"`
	To     string            `json:"to"`
	Kind   depgraph.EdgeKind `json:"kind"`
	Direct bool              `json:"direct,omitempty"`
}

// GraphModule summarizes one boundary.
type GraphModule struct {
	Path        string `json:"path"`
	Depth       int    `json:"depth"`
	Resources   int    `json:"resources"`
	Variables   int    `json:"variables"`
	Outputs     int    `json:"outputs"`
	ModuleCalls int    `json:"moduleCalls"`
}

// GraphResult is the dependency graph of a configuration directory.
type GraphResult struct {
	Root     string             `json:"root"`
	Modules  []GraphModule      `json:"modules"`
	Nodes    []GraphNode        `json:"nodes"`
	Edges    []GraphEdge        `json:"edges"`
	Findings []depgraph.Finding `json:"findings"`
	Warnings []string           `json:"warnings,omitempty"`
}

// GraphDir loads dir and renders its dependency graph.
func (e *Engine) GraphDir(ctx context.Context, dir string) (*GraphResult, error) {
	loaded, err := e.LoadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	g := e.BuildDependencyGraph(loaded.Config)
	res := &GraphResult{
		Root:     loaded.Config.Root,
		Modules:  make([]GraphModule, 0, len(g.Boundaries)),
		Nodes:    make([]GraphNode, 0, len(g.Nodes)),
		Edges:    make([]GraphEdge, 0, len(g.Edges)),
		Findings: g.Findings,
		Warnings: loaded.Warnings,
	}
	if res.Findings == nil {
		res.Findings = []depgraph.Finding{}
	}
	for _, b := range g.Boundaries {
		res.Modules = append(res.Modules, GraphModule{
			Path:        tfmodel.DisplayPath(b.Path),
			Depth:       b.Depth,
			Resources:   len(b.Nodes),
			Variables:   len(b.Variables),
			Outputs:     len(b.Outputs),
			ModuleCalls: len(b.ModuleCalls),
		})
	}
	for i := range g.Nodes {
		n := g.Node(depgraph.NodeID(i))
		res.Nodes = append(res.Nodes, GraphNode{
			Key:    n.Key(),
			Module: tfmodel.DisplayPath(n.Module),
			Type:   n.Type,
			Data:   n.Data,
			Tag:    n.Tag,
		})
	}
	for _, edge := range g.Edges {
		res.Edges = append(res.Edges, GraphEdge{
			From:   g.Node(edge.From).Key(),
			To:     g.Node(edge.To).Key(),
			Kind:   edge.Kind,
			Direct: edge.Direct,
		})
	}
	sort.SliceStable(res.Edges, func(i, j int) bool {
		if res.Edges[i].From != res.Edges[j].From {
			return res.Edges[i].From < res.Edges[j].From
		}
		return res.Edges[i].To < res.Edges[j].To
	})
	return res, nil
}

// DependencyResult is the registry resolution of a configuration's
// dependencies.
type DependencyResult struct {
	Root     string       `json:"root"`
	Batch    *BatchResult `json:"batch"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ResolveDependencies loads dir and resolves every provider and registry
// module it depends on as one batch.
func (e *Engine) ResolveDependencies(ctx context.Context, dir string, opts BatchOptions) (*DependencyResult, error) {
	loaded, err := e.LoadConfig(ctx, dir)
	if err != nil {
		return nil, err
	}
	queries := loaded.Config.RegistryQueries(e.config.Registry.BaseURL)
	res := &DependencyResult{Root: loaded.Config.Root, Warnings: loaded.Warnings}
	if len(queries) == 0 {
		res.Batch = &BatchResult{Entries: []BatchEntry{}}
		res.Warnings = append(res.Warnings, "configuration has no registry dependencies")
		return res, nil
	}
	if len(queries) > MaxBatchSize {
		res.Warnings = append(res.Warnings, fmt.Sprintf("only the first %d of %d dependencies were resolved", MaxBatchSize, len(queries)))
		queries = queries[:MaxBatchSize]
	}
	res.Batch, err = e.ResolveBatch(ctx, queries, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}
