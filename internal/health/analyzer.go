package health

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"tfmcp/internal/depgraph"
	"tfmcp/internal/tfmodel"
)

// Analyzer produces health reports from a dependency graph. It holds no
// state between calls.
type Analyzer struct {
	th     Thresholds
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil logger discards output.
func NewAnalyzer(th Thresholds, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{th: th, logger: logger}
}

// Thresholds returns the limits the analyzer was built with.
func (a *Analyzer) Thresholds() Thresholds { return a.th }

// Analyze returns one report per module boundary, root first, then ordered
// by module path. Suggestions are left empty.
func (a *Analyzer) Analyze(g *depgraph.Graph) []Report {
	pairs := a.Couplings(g)
	reports := make([]Report, 0, len(g.Boundaries))
	for i := range g.Boundaries {
		b := &g.Boundaries[i]
		r := Report{
			Module:      tfmodel.DisplayPath(b.Path),
			Path:        b.Path,
			Depth:       b.Depth,
			Cohesion:    a.cohesion(g, b),
			Coupling:    couplingFor(b.Path, pairs),
			Metrics:     metrics(g, b),
			Groups:      groups(g, b),
			Suggestions: []Suggestion{},
		}
		r.Issues = a.issues(g, b, &r)
		r.Score = a.score(&r)
		a.logger.Debug("Module analyzed",
			"module", r.Module,
			"score", r.Score,
			"cohesion", r.Cohesion.Class,
			"coupling", r.Coupling.Class,
			"issues", len(r.Issues),
		)
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return reports
}

func metrics(g *depgraph.Graph, b *depgraph.Boundary) Metrics {
	m := Metrics{
		Variables:   len(b.Variables),
		Outputs:     len(b.Outputs),
		ModuleCalls: len(b.ModuleCalls),
	}
	types := map[string]bool{}
	for _, id := range b.Nodes {
		n := g.Node(id)
		if n.Data {
			m.DataSources++
			continue
		}
		m.Resources++
		types[n.Type] = true
	}
	m.ResourceTypes = len(types)
	for _, v := range b.Variables {
		if strings.TrimSpace(v.Description) == "" {
			m.UndocumentedVariables++
		}
	}
	for _, o := range b.Outputs {
		if strings.TrimSpace(o.Description) == "" {
			m.UndocumentedOutputs++
		}
	}
	return m
}

func (a *Analyzer) issues(g *depgraph.Graph, b *depgraph.Boundary, r *Report) []Issue {
	var out []Issue
	add := func(kind IssueKind, sev Severity, targets []string, format string, args ...any) {
		out = append(out, Issue{
			Kind:        kind,
			Severity:    sev,
			Description: fmt.Sprintf(format, args...),
			Module:      r.Module,
			Targets:     targets,
		})
	}

	if n := len(b.Variables); n > a.th.MaxVariables {
		sev := Medium
		if n >= a.th.CriticalVariables {
			sev = High
		}
		add(ExcessiveVariables, sev, nil, "module declares %d variables, more than the limit of %d", n, a.th.MaxVariables)
	}

	switch r.Cohesion.Class {
	case Coincidental:
		add(LogicalCohesion, High, nil, "resources have coincidental cohesion: %s", r.Cohesion.Explanation)
	case Logical:
		add(LogicalCohesion, Medium, nil, "resources have logical cohesion: %s", r.Cohesion.Explanation)
	}

	if b.Depth > a.th.MaxDepth {
		add(DeepHierarchy, Medium, nil, "module is nested %d levels deep, more than the limit of %d", b.Depth, a.th.MaxDepth)
	}

	var undocumented []string
	for _, v := range b.Variables {
		if strings.TrimSpace(v.Description) == "" {
			undocumented = append(undocumented, "var."+v.Name)
		}
	}
	for _, o := range b.Outputs {
		if strings.TrimSpace(o.Description) == "" {
			undocumented = append(undocumented, "output."+o.Name)
		}
	}
	if len(undocumented) > 0 {
		add(MissingDocumentation, Low, undocumented, "%d variables or outputs have no description", len(undocumented))
	}

	if !isWrapper(g, b) {
		for _, call := range b.ModuleCalls {
			if call.SourceInfo.IsRegistry() {
				add(PublicModuleRisk, Medium, []string{"module." + call.Name},
					"module.%s instantiates registry module %s directly", call.Name, call.Source)
			}
		}
	}

	for _, e := range g.Edges {
		if !e.Direct || g.Node(e.To).Module != b.Path {
			continue
		}
		from, to := g.Node(e.From), g.Node(e.To)
		add(ContentCoupling, High, []string{to.Address, from.Key()},
			"%s addresses %s inside another module without a declared output", to.Address, from.Key())
	}

	for _, f := range g.FindingsFor(b.Path) {
		switch f.Kind {
		case depgraph.CyclicDependency:
			add(CyclicDependency, High, f.Nodes, "%s", f.Message)
		case depgraph.DanglingReference:
			add(DanglingReference, Medium, f.Nodes, "%s", f.Message)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		if out[i].Kind != out[j].Kind {
			return issueOrder[out[i].Kind] < issueOrder[out[j].Kind]
		}
		return out[i].Description < out[j].Description
	})
	if out == nil {
		out = []Issue{}
	}
	return out
}

// isWrapper reports whether b exists only to instantiate a single module.
func isWrapper(g *depgraph.Graph, b *depgraph.Boundary) bool {
	if len(b.ModuleCalls) != 1 {
		return false
	}
	for _, id := range b.Nodes {
		if !g.Node(id).Data {
			return false
		}
	}
	return true
}

func (a *Analyzer) score(r *Report) int {
	score := 100
	for _, i := range r.Issues {
		score -= a.th.penalty(i.Severity)
	}
	score -= int(math.Round(a.th.couplingPenalty(r.Coupling.Class) * r.Coupling.Strength))
	return max(0, min(100, score))
}
