package health

import (
	"fmt"
	"sort"

	"tfmcp/internal/depgraph"
	"tfmcp/internal/tfmodel"
)

type crossing struct {
	class  Coupling
	detail string
}

type pairKey struct{ a, b string }

func newPairKey(x, y string) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{x, y}
}

// Couplings classifies every pair of boundaries with at least one crossing.
// Pairs are ordered by A then B, using raw module paths.
func (a *Analyzer) Couplings(g *depgraph.Graph) []PairCoupling {
	crossings := map[pairKey][]crossing{}
	add := func(x, y string, c crossing) {
		if x == y {
			return
		}
		k := newPairKey(x, y)
		crossings[k] = append(crossings[k], c)
	}

	for i := range g.Boundaries {
		b := &g.Boundaries[i]
		for _, call := range b.ModuleCalls {
			child := g.Boundary(tfmodel.ChildPath(b.Path, call.Name))
			if child == nil {
				continue
			}
			for _, name := range sortedInputs(call.Inputs) {
				add(b.Path, child.Path, classifyInput(g, child, call.Name, name, call.Inputs[name]))
			}
		}
	}

	for _, e := range g.Edges {
		if !g.CrossBoundary(e) {
			continue
		}
		from, to := g.Node(e.From), g.Node(e.To)
		c := crossing{class: Data, detail: fmt.Sprintf("%s consumes an output backed by %s", to.Key(), from.Key())}
		if e.Direct {
			c = crossing{class: Content, detail: fmt.Sprintf("%s addresses %s without a declared output", to.Key(), from.Key())}
		}
		add(from.Module, to.Module, c)
	}

	for i := range g.Boundaries {
		for j := i + 1; j < len(g.Boundaries); j++ {
			x, y := &g.Boundaries[i], &g.Boundaries[j]
			for _, state := range intersect(x.RemoteStates, y.RemoteStates) {
				add(x.Path, y.Path, crossing{class: Common, detail: "both read remote state " + state})
			}
			for _, be := range intersect(backendIDs(x), backendIDs(y)) {
				add(x.Path, y.Path, crossing{class: Common, detail: "both store state in " + be})
			}
		}
	}

	out := make([]PairCoupling, 0, len(crossings))
	for k, cs := range crossings {
		worst := cs[0].class
		for _, c := range cs[1:] {
			if c.class.Rank() > worst.Rank() {
				worst = c.class
			}
		}
		var details []string
		for _, c := range cs {
			if c.class == worst {
				details = append(details, c.detail)
			}
		}
		sort.Strings(details)
		out = append(out, PairCoupling{
			A:         k.a,
			B:         k.b,
			Class:     worst,
			Strength:  float64(len(details)) / float64(len(cs)),
			Crossings: len(cs),
			Details:   details,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// classifyInput classifies one argument passed to a child module.
func classifyInput(g *depgraph.Graph, child *depgraph.Boundary, call, name, src string) crossing {
	for _, id := range child.Nodes {
		if containsName(g.Node(id).ControlVars, name) {
			return crossing{class: Control,
				detail: fmt.Sprintf("module.%s input %q drives count, for_each or a conditional in %s", call, name, g.Node(id).Key())}
		}
	}
	structured := depgraph.IsStructuredExpr(src)
	if !structured {
		for _, v := range child.Variables {
			if v.Name == name && depgraph.IsStructuredType(v.Type) {
				structured = true
				break
			}
		}
	}
	if structured {
		return crossing{class: Stamp, detail: fmt.Sprintf("module.%s input %q passes a structured value", call, name)}
	}
	return crossing{class: Data, detail: fmt.Sprintf("module.%s input %q passes a scalar value", call, name)}
}

// couplingFor returns the worst pair involving path, or Data with zero
// strength when the boundary is isolated.
func couplingFor(path string, pairs []PairCoupling) CouplingMetric {
	var best *PairCoupling
	for i := range pairs {
		p := &pairs[i]
		if p.A != path && p.B != path {
			continue
		}
		if best == nil || p.Class.Rank() > best.Class.Rank() ||
			(p.Class == best.Class && p.Strength > best.Strength) {
			best = p
		}
	}
	if best == nil {
		return CouplingMetric{Class: Data, Strength: 0, Explanation: "no crossings with other modules"}
	}
	other := best.A
	if other == path {
		other = best.B
	}
	return CouplingMetric{
		Class:       best.Class,
		Strength:    best.Strength,
		With:        tfmodel.DisplayPath(other),
		Explanation: fmt.Sprintf("%d of %d crossings are %s coupling: %s", len(best.Details), best.Crossings, best.Class, best.Details[0]),
	}
}

func sortedInputs(in map[string]string) []string {
	names := make([]string, 0, len(in))
	for k := range in {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func backendIDs(b *depgraph.Boundary) []string {
	ids := make([]string, 0, len(b.Backends))
	for _, be := range b.Backends {
		ids = append(ids, be.Identity())
	}
	sort.Strings(ids)
	return ids
}

// intersect returns the common elements of two sorted slices.
func intersect(x, y []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] == y[j]:
			if len(out) == 0 || out[len(out)-1] != x[i] {
				out = append(out, x[i])
			}
			i++
			j++
		case x[i] < y[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func containsName(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
