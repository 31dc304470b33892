package health

import (
	"fmt"
	"sort"
	"strings"

	"tfmcp/internal/depgraph"
)

// subjects returns the nodes cohesion is judged on: managed resources, or
// every node when a module only reads data sources.
func subjects(g *depgraph.Graph, b *depgraph.Boundary) []depgraph.NodeID {
	var managed []depgraph.NodeID
	for _, id := range b.Nodes {
		if !g.Node(id).Data {
			managed = append(managed, id)
		}
	}
	if len(managed) == 0 {
		return b.Nodes
	}
	return managed
}

func (a *Analyzer) cohesion(g *depgraph.Graph, b *depgraph.Boundary) CohesionMetric {
	ids := subjects(g, b)
	n := len(ids)
	switch {
	case n == 0 && len(b.ModuleCalls) > 0:
		return CohesionMetric{Class: Functional, Strength: 1, Explanation: "module only composes other modules"}
	case n == 0:
		return CohesionMetric{Class: Functional, Strength: 1, Explanation: "module declares no resources"}
	case n == 1:
		return CohesionMetric{Class: Functional, Strength: 1, Explanation: "module manages a single resource"}
	}

	if tag := commonTag(g, ids); tag != "" {
		return CohesionMetric{Class: Functional, Strength: 1,
			Explanation: fmt.Sprintf("all resources share the purpose tag %q", tag)}
	}
	if fam := commonFamily(g, ids); fam != "" && fam != FamilyOther {
		return CohesionMetric{Class: Functional, Strength: 1,
			Explanation: fmt.Sprintf("all resources belong to the %s family", fam)}
	}

	inSet := make(map[depgraph.NodeID]bool, n)
	for _, id := range ids {
		inSet[id] = true
	}
	var internal []depgraph.Edge
	for _, e := range g.Edges {
		if inSet[e.From] && inSet[e.To] && e.Kind != depgraph.ModuleOutput {
			internal = append(internal, e)
		}
	}

	if isChain(ids, internal) {
		return CohesionMetric{Class: Sequential, Strength: 1,
			Explanation: "resources form a single dependency chain"}
	}

	threshold := a.th.ParticipationThreshold
	if frac := fraction(sharedDataParticipants(g, ids, internal), n); frac >= threshold {
		return CohesionMetric{Class: Communicational, Strength: frac,
			Explanation: fmt.Sprintf("%.0f%% of resources read shared variables, locals, data sources or upstream resources", frac*100)}
	}
	if frac := fraction(sharedControlParticipants(g, ids), n); frac >= threshold {
		return CohesionMetric{Class: Procedural, Strength: frac,
			Explanation: fmt.Sprintf("%.0f%% of resources are driven by the same count, for_each or conditional inputs", frac*100)}
	}
	if touched, ok := explicitOnly(internal); ok && len(touched) >= 2 {
		frac := fraction(touched, n)
		return CohesionMetric{Class: Temporal, Strength: frac,
			Explanation: "resources are related only by depends_on ordering"}
	}
	if prov, frac, families := dominantProvider(g, ids); frac >= threshold && families > 1 {
		return CohesionMetric{Class: Logical, Strength: frac,
			Explanation: fmt.Sprintf("resources share the %s provider but span %d unrelated families", prov, families)}
	}

	related := map[depgraph.NodeID]bool{}
	for _, e := range internal {
		related[e.From] = true
		related[e.To] = true
	}
	for id := range sharedDataParticipants(g, ids, internal) {
		related[id] = true
	}
	return CohesionMetric{Class: Coincidental, Strength: 1 - fraction(related, n),
		Explanation: "co-located resources have no structural relationship"}
}

func fraction(set map[depgraph.NodeID]bool, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(len(set)) / float64(n)
}

func commonTag(g *depgraph.Graph, ids []depgraph.NodeID) string {
	tag := g.Node(ids[0]).Tag
	if tag == "" {
		return ""
	}
	for _, id := range ids[1:] {
		if g.Node(id).Tag != tag {
			return ""
		}
	}
	return tag
}

func commonFamily(g *depgraph.Graph, ids []depgraph.NodeID) string {
	fam := Family(g.Node(ids[0]).Type)
	for _, id := range ids[1:] {
		if Family(g.Node(id).Type) != fam {
			return ""
		}
	}
	return fam
}

// isChain reports whether the undirected graph over ids is a simple path.
func isChain(ids []depgraph.NodeID, edges []depgraph.Edge) bool {
	adj := map[depgraph.NodeID]map[depgraph.NodeID]bool{}
	for _, id := range ids {
		adj[id] = map[depgraph.NodeID]bool{}
	}
	for _, e := range edges {
		adj[e.From][e.To] = true
		adj[e.To][e.From] = true
	}
	undirected := 0
	for _, nbrs := range adj {
		if len(nbrs) > 2 {
			return false
		}
		undirected += len(nbrs)
	}
	if undirected/2 != len(ids)-1 {
		return false
	}

	seen := map[depgraph.NodeID]bool{ids[0]: true}
	queue := []depgraph.NodeID{ids[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for nb := range adj[cur] {
			if !seen[nb] {
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return len(seen) == len(ids)
}

// sharedDataParticipants returns the nodes that read a variable, local or
// data source also read by another node, plus the upstream resources that
// feed two or more nodes along with those nodes.
func sharedDataParticipants(g *depgraph.Graph, ids []depgraph.NodeID, internal []depgraph.Edge) map[depgraph.NodeID]bool {
	readers := map[string][]depgraph.NodeID{}
	for _, id := range ids {
		n := g.Node(id)
		for _, ref := range n.SharedRefs {
			// Variables that only gate creation are control flow, not data.
			if name, ok := strings.CutPrefix(ref, "var."); ok && containsName(n.ControlVars, name) {
				continue
			}
			readers[ref] = append(readers[ref], id)
		}
	}
	part := map[depgraph.NodeID]bool{}
	for _, nodes := range readers {
		if len(nodes) < 2 {
			continue
		}
		for _, id := range nodes {
			part[id] = true
		}
	}

	dependents := map[depgraph.NodeID][]depgraph.NodeID{}
	for _, e := range internal {
		if e.Kind == depgraph.Explicit {
			continue
		}
		dependents[e.From] = append(dependents[e.From], e.To)
	}
	for up, downs := range dependents {
		if len(downs) < 2 {
			continue
		}
		part[up] = true
		for _, d := range downs {
			part[d] = true
		}
	}
	return part
}

func sharedControlParticipants(g *depgraph.Graph, ids []depgraph.NodeID) map[depgraph.NodeID]bool {
	drivers := map[string][]depgraph.NodeID{}
	for _, id := range ids {
		for _, v := range g.Node(id).ControlVars {
			drivers[v] = append(drivers[v], id)
		}
	}
	part := map[depgraph.NodeID]bool{}
	for _, nodes := range drivers {
		if len(nodes) < 2 {
			continue
		}
		for _, id := range nodes {
			part[id] = true
		}
	}
	return part
}

// explicitOnly returns the nodes touched by internal edges when every such
// edge is a depends_on edge.
func explicitOnly(internal []depgraph.Edge) (map[depgraph.NodeID]bool, bool) {
	if len(internal) == 0 {
		return nil, false
	}
	touched := map[depgraph.NodeID]bool{}
	for _, e := range internal {
		if e.Kind != depgraph.Explicit {
			return nil, false
		}
		touched[e.From] = true
		touched[e.To] = true
	}
	return touched, true
}

// dominantProvider returns the most common provider prefix, the fraction of
// nodes using it, and how many families those nodes span.
func dominantProvider(g *depgraph.Graph, ids []depgraph.NodeID) (string, float64, int) {
	byProvider := map[string][]depgraph.NodeID{}
	for _, id := range ids {
		p := providerPrefix(g.Node(id).Type)
		byProvider[p] = append(byProvider[p], id)
	}
	providers := make([]string, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	best := ""
	for _, p := range providers {
		if best == "" || len(byProvider[p]) > len(byProvider[best]) {
			best = p
		}
	}
	families := map[string]bool{}
	for _, id := range byProvider[best] {
		families[Family(g.Node(id).Type)] = true
	}
	return best, float64(len(byProvider[best])) / float64(len(ids)), len(families)
}

// groups partitions managed resources by family.
func groups(g *depgraph.Graph, b *depgraph.Boundary) []ResourceGroup {
	byFamily := map[string][]string{}
	for _, id := range b.Nodes {
		n := g.Node(id)
		if n.Data {
			continue
		}
		f := Family(n.Type)
		byFamily[f] = append(byFamily[f], n.Address)
	}
	out := make([]ResourceGroup, 0, len(byFamily))
	for f, addrs := range byFamily {
		sort.Strings(addrs)
		out = append(out, ResourceGroup{Family: f, Resources: addrs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out
}
