package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

const (
	white = iota
	gray
	black
)

// detectCycles runs an iterative depth-first search over explicit and
// implicit edges and reports each distinct cycle once.
func detectCycles(g *Graph) []Finding {
	adj := make([][]NodeID, len(g.Nodes))
	for _, e := range g.Edges {
		if e.Kind == Explicit || e.Kind == Implicit {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}
	for i := range adj {
		sort.Slice(adj[i], func(a, b int) bool { return adj[i][a] < adj[i][b] })
	}

	type frame struct {
		node NodeID
		next int
	}
	color := make([]uint8, len(g.Nodes))
	reported := map[string]bool{}
	var findings []Finding

	for start := range g.Nodes {
		if color[start] != white {
			continue
		}
		color[start] = gray
		stack := []frame{{node: NodeID(start)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(adj[top.node]) {
				color[top.node] = black
				stack = stack[:len(stack)-1]
				continue
			}
			v := adj[top.node][top.next]
			top.next++
			switch color[v] {
			case white:
				color[v] = gray
				stack = append(stack, frame{node: v})
			case gray:
				var cycle []NodeID
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append(cycle, stack[i].node)
					if stack[i].node == v {
						break
					}
				}
				reverse(cycle)
				cycle = rotateToMin(cycle)
				key := fmt.Sprint(cycle)
				if !reported[key] {
					reported[key] = true
					findings = append(findings, cycleFinding(g, cycle))
				}
			}
		}
	}
	return findings
}

func reverse(ids []NodeID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func rotateToMin(ids []NodeID) []NodeID {
	lo := 0
	for i, id := range ids {
		if id < ids[lo] {
			lo = i
		}
	}
	return append(append([]NodeID(nil), ids[lo:]...), ids[:lo]...)
}

func cycleFinding(g *Graph, cycle []NodeID) Finding {
	keys := make([]string, len(cycle))
	for i, id := range cycle {
		keys[i] = g.Nodes[id].Key()
	}
	return Finding{
		Kind:    CyclicDependency,
		Module:  g.Nodes[cycle[0]].Module,
		Nodes:   keys,
		Message: "dependency cycle: " + strings.Join(append(keys, keys[0]), " -> "),
	}
}
