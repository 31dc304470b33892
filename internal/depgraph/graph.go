// Package depgraph builds a resource-level dependency graph from a loaded
// configuration. Nodes live in a flat table addressed by NodeID and edges
// are index pairs, so cyclic configurations need no special handling.
package depgraph

import (
	"sort"

	"tfmcp/internal/tfmodel"
)

// NodeID indexes Graph.Nodes.
type NodeID int

// EdgeKind says how a dependency was discovered.
type EdgeKind string

const (
	// Explicit edges come from depends_on.
	Explicit EdgeKind = "explicit"
	// Implicit edges come from resource references in attribute expressions.
	Implicit EdgeKind = "implicit"
	// DataSource edges come from references to data sources.
	DataSource EdgeKind = "data_source"
	// ModuleOutput edges link the resources behind a module output to the
	// consumer of that output.
	ModuleOutput EdgeKind = "module_output"
)

// Node is a resource or data source.
type Node struct {
	ID      NodeID `json:"id"`
	Address string `json:"address"`
	Module  string `json:"module"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Data    bool   `json:"data"`
	// Attributes maps attribute names to raw expression source.
	Attributes map[string]string `json:"attributes,omitempty"`
	DependsOn  []string          `json:"dependsOn,omitempty"`
	// Iterators are names bound by dynamic blocks; references rooted at
	// them are element values, not addresses.
	Iterators []string `json:"iterators,omitempty"`
	// SharedRefs are the variables, locals and data sources the node reads,
	// as "var.x", "local.y" or "data.t.n".
	SharedRefs []string `json:"sharedRefs,omitempty"`
	// ControlVars are the variables that drive count, for_each or a
	// conditional predicate of the node.
	ControlVars []string `json:"controlVars,omitempty"`
	// Tag is the declared purpose tag, if any.
	Tag string `json:"tag,omitempty"`
}

// Key is the configuration-wide address, e.g. "module.net.aws_vpc.main".
func (n *Node) Key() string {
	if n.Module == tfmodel.RootPath {
		return n.Address
	}
	return n.Module + "." + n.Address
}

// IsIterator reports whether name is bound by one of the node's dynamic
// blocks.
func (n *Node) IsIterator(name string) bool {
	return containsString(n.Iterators, name)
}

// ReadsVar reports whether the node references var.name.
func (n *Node) ReadsVar(name string) bool {
	return containsString(n.SharedRefs, "var."+name)
}

// Edge points from a dependency to its dependent.
type Edge struct {
	From NodeID   `json:"from"`
	To   NodeID   `json:"to"`
	Kind EdgeKind `json:"kind"`
	// Direct marks a reference that reaches into another module's resources
	// without going through a declared output.
	Direct bool `json:"direct,omitempty"`
}

// Boundary is one module instance and the declarations it owns.
type Boundary struct {
	Path        string                        `json:"path"`
	Depth       int                           `json:"depth"`
	Nodes       []NodeID                      `json:"nodes"`
	Variables   []tfmodel.Variable            `json:"variables"`
	Outputs     []tfmodel.Output              `json:"outputs"`
	ModuleCalls []tfmodel.ModuleCall          `json:"moduleCalls"`
	Backends    []tfmodel.Backend             `json:"backends,omitempty"`
	Providers   []tfmodel.ProviderRequirement `json:"providers,omitempty"`
	// RemoteStates identifies the terraform_remote_state sources read here.
	RemoteStates []string `json:"remoteStates,omitempty"`
}

// FindingKind classifies graph anomalies.
type FindingKind string

const (
	CyclicDependency  FindingKind = "CyclicDependency"
	DanglingReference FindingKind = "DanglingReference"
)

// Finding is a non-fatal anomaly discovered while building the graph.
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Module string      `json:"module"`
	// Nodes are the keys of the nodes involved, in cycle order for cycles.
	Nodes     []string `json:"nodes"`
	Reference string   `json:"reference,omitempty"`
	Message   string   `json:"message"`
}

// Graph is the built dependency graph.
type Graph struct {
	Nodes      []Node     `json:"nodes"`
	Edges      []Edge     `json:"edges"`
	Boundaries []Boundary `json:"boundaries"`
	Findings   []Finding  `json:"findings"`

	index map[string]NodeID
}

// Node returns the node with id.
func (g *Graph) Node(id NodeID) *Node { return &g.Nodes[id] }

// Lookup finds a node by configuration-wide key.
func (g *Graph) Lookup(key string) (NodeID, bool) {
	if g.index == nil {
		g.reindex()
	}
	id, ok := g.index[key]
	return id, ok
}

func (g *Graph) reindex() {
	g.index = make(map[string]NodeID, len(g.Nodes))
	for i := range g.Nodes {
		g.index[g.Nodes[i].Key()] = NodeID(i)
	}
}

// Boundary returns the boundary at path.
func (g *Graph) Boundary(path string) *Boundary {
	for i := range g.Boundaries {
		if g.Boundaries[i].Path == path {
			return &g.Boundaries[i]
		}
	}
	return nil
}

// EdgesOf returns edges of the given kinds, or all edges when none are given.
func (g *Graph) EdgesOf(kinds ...EdgeKind) []Edge {
	if len(kinds) == 0 {
		return append([]Edge(nil), g.Edges...)
	}
	var out []Edge
	for _, e := range g.Edges {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// FindingsFor returns findings owned by module path.
func (g *Graph) FindingsFor(path string) []Finding {
	var out []Finding
	for _, f := range g.Findings {
		if f.Module == path {
			out = append(out, f)
		}
	}
	return out
}

// CrossBoundary reports whether e connects nodes in different modules.
func (g *Graph) CrossBoundary(e Edge) bool {
	return g.Nodes[e.From].Module != g.Nodes[e.To].Module
}

func containsString(list []string, s string) bool {
	i := sort.SearchStrings(list, s)
	return i < len(list) && list[i] == s
}
