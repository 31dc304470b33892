package depgraph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tfmcp/internal/tfmodel"
)

// Roots that never name a resource.
var nonResourceRoots = map[string]bool{
	"var":       true,
	"local":     true,
	"each":      true,
	"count":     true,
	"path":      true,
	"terraform": true,
	"self":      true,
}

var purposeTagPattern = regexp.MustCompile(`(?i)"?purpose"?\s*[=:]\s*"([^"]+)"`)

type target struct {
	id     NodeID
	kind   EdgeKind
	direct bool
}

type builder struct {
	cfg     *tfmodel.Config
	g       *Graph
	byAddr  map[string]map[string]NodeID // module path -> local address -> node
	edgeSet map[[2]NodeID]bool
	dangled map[string]bool
}

// Build constructs the graph for cfg. Anomalies such as dangling references
// and cycles are recorded as findings; Build never fails.
func Build(cfg *tfmodel.Config) *Graph {
	b := &builder{
		cfg:     cfg,
		g:       &Graph{},
		byAddr:  map[string]map[string]NodeID{},
		edgeSet: map[[2]NodeID]bool{},
		dangled: map[string]bool{},
	}
	b.addNodes()
	for i := range b.g.Nodes {
		b.addExplicit(NodeID(i))
	}
	for i := range b.g.Nodes {
		b.addReferences(NodeID(i))
	}
	b.g.Findings = append(b.g.Findings, detectCycles(b.g)...)
	b.g.reindex()
	return b.g
}

func (b *builder) addNodes() {
	for _, m := range b.cfg.Modules {
		bd := Boundary{
			Path:        m.Path,
			Depth:       tfmodel.Depth(m.Path),
			Variables:   m.Variables,
			Outputs:     m.Outputs,
			ModuleCalls: m.ModuleCalls,
			Backends:    m.Backends,
			Providers:   m.RequiredProviders,
		}
		addrs := map[string]NodeID{}
		for _, r := range m.Resources {
			id := NodeID(len(b.g.Nodes))
			n := Node{
				ID:         id,
				Address:    r.Address(),
				Module:     m.Path,
				Type:       r.Type,
				Name:       r.Name,
				Data:       r.IsData(),
				Attributes: r.Attributes,
				DependsOn:  r.DependsOn,
				Iterators:  r.Iterators,
				Tag:        purposeTag(r.Attributes),
			}
			b.g.Nodes = append(b.g.Nodes, n)
			addrs[n.Address] = id
			bd.Nodes = append(bd.Nodes, id)
			if n.Data && n.Type == "terraform_remote_state" {
				if ident := remoteStateIdentity(r.Attributes); ident != "" {
					bd.RemoteStates = append(bd.RemoteStates, ident)
				}
			}
		}
		sort.Strings(bd.RemoteStates)
		b.byAddr[m.Path] = addrs
		b.g.Boundaries = append(b.g.Boundaries, bd)
	}
}

func purposeTag(attrs map[string]string) string {
	for _, key := range []string{"tags", "labels"} {
		if m := purposeTagPattern.FindStringSubmatch(attrs[key]); m != nil {
			return strings.ToLower(m[1])
		}
	}
	return ""
}

// remoteStateIdentity is empty when the data source names no backend,
// config or workspace.
func remoteStateIdentity(attrs map[string]string) string {
	norm := func(s string) string { return strings.Join(strings.Fields(s), " ") }
	backend, config, workspace := norm(attrs["backend"]), norm(attrs["config"]), norm(attrs["workspace"])
	if backend == "" && config == "" && workspace == "" {
		return ""
	}
	return backend + "|" + config + "|" + workspace
}

func (b *builder) addEdge(from, to NodeID, kind EdgeKind, direct bool) {
	if from == to {
		return
	}
	key := [2]NodeID{from, to}
	if b.edgeSet[key] {
		return
	}
	b.edgeSet[key] = true
	b.g.Edges = append(b.g.Edges, Edge{From: from, To: to, Kind: kind, Direct: direct})
}

func (b *builder) dangling(n *Node, ref string) {
	key := n.Key() + "->" + ref
	if b.dangled[key] {
		return
	}
	b.dangled[key] = true
	b.g.Findings = append(b.g.Findings, Finding{
		Kind:      DanglingReference,
		Module:    n.Module,
		Nodes:     []string{n.Key()},
		Reference: ref,
		Message:   fmt.Sprintf("%s references %s, which is not declared", n.Key(), ref),
	})
}

func (b *builder) moduleCall(path, name string) (tfmodel.ModuleCall, bool) {
	m := b.cfg.Module(path)
	if m == nil {
		return tfmodel.ModuleCall{}, false
	}
	for _, mc := range m.ModuleCalls {
		if mc.Name == name {
			return mc, true
		}
	}
	return tfmodel.ModuleCall{}, false
}

// addExplicit adds an edge per depends_on entry. Depending on a module
// depends on every resource that module declares.
func (b *builder) addExplicit(id NodeID) {
	n := &b.g.Nodes[id]
	for _, dep := range n.DependsOn {
		ref := Reference(strings.Split(dep, "."))
		if ref.Root() == "module" && len(ref) >= 2 {
			if _, ok := b.moduleCall(n.Module, ref[1]); !ok {
				b.dangling(n, dep)
				continue
			}
			if child := b.g.Boundary(tfmodel.ChildPath(n.Module, ref[1])); child != nil {
				for _, cid := range child.Nodes {
					b.addEdge(cid, id, Explicit, false)
				}
			}
			continue
		}
		if tid, ok := b.byAddr[n.Module][dep]; ok {
			b.addEdge(tid, id, Explicit, false)
			continue
		}
		b.dangling(n, dep)
	}
}

func (b *builder) addReferences(id NodeID) {
	n := &b.g.Nodes[id]
	shared := map[string]bool{}
	control := map[string]bool{}

	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		src := n.Attributes[key]
		controlAttr := key == "count" || key == "for_each" || strings.HasSuffix(key, ".for_each")
		for _, v := range ConditionVariables(src) {
			control[v] = true
		}
		for _, ref := range ExtractReferences(src) {
			if n.IsIterator(ref.Root()) {
				continue
			}
			switch {
			case ref.Root() == "var" && len(ref) > 1:
				shared["var."+ref[1]] = true
				if controlAttr {
					control[ref[1]] = true
				}
			case ref.Root() == "local" && len(ref) > 1:
				shared["local."+ref[1]] = true
			case ref.Root() == "data" && len(ref) > 2:
				shared["data."+ref[1]+"."+ref[2]] = true
			}
			targets, bad := b.resolve(n.Module, ref, map[string]bool{})
			if bad != "" {
				b.dangling(n, bad)
			}
			for _, t := range targets {
				b.addEdge(t.id, id, t.kind, t.direct)
			}
		}
	}
	n.SharedRefs = sortedKeys(shared)
	n.ControlVars = sortedKeys(control)
}

// resolve maps a reference made inside module path to the nodes it depends
// on. A non-empty second result names an undeclared target.
func (b *builder) resolve(path string, ref Reference, seen map[string]bool) ([]target, string) {
	root := ref.Root()
	switch {
	case root == "local" && len(ref) > 1:
		key := "local:" + path + "." + ref[1]
		if seen[key] {
			return nil, ""
		}
		seen[key] = true
		m := b.cfg.Module(path)
		if m == nil {
			return nil, ""
		}
		src, ok := m.Locals[ref[1]]
		if !ok {
			return nil, "local." + ref[1]
		}
		return b.resolveSource(path, src, seen), ""

	case nonResourceRoots[root]:
		return nil, ""

	case root == "data":
		if len(ref) < 3 {
			return nil, ""
		}
		addr := "data." + ref[1] + "." + ref[2]
		if id, ok := b.byAddr[path][addr]; ok {
			return []target{{id: id, kind: DataSource}}, ""
		}
		return nil, addr

	case root == "module":
		if len(ref) < 2 {
			return nil, ""
		}
		return b.resolveModuleRef(path, ref, seen)

	case strings.Contains(root, "_") && len(ref) > 1:
		addr := root + "." + ref[1]
		if id, ok := b.byAddr[path][addr]; ok {
			return []target{{id: id, kind: Implicit}}, ""
		}
		// A reference that only resolves in another module reaches past that
		// module's outputs.
		var found []NodeID
		for p, addrs := range b.byAddr {
			if p == path {
				continue
			}
			if id, ok := addrs[addr]; ok {
				found = append(found, id)
			}
		}
		if len(found) == 1 {
			return []target{{id: found[0], kind: Implicit, direct: true}}, ""
		}
		return nil, addr
	}
	return nil, ""
}

func (b *builder) resolveSource(path, src string, seen map[string]bool) []target {
	var out []target
	for _, r := range ExtractReferences(src) {
		ts, _ := b.resolve(path, r, seen)
		out = append(out, ts...)
	}
	return out
}

func (b *builder) resolveModuleRef(path string, ref Reference, seen map[string]bool) ([]target, string) {
	name := ref[1]
	if _, ok := b.moduleCall(path, name); !ok {
		return nil, "module." + name
	}
	childPath := tfmodel.ChildPath(path, name)
	child := b.cfg.Module(childPath)
	if child == nil || len(ref) < 3 {
		// Remote module, or a reference to the whole module object.
		return nil, ""
	}

	if out, ok := child.Output(ref[2]); ok {
		key := "output:" + childPath + "." + ref[2]
		if seen[key] {
			return nil, ""
		}
		seen[key] = true
		var out2 []target
		for _, t := range b.resolveSource(childPath, out.Value, seen) {
			out2 = append(out2, target{id: t.id, kind: ModuleOutput, direct: t.direct})
		}
		return out2, ""
	}

	if len(ref) >= 4 {
		addr := ref[2] + "." + ref[3]
		if ref[2] == "data" && len(ref) >= 5 {
			addr = "data." + ref[3] + "." + ref[4]
		}
		if id, ok := b.byAddr[childPath][addr]; ok {
			return []target{{id: id, kind: Implicit, direct: true}}, ""
		}
	}
	return nil, "module." + name + "." + ref[2]
}
