// Package tfmodel loads Terraform configuration into a flat, unevaluated
// model: resources, variables, outputs, module calls and backends per module
// instance, with attribute expressions kept as source text.
package tfmodel

import (
	"sort"
	"strings"
)

// Mode distinguishes managed resources from data sources.
type Mode string

const (
	ModeManaged Mode = "managed"
	ModeData    Mode = "data"
)

// RootPath is the module path of the root module.
const RootPath = ""

// Resource is a resource or data block.
type Resource struct {
	Mode Mode   `json:"mode"`
	Type string `json:"type"`
	Name string `json:"name"`
	// Module is the owning module path, e.g. "module.network".
	Module string `json:"module,omitempty"`
	// Provider is the provider configuration reference, e.g. "aws.west".
	Provider string `json:"provider,omitempty"`
	// Attributes maps attribute names to raw expression source. Nested block
	// attributes use dotted keys such as "ingress.cidr_blocks".
	Attributes map[string]string `json:"attributes,omitempty"`
	// DependsOn lists addresses from the depends_on meta-argument.
	DependsOn []string `json:"dependsOn,omitempty"`
	// Iterators are the names bound by dynamic blocks inside the resource.
	Iterators []string `json:"iterators,omitempty"`
	File      string   `json:"file,omitempty"`
	Line      int      `json:"line,omitempty"`
}

func (r *Resource) addIterator(name string) {
	for _, n := range r.Iterators {
		if n == name {
			return
		}
	}
	r.Iterators = append(r.Iterators, name)
}

// IsIterator reports whether name is bound by one of r's dynamic blocks.
func (r Resource) IsIterator(name string) bool {
	for _, n := range r.Iterators {
		if n == name {
			return true
		}
	}
	return false
}

// Address returns the module-local address: "type.name" or "data.type.name".
func (r Resource) Address() string {
	if r.Mode == ModeData {
		return "data." + r.Type + "." + r.Name
	}
	return r.Type + "." + r.Name
}

// IsData reports whether r is a data source.
func (r Resource) IsData() bool { return r.Mode == ModeData }

// ProviderName returns the provider implied by the resource type prefix.
func (r Resource) ProviderName() string {
	if i := strings.IndexByte(r.Type, '_'); i > 0 {
		return r.Type[:i]
	}
	return r.Type
}

// Variable is an input variable declaration.
type Variable struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	HasDefault  bool   `json:"hasDefault"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// Output is an output value declaration.
type Output struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// ModuleCall is a module block.
type ModuleCall struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`
	// Inputs maps argument names to raw expression source, excluding
	// meta-arguments.
	Inputs map[string]string `json:"inputs,omitempty"`
	// Meta holds count, for_each, providers and depends_on.
	Meta       map[string]string `json:"meta,omitempty"`
	SourceInfo SourceInfo        `json:"sourceInfo"`
}

// Backend is a state storage configuration from a terraform block.
type Backend struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}

// Identity renders the backend as a comparable string.
func (b Backend) Identity() string {
	keys := make([]string, 0, len(b.Config))
	for k := range b.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(b.Type)
	for _, k := range keys {
		sb.WriteString(";")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(b.Config[k])
	}
	return sb.String()
}

// ProviderRequirement is an entry of required_providers.
type ProviderRequirement struct {
	Name        string   `json:"name"`
	Source      string   `json:"source,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// Module is one module instance of a configuration.
type Module struct {
	Path              string                `json:"path"`
	Dir               string                `json:"dir,omitempty"`
	Resources         []Resource            `json:"resources"`
	Variables         []Variable            `json:"variables"`
	Outputs           []Output              `json:"outputs"`
	ModuleCalls       []ModuleCall          `json:"moduleCalls"`
	Locals            map[string]string     `json:"locals,omitempty"`
	Backends          []Backend             `json:"backends,omitempty"`
	RequiredProviders []ProviderRequirement `json:"requiredProviders,omitempty"`
}

// Depth is the nesting depth of the module.
func (m *Module) Depth() int { return Depth(m.Path) }

// Output returns the named output.
func (m *Module) Output(name string) (Output, bool) {
	for _, o := range m.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// Variable returns the named variable.
func (m *Module) Variable(name string) (Variable, bool) {
	for _, v := range m.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Config is a loaded configuration: the root module followed by every
// local child module reachable from it.
type Config struct {
	Root    string    `json:"root"`
	Modules []*Module `json:"modules"`
}

// Module returns the module at path.
func (c *Config) Module(path string) *Module {
	for _, m := range c.Modules {
		if m.Path == path {
			return m
		}
	}
	return nil
}

// ChildPath returns the path of module call name inside parent.
func ChildPath(parent, name string) string {
	if parent == RootPath {
		return "module." + name
	}
	return parent + ".module." + name
}

// ParentPath returns the path of the module containing path.
func ParentPath(path string) string {
	i := strings.LastIndex(path, ".module.")
	if i < 0 {
		return RootPath
	}
	return path[:i]
}

// Depth counts "module.<name>" segments in path.
func Depth(path string) int {
	if path == RootPath {
		return 0
	}
	parts := strings.Split(path, ".")
	depth := 0
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == "module" {
			depth++
		}
	}
	return depth
}

// DisplayPath renders the root module as "root".
func DisplayPath(path string) string {
	if path == RootPath {
		return "root"
	}
	return path
}
