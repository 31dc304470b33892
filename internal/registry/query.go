// Package registry resolves provider and module metadata from a Terraform
// registry. Lookups are cached, walk an ordered namespace fallback list when
// no namespace is given, and can be fanned out in bounded batches.
package registry

import (
	"fmt"
	"strings"
)

// Kind distinguishes provider lookups from module lookups.
type Kind string

const (
	KindProvider Kind = "provider"
	KindModule   Kind = "module"
)

// Query identifies a provider or module to resolve. An empty Namespace
// triggers fallback across the configured namespace list.
type Query struct {
	Kind      Kind   `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	// Provider is the target system of a module (e.g. "aws"). Unused for providers.
	Provider string `json:"provider,omitempty"`
	// Version is an optional version constraint such as "~> 5.0".
	Version string `json:"version,omitempty"`
}

// ProviderQuery builds a provider query.
func ProviderQuery(namespace, name, constraint string) Query {
	return Query{Kind: KindProvider, Namespace: namespace, Name: name, Version: constraint}
}

// ModuleQuery builds a module query.
func ModuleQuery(namespace, name, provider, constraint string) Query {
	return Query{Kind: KindModule, Namespace: namespace, Name: name, Provider: provider, Version: constraint}
}

// WithNamespace returns a copy of q pinned to ns.
func (q Query) WithNamespace(ns string) Query {
	q.Namespace = ns
	return q
}

// Address renders the query as a registry source address, using "*" for an
// unset namespace.
func (q Query) Address() string {
	ns := q.Namespace
	if ns == "" {
		ns = "*"
	}
	if q.Kind == KindModule {
		return ns + "/" + q.Name + "/" + q.Provider
	}
	return ns + "/" + q.Name
}

func (q Query) String() string {
	s := string(q.Kind) + " " + q.Address()
	if q.Version != "" {
		s += " (" + q.Version + ")"
	}
	return s
}

// Validate checks that the required fields are present.
func (q Query) Validate() error {
	switch q.Kind {
	case KindProvider:
	case KindModule:
		if q.Provider == "" {
			return fmt.Errorf("module query %q: provider is required", q.Name)
		}
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
	if q.Name == "" {
		return fmt.Errorf("%s query: name is required", q.Kind)
	}
	if strings.Contains(q.Name, "/") || strings.Contains(q.Namespace, "/") {
		return fmt.Errorf("%s query: namespace and name must not contain '/'", q.Kind)
	}
	return nil
}

// ParseProviderSource parses "name", "namespace/name" or
// "hostname/namespace/name" into a provider query. The hostname is dropped.
func ParseProviderSource(source, constraint string) (Query, error) {
	parts := strings.Split(strings.TrimSpace(source), "/")
	switch len(parts) {
	case 1:
		return ProviderQuery("", parts[0], constraint), nil
	case 2:
		return ProviderQuery(parts[0], parts[1], constraint), nil
	case 3:
		return ProviderQuery(parts[1], parts[2], constraint), nil
	}
	return Query{}, fmt.Errorf("invalid provider source %q", source)
}

// ParseModuleSource parses "name/provider", "namespace/name/provider" or
// "hostname/namespace/name/provider" into a module query.
func ParseModuleSource(source, constraint string) (Query, error) {
	parts := strings.Split(strings.TrimSpace(source), "/")
	switch len(parts) {
	case 2:
		return ModuleQuery("", parts[0], parts[1], constraint), nil
	case 3:
		return ModuleQuery(parts[0], parts[1], parts[2], constraint), nil
	case 4:
		return ModuleQuery(parts[1], parts[2], parts[3], constraint), nil
	}
	return Query{}, fmt.Errorf("invalid module source %q", source)
}

// Record is resolved registry metadata for one provider or module version.
type Record struct {
	Kind        Kind     `json:"kind"`
	ID          string   `json:"id"`
	Namespace   string   `json:"namespace"`
	Name        string   `json:"name"`
	Provider    string   `json:"provider,omitempty"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source,omitempty"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Downloads   int64    `json:"downloads"`
	Verified    bool     `json:"verified,omitempty"`
	Tier        string   `json:"tier,omitempty"`
	DocsURL     string   `json:"docsUrl"`
	Versions    []string `json:"versions,omitempty"`
	Inputs      int      `json:"inputs,omitempty"`
	Outputs     int      `json:"outputs,omitempty"`
	// Constraint is the version constraint the record was selected under.
	Constraint string `json:"constraint,omitempty"`
	// Attempted lists the namespaces tried, in order, when the record was
	// fetched. It ends with Namespace.
	Attempted []string `json:"-"`
}

// DocEntry is one documentation page listed for a provider version.
type DocEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Path        string `json:"path,omitempty"`
}

// ProviderDocs is the documentation index of a resolved provider version.
type ProviderDocs struct {
	Provider Record     `json:"provider"`
	Docs     []DocEntry `json:"docs"`
}

// Filter returns the entries matching category (when non-empty) and whose
// slug or title contains term (when non-empty).
func (d ProviderDocs) Filter(category, term string) []DocEntry {
	term = strings.ToLower(term)
	var out []DocEntry
	for _, e := range d.Docs {
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(e.Slug), term) &&
			!strings.Contains(strings.ToLower(e.Title), term) {
			continue
		}
		out = append(out, e)
	}
	return out
}
