package tfmodel

import (
	"sort"
	"strings"

	svchost "github.com/hashicorp/terraform-svchost"

	"tfmcp/internal/registry"
)

// builtinProviders are served by Terraform itself, not by a registry.
var builtinProviders = map[string]bool{"terraform": true}

// RegistryQueries derives the registry lookups needed to resolve c's
// dependencies: one provider query per distinct required provider (or
// unrequired resource type prefix) and one module query per registry module
// call. Sources are kept when they live on the public registry or on one of
// hosts; unqualified provider names are left to namespace fallback.
// Providers come first, each group ordered by address.
func (c *Config) RegistryQueries(hosts ...string) []registry.Query {
	accepted := map[string]bool{DefaultRegistryHost: true}
	for _, h := range hosts {
		accepted[normalizeHost(h)] = true
	}
	seen := map[string]bool{}
	var providers, modules []registry.Query
	add := func(list *[]registry.Query, q registry.Query) {
		key := string(q.Kind) + " " + q.Address() + " " + q.Version
		if seen[key] {
			return
		}
		seen[key] = true
		*list = append(*list, q)
	}

	for _, m := range c.Modules {
		required := map[string]bool{}
		for _, req := range m.RequiredProviders {
			required[req.Name] = true
			if builtinProviders[req.Name] {
				continue
			}
			q, ok := providerQuery(req, accepted)
			if ok {
				add(&providers, q)
			}
		}
		for _, r := range m.Resources {
			name := r.ProviderName()
			if required[name] || builtinProviders[name] {
				continue
			}
			add(&providers, registry.ProviderQuery("", name, ""))
		}
		for _, call := range m.ModuleCalls {
			si := call.SourceInfo
			if !si.IsRegistry() || !accepted[normalizeHost(si.Host)] {
				continue
			}
			add(&modules, registry.ModuleQuery(si.Namespace, si.Name, si.Provider, call.Version))
		}
	}

	sortQueries(providers)
	sortQueries(modules)
	return append(providers, modules...)
}

func providerQuery(req ProviderRequirement, accepted map[string]bool) (registry.Query, bool) {
	constraint := strings.Join(req.Constraints, ", ")
	if req.Source == "" {
		return registry.ProviderQuery("", req.Name, constraint), true
	}
	sourceHost := DefaultRegistryHost
	if parts := strings.Split(req.Source, "/"); len(parts) == 3 {
		sourceHost = parts[0]
	}
	if !accepted[normalizeHost(sourceHost)] {
		return registry.Query{}, false
	}
	q, err := registry.ParseProviderSource(req.Source, constraint)
	if err != nil {
		return registry.Query{}, false
	}
	return q, true
}

func normalizeHost(h string) string {
	h = strings.TrimPrefix(strings.TrimPrefix(h, "https://"), "http://")
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	if h == "" {
		return DefaultRegistryHost
	}
	if n, err := svchost.ForComparison(h); err == nil {
		return n.String()
	}
	return strings.ToLower(h)
}

func sortQueries(qs []registry.Query) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].Address() != qs[j].Address() {
			return qs[i].Address() < qs[j].Address()
		}
		return qs[i].Version < qs[j].Version
	})
}
