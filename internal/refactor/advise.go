// Package refactor turns health issues into refactoring suggestions with
// migration steps.
package refactor

import (
	"fmt"
	"sort"
	"strings"

	"tfmcp/internal/health"
)

var suggestionFor = map[health.IssueKind]health.SuggestionKind{
	health.ExcessiveVariables:   health.SplitModule,
	health.LogicalCohesion:      health.SplitModule,
	health.DeepHierarchy:        health.FlattenHierarchy,
	health.MissingDocumentation: health.AddDescriptions,
	health.PublicModuleRisk:     health.WrapPublicModule,
	health.CyclicDependency:     health.BreakCycle,
	health.ContentCoupling:      health.RouteThroughOutputs,
	health.DanglingReference:    health.FixReference,
}

// Advise maps the issues of a report to suggestions. Issues of kinds that
// share a suggestion are merged into one; suggestions are ordered by the
// highest severity that triggered them.
func Advise(r health.Report) []health.Suggestion {
	byKind := map[health.SuggestionKind]*health.Suggestion{}
	var order []health.SuggestionKind

	for _, issue := range r.Issues {
		kind, ok := suggestionFor[issue.Kind]
		if !ok {
			continue
		}
		s, seen := byKind[kind]
		if !seen {
			s = &health.Suggestion{Kind: kind, Module: r.Module, Severity: issue.Severity}
			byKind[kind] = s
			order = append(order, kind)
		}
		if issue.Severity.Rank() > s.Severity.Rank() {
			s.Severity = issue.Severity
		}
		s.Targets = appendUnique(s.Targets, issue.Targets...)
	}

	out := make([]health.Suggestion, 0, len(order))
	for _, kind := range order {
		s := byKind[kind]
		fill(s, r)
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

func fill(s *health.Suggestion, r health.Report) {
	switch s.Kind {
	case health.SplitModule:
		s.Targets = splitCandidates(r.Groups)
		s.Title = fmt.Sprintf("Split %s into smaller modules", r.Module)
		s.Steps = []string{
			"Identify a cohesive subset of resources: " + describeGroups(r.Groups),
			"Extract the subset into a new module directory with its own variables and outputs",
			"Replace the inline resources with a module call to the new module",
			"Re-wire cross-references through the new module's variables and outputs",
			"Run terraform state mv (or add moved blocks) so existing resources are not recreated",
		}

	case health.FlattenHierarchy:
		s.Targets = []string{r.Module}
		s.Title = fmt.Sprintf("Flatten the module hierarchy above %s", r.Module)
		s.Steps = []string{
			fmt.Sprintf("Find intermediate modules between root and %s that only pass variables through", r.Module),
			"Collapse those pass-through module calls into their parent",
			"Re-point consumers at the module that actually produces each value",
			"Add moved blocks for every relocated resource address",
		}

	case health.AddDescriptions:
		s.Title = fmt.Sprintf("Document %d variables and outputs in %s", len(s.Targets), r.Module)
		s.Steps = []string{
			"Add a description to each of: " + strings.Join(s.Targets, ", "),
			"Describe units, allowed values and defaults where they are not obvious",
		}

	case health.WrapPublicModule:
		s.Title = "Wrap registry modules in an organization-owned module"
		s.Steps = []string{
			"Create a wrapper module for each of: " + strings.Join(s.Targets, ", "),
			"Pin the registry module version inside the wrapper",
			"Expose only the variables and outputs your configurations need",
			"Replace the direct registry calls with calls to the wrapper",
		}

	case health.BreakCycle:
		s.Title = fmt.Sprintf("Break the dependency cycle in %s", r.Module)
		s.Steps = []string{
			"Inspect the cycle: " + strings.Join(s.Targets, " -> "),
			"Remove the depends_on entry or reference that closes the loop",
			"Move the shared value into a variable, local or separate resource both sides can read",
		}

	case health.RouteThroughOutputs:
		s.Title = fmt.Sprintf("Route cross-module references in %s through outputs", r.Module)
		s.Steps = []string{
			"Declare an output in the owning module for each addressed attribute: " + strings.Join(s.Targets, ", "),
			"Replace the direct resource address with module.<name>.<output>",
			"Keep internal resources of other modules out of this module's expressions",
		}

	case health.FixReference:
		s.Title = fmt.Sprintf("Fix references to undeclared objects in %s", r.Module)
		s.Steps = []string{
			"Declare or correct each missing target: " + strings.Join(s.Targets, ", "),
			"Run terraform validate to confirm the references resolve",
		}
	}
}

// splitCandidates names the resource families of a module, largest first.
func splitCandidates(groups []health.ResourceGroup) []string {
	sorted := append([]health.ResourceGroup(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Resources) > len(sorted[j].Resources)
	})
	out := make([]string, 0, len(sorted))
	for _, g := range sorted {
		out = append(out, g.Family)
	}
	return out
}

func describeGroups(groups []health.ResourceGroup) string {
	if len(groups) == 0 {
		return "group variables by the feature they configure"
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%s (%s)", g.Family, strings.Join(g.Resources, ", ")))
	}
	return strings.Join(parts, "; ")
}

func appendUnique(list []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, have := range list {
			if have == it {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, it)
		}
	}
	return list
}
