package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tfmcp/internal/health"
	"tfmcp/internal/output"
	"tfmcp/internal/query"
	"tfmcp/internal/registry"
)

const (
	colorGreen  = "#3fb950"
	colorYellow = "#d29922"
	colorRed    = "#f85149"
	colorGray   = "#8b949e"
	colorBlue   = "#58a6ff"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorBlue))
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorGray)).Padding(0, 1)
)

// formatHuman renders known result types for a terminal and falls back to
// JSON for anything else.
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *query.ResolveResult:
		return formatResolveHuman(v), nil
	case *query.BatchResult:
		return formatBatchHuman(v), nil
	case *query.DependencyResult:
		return formatDependenciesHuman(v), nil
	case *query.VersionsResult:
		return formatVersionsHuman(v), nil
	case *query.AnalysisResult:
		return formatAnalysisHuman(v), nil
	case *query.GraphResult:
		return formatGraphHuman(v), nil
	default:
		return formatJSON(resp)
	}
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return okStyle
	case score >= 50:
		return warnStyle
	default:
		return badStyle
	}
}

func severityStyle(s health.Severity) lipgloss.Style {
	switch s {
	case health.High:
		return badStyle
	case health.Medium:
		return warnStyle
	default:
		return mutedStyle
	}
}

func recordAddress(rec registry.Record) string {
	addr := rec.Namespace + "/" + rec.Name
	if rec.Kind == registry.KindModule {
		addr += "/" + rec.Provider
	}
	return addr
}

func formatResolveHuman(r *query.ResolveResult) string {
	rec := r.Record
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render(string(rec.Kind)+" "+recordAddress(rec)), okStyle.Render(rec.Version))

	rows := [][2]string{
		{"Description", rec.Description},
		{"Source", rec.Source},
		{"Published", rec.PublishedAt},
		{"Downloads", fmt.Sprintf("%d", rec.Downloads)},
		{"Tier", rec.Tier},
		{"Docs", rec.DocsURL},
	}
	if rec.Constraint != "" {
		rows = append(rows, [2]string{"Constraint", rec.Constraint})
	}
	var body strings.Builder
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&body, "%s %s\n", headingStyle.Render(fmt.Sprintf("%-11s", row[0])), row[1])
	}
	b.WriteString(boxStyle.Render(strings.TrimRight(body.String(), "\n")))
	b.WriteString("\n")

	origin := "registry"
	if r.Provenance.Cached {
		origin = "cache"
	}
	line := fmt.Sprintf("from %s in %dms", origin, r.Provenance.DurationMs)
	if len(r.Provenance.Namespaces) > 0 {
		line += ", namespaces tried in order: " + strings.Join(r.Provenance.Namespaces, ", ")
	}
	b.WriteString(mutedStyle.Render(line) + "\n")
	return b.String()
}

func formatBatchHuman(r *query.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Batch resolution"),
		mutedStyle.Render(fmt.Sprintf("%d resolved, %d failed, %d cached", r.Resolved, r.Failed, r.Cached)))
	for _, e := range r.Entries {
		if e.Record != nil {
			cached := ""
			if e.Cached {
				cached = mutedStyle.Render(" (cached)")
			}
			fmt.Fprintf(&b, "  %s %-45s %s%s\n", okStyle.Render("✓"), e.Query.String(), e.Record.Version, cached)
			continue
		}
		msg := ""
		if e.Error != nil {
			msg = string(e.Error.Code) + ": " + e.Error.Message
		}
		fmt.Fprintf(&b, "  %s %-45s %s\n", badStyle.Render("✗"), e.Query.String(), badStyle.Render(msg))
	}
	for _, w := range r.Provenance.Warnings {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("!"), w)
	}
	return b.String()
}

func formatDependenciesHuman(r *query.DependencyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Dependencies of"), r.Root)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("!"), w)
	}
	b.WriteString("\n")
	if r.Batch != nil && len(r.Batch.Entries) > 0 {
		b.WriteString(formatBatchHuman(r.Batch))
	}
	return b.String()
}

func formatVersionsHuman(r *query.VersionsResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Versions of"), r.Query.WithNamespace(r.Namespace).Address())
	for _, v := range r.Versions {
		marker := "  "
		if v == r.Selected {
			marker = okStyle.Render("→ ")
		}
		fmt.Fprintf(&b, "%s%s\n", marker, v)
	}
	if r.Query.Version != "" && r.Selected == "" {
		fmt.Fprintf(&b, "%s no version satisfies %q\n", warnStyle.Render("!"), r.Query.Version)
	}
	return b.String()
}

func formatAnalysisHuman(r *query.AnalysisResult) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Module health for"), r.Root)
	fmt.Fprintf(&b, "%s\n\n", mutedStyle.Render(fmt.Sprintf(
		"%d modules, %d resources, average score %s, lowest %d, %d/%d/%d high/medium/low issues",
		s.Modules, s.Resources, output.FormatFloat(s.AverageScore), s.LowestScore,
		s.Issues[health.High], s.Issues[health.Medium], s.Issues[health.Low])))

	for _, rep := range r.Reports {
		fmt.Fprintf(&b, "%s %s  %s / %s\n",
			scoreStyle(rep.Score).Render(fmt.Sprintf("%3d", rep.Score)),
			headingStyle.Render(rep.Module),
			rep.Cohesion.Class, rep.Coupling.Class)
		for _, i := range rep.Issues {
			fmt.Fprintf(&b, "      %s %s\n", severityStyle(i.Severity).Render(fmt.Sprintf("[%s]", i.Severity)), i.Description)
		}
		for _, sg := range rep.Suggestions {
			fmt.Fprintf(&b, "      %s %s\n", okStyle.Render("→"), sg.Title)
			for _, step := range sg.Steps {
				fmt.Fprintf(&b, "          %s\n", mutedStyle.Render("- "+step))
			}
		}
	}

	if len(r.Couplings) > 0 {
		b.WriteString("\n" + headingStyle.Render("Couplings") + "\n")
		for _, c := range r.Couplings {
			fmt.Fprintf(&b, "  %s ↔ %s  %s (%s, %d crossings)\n", c.A, c.B, c.Class, output.FormatFloat(c.Strength), c.Crossings)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("!"), w)
	}
	return b.String()
}

func formatGraphHuman(r *query.GraphResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", titleStyle.Render("Dependency graph for"), r.Root)
	b.WriteString(headingStyle.Render("Modules") + "\n")
	for _, m := range r.Modules {
		fmt.Fprintf(&b, "  %s%s %s\n", strings.Repeat("  ", m.Depth), m.Path,
			mutedStyle.Render(fmt.Sprintf("(%d resources, %d variables, %d outputs)", m.Resources, m.Variables, m.Outputs)))
	}
	if len(r.Edges) > 0 {
		b.WriteString("\n" + headingStyle.Render("Edges") + "\n")
		for _, e := range r.Edges {
			fmt.Fprintf(&b, "  %s → %s %s\n", e.From, e.To, mutedStyle.Render(string(e.Kind)))
		}
	}
	if len(r.Findings) > 0 {
		b.WriteString("\n" + headingStyle.Render("Findings") + "\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  %s %s\n", badStyle.Render(string(f.Kind)), f.Message)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("!"), w)
	}
	return b.String()
}
