package envelope

import (
	"strings"

	"tfmcp/internal/errors"
	"tfmcp/internal/output"
	"tfmcp/internal/query"
)

// Builder constructs Response envelopes using a fluent API.
type Builder struct {
	resp *Response
}

// New creates a new envelope builder.
func New() *Builder {
	return &Builder{resp: &Response{SchemaVersion: CurrentSchemaVersion}}
}

func (b *Builder) meta() *Meta {
	if b.resp.Meta == nil {
		b.resp.Meta = &Meta{}
	}
	return b.resp.Meta
}

// Data sets the tool-specific payload.
func (b *Builder) Data(data interface{}) *Builder {
	b.resp.Data = data
	return b
}

// RequestID tags the response with the audit request id.
func (b *Builder) RequestID(id string) *Builder {
	b.meta().RequestID = id
	return b
}

// Duration records how long the call took.
func (b *Builder) Duration(ms int64) *Builder {
	b.meta().DurationMs = ms
	return b
}

// FromProvenance populates cache and source metadata from a registry
// answer. An answer found through namespace fallback is medium confidence
// since the first matching namespace may not be the intended publisher.
func (b *Builder) FromProvenance(p *query.Provenance, resolvedNamespace string) *Builder {
	if p == nil {
		return b
	}
	m := b.meta()
	source := "registry"
	if p.Cached {
		source = "cache"
	}
	m.Provenance = &Provenance{Source: source, Namespaces: p.Namespaces}
	m.Cache = &CacheInfo{Hit: p.Cached}
	if p.DurationMs > 0 && m.DurationMs == 0 {
		m.DurationMs = p.DurationMs
	}

	score, reasons := 1.0, []string(nil)
	if p.Cached {
		score = 0.95
		reasons = append(reasons, "cached")
	}
	if len(p.Namespaces) > 0 && resolvedNamespace != "" && resolvedNamespace != p.Namespaces[0] {
		score -= 0.2
		reasons = append(reasons, "resolved-via-fallback:"+resolvedNamespace)
	}
	b.Confidence(score, reasons...)

	for _, w := range p.Warnings {
		b.Warning(w)
	}
	return b
}

// FromBatch populates metadata from a batch result.
func (b *Builder) FromBatch(r *query.BatchResult) *Builder {
	if r == nil {
		return b
	}
	b.FromProvenance(&r.Provenance, "")
	m := b.meta()
	if r.Cached > 0 && r.Cached < len(r.Entries) {
		m.Cache.Partial = r.Cached
	}
	var reasons []string
	if r.Failed > 0 {
		reasons = append(reasons, "partial-failure")
	}
	return b.Confidence(BatchScore(r.Resolved, len(r.Entries)), reasons...)
}

// Confidence sets the confidence score and derives its tier.
func (b *Builder) Confidence(score float64, reasons ...string) *Builder {
	b.meta().Confidence = &Confidence{
		Score:   output.RoundFloat(score),
		Tier:    ScoreToTier(score),
		Reasons: reasons,
	}
	return b
}

// FromConfig marks data computed from local configuration files.
func (b *Builder) FromConfig(loadWarnings, danglingRefs int) *Builder {
	b.meta().Provenance = &Provenance{Source: "config"}
	var reasons []string
	if loadWarnings > 0 {
		reasons = append(reasons, "load-errors")
	}
	if danglingRefs > 0 {
		reasons = append(reasons, "dangling-references")
	}
	return b.Confidence(AnalysisScore(loadWarnings, danglingRefs), reasons...)
}

// WithTruncation adds truncation metadata.
func (b *Builder) WithTruncation(truncated bool, shown, total int, reason string) *Builder {
	if !truncated {
		return b
	}
	b.meta().Truncation = &Truncation{
		IsTruncated: true,
		Shown:       shown,
		Total:       total,
		Reason:      reason,
	}
	return b
}

// SuggestCalls converts drilldowns to structured suggested calls, most
// relevant first.
func (b *Builder) SuggestCalls(drilldowns []output.Drilldown) *Builder {
	if len(drilldowns) == 0 {
		return b
	}
	sorted := append([]output.Drilldown(nil), drilldowns...)
	output.SortDrilldowns(sorted)
	for _, d := range sorted {
		if call := ParseDrilldown(d); call != nil {
			b.resp.SuggestedNextCalls = append(b.resp.SuggestedNextCalls, *call)
		}
	}
	return b
}

// Warning adds a warning message.
func (b *Builder) Warning(msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Message: msg})
	return b
}

// WarningWithCode adds a warning with a code.
func (b *Builder) WarningWithCode(code, msg string) *Builder {
	b.resp.Warnings = append(b.resp.Warnings, Warning{Code: code, Message: msg})
	return b
}

// Error records err as a coded tool error.
func (b *Builder) Error(err error) *Builder {
	if err != nil {
		b.resp.Error = errors.FromError(err)
	}
	return b
}

// Build returns the completed response envelope.
func (b *Builder) Build() *Response {
	return b.resp
}

// ParseDrilldown converts a drilldown to a SuggestedCall. The query is
// "toolName positional --flag=value".
func ParseDrilldown(d output.Drilldown) *SuggestedCall {
	parts := strings.Fields(d.Query)
	if len(parts) == 0 {
		return nil
	}

	tool := parts[0]
	params := make(map[string]interface{})
	position := 0
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "--") {
			kv := strings.SplitN(strings.TrimPrefix(part, "--"), "=", 2)
			if len(kv) == 2 {
				params[kv[0]] = kv[1]
			}
			continue
		}
		params[inferPositionalParam(tool, position)] = part
		position++
	}

	return &SuggestedCall{Tool: tool, Params: params, Reason: d.Label}
}

// inferPositionalParam names the positional argument of a tool.
func inferPositionalParam(tool string, position int) string {
	toolParams := map[string][]string{
		"resolveProvider":      {"name"},
		"resolveModule":        {"source"},
		"listVersions":         {"source"},
		"getProviderDocs":      {"name"},
		"searchProviders":      {"query"},
		"searchModules":        {"query"},
		"buildDependencyGraph": {"dir"},
		"analyzeModuleHealth":  {"dir"},
		"suggestRefactoring":   {"dir", "module"},
		"resolveDependencies":  {"dir"},
	}
	if params, ok := toolParams[tool]; ok && position < len(params) {
		return params[position]
	}
	return "arg"
}

// Operational creates a simple envelope for operational tools.
func Operational(data interface{}) *Response {
	return &Response{
		SchemaVersion: CurrentSchemaVersion,
		Data:          data,
		Meta: &Meta{
			Confidence: &Confidence{Score: 1.0, Tier: TierHigh},
		},
	}
}
