package mcp

import (
	"fmt"
	"math"
	"strings"

	"tfmcp/internal/envelope"
	"tfmcp/internal/errors"
	"tfmcp/internal/output"
	"tfmcp/internal/query"
)

// ToolResponse is a convenience builder for MCP tool responses.
type ToolResponse struct {
	builder *envelope.Builder
}

// NewToolResponse creates a new tool response builder.
func NewToolResponse() *ToolResponse {
	return &ToolResponse{builder: envelope.New()}
}

// Data sets the payload.
func (t *ToolResponse) Data(data interface{}) *ToolResponse {
	t.builder.Data(data)
	return t
}

// WithProvenance adds cache and fallback metadata from a registry answer.
func (t *ToolResponse) WithProvenance(p *query.Provenance, resolvedNamespace string) *ToolResponse {
	t.builder.FromProvenance(p, resolvedNamespace)
	return t
}

// WithBatch adds metadata from a batch resolution.
func (t *ToolResponse) WithBatch(r *query.BatchResult) *ToolResponse {
	t.builder.FromBatch(r)
	return t
}

// FromConfig marks the data as computed from local files.
func (t *ToolResponse) FromConfig(warnings []string, dangling int) *ToolResponse {
	t.builder.FromConfig(len(warnings), dangling)
	for _, w := range warnings {
		t.builder.WarningWithCode("LOAD_WARNING", w)
	}
	return t
}

// WithTruncation adds truncation info.
func (t *ToolResponse) WithTruncation(truncated bool, shown, total int, reason string) *ToolResponse {
	t.builder.WithTruncation(truncated, shown, total, reason)
	return t
}

// WithDrilldowns converts drilldowns to suggested calls.
func (t *ToolResponse) WithDrilldowns(drilldowns []output.Drilldown) *ToolResponse {
	t.builder.SuggestCalls(drilldowns)
	return t
}

// Warning adds a warning message.
func (t *ToolResponse) Warning(msg string) *ToolResponse {
	t.builder.Warning(msg)
	return t
}

// Build returns the envelope response.
func (t *ToolResponse) Build() *envelope.Response {
	return t.builder.Build()
}

// OperationalResponse creates a simple envelope for operational tools.
func OperationalResponse(data interface{}) *envelope.Response {
	return envelope.Operational(data)
}

func invalidParam(name, reason string) error {
	return errors.New(errors.InvalidParameter, fmt.Sprintf("invalid parameter %q: %s", name, reason), nil).
		WithDetails(map[string]string{"parameter": name})
}

// stringParam returns params[name] trimmed, or "" when absent. A present
// value of another type is an error.
func stringParam(params map[string]interface{}, name string) (string, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParam(name, "expected a string")
	}
	return strings.TrimSpace(s), nil
}

func requireString(params map[string]interface{}, name string) (string, error) {
	s, err := stringParam(params, name)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalidParam(name, "required")
	}
	return s, nil
}

// intParam reads a JSON number as a non-negative int, returning def when
// absent.
func intParam(params map[string]interface{}, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, invalidParam(name, "expected a number")
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, invalidParam(name, "expected a non-negative integer")
	}
	return int(f), nil
}

// dirParam returns the directory argument, defaulting to the working
// directory.
func dirParam(params map[string]interface{}) (string, error) {
	dir, err := stringParam(params, "dir")
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	return dir, nil
}
