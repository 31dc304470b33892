// Package envelope provides the standard wrapper for MCP tool responses.
// Every response carries the same metadata about confidence, cache use,
// truncation, warnings and suggested next calls.
package envelope

import "tfmcp/internal/errors"

// ConfidenceTier represents the quality tier of results.
type ConfidenceTier string

const (
	// TierHigh indicates data fetched from the registry or read from a clean
	// configuration.
	TierHigh ConfidenceTier = "high"
	// TierMedium indicates a namespace fallback match or a configuration
	// with unresolved references.
	TierMedium ConfidenceTier = "medium"
	// TierLow indicates partial results.
	TierLow ConfidenceTier = "low"
	// TierSpeculative indicates results that mostly failed.
	TierSpeculative ConfidenceTier = "speculative"
)

// Confidence describes result quality.
type Confidence struct {
	Score   float64        `json:"score"`             // 0.0 - 1.0
	Tier    ConfidenceTier `json:"tier"`              // high, medium, low, speculative
	Reasons []string       `json:"reasons,omitempty"` // why this tier
}

// Provenance describes where the data came from.
type Provenance struct {
	Source     string   `json:"source"`               // "registry", "cache" or "config"
	Namespaces []string `json:"namespaces,omitempty"` // fallback order consulted
}

// Truncation describes result trimming.
type Truncation struct {
	IsTruncated bool   `json:"isTruncated"`
	Shown       int    `json:"shown,omitempty"`
	Total       int    `json:"total,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// CacheInfo describes cache status for this response.
type CacheInfo struct {
	Hit bool `json:"hit"`
	// Partial counts cache hits when only some entries of a batch hit.
	Partial int `json:"partial,omitempty"`
}

// Meta holds response metadata.
type Meta struct {
	RequestID  string      `json:"requestId,omitempty"`
	DurationMs int64       `json:"durationMs,omitempty"`
	Confidence *Confidence `json:"confidence,omitempty"`
	Provenance *Provenance `json:"provenance,omitempty"`
	Truncation *Truncation `json:"truncation,omitempty"`
	Cache      *CacheInfo  `json:"cache,omitempty"`
}

// SuggestedCall represents a recommended follow-up tool call.
type SuggestedCall struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

// Warning represents a non-fatal issue.
type Warning struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Response is the standard envelope for all MCP tool responses.
type Response struct {
	SchemaVersion      string            `json:"schemaVersion"`
	Data               interface{}       `json:"data"`
	Meta               *Meta             `json:"meta,omitempty"`
	Warnings           []Warning         `json:"warnings,omitempty"`
	Error              *errors.ToolError `json:"error,omitempty"`
	SuggestedNextCalls []SuggestedCall   `json:"suggestedNextCalls,omitempty"`
}

// CurrentSchemaVersion is the current envelope schema version.
const CurrentSchemaVersion = "1.0"
