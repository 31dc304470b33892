package main

import (
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tfmcp/internal/health"
	"tfmcp/internal/query"
	"tfmcp/internal/registry"
)

func sampleResolve() *query.ResolveResult {
	return &query.ResolveResult{
		Record: registry.Record{
			Kind:      registry.KindProvider,
			Namespace: "hashicorp",
			Name:      "aws",
			Version:   "5.1.0",
			Downloads: 42,
		},
		Provenance: query.Provenance{Namespaces: []string{"hashicorp", "community"}, DurationMs: 3},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"toml", FormatTOML, false},
		{"human", FormatHuman, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := parseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatYAMLUsesJSONNames(t *testing.T) {
	out, err := FormatResponse(sampleResolve(), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	rec := decoded["record"].(map[string]interface{})
	if rec["namespace"] != "hashicorp" || rec["downloads"] != 42 {
		t.Errorf("record = %v", rec)
	}
}

func TestFormatTOML(t *testing.T) {
	out, err := FormatResponse(sampleResolve(), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := toml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid TOML: %v\n%s", err, out)
	}
	rec := decoded["record"].(map[string]interface{})
	if rec["version"] != "5.1.0" {
		t.Errorf("record = %v", rec)
	}
}

func TestFormatTOMLWrapsNonObjects(t *testing.T) {
	out, err := FormatResponse([]string{"a", "b"}, FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "result") {
		t.Errorf("output = %q", out)
	}
}

func TestFormatHuman(t *testing.T) {
	out, err := FormatResponse(sampleResolve(), FormatHuman)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"hashicorp/aws", "5.1.0", "namespaces tried in order: hashicorp, community"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	analysis := &query.AnalysisResult{
		Root: "/infra",
		Summary: query.Summary{
			Modules: 1, Resources: 2, AverageScore: 90, LowestScore: 90,
			Issues: map[health.Severity]int{health.Medium: 1},
		},
		Reports: []health.Report{{
			Module: "root",
			Score:  90,
			Issues: []health.Issue{{Kind: health.ExcessiveVariables, Severity: health.Medium, Description: "25 variables"}},
		}},
	}
	out, err = FormatResponse(analysis, FormatHuman)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"/infra", "root", "[medium]", "25 variables", "average score 90"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHumanFallsBackToJSON(t *testing.T) {
	out, err := FormatResponse(map[string]int{"b": 2, "a": 1}, FormatHuman)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"a": 1`) {
		t.Errorf("output = %s", out)
	}
}
