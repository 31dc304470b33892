package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tfmcp/internal/output"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTOML  OutputFormat = "toml"
	FormatHuman OutputFormat = "human"
)

// parseFormat validates the --format flag.
func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatTOML, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q (valid: json, yaml, toml, human)", s)
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatTOML:
		return formatTOML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := output.DeterministicEncodeIndented(resp, "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// genericTree converts resp to maps and slices keyed by its JSON field
// names, so every format uses the same names.
func genericTree(resp interface{}) (interface{}, error) {
	data, err := output.DeterministicEncode(resp)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return convertNumbers(tree), nil
}

// convertNumbers turns json.Number into int64 or float64 so encoders other
// than JSON print plain numbers.
func convertNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = convertNumbers(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = convertNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func formatYAML(resp interface{}) (string, error) {
	tree, err := genericTree(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// dropNulls removes null values, which TOML cannot represent.
func dropNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(val)
		}
		return t
	case []interface{}:
		out := t[:0]
		for _, val := range t {
			if val != nil {
				out = append(out, dropNulls(val))
			}
		}
		return out
	default:
		return v
	}
}

func formatTOML(resp interface{}) (string, error) {
	tree, err := genericTree(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal TOML: %w", err)
	}
	tree = dropNulls(tree)
	if _, ok := tree.(map[string]interface{}); !ok {
		tree = map[string]interface{}{"result": tree}
	}
	data, err := toml.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return string(data), nil
}
