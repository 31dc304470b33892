package output

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SnapshotExcludeFields lists dotted paths that vary between runs.
var SnapshotExcludeFields = []string{
	"meta.durationMs",
	"data.durationMs",
	"meta.requestId",
}

// NormalizeForSnapshot removes SnapshotExcludeFields from a JSON object and
// re-encodes it deterministically.
func NormalizeForSnapshot(data []byte) ([]byte, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	for _, field := range SnapshotExcludeFields {
		removeNestedField(parsed, field)
	}
	return DeterministicEncode(parsed)
}

// CompareSnapshots reports whether a and b are equal once time-varying
// fields are removed. The string explains a mismatch.
func CompareSnapshots(a, b []byte) (bool, string) {
	na, err := NormalizeForSnapshot(a)
	if err != nil {
		return false, "failed to normalize snapshot A: " + err.Error()
	}
	nb, err := NormalizeForSnapshot(b)
	if err != nil {
		return false, "failed to normalize snapshot B: " + err.Error()
	}
	if !bytes.Equal(na, nb) {
		return false, "snapshots differ"
	}
	return true, ""
}

func removeNestedField(data map[string]interface{}, path string) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '.' })
	if len(parts) == 0 {
		return
	}
	current := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := current[p].(map[string]interface{})
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
