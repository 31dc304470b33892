// Package output provides deterministic encoding and ordering for tool
// responses.
//
// Identical requests produce byte-identical JSON so that responses can be
// compared in snapshot tests and diffed between runs.
//
// # Encoding Rules
//
//  1. Object keys are sorted alphabetically.
//  2. Floats are rounded to at most 6 decimal places.
//  3. Nil values, empty collections and omitempty zero values are dropped.
//  4. Values implementing json.Marshaler are encoded as they choose.
//
// # Ordering Contract
//
//   - drilldowns: relevanceScore DESC, label ASC
//
// # Snapshot Testing
//
// NormalizeForSnapshot and CompareSnapshots strip the time-varying fields
// listed in SnapshotExcludeFields before comparing.
package output
