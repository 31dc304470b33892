package registry

import (
	"fmt"
	"sort"

	version "github.com/hashicorp/go-version"
)

// SelectVersion returns the newest version in available satisfying
// constraint. Prereleases are only chosen when the constraint names one
// explicitly. ok is false when nothing matches.
func SelectVersion(available []string, constraint string) (string, bool, error) {
	cs, err := version.NewConstraint(constraint)
	if err != nil {
		return "", false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}

	versions := make([]*version.Version, 0, len(available))
	for _, raw := range available {
		v, err := version.NewVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(version.Collection(versions)))

	for _, v := range versions {
		if cs.Check(v) {
			return v.Original(), true, nil
		}
	}
	return "", false, nil
}

// SortVersions orders versions newest first. Unparseable entries sort last
// in their original order.
func SortVersions(available []string) []string {
	parsed := make([]*version.Version, 0, len(available))
	var rest []string
	for _, raw := range available {
		if v, err := version.NewVersion(raw); err == nil {
			parsed = append(parsed, v)
		} else {
			rest = append(rest, raw)
		}
	}
	sort.Sort(sort.Reverse(version.Collection(parsed)))
	out := make([]string, 0, len(available))
	for _, v := range parsed {
		out = append(out, v.Original())
	}
	return append(out, rest...)
}

// ValidateConstraint reports whether constraint parses.
func ValidateConstraint(constraint string) error {
	if constraint == "" {
		return nil
	}
	if _, err := version.NewConstraint(constraint); err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return nil
}
