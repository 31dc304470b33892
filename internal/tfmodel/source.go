package tfmodel

import (
	"regexp"
	"strings"

	svchost "github.com/hashicorp/terraform-svchost"
)

// SourceKind classifies a module source address.
type SourceKind string

const (
	SourceLocal    SourceKind = "local"
	SourceRegistry SourceKind = "registry"
	SourceGit      SourceKind = "git"
	SourceHTTP     SourceKind = "http"
	SourceOther    SourceKind = "other"
)

// DefaultRegistryHost is implied by three-part registry sources.
const DefaultRegistryHost = "registry.terraform.io"

// SourceInfo is a parsed module source.
type SourceInfo struct {
	Kind      SourceKind `json:"kind"`
	Host      string     `json:"host,omitempty"`
	Namespace string     `json:"namespace,omitempty"`
	Name      string     `json:"name,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	// Subdir is the "//path" suffix of a registry source.
	Subdir string `json:"subdir,omitempty"`
}

// IsRegistry reports whether the source is served by a module registry.
func (s SourceInfo) IsRegistry() bool { return s.Kind == SourceRegistry }

// IsPublicRegistry reports whether the source is on the public registry.
func (s SourceInfo) IsPublicRegistry() bool {
	return s.Kind == SourceRegistry && s.Host == DefaultRegistryHost
}

var (
	registryNamePattern     = regexp.MustCompile(`^[0-9A-Za-z](?:[0-9A-Za-z_-]{0,62}[0-9A-Za-z])?$`)
	registryProviderPattern = regexp.MustCompile(`^[0-9a-z]{1,64}$`)
	remotePrefixes          = map[string]SourceKind{
		"git::":          SourceGit,
		"git@":           SourceGit,
		"github.com/":    SourceGit,
		"bitbucket.org/": SourceGit,
		"http://":        SourceHTTP,
		"https://":       SourceHTTP,
	}
)

// ParseModuleSource classifies src.
func ParseModuleSource(src string) SourceInfo {
	if strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../") {
		return SourceInfo{Kind: SourceLocal}
	}
	for prefix, kind := range remotePrefixes {
		if strings.HasPrefix(src, prefix) {
			return SourceInfo{Kind: kind}
		}
	}
	if strings.Contains(src, "::") {
		return SourceInfo{Kind: SourceOther}
	}

	addr, subdir := src, ""
	if i := strings.Index(src, "//"); i >= 0 {
		addr, subdir = src[:i], strings.TrimPrefix(src[i+2:], "/")
	}
	parts := strings.Split(addr, "/")
	host := DefaultRegistryHost
	switch len(parts) {
	case 3:
	case 4:
		h, err := svchost.ForComparison(parts[0])
		if err != nil {
			return SourceInfo{Kind: SourceOther}
		}
		host = h.String()
		parts = parts[1:]
	default:
		return SourceInfo{Kind: SourceOther}
	}
	if !registryNamePattern.MatchString(parts[0]) || !registryNamePattern.MatchString(parts[1]) ||
		!registryProviderPattern.MatchString(parts[2]) {
		return SourceInfo{Kind: SourceOther}
	}
	return SourceInfo{
		Kind:      SourceRegistry,
		Host:      host,
		Namespace: parts[0],
		Name:      parts[1],
		Provider:  parts[2],
		Subdir:    subdir,
	}
}
