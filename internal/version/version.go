// Package version holds build information for tfmcp.
package version

import "runtime"

// Set at build time:
// go build -ldflags "-X tfmcp/internal/version.Version=0.3.0 -X tfmcp/internal/version.Commit=abc123"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with a short commit hash when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information.
func Full() string {
	return "tfmcp version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}

// UserAgent is sent with every registry request.
func UserAgent() string {
	return "tfmcp/" + Version + " (+https://registry.terraform.io)"
}
