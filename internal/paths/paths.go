// Package paths locates tfmcp's state directory and normalizes module paths
// relative to a configuration root.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateDirName is created under the configuration root.
	StateDirName = ".tfmcp"
	// LogsSubdir holds log files inside the state directory.
	LogsSubdir = "logs"
	// HomeEnvVar overrides the state directory location.
	HomeEnvVar = "TFMCP_HOME"
)

// StateDir returns the state directory for root. TFMCP_HOME wins when set.
func StateDir(root string) string {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home
	}
	return filepath.Join(root, StateDirName)
}

// LogsDir returns the directory log files are written to.
func LogsDir(root string) string {
	return filepath.Join(StateDir(root), LogsSubdir)
}

// EnsureLogsDir creates the logs directory and returns its path.
func EnsureLogsDir(root string) (string, error) {
	dir := LogsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// MCPLogPath is the MCP server log.
func MCPLogPath(root string) string { return filepath.Join(LogsDir(root), "mcp.log") }

// CLILogPath is the log of one-shot CLI commands.
func CLILogPath(root string) string { return filepath.Join(LogsDir(root), "cli.log") }

// AuditLogPath is the JSON-lines record of tool calls.
func AuditLogPath(root string) string { return filepath.Join(LogsDir(root), "audit.log") }

// CanonicalizePath converts an absolute path to a root-relative path with
// forward slashes, resolving symlinks where the path exists.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRoot checks if a path is inside root.
func IsWithinRoot(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts OS separators to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// JoinRootPath joins root with a canonical forward-slash path.
func JoinRootPath(root string, canonicalPath string) string {
	parts := strings.Split(strings.ReplaceAll(canonicalPath, "\\", "/"), "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
