package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"tfmcp/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps tool error codes onto process exit codes: 2 for bad input,
// 3 for registry misses, 4 for transient registry failures, 1 otherwise.
func exitCode(err error) int {
	var te *errors.ToolError
	if !stderrors.As(err, &te) {
		return 1
	}
	switch te.Code {
	case errors.InvalidParameter, errors.ConfigParseError:
		return 2
	case errors.NotFound, errors.NotFoundAfterFallback:
		return 3
	case errors.RateLimited, errors.NetworkError, errors.Timeout, errors.MalformedResponse:
		return 4
	default:
		return 1
	}
}
