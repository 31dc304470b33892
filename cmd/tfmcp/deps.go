package main

import (
	"github.com/spf13/cobra"

	"tfmcp/internal/query"
)

var depsCmd = &cobra.Command{
	Use:   "deps [dir]",
	Short: "Resolve every registry provider and module a configuration uses",
	Long: `Load the Terraform configuration in dir and resolve its required providers,
undeclared provider prefixes of resources, and registry module calls in one
concurrent batch. Failed entries are reported without failing the others.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := newContext()
	defer stop()
	res, err := rt.engine.ResolveDependencies(ctx, dirArg(args), query.BatchOptions{})
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
