package main

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Score module cohesion, coupling and structure",
	Long: `Load the Terraform configuration in dir (default: current directory),
build its dependency graph and report a health score, issues and refactoring
suggestions for every module boundary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Print the resource dependency graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGraph,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(graphCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := newContext()
	defer stop()
	res, err := rt.engine.AnalyzeDir(ctx, dirArg(args))
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runGraph(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := newContext()
	defer stop()
	res, err := rt.engine.GraphDir(ctx, dirArg(args))
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
