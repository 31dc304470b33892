package main

import (
	"github.com/spf13/cobra"

	"tfmcp/internal/errors"
	"tfmcp/internal/registry"
)

var (
	versionConstraint string
	namespaceFlag     string
	listVersions      bool
	searchModules     bool
	searchLimit       int
)

var providerCmd = &cobra.Command{
	Use:   "provider <name|namespace/name>",
	Short: "Resolve a provider in the registry",
	Long: `Resolve a provider. Without a namespace the configured namespaces are
tried in order (default: hashicorp, terraform-providers, community).

Examples:
  tfmcp provider aws
  tfmcp provider hashicorp/aws --version "~> 5.0"
  tfmcp provider widget --namespace acme
  tfmcp provider aws --versions`,
	Args: cobra.ExactArgs(1),
	RunE: runProvider,
}

var moduleCmd = &cobra.Command{
	Use:   "module <namespace/name/provider>",
	Short: "Resolve a module in the registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runModule,
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the registry for providers or modules",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	for _, c := range []*cobra.Command{providerCmd, moduleCmd} {
		c.Flags().StringVar(&versionConstraint, "version", "", "Version constraint, e.g. \"~> 5.0\"")
		c.Flags().BoolVar(&listVersions, "versions", false, "List published versions instead of resolving")
		rootCmd.AddCommand(c)
	}
	providerCmd.Flags().StringVar(&namespaceFlag, "namespace", "", "Namespace to use when the name has none")

	searchCmd.Flags().BoolVar(&searchModules, "modules", false, "Search modules instead of providers")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum results (max 100)")
	rootCmd.AddCommand(searchCmd)
}

func runProvider(cmd *cobra.Command, args []string) error {
	q, err := registry.ParseProviderSource(args[0], versionConstraint)
	if err != nil {
		return errors.New(errors.InvalidParameter, "invalid provider source", err)
	}
	if q.Namespace == "" && namespaceFlag != "" {
		q = q.WithNamespace(namespaceFlag)
	}
	return resolveAndPrint(cmd, q)
}

func runModule(cmd *cobra.Command, args []string) error {
	q, err := registry.ParseModuleSource(args[0], versionConstraint)
	if err != nil {
		return errors.New(errors.InvalidParameter, "invalid module source", err)
	}
	return resolveAndPrint(cmd, q)
}

func resolveAndPrint(cmd *cobra.Command, q registry.Query) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := newContext()
	defer stop()

	if listVersions {
		res, err := rt.engine.Versions(ctx, q)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	}
	if q.Kind == registry.KindModule {
		res, err := rt.engine.ResolveModule(ctx, q)
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	}
	res, err := rt.engine.ResolveProvider(ctx, q)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx, stop := newContext()
	defer stop()

	search := rt.engine.SearchProviders
	if searchModules {
		search = rt.engine.SearchModules
	}
	res, err := search(ctx, args[0], searchLimit)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}
