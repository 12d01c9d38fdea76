package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for gauntlet
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gauntlet",
		Short: "Concurrent feature-evaluation harness",
		Long: `Gauntlet runs a plugin-defined feature against a YAML test suite,
evaluates every output with deterministic static checks and an LLM judge
in parallel, and aggregates the scores across repeated runs.

Each test case runs in its own pipeline with an individual timeout, so a
slow or failing case never blocks its siblings. Results are published as
CSV reports and optionally into a SQLite results store.

Configuration is loaded from .gauntlet/config.yaml if present.
CLI flags override configuration file settings.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewTestCommand())
	cmd.AddCommand(NewConfigCommand())

	return cmd
}
