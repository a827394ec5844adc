package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docsync",
		Short: "Keep codebase summaries and docstrings in sync with the source tree",
		Long: `Docsync walks a project tree, detects which files changed since the
last run, regenerates only the affected summaries and docstrings through
an LLM, and merges child summaries bottom-up into one codebase summary.

The aggregated summary is written to DOCS.md; cache and run state live
under .docsync/ and can be version-controlled or ignored.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional .env for OPENAI_API_KEY, never required.
			_ = godotenv.Load()
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary [path]",
		Short: "Regenerate the aggregated codebase summary (DOCS.md)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunSummary,
	}
	addRunFlags(summaryCmd)

	docstringsCmd := &cobra.Command{
		Use:   "docstrings [path]",
		Short: "Regenerate summaries and rewrite per-node docstrings in place",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunDocstrings,
	}
	addRunFlags(docstringsCmd)

	statusCmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show which files changed since the last run, without LLM calls",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	pruneCmd := &cobra.Command{
		Use:   "prune [path]",
		Short: "Remove cache entries no longer matching any file in the tree",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunPrune,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docsync %s\n", version)
		},
	}

	rootCmd.AddCommand(
		summaryCmd,
		docstringsCmd,
		statusCmd,
		pruneCmd,
		versionCmd,
	)

	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "Max concurrent summarization calls (default from .docsync.yaml)")
	cmd.Flags().String("model", "", "Model name for the summarization capability")
	cmd.Flags().Bool("dry-run", false, "Run without writing files, cache or state")
	cmd.Flags().Bool("json", false, "Print machine-readable run report")
	cmd.Flags().Bool("verbose", false, "Enable debug logging")
}
