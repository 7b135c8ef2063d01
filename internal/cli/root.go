// Package cli wires the nine operational-state handlers, the code-host,
// LLM, search, patch, and check-runner collaborators, the worktree
// manager, and the analytics event logger into an orchestrator and
// exposes it as a small cobra command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion records the build-time version string for the version
// command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "forgebot",
	Short: "forgebot — an autonomous bug-fixing workflow engine",
	Long: `forgebot drives a single bug-fixing run through analysis, search, planning,
generation, patch application, build, test, review, and submission, retrying
the fix cycle on failure and persisting enough state to resume after a crash.

All run state is stored under ~/.forgebot/ (JSON records per run, SQLite for
the analytics event log).`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}
