package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lucasnoah/forgebot/internal/orchestrator"
	"github.com/lucasnoah/forgebot/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new bug-fixing run against the configured issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		b, err := buildOrchestrator(cfg, runID, true)
		if err != nil {
			return err
		}
		defer b.Close()

		result, err := b.orch.Run(cmd.Context(), workflow.Input{
			Owner:       cfg.Owner,
			Repo:        cfg.Repo,
			IssueNumber: cfg.IssueNumber,
		})
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}

		printRunResult(cmd, runID, result)
		return nil
	},
}

func printRunResult(cmd *cobra.Command, runID string, result orchestrator.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s (state=%s, attempt=%d, duration=%s)\n",
		runID, result.Status, result.FinalState, result.Attempt, result.Duration)
	if result.Error != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: [%s] %s\n", result.Error.Code, result.Error.Message)
	}
	if result.Data.Submission != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  pull request: %s\n", result.Data.Submission.PRURL)
	}
}

func init() {
	runCmd.Flags().String("config", "", "path to the run configuration YAML (default: searches forgebot.yaml, ~/.forgebot/config.yaml)")
}
