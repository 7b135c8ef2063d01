package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a paused or errored run from its persisted state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		b, err := buildOrchestrator(cfg, runID, false)
		if err != nil {
			return err
		}
		defer b.Close()

		result, err := b.orch.Resume(cmd.Context())
		if err != nil {
			return fmt.Errorf("resume %s: %w", runID, err)
		}

		printRunResult(cmd, runID, result)
		return nil
	},
}

func init() {
	resumeCmd.Flags().String("config", "", "path to the run configuration YAML")
}
