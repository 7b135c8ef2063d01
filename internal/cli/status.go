package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the persisted state of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		store := workflow.NewStore(fmt.Sprintf("%s/%s", cfg.StoreRoot, runID))
		rec, ok, err := store.Load()
		if err != nil {
			return fmt.Errorf("load run %s: %w", runID, err)
		}
		if !ok {
			return fmt.Errorf("no run found with id %s", runID)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal json: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "run:     %s\n", rec.RunID)
		fmt.Fprintf(w, "state:   %s\n", rec.CurrentState)
		fmt.Fprintf(w, "attempt: %d\n", rec.Attempt)
		fmt.Fprintf(w, "updated: %s\n", rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		if rec.Error != nil {
			fmt.Fprintf(w, "error:   [%s] %s\n", rec.Error.Code, rec.Error.Message)
		}
		fmt.Fprintf(w, "history: %v\n", rec.History)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("config", "", "path to the run configuration YAML")
	statusCmd.Flags().String("format", "text", "output format: text or json")
}
