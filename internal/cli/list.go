package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every run recorded under the store root",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		entries, err := os.ReadDir(cfg.StoreRoot)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}
			return fmt.Errorf("read store root %s: %w", cfg.StoreRoot, err)
		}

		w := cmd.OutOrStdout()
		printed := false
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			store := workflow.NewStore(filepath.Join(cfg.StoreRoot, entry.Name()))
			rec, ok, err := store.Load()
			if err != nil || !ok {
				continue
			}
			if !printed {
				fmt.Fprintf(w, "%-38s %-12s %s\n", "RUN", "STATE", "UPDATED")
				printed = true
			}
			fmt.Fprintf(w, "%-38s %-12s %s\n", rec.RunID, rec.CurrentState, rec.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		if !printed {
			fmt.Fprintln(w, "No runs found.")
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("config", "", "path to the run configuration YAML")
}
