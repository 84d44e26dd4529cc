package main

import (
	"fmt"
	"path/filepath"

	"github.com/harunnryd/campwatch/internal/tracker"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all status tracking state",
	Long:  `Clears every tracked timer. The next reconciliation (or daemon restart) rebuilds the table from Jira.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset discards all tracked timers; re-run with --yes to confirm")
		}

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		store := tracker.NewStore(filepath.Join(cfg.Tracker.DataPath, "status-tracking.json"))
		policy := tracker.NewPolicy(cfg.Tracker)
		mgr := tracker.NewManager(policy, store)
		mgr.Reset()

		fmt.Println("Status tracking reset.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("yes", false, "Confirm discarding all tracked timers")
}
