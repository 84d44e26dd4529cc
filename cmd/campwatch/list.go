package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harunnryd/campwatch/internal/tracker"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show tracked issues and their timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		store := tracker.NewStore(filepath.Join(cfg.Tracker.DataPath, "status-tracking.json"))
		policy := tracker.NewPolicy(cfg.Tracker)
		table := store.Load()

		if table.Len() == 0 {
			fmt.Println("No issues are being tracked.")
			return nil
		}

		now := time.Now().UTC()
		for _, dim := range tracker.Dimensions {
			records := table.Dimension(dim)
			if len(records) == 0 {
				continue
			}

			fmt.Printf("%s (%d tracked)\n", dim, len(records))
			for issueKey, rec := range records {
				elapsed := now.Sub(rec.StartTime).Round(time.Minute)
				line := fmt.Sprintf("  %-12s %-22s %v", issueKey, rec.Status, elapsed)

				if threshold, ok := policy.Resolve(dim, rec.Status, rec.Issue); ok {
					line += fmt.Sprintf(" / %v", threshold)
					if elapsed > threshold {
						line += "  OVERDUE"
					}
				}
				if rec.LastAlertTime != nil {
					line += fmt.Sprintf("  (last alert %s)", rec.LastAlertTime.Format(time.RFC3339))
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
