package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/campwatch/internal/jira"
	"github.com/harunnryd/campwatch/internal/tracker"

	"github.com/spf13/cobra"
)

var statusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "List the project's workflow statuses and their thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		client, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("failed to create jira client: %w", err)
		}

		names, err := client.ListStatuses(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list statuses: %w", err)
		}

		policy := tracker.NewPolicy(cfg.Tracker)
		fmt.Printf("Workflow statuses for %s:\n", cfg.Jira.ProjectKey)
		for _, name := range names {
			threshold, ok := policy.Resolve(tracker.DimensionLifecycle, name, tracker.IssueSnapshot{Assignee: "-"})
			switch {
			case !ok:
				fmt.Printf("  %-24s tracking disabled\n", name)
			default:
				fmt.Printf("  %-24s %v\n", name, threshold)
			}
		}

		if len(cfg.Tracker.DisabledStatuses) > 0 {
			fmt.Printf("\nDisabled: %s\n", strings.Join(cfg.Tracker.DisabledStatuses, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusesCmd)
}
