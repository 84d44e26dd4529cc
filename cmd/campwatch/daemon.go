package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/daemon"
	"github.com/harunnryd/campwatch/internal/daemon/components"
	"github.com/harunnryd/campwatch/internal/idempotency"
	"github.com/harunnryd/campwatch/internal/jira"
	"github.com/harunnryd/campwatch/internal/slack"
	"github.com/harunnryd/campwatch/internal/tracker"
	"github.com/harunnryd/campwatch/internal/webhook"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the status watchdog daemon",
	Long:  `Starts campwatch as a long-running service. It receives Jira webhook events, sweeps tracked statuses on a schedule, and posts Slack alerts when thresholds are exceeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("failed to create jira client: %w", err)
		}

		notifier, err := slack.NewNotifier(cfg.Slack, cfg.Jira.Host)
		if err != nil {
			return fmt.Errorf("failed to create slack notifier: %w", err)
		}

		dedupe, err := idempotency.NewStore(filepath.Join(cfg.Tracker.DataPath, "processed-deliveries.json"))
		if err != nil {
			return fmt.Errorf("failed to open dedupe store: %w", err)
		}

		dedupeTTL, err := config.DurationOrDefault(cfg.Tracker.DedupeTTL, config.DefaultTrackerDedupeTTL)
		if err != nil {
			return fmt.Errorf("parse dedupe ttl: %w", err)
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)

		trackerComp := components.NewTrackerComponent(cfg)
		reconcileComp := components.NewReconcileComponent(cfg, trackerComp, jiraClient)
		schedulerComp := components.NewSchedulerComponent(cfg, trackerComp, jiraClient, notifier)

		hookComp := &webhookWiring{trackerComp: trackerComp, dedupe: dedupe, notifier: notifier, dedupeTTL: dedupeTTL}
		httpComp := components.NewHTTPServerComponent(daemonMgr, &cfg.Server, hookComp.build())

		daemonMgr.AddComponent(trackerComp)
		daemonMgr.AddComponent(reconcileComp)
		daemonMgr.AddComponent(schedulerComp)
		daemonMgr.AddComponent(httpComp)

		slog.Info("Campwatch daemon starting up...", "port", cfg.Server.Port, "project", cfg.Jira.ProjectKey)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Campwatch daemon stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Campwatch daemon stopped gracefully")
		return nil
	},
}

// webhookWiring defers manager lookup until the tracker component exists;
// the handler resolves it per call because components initialize after the
// HTTP handler tree is constructed.
type webhookWiring struct {
	trackerComp *components.TrackerComponent
	dedupe      *idempotency.Store
	notifier    *slack.Notifier
	dedupeTTL   time.Duration
}

func (w *webhookWiring) build() *webhook.Handler {
	return webhook.NewHandler(
		cfg.Jira.WebhookSecret,
		cfg.Jira.PrimaryStatusField,
		w,
		w.dedupe,
		w.notifier,
		w.dedupeTTL,
	)
}

func (w *webhookWiring) HandleStatusChanged(cmd tracker.StatusChanged) {
	if mgr := w.trackerComp.GetManager(); mgr != nil {
		mgr.HandleStatusChanged(cmd)
	}
}

func (w *webhookWiring) HandleAssigneeChanged(cmd tracker.AssigneeChanged) {
	if mgr := w.trackerComp.GetManager(); mgr != nil {
		mgr.HandleAssigneeChanged(cmd)
	}
}

func (w *webhookWiring) HandleIssueDeleted(cmd tracker.IssueDeleted) {
	if mgr := w.trackerComp.GetManager(); mgr != nil {
		mgr.HandleIssueDeleted(cmd)
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
}
