package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/campwatch/internal/jira"
)

// IssueSource is the slice of the issue tracker reconciliation reads from.
type IssueSource interface {
	SearchOpenIssues(ctx context.Context) ([]jira.Issue, error)
	ChangelogFor(ctx context.Context, key string) ([]jira.ChangelogEntry, error)
}

// Reconciler rebuilds the tracking table from the issue tracker's current
// state and change history. It runs at process startup (and on demand) so a
// lost or corrupted local snapshot degrades to "re-derive from Jira", never
// to wrong timers.
type Reconciler struct {
	mgr          *Manager
	policy       *Policy
	source       IssueSource
	primaryField string
	now          func() time.Time
}

func NewReconciler(mgr *Manager, policy *Policy, source IssueSource, primaryField string) *Reconciler {
	return &Reconciler{
		mgr:          mgr,
		policy:       policy,
		source:       source,
		primaryField: primaryField,
		now:          time.Now,
	}
}

// Reconcile queries every open issue in the tracked project, derives when
// each entered its current status values, and installs the rebuilt table.
// The previously persisted table is only a provisional seed: its
// lastAlertTime values carry over so a restart does not reset alert
// throttling, and entries absent upstream are dropped. If the upstream query
// fails the seed stays in place untouched.
func (r *Reconciler) Reconcile(ctx context.Context) {
	seed := r.mgr.Snapshot()

	issues, err := r.source.SearchOpenIssues(ctx)
	if err != nil {
		slog.Warn("Reconciliation query failed, keeping local snapshot",
			"primary", len(seed.Primary),
			"lifecycle", len(seed.Lifecycle),
			"error", err,
		)
		return
	}

	next := NewTable()
	for _, issue := range issues {
		snapshot := IssueSnapshot{
			Key:      issue.Key,
			Summary:  issue.Summary,
			Assignee: issue.Assignee,
		}

		var changelog []jira.ChangelogEntry
		changelogLoaded := false
		loadChangelog := func() []jira.ChangelogEntry {
			if changelogLoaded {
				return changelog
			}
			changelogLoaded = true
			entries, err := r.source.ChangelogFor(ctx, issue.Key)
			if err != nil {
				slog.Warn("Changelog unavailable, falling back to creation time",
					"issue", issue.Key,
					"error", err,
				)
				return nil
			}
			changelog = entries
			return changelog
		}

		if issue.Primary != "" {
			if _, ok := r.policy.Resolve(DimensionPrimary, issue.Primary, snapshot); ok {
				start := r.entryTime(loadChangelog(), issue, DimensionPrimary, issue.Primary)
				next.Primary[issue.Key] = r.rebuildRecord(seed.Primary[issue.Key], issue.Primary, start, snapshot)
			}
		}
		if issue.Status != "" {
			if _, ok := r.policy.Resolve(DimensionLifecycle, issue.Status, snapshot); ok {
				start := r.entryTime(loadChangelog(), issue, DimensionLifecycle, issue.Status)
				next.Lifecycle[issue.Key] = r.rebuildRecord(seed.Lifecycle[issue.Key], issue.Status, start, snapshot)
			}
		}
	}

	slog.Info("Reconciled tracking table from issue tracker",
		"issues", len(issues),
		"primary", len(next.Primary),
		"lifecycle", len(next.Lifecycle),
		"seed_primary", len(seed.Primary),
		"seed_lifecycle", len(seed.Lifecycle),
	)
	r.mgr.Replace(next)
}

func (r *Reconciler) rebuildRecord(seedRec *Record, status string, start time.Time, snapshot IssueSnapshot) *Record {
	rec := &Record{
		Status:    status,
		StartTime: start.UTC(),
		Issue:     snapshot,
	}
	if seedRec != nil && seedRec.LastAlertTime != nil {
		t := *seedRec.LastAlertTime
		rec.LastAlertTime = &t
	}
	return rec
}

// entryTime finds the most recent transition into the current status value.
// Entries are newest first. Falls back to issue creation time when the field
// was never explicitly set or history is unavailable.
func (r *Reconciler) entryTime(changelog []jira.ChangelogEntry, issue jira.Issue, dim Dimension, current string) time.Time {
	for _, entry := range changelog {
		switch dim {
		case DimensionLifecycle:
			if entry.Field == "status" && entry.To == current {
				return entry.At
			}
		case DimensionPrimary:
			if (entry.FieldID == r.primaryField || entry.Field == r.primaryField) && entry.To == current {
				return entry.At
			}
		}
	}
	if issue.Created.IsZero() {
		return r.now()
	}
	return issue.Created
}
