package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/campwatch/internal/errors"
	"github.com/harunnryd/campwatch/internal/jira"
)

type fakeIssueSource struct {
	issues       []jira.Issue
	searchErr    error
	changelogs   map[string][]jira.ChangelogEntry
	changelogErr error
}

func (f *fakeIssueSource) SearchOpenIssues(ctx context.Context) ([]jira.Issue, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.issues, nil
}

func (f *fakeIssueSource) ChangelogFor(ctx context.Context, key string) ([]jira.ChangelogEntry, error) {
	if f.changelogErr != nil {
		return nil, f.changelogErr
	}
	return f.changelogs[key], nil
}

func newTestReconciler(t *testing.T, source *fakeIssueSource, now time.Time) (*Reconciler, *Manager) {
	t.Helper()
	mgr := newTestManager(t)
	policy := NewPolicy(testTrackerConfig())
	rec := NewReconciler(mgr, policy, source, "customfield_10100")
	rec.now = func() time.Time { return now }
	return rec, mgr
}

func TestReconciler_RebuildsFromChangelog(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entered := now.Add(-10 * time.Minute)

	source := &fakeIssueSource{
		issues: []jira.Issue{{
			Key:      "CAMP-1",
			Summary:  "Spring launch",
			Assignee: "Dana",
			Status:   "SUBMISSION REVIEW",
			Created:  now.Add(-48 * time.Hour),
		}},
		changelogs: map[string][]jira.ChangelogEntry{
			"CAMP-1": {
				{Field: "status", From: "READY TO SHIP", To: "SUBMISSION REVIEW", At: entered},
				{Field: "status", From: "NEW REQUEST", To: "READY TO SHIP", At: now.Add(-24 * time.Hour)},
			},
		},
	}

	reconciler, mgr := newTestReconciler(t, source, now)
	reconciler.Reconcile(context.Background())

	table := mgr.Snapshot()
	rec := table.Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("lifecycle record should be rebuilt")
	}
	if rec.Status != "SUBMISSION REVIEW" {
		t.Errorf("status = %q", rec.Status)
	}
	if !rec.StartTime.Equal(entered) {
		t.Errorf("start time should come from the changelog: %v", rec.StartTime)
	}
	if rec.Issue.Assignee != "Dana" {
		t.Errorf("snapshot not captured: %+v", rec.Issue)
	}
	if len(table.Primary) != 0 {
		t.Error("issue without a primary value should have no primary record")
	}
}

func TestReconciler_PrimaryFieldFromChangelog(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entered := now.Add(-2 * time.Hour)

	source := &fakeIssueSource{
		issues: []jira.Issue{{
			Key:     "CAMP-1",
			Status:  "PHASE 1",
			Primary: "🟢 Ready to Launch",
			Created: now.Add(-72 * time.Hour),
		}},
		changelogs: map[string][]jira.ChangelogEntry{
			"CAMP-1": {
				{FieldID: "customfield_10100", From: "", To: "🟢 Ready to Launch", At: entered},
				{Field: "status", From: "NEW REQUEST", To: "PHASE 1", At: now.Add(-50 * time.Hour)},
			},
		},
	}

	reconciler, mgr := newTestReconciler(t, source, now)
	reconciler.Reconcile(context.Background())

	rec := mgr.Snapshot().Primary["CAMP-1"]
	if rec == nil {
		t.Fatal("primary record should be rebuilt")
	}
	if !rec.StartTime.Equal(entered) {
		t.Errorf("primary start time should come from the custom field transition: %v", rec.StartTime)
	}
}

func TestReconciler_SearchFailureKeepsSeed(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeIssueSource{searchErr: errors.Transient("jira unavailable")}

	reconciler, mgr := newTestReconciler(t, source, now)
	mgr.table.Lifecycle["CAMP-1"] = &Record{
		Status:    "PHASE 1",
		StartTime: now.Add(-time.Hour),
	}

	reconciler.Reconcile(context.Background())

	if mgr.Snapshot().Lifecycle["CAMP-1"] == nil {
		t.Error("failed search must leave the local snapshot untouched")
	}
}

func TestReconciler_PreservesSeedAlertTime(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	alertAt := now.Add(-30 * time.Minute)

	source := &fakeIssueSource{
		issues: []jira.Issue{{
			Key:     "CAMP-1",
			Status:  "PHASE 1",
			Created: now.Add(-72 * time.Hour),
		}},
	}

	reconciler, mgr := newTestReconciler(t, source, now)
	mgr.table.Lifecycle["CAMP-1"] = &Record{
		Status:        "PHASE 1",
		StartTime:     now.Add(-60 * time.Hour),
		LastAlertTime: &alertAt,
	}

	reconciler.Reconcile(context.Background())

	rec := mgr.Snapshot().Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("record should be rebuilt")
	}
	if rec.LastAlertTime == nil || !rec.LastAlertTime.Equal(alertAt) {
		t.Error("seed lastAlertTime should carry over so restarts do not re-alert")
	}
}

func TestReconciler_ChangelogFailureFallsBackToCreated(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	created := now.Add(-5 * time.Hour)

	source := &fakeIssueSource{
		issues: []jira.Issue{{
			Key:     "CAMP-1",
			Status:  "PHASE 1",
			Created: created,
		}},
		changelogErr: errors.Transient("changelog unavailable"),
	}

	reconciler, mgr := newTestReconciler(t, source, now)
	reconciler.Reconcile(context.Background())

	rec := mgr.Snapshot().Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("record should still be rebuilt")
	}
	if !rec.StartTime.Equal(created) {
		t.Errorf("start time should fall back to creation time: %v", rec.StartTime)
	}
}

func TestReconciler_DropsIssuesAbsentUpstream(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeIssueSource{issues: []jira.Issue{}}

	reconciler, mgr := newTestReconciler(t, source, now)
	mgr.table.Lifecycle["CAMP-9"] = &Record{
		Status:    "PHASE 1",
		StartTime: now.Add(-time.Hour),
	}

	reconciler.Reconcile(context.Background())

	if mgr.Snapshot().Len() != 0 {
		t.Error("entries absent upstream should be dropped during reconciliation")
	}
}

func TestReconciler_SkipsDisabledAndGatedStatuses(t *testing.T) {
	now := time.Now().UTC()
	source := &fakeIssueSource{
		issues: []jira.Issue{
			{Key: "CAMP-1", Status: "PHASE COMPLETE", Created: now.Add(-time.Hour)},
			{Key: "CAMP-2", Status: "NEW REQUEST", Created: now.Add(-time.Hour)}, // unassigned
		},
	}

	reconciler, mgr := newTestReconciler(t, source, now)
	reconciler.Reconcile(context.Background())

	if mgr.Snapshot().Len() != 0 {
		t.Error("disabled and gated statuses should not produce records")
	}
}
