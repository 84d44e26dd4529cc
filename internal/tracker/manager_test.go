package tracker

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "status-tracking.json"))
	return NewManager(NewPolicy(testTrackerConfig()), store)
}

func TestManager_StartAndClear(t *testing.T) {
	mgr := newTestManager(t)
	snap := IssueSnapshot{Key: "CAMP-1", Summary: "Spring launch", Assignee: "Dana"}

	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", snap)

	table := mgr.Snapshot()
	rec := table.Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("record should exist after StartTracking")
	}
	if rec.Status != "PHASE 1" {
		t.Errorf("status = %q", rec.Status)
	}
	if rec.StartTime.IsZero() {
		t.Error("start time should be set")
	}
	if rec.LastAlertTime != nil {
		t.Error("new record should have no alert time")
	}

	mgr.ClearTracking("CAMP-1", DimensionLifecycle)
	if mgr.Snapshot().Len() != 0 {
		t.Error("record should be gone after ClearTracking")
	}

	// Clearing an absent record is a silent no-op.
	mgr.ClearTracking("CAMP-1", DimensionLifecycle)
}

func TestManager_StartDisabledStatusIsNoop(t *testing.T) {
	mgr := newTestManager(t)

	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE COMPLETE", IssueSnapshot{Assignee: "Dana"})
	if mgr.Snapshot().Len() != 0 {
		t.Error("disabled status should not create a record")
	}

	mgr.StartTracking("CAMP-2", DimensionLifecycle, "NEW REQUEST", IssueSnapshot{})
	if mgr.Snapshot().Len() != 0 {
		t.Error("unassigned initial status should not create a record")
	}
}

func TestManager_HandleStatusChangedResetsClock(t *testing.T) {
	mgr := newTestManager(t)
	snap := IssueSnapshot{Key: "CAMP-1", Assignee: "Dana"}

	early := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	late := early.Add(3 * time.Hour)

	mgr.now = func() time.Time { return early }
	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", snap)

	mgr.now = func() time.Time { return late }
	mgr.HandleStatusChanged(StatusChanged{
		IssueKey:  "CAMP-1",
		Dimension: DimensionLifecycle,
		From:      "PHASE 1",
		To:        "SUBMISSION REVIEW",
		Snapshot:  snap,
	})

	rec := mgr.Snapshot().Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("record should exist after status change")
	}
	if rec.Status != "SUBMISSION REVIEW" {
		t.Errorf("status = %q", rec.Status)
	}
	if !rec.StartTime.Equal(late) {
		t.Errorf("start time should reset on status change: %v", rec.StartTime)
	}
}

func TestManager_HandleStatusChangedToDisabledClears(t *testing.T) {
	mgr := newTestManager(t)
	snap := IssueSnapshot{Key: "CAMP-1", Assignee: "Dana"}

	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", snap)
	mgr.HandleStatusChanged(StatusChanged{
		IssueKey:  "CAMP-1",
		Dimension: DimensionLifecycle,
		From:      "PHASE 1",
		To:        "PHASE COMPLETE",
		Snapshot:  snap,
	})

	if mgr.Snapshot().Len() != 0 {
		t.Error("moving to a disabled status should stop the timer")
	}
}

func TestManager_HandleAssigneeChanged(t *testing.T) {
	mgr := newTestManager(t)

	// Assignment on the initial status starts the timer.
	mgr.HandleAssigneeChanged(AssigneeChanged{
		IssueKey:        "CAMP-1",
		LifecycleStatus: "NEW REQUEST",
		Snapshot:        IssueSnapshot{Key: "CAMP-1", Assignee: "Dana"},
	})
	if mgr.Snapshot().Lifecycle["CAMP-1"] == nil {
		t.Fatal("assignment on initial status should start tracking")
	}

	// Unassignment stops it again.
	mgr.HandleAssigneeChanged(AssigneeChanged{
		IssueKey:        "CAMP-1",
		LifecycleStatus: "NEW REQUEST",
		Snapshot:        IssueSnapshot{Key: "CAMP-1"},
	})
	if mgr.Snapshot().Lifecycle["CAMP-1"] != nil {
		t.Error("unassignment on initial status should stop tracking")
	}

	// Assignee churn on other statuses is ignored.
	mgr.StartTracking("CAMP-2", DimensionLifecycle, "PHASE 1", IssueSnapshot{Key: "CAMP-2"})
	before := mgr.Snapshot().Lifecycle["CAMP-2"].StartTime
	mgr.HandleAssigneeChanged(AssigneeChanged{
		IssueKey:        "CAMP-2",
		LifecycleStatus: "PHASE 1",
		Snapshot:        IssueSnapshot{Key: "CAMP-2", Assignee: "Lee"},
	})
	after := mgr.Snapshot().Lifecycle["CAMP-2"].StartTime
	if !before.Equal(after) {
		t.Error("assignee change outside the initial status should not reset the clock")
	}
}

func TestManager_ClearIssueDropsBothDimensions(t *testing.T) {
	mgr := newTestManager(t)
	snap := IssueSnapshot{Key: "CAMP-1", Assignee: "Dana"}

	mgr.StartTracking("CAMP-1", DimensionPrimary, "💀 Killed", snap)
	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", snap)
	mgr.StartTracking("CAMP-2", DimensionLifecycle, "PHASE 1", snap)

	mgr.HandleIssueDeleted(IssueDeleted{IssueKey: "CAMP-1"})

	table := mgr.Snapshot()
	if table.Primary["CAMP-1"] != nil || table.Lifecycle["CAMP-1"] != nil {
		t.Error("deleted issue should be dropped from both dimensions")
	}
	if table.Lifecycle["CAMP-2"] == nil {
		t.Error("other issues should be untouched")
	}
}

func TestManager_Reset(t *testing.T) {
	mgr := newTestManager(t)
	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", IssueSnapshot{Key: "CAMP-1"})
	mgr.StartTracking("CAMP-2", DimensionPrimary, "💀 Killed", IssueSnapshot{Key: "CAMP-2"})

	mgr.Reset()

	if mgr.Snapshot().Len() != 0 {
		t.Error("reset should discard every record")
	}
}

func TestManager_PersistSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status-tracking.json")
	policy := NewPolicy(testTrackerConfig())

	mgr := NewManager(policy, NewStore(path))
	mgr.StartTracking("CAMP-1", DimensionLifecycle, "PHASE 1", IssueSnapshot{Key: "CAMP-1", Summary: "Spring launch"})
	mgr.MarkAlerted("CAMP-1", DimensionLifecycle, time.Now().UTC())
	mgr.Persist()

	reloaded := NewManager(policy, NewStore(path))
	rec := reloaded.Snapshot().Lifecycle["CAMP-1"]
	if rec == nil {
		t.Fatal("record should survive a restart")
	}
	if rec.LastAlertTime == nil {
		t.Error("alert throttle clock should survive a restart")
	}
}

func TestManager_MarkAlertedMissingRecord(t *testing.T) {
	mgr := newTestManager(t)
	if mgr.MarkAlerted("CAMP-404", DimensionLifecycle, time.Now()) {
		t.Error("MarkAlerted should report false for an absent record")
	}
}
