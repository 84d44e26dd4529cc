package tracker

import (
	"log/slog"
	"sync"
	"time"
)

// Manager owns the tracking table. All mutations go through it, and every
// mutating call ends with a save so the on-disk snapshot trails in-memory
// truth by at most one crash window.
type Manager struct {
	mu     sync.Mutex
	table  *Table
	policy *Policy
	store  TableStore
	now    func() time.Time
}

func NewManager(policy *Policy, store TableStore) *Manager {
	return &Manager{
		table:  store.Load(),
		policy: policy,
		store:  store,
		now:    time.Now,
	}
}

// StartTracking begins (or restarts) the timer for an issue on one
// dimension. A disabled threshold makes this a logged no-op. Overwriting an
// existing record resets the clock; callers clear first on status changes so
// stale timing from the previous value is discarded.
func (m *Manager) StartTracking(issueKey string, dim Dimension, status string, snapshot IssueSnapshot) {
	if issueKey == "" {
		return
	}

	if _, ok := m.policy.Resolve(dim, status, snapshot); !ok {
		slog.Info("Tracking disabled for status",
			"issue", issueKey,
			"dimension", dim,
			"status", status,
		)
		return
	}

	m.mu.Lock()
	m.table.Dimension(dim)[issueKey] = &Record{
		Status:    status,
		StartTime: m.now().UTC(),
		Issue:     snapshot,
	}
	m.mu.Unlock()

	slog.Info("Started tracking",
		"issue", issueKey,
		"dimension", dim,
		"status", status,
	)
	m.Persist()
}

// ClearTracking removes the record for an issue on one dimension. Absence is
// not an error.
func (m *Manager) ClearTracking(issueKey string, dim Dimension) {
	m.mu.Lock()
	_, present := m.table.Dimension(dim)[issueKey]
	if present {
		delete(m.table.Dimension(dim), issueKey)
	}
	m.mu.Unlock()

	if !present {
		return
	}
	slog.Info("Cleared tracking", "issue", issueKey, "dimension", dim)
	m.Persist()
}

// ClearIssue removes an issue from both dimensions, used when the issue is
// confirmed deleted upstream.
func (m *Manager) ClearIssue(issueKey string) {
	m.mu.Lock()
	_, inPrimary := m.table.Primary[issueKey]
	_, inLifecycle := m.table.Lifecycle[issueKey]
	delete(m.table.Primary, issueKey)
	delete(m.table.Lifecycle, issueKey)
	m.mu.Unlock()

	if !inPrimary && !inLifecycle {
		return
	}
	slog.Info("Cleared tracking for deleted issue", "issue", issueKey)
	m.Persist()
}

// Reset discards the entire table. It is never called on a normal code path;
// only the operator reset command reaches it.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.table = NewTable()
	m.mu.Unlock()

	slog.Warn("Reset all status tracking")
	m.Persist()
}

// Replace installs a rebuilt table (reconciliation) and persists it.
func (m *Manager) Replace(t *Table) {
	m.mu.Lock()
	m.table = t
	m.mu.Unlock()
	m.Persist()
}

// Snapshot returns a deep copy for iteration without holding the lock.
func (m *Manager) Snapshot() *Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Clone()
}

// MarkAlerted advances the alert throttle clock for a record without
// saving; the sweep batches one save per cycle via Persist.
func (m *Manager) MarkAlerted(issueKey string, dim Dimension, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.table.Dimension(dim)[issueKey]
	if !ok {
		return false
	}
	t := at.UTC()
	rec.LastAlertTime = &t
	return true
}

// Persist saves current in-memory truth. Saves are idempotent: whichever
// mutation arrived last logically wins, and a failed save only widens the
// crash window (reconciliation re-derives truth from Jira).
func (m *Manager) Persist() {
	m.mu.Lock()
	snapshot := m.table.Clone()
	m.mu.Unlock()

	if err := m.store.Save(snapshot); err != nil {
		slog.Error("Failed to persist tracking table", "error", err)
	}
}

// HandleStatusChanged clears the previous timer and starts one for the new
// value (which may be a no-op when the destination is disabled).
func (m *Manager) HandleStatusChanged(cmd StatusChanged) {
	m.ClearTracking(cmd.IssueKey, cmd.Dimension)
	m.StartTracking(cmd.IssueKey, cmd.Dimension, cmd.To, cmd.Snapshot)
}

// HandleAssigneeChanged re-evaluates the gated initial lifecycle status: an
// assignment starts its timer, an unassignment stops it.
func (m *Manager) HandleAssigneeChanged(cmd AssigneeChanged) {
	if !m.policy.IsInitial(cmd.LifecycleStatus) {
		return
	}
	m.ClearTracking(cmd.IssueKey, DimensionLifecycle)
	m.StartTracking(cmd.IssueKey, DimensionLifecycle, cmd.LifecycleStatus, cmd.Snapshot)
}

// HandleIssueDeleted drops the issue from both dimensions.
func (m *Manager) HandleIssueDeleted(cmd IssueDeleted) {
	m.ClearIssue(cmd.IssueKey)
}
