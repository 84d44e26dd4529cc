package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/campwatch/internal/errors"
	"github.com/harunnryd/campwatch/internal/jira"
)

// Alert is one threshold breach, composed by the sweep and rendered by the
// chat notifier.
type Alert struct {
	IssueKey      string
	Dimension     Dimension
	Status        string
	Elapsed       time.Duration
	AssigneeGated bool
}

// ElapsedMinutes is the rounded figure shown in alert messages.
func (a Alert) ElapsedMinutes() int {
	return int(a.Elapsed.Round(time.Minute) / time.Minute)
}

// AlertSink delivers alerts to the chat platform. Delivery is at-least-once:
// a failed send is retried naturally on the next sweep because the throttle
// clock only advances on success.
type AlertSink interface {
	PostAlert(ctx context.Context, alert Alert) error
}

// IssueChecker is the existence check against the issue tracker.
type IssueChecker interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// Sweeper walks every tracked record on a fixed interval, firing throttled
// repeat alerts for issues stuck past their threshold.
type Sweeper struct {
	mgr    *Manager
	policy *Policy
	issues IssueChecker
	alerts AlertSink
	now    func() time.Time
}

func NewSweeper(mgr *Manager, policy *Policy, issues IssueChecker, alerts AlertSink) *Sweeper {
	return &Sweeper{
		mgr:    mgr,
		policy: policy,
		issues: issues,
		alerts: alerts,
		now:    time.Now,
	}
}

// Sweep runs one pass. Per-issue failures are logged and isolated; the sweep
// itself never fails, so it is safe to re-invoke every interval indefinitely.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now().UTC()
	snapshot := s.mgr.Snapshot()

	slog.Debug("Sweeping tracked statuses",
		"primary", len(snapshot.Primary),
		"lifecycle", len(snapshot.Lifecycle),
	)

	// One existence check per issue per sweep, even when tracked on both
	// dimensions.
	existence := make(map[string]bool)
	dirty := false

	for _, dim := range Dimensions {
		for issueKey, rec := range snapshot.Dimension(dim) {
			exists, checked := existence[issueKey]
			if !checked {
				var err error
				exists, err = s.issueExists(ctx, issueKey)
				if err != nil {
					slog.Warn("Existence check failed, skipping issue this cycle",
						"issue", issueKey,
						"error", err,
					)
					continue
				}
				existence[issueKey] = exists
			}
			if !exists {
				// Deleted upstream: drop both dimensions, no phantom alerts.
				s.mgr.ClearIssue(issueKey)
				continue
			}

			if s.sweepRecord(ctx, now, dim, issueKey, rec) {
				dirty = true
			}
		}
	}

	if dirty {
		s.mgr.Persist()
	}
}

func (s *Sweeper) sweepRecord(ctx context.Context, now time.Time, dim Dimension, issueKey string, rec *Record) bool {
	threshold, ok := s.policy.Resolve(dim, rec.Status, rec.Issue)
	if !ok {
		// Disabled records should not exist; tolerate rather than compare
		// against nothing.
		slog.Debug("Skipping record with disabled threshold",
			"issue", issueKey,
			"dimension", dim,
			"status", rec.Status,
		)
		return false
	}

	elapsed := now.Sub(rec.StartTime)
	sinceLastAlert := threshold
	if rec.LastAlertTime != nil {
		sinceLastAlert = now.Sub(*rec.LastAlertTime)
	}

	if elapsed <= threshold || sinceLastAlert < threshold {
		return false
	}

	alert := Alert{
		IssueKey:      issueKey,
		Dimension:     dim,
		Status:        rec.Status,
		Elapsed:       elapsed,
		AssigneeGated: dim == DimensionLifecycle && s.policy.IsInitial(rec.Status),
	}

	slog.Warn("Status threshold exceeded",
		"issue", issueKey,
		"dimension", dim,
		"status", rec.Status,
		"elapsed_minutes", alert.ElapsedMinutes(),
	)

	if err := s.alerts.PostAlert(ctx, alert); err != nil {
		// Do not advance the throttle clock; the next sweep retries.
		slog.Error("Failed to send alert", "issue", issueKey, "dimension", dim, "error", err)
		return false
	}

	return s.mgr.MarkAlerted(issueKey, dim, now)
}

func (s *Sweeper) issueExists(ctx context.Context, issueKey string) (bool, error) {
	_, err := s.issues.GetIssue(ctx, issueKey)
	if err == nil {
		return true, nil
	}
	if errors.IsCategory(err, errors.ErrNotFound) {
		slog.Info("Issue no longer exists, clearing tracking", "issue", issueKey)
		return false, nil
	}
	return false, err
}
