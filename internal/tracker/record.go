package tracker

import (
	"time"
)

// Dimension is one of the two independently timed status axes.
type Dimension string

const (
	// DimensionPrimary times the custom single-select "primary status" field.
	DimensionPrimary Dimension = "primary"
	// DimensionLifecycle times the built-in workflow status.
	DimensionLifecycle Dimension = "lifecycle"
)

// Dimensions lists both axes in sweep order.
var Dimensions = []Dimension{DimensionPrimary, DimensionLifecycle}

// IssueSnapshot is the minimal denormalized issue data needed to resolve
// thresholds and render alerts without a live fetch every sweep.
type IssueSnapshot struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Assignee string `json:"assignee,omitempty"`
}

func (s IssueSnapshot) HasAssignee() bool {
	return s.Assignee != ""
}

// Record times one issue in one dimension. StartTime is set once per
// status entry; only a clear-then-start resets it.
type Record struct {
	Status        string        `json:"status"`
	StartTime     time.Time     `json:"startTime"`
	LastAlertTime *time.Time    `json:"lastAlertTime"`
	Issue         IssueSnapshot `json:"issue"`
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.LastAlertTime != nil {
		t := *r.LastAlertTime
		out.LastAlertTime = &t
	}
	return &out
}

// Table is the tracking state: per dimension, issue key to record. An issue
// key is present in a dimension's map if and only if that dimension is
// currently being timed for it.
type Table struct {
	Primary   map[string]*Record `json:"primaryStatus"`
	Lifecycle map[string]*Record `json:"lifecycleStatus"`
}

func NewTable() *Table {
	return &Table{
		Primary:   make(map[string]*Record),
		Lifecycle: make(map[string]*Record),
	}
}

// Dimension returns the map backing one axis.
func (t *Table) Dimension(d Dimension) map[string]*Record {
	if d == DimensionPrimary {
		return t.Primary
	}
	return t.Lifecycle
}

func (t *Table) Clone() *Table {
	out := NewTable()
	for key, rec := range t.Primary {
		out.Primary[key] = rec.clone()
	}
	for key, rec := range t.Lifecycle {
		out.Lifecycle[key] = rec.clone()
	}
	return out
}

func (t *Table) Len() int {
	return len(t.Primary) + len(t.Lifecycle)
}
