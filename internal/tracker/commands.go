package tracker

// Commands model the inbound edge: webhook and slash-command transports
// translate their payloads into these and hand them to the Manager, keeping
// the state machine independent of how events arrive.

// StatusChanged signals that an issue moved between status values on one
// dimension.
type StatusChanged struct {
	IssueKey  string
	Dimension Dimension
	From      string
	To        string
	Snapshot  IssueSnapshot
}

// AssigneeChanged signals an assignee change; it matters for the gated
// initial lifecycle status, whose timer starts only on assignment.
type AssigneeChanged struct {
	IssueKey        string
	LifecycleStatus string
	Snapshot        IssueSnapshot
}

// IssueDeleted signals the issue no longer exists upstream.
type IssueDeleted struct {
	IssueKey string
}
