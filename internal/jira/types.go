package jira

import (
	"encoding/json"
	"time"
)

// jiraTime handles Jira's REST timestamp format ("2006-01-02T15:04:05.000-0700").
type jiraTime struct {
	time.Time
}

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

func (t *jiraTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(jiraTimeLayout, raw)
	if err != nil {
		// Some deployments emit plain RFC3339.
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// Issue is the read-only slice of a Jira issue this system cares about.
type Issue struct {
	Key      string
	Summary  string
	Assignee string // display name, empty when unassigned
	Status   string // workflow (lifecycle) status name
	Primary  string // primary status custom field value, empty when unset
	Created  time.Time
}

// ChangelogEntry is one field transition from an issue's change history,
// newest first as returned by ChangelogFor.
type ChangelogEntry struct {
	Field   string
	FieldID string
	From    string
	To      string
	At      time.Time
}

type restNamedValue struct {
	Value string `json:"value"`
}

type restStatus struct {
	Name string `json:"name"`
}

type restUser struct {
	DisplayName string `json:"displayName"`
}

type restIssue struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type restSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []restIssue `json:"issues"`
}

type restChangeItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type restChangelogPage struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Values     []struct {
		Created jiraTime         `json:"created"`
		Items   []restChangeItem `json:"items"`
	} `json:"values"`
}

type restProjectStatuses []struct {
	Name     string `json:"name"`
	Statuses []struct {
		Name string `json:"name"`
	} `json:"statuses"`
}

func (ri restIssue) toIssue(primaryField string) Issue {
	issue := Issue{Key: ri.Key}

	if raw, ok := ri.Fields["summary"]; ok {
		var summary string
		if err := json.Unmarshal(raw, &summary); err == nil {
			issue.Summary = summary
		}
	}
	if raw, ok := ri.Fields["assignee"]; ok {
		var assignee *restUser
		if err := json.Unmarshal(raw, &assignee); err == nil && assignee != nil {
			issue.Assignee = assignee.DisplayName
		}
	}
	if raw, ok := ri.Fields["status"]; ok {
		var status *restStatus
		if err := json.Unmarshal(raw, &status); err == nil && status != nil {
			issue.Status = status.Name
		}
	}
	if raw, ok := ri.Fields["created"]; ok {
		var created jiraTime
		if err := json.Unmarshal(raw, &created); err == nil {
			issue.Created = created.Time
		}
	}
	if primaryField != "" {
		if raw, ok := ri.Fields[primaryField]; ok {
			var value *restNamedValue
			if err := json.Unmarshal(raw, &value); err == nil && value != nil {
				issue.Primary = value.Value
			}
		}
	}

	return issue
}
