package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

// Client is a read-only Jira REST v3 client. This subsystem never writes
// to Jira; it treats it strictly as the source of record.
type Client struct {
	baseURL      string
	email        string
	token        string
	projectKey   string
	primaryField string
	pageSize     int
	maxRetries   uint64
	httpc        *http.Client
}

func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.InvalidInput("jira host is required")
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, errors.InvalidInput("jira credentials are required")
	}

	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultJiraRequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse jira request timeout: %w", err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = config.DefaultJiraMaxRetries
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultJiraPageSize
	}

	baseURL := cfg.Host
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	return &Client{
		baseURL:      baseURL,
		email:        cfg.Email,
		token:        cfg.APIToken,
		projectKey:   cfg.ProjectKey,
		primaryField: cfg.PrimaryStatusField,
		pageSize:     pageSize,
		maxRetries:   uint64(maxRetries),
		httpc:        &http.Client{Timeout: timeout},
	}, nil
}

// BrowseURL returns the human-facing link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// GetIssue fetches a single issue. A 404 maps to errors.ErrNotFound, which
// callers treat as a definitive deletion signal.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if key == "" {
		return nil, errors.InvalidInput("issue key is empty")
	}

	query := url.Values{}
	query.Set("fields", c.fieldList())

	var ri restIssue
	if err := c.getJSON(ctx, "/rest/api/3/issue/"+url.PathEscape(key), query, &ri); err != nil {
		return nil, err
	}

	issue := ri.toIssue(c.primaryField)
	return &issue, nil
}

// ChangelogFor returns the full change history for an issue, newest first.
func (c *Client) ChangelogFor(ctx context.Context, key string) ([]ChangelogEntry, error) {
	if key == "" {
		return nil, errors.InvalidInput("issue key is empty")
	}

	var entries []ChangelogEntry
	startAt := 0
	for {
		query := url.Values{}
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.pageSize))

		var page restChangelogPage
		if err := c.getJSON(ctx, "/rest/api/3/issue/"+url.PathEscape(key)+"/changelog", query, &page); err != nil {
			return nil, err
		}

		for _, record := range page.Values {
			for _, item := range record.Items {
				entries = append(entries, ChangelogEntry{
					Field:   item.Field,
					FieldID: item.FieldID,
					From:    item.FromString,
					To:      item.ToString,
					At:      record.Created.Time,
				})
			}
		}

		startAt += len(page.Values)
		if len(page.Values) == 0 || startAt >= page.Total {
			break
		}
	}

	// Jira pages oldest first; reverse so callers scan most recent transitions first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// SearchOpenIssues returns every issue in the tracked project that is not in
// a done status category, paginating through the search API.
func (c *Client) SearchOpenIssues(ctx context.Context) ([]Issue, error) {
	if c.projectKey == "" {
		return nil, errors.InvalidInput("jira project key is not configured")
	}

	jql := fmt.Sprintf("project = %s AND statusCategory != Done ORDER BY created ASC", c.projectKey)

	var issues []Issue
	startAt := 0
	for {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("fields", c.fieldList())
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(c.pageSize))

		var page restSearchResponse
		if err := c.getJSON(ctx, "/rest/api/3/search", query, &page); err != nil {
			return nil, err
		}

		for _, ri := range page.Issues {
			issues = append(issues, ri.toIssue(c.primaryField))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	return issues, nil
}

// ListStatuses returns the workflow status names configured for Task issues
// in the tracked project.
func (c *Client) ListStatuses(ctx context.Context) ([]string, error) {
	if c.projectKey == "" {
		return nil, errors.InvalidInput("jira project key is not configured")
	}

	var types restProjectStatuses
	if err := c.getJSON(ctx, "/rest/api/3/project/"+url.PathEscape(c.projectKey)+"/statuses", nil, &types); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, issueType := range types {
		for _, status := range issueType.Statuses {
			if _, ok := seen[status.Name]; ok {
				continue
			}
			seen[status.Name] = struct{}{}
			names = append(names, status.Name)
		}
	}
	return names, nil
}

func (c *Client) fieldList() string {
	fields := "summary,assignee,status,created"
	if c.primaryField != "" {
		fields += "," + c.primaryField
	}
	return fields
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	operation := func() error {
		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(errors.Internal("build jira request: " + err.Error()))
		}
		req.SetBasicAuth(c.email, c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.Wrap(err, "jira request failed")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrap(err, "read jira response")
			}
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(errors.Wrap(err, "decode jira response"))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(errors.NotFound(path))
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(errors.InvalidInput(fmt.Sprintf("jira rejected credentials (%d)", resp.StatusCode)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return errors.Transient(fmt.Sprintf("jira responded %d for %s", resp.StatusCode, path))
		default:
			return backoff.Permanent(errors.Internal(fmt.Sprintf("jira responded %d for %s", resp.StatusCode, path)))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		slog.Debug("Retrying jira request", "path", path, "wait", wait, "error", err)
	}
	return backoff.RetryNotify(operation, policy, notify)
}
