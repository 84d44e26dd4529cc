package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/campwatch/internal/slack"
	"github.com/harunnryd/campwatch/internal/tracker"
)

// CommandHandler consumes translated webhook events. The tracker Manager
// satisfies it.
type CommandHandler interface {
	HandleStatusChanged(cmd tracker.StatusChanged)
	HandleAssigneeChanged(cmd tracker.AssigneeChanged)
	HandleIssueDeleted(cmd tracker.IssueDeleted)
}

// Deduper suppresses redelivered events.
type Deduper interface {
	CheckAndMark(key string, ttl time.Duration) bool
}

// ChangeNotifier relays status transitions to the team channel. Optional.
type ChangeNotifier interface {
	PostStatusChange(ctx context.Context, change slack.StatusChange) error
}

// Handler translates Jira webhook payloads into tracker commands. It is the
// only place Jira's event wire format is known; everything past it speaks
// commands.
type Handler struct {
	secret       string
	primaryField string
	commands     CommandHandler
	dedupe       Deduper
	notify       ChangeNotifier
	dedupeTTL    time.Duration
}

func NewHandler(secret, primaryField string, commands CommandHandler, dedupe Deduper, notify ChangeNotifier, dedupeTTL time.Duration) *Handler {
	return &Handler{
		secret:       secret,
		primaryField: primaryField,
		commands:     commands,
		dedupe:       dedupe,
		notify:       notify,
		dedupeTTL:    dedupeTTL,
	}
}

// Register mounts the webhook route.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/jira/events", h.handleEvent)
}

type payload struct {
	WebhookEvent string `json:"webhookEvent"`
	Timestamp    int64  `json:"timestamp"`
	Issue        struct {
		Key    string                     `json:"key"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"issue"`
	User struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
	Changelog struct {
		Items []changeItem `json:"items"`
	} `json:"changelog"`
}

type changeItem struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	secret := r.URL.Query().Get("secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		slog.Warn("Rejected webhook with bad secret", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		slog.Warn("Unparseable webhook payload", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if p.Issue.Key != "" {
		key := fmt.Sprintf("jira:%s:%d", p.Issue.Key, p.Timestamp)
		if h.dedupe.CheckAndMark(key, h.dedupeTTL) {
			slog.Debug("Dropping redelivered webhook event", "key", key)
			h.respondOK(w)
			return
		}
	}

	switch p.WebhookEvent {
	case "jira:issue_updated":
		h.handleUpdated(r.Context(), p)
	case "jira:issue_deleted":
		if p.Issue.Key != "" {
			h.commands.HandleIssueDeleted(tracker.IssueDeleted{IssueKey: p.Issue.Key})
		}
	default:
		slog.Debug("Ignoring webhook event", "event", p.WebhookEvent)
	}

	h.respondOK(w)
}

func (h *Handler) handleUpdated(ctx context.Context, p payload) {
	if p.Issue.Key == "" {
		return
	}
	snapshot := h.snapshot(p)

	for _, item := range p.Changelog.Items {
		switch {
		case item.Field == "status":
			h.commands.HandleStatusChanged(tracker.StatusChanged{
				IssueKey:  p.Issue.Key,
				Dimension: tracker.DimensionLifecycle,
				From:      item.FromString,
				To:        item.ToString,
				Snapshot:  snapshot,
			})
			h.notifyChange(ctx, p, item)
		case h.primaryField != "" && (item.FieldID == h.primaryField || item.Field == h.primaryField):
			h.commands.HandleStatusChanged(tracker.StatusChanged{
				IssueKey:  p.Issue.Key,
				Dimension: tracker.DimensionPrimary,
				From:      item.FromString,
				To:        item.ToString,
				Snapshot:  snapshot,
			})
		case item.Field == "assignee":
			h.commands.HandleAssigneeChanged(tracker.AssigneeChanged{
				IssueKey:        p.Issue.Key,
				LifecycleStatus: h.currentStatus(p),
				Snapshot:        snapshot,
			})
		}
	}
}

// notifyChange is best effort. A failed channel post never affects tracking
// or the webhook acknowledgement.
func (h *Handler) notifyChange(ctx context.Context, p payload, item changeItem) {
	if h.notify == nil {
		return
	}
	change := slack.StatusChange{
		IssueKey:  p.Issue.Key,
		Summary:   h.fieldString(p, "summary"),
		From:      item.FromString,
		To:        item.ToString,
		UpdatedBy: p.User.DisplayName,
		At:        time.UnixMilli(p.Timestamp),
	}
	if p.Timestamp == 0 {
		change.At = time.Now()
	}
	if err := h.notify.PostStatusChange(ctx, change); err != nil {
		slog.Warn("Failed to relay status change", "issue", p.Issue.Key, "error", err)
	}
}

func (h *Handler) snapshot(p payload) tracker.IssueSnapshot {
	return tracker.IssueSnapshot{
		Key:      p.Issue.Key,
		Summary:  h.fieldString(p, "summary"),
		Assignee: h.assignee(p),
	}
}

func (h *Handler) currentStatus(p payload) string {
	raw, ok := p.Issue.Fields["status"]
	if !ok {
		return ""
	}
	var status struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return ""
	}
	return status.Name
}

func (h *Handler) assignee(p payload) string {
	raw, ok := p.Issue.Fields["assignee"]
	if !ok {
		return ""
	}
	var assignee struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(raw, &assignee); err != nil {
		return ""
	}
	return assignee.DisplayName
}

func (h *Handler) fieldString(p payload, field string) string {
	raw, ok := p.Issue.Fields[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (h *Handler) respondOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
