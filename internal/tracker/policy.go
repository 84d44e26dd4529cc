package tracker

import (
	"strings"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
)

// Policy resolves how long an issue may sit in a status before alerts are
// warranted. Statuses are user-configurable upstream and drift over time, so
// unknown values degrade to a short default duration instead of erroring.
type Policy struct {
	primary   map[string]time.Duration
	lifecycle map[string]time.Duration
	disabled  map[string]struct{}
	initial   string
	fallback  time.Duration
}

func NewPolicy(cfg config.TrackerConfig) *Policy {
	defaultMinutes := cfg.DefaultMinutes
	if defaultMinutes <= 0 {
		defaultMinutes = config.DefaultTrackerDefaultMinutes
	}

	p := &Policy{
		primary:   make(map[string]time.Duration, len(cfg.PrimaryThresholds)),
		lifecycle: make(map[string]time.Duration, len(cfg.LifecycleThresholds)),
		disabled:  make(map[string]struct{}, len(cfg.DisabledStatuses)),
		initial:   normalizeLifecycle(cfg.InitialStatus),
		fallback:  time.Duration(defaultMinutes) * time.Minute,
	}

	for status, minutes := range cfg.PrimaryThresholds {
		if minutes > 0 {
			p.primary[status] = time.Duration(minutes) * time.Minute
		}
	}
	for status, minutes := range cfg.LifecycleThresholds {
		if minutes > 0 {
			p.lifecycle[normalizeLifecycle(status)] = time.Duration(minutes) * time.Minute
		}
	}
	for _, status := range cfg.DisabledStatuses {
		p.disabled[normalizeLifecycle(status)] = struct{}{}
	}

	return p
}

// Resolve returns the threshold for a status value, or ok=false when
// tracking is disabled for it. Pure function of its inputs.
func (p *Policy) Resolve(dim Dimension, status string, snapshot IssueSnapshot) (time.Duration, bool) {
	if dim == DimensionPrimary {
		// Primary values are matched verbatim; new ones fall back.
		if d, ok := p.primary[status]; ok {
			return d, true
		}
		return p.fallback, true
	}

	normalized := normalizeLifecycle(status)

	if _, ok := p.disabled[normalized]; ok {
		return 0, false
	}

	// The initial status timer starts only once someone is assigned.
	if normalized == p.initial && !snapshot.HasAssignee() {
		return 0, false
	}

	if d, ok := p.lifecycle[normalized]; ok {
		return d, true
	}
	return p.fallback, true
}

// IsInitial reports whether a lifecycle status value is the assignee-gated
// initial status; the sweep uses it to pick the alert message variant.
func (p *Policy) IsInitial(status string) bool {
	return normalizeLifecycle(status) == p.initial
}

func normalizeLifecycle(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}
