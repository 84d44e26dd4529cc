package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Jira      JiraConfig      `koanf:"jira"`
	Slack     SlackConfig     `koanf:"slack"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Daemon    DaemonConfig    `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type JiraConfig struct {
	Host               string `koanf:"host"`
	Email              string `koanf:"email"`
	APIToken           string `koanf:"api_token"`
	ProjectKey         string `koanf:"project_key"`
	PrimaryStatusField string `koanf:"primary_status_field"`
	WebhookSecret      string `koanf:"webhook_secret"`
	RequestTimeout     string `koanf:"request_timeout"`
	MaxRetries         int    `koanf:"max_retries"`
	PageSize           int    `koanf:"page_size"`
}

type SlackConfig struct {
	BotToken      string `koanf:"bot_token"`
	AlertChannel  string `koanf:"alert_channel"`
	NotifyChannel string `koanf:"notify_channel"`
}

type TrackerConfig struct {
	DataPath            string         `koanf:"data_path"`
	DefaultMinutes      int            `koanf:"default_minutes"`
	PrimaryThresholds   map[string]int `koanf:"primary_thresholds"`
	LifecycleThresholds map[string]int `koanf:"lifecycle_thresholds"`
	DisabledStatuses    []string       `koanf:"disabled_statuses"`
	InitialStatus       string         `koanf:"initial_status"`
	DedupeTTL           string         `koanf:"dedupe_ttl"`
}

type SchedulerConfig struct {
	SweepSchedule        string `koanf:"sweep_schedule"`
	ShutdownTimeout      string `koanf:"shutdown_timeout"`
	InFlightPollInterval string `koanf:"in_flight_poll_interval"`
}

type DaemonConfig struct {
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	PreflightTimeout       string `koanf:"preflight_timeout"`
	StaleLockTTL           string `koanf:"stale_lock_ttl"`
	ReconcileOnStart       bool   `koanf:"reconcile_on_start"`
	ReconcileTimeout       string `koanf:"reconcile_timeout"`
}

const (
	DefaultServerPort                    = 8080
	DefaultServerLogLevel                = "info"
	DefaultServerReadTimeout             = "10s"
	DefaultServerWriteTimeout            = "10s"
	DefaultServerIdleTimeout             = "60s"
	DefaultServerShutdownTimeout         = "5s"
	DefaultJiraRequestTimeout            = "15s"
	DefaultJiraMaxRetries                = 3
	DefaultJiraPageSize                  = 50
	DefaultTrackerDefaultMinutes         = 5
	DefaultTrackerInitialStatus          = "NEW REQUEST"
	DefaultTrackerDedupeTTL              = "24h"
	DefaultSchedulerSweepSchedule        = "@every 1m"
	DefaultSchedulerShutdownTimeout      = "30s"
	DefaultSchedulerInFlightPollInterval = "100ms"
	DefaultDaemonShutdownTimeout         = "30s"
	DefaultDaemonHealthCheckInterval     = "30s"
	DefaultDaemonStartupShutdownTimeout  = "10s"
	DefaultDaemonPreflightTimeout        = "10s"
	DefaultDaemonStaleLockTTL            = "15m"
	DefaultDaemonReconcileTimeout        = "2m"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":              DefaultServerPort,
		"server.log_level":         DefaultServerLogLevel,
		"server.read_timeout":      DefaultServerReadTimeout,
		"server.write_timeout":     DefaultServerWriteTimeout,
		"server.idle_timeout":      DefaultServerIdleTimeout,
		"server.shutdown_timeout":  DefaultServerShutdownTimeout,
		"jira.request_timeout":     DefaultJiraRequestTimeout,
		"jira.max_retries":         DefaultJiraMaxRetries,
		"jira.page_size":           DefaultJiraPageSize,
		"tracker.data_path":        filepath.Join(os.Getenv("HOME"), ".campwatch", "data"),
		"tracker.default_minutes":  DefaultTrackerDefaultMinutes,
		"tracker.initial_status":   DefaultTrackerInitialStatus,
		"tracker.dedupe_ttl":       DefaultTrackerDedupeTTL,
		"tracker.disabled_statuses": []string{
			"PHASE COMPLETE",
			"FAILED",
		},
		"tracker.primary_thresholds": map[string]int{
			"🟢 Ready to Launch": 2880,
			"⚡ Let it Ride":      2880,
			"✅ Roll Out":         2880,
			"✨ Phase Complete":   2880,
			"💀 Killed":           2880,
			"🔁 Another Chance":   2880,
		},
		"tracker.lifecycle_thresholds": map[string]int{
			"NEW REQUEST":       10,
			"REQUEST REVIEW":    1200,
			"READY TO SHIP":     1440,
			"SUBMISSION REVIEW": 240,
			"PHASE 1":           3120,
			"PHASE 2":           4560,
			"PHASE 3":           10080,
			"PHASE 4":           10080,
		},
		"scheduler.sweep_schedule":          DefaultSchedulerSweepSchedule,
		"scheduler.shutdown_timeout":        DefaultSchedulerShutdownTimeout,
		"scheduler.in_flight_poll_interval": DefaultSchedulerInFlightPollInterval,
		"daemon.shutdown_timeout":           DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":      DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":   DefaultDaemonStartupShutdownTimeout,
		"daemon.preflight_timeout":          DefaultDaemonPreflightTimeout,
		"daemon.stale_lock_ttl":             DefaultDaemonStaleLockTTL,
		"daemon.reconcile_on_start":         true,
		"daemon.reconcile_timeout":          DefaultDaemonReconcileTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".campwatch", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("CAMPWATCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CAMPWATCH_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" && cfg.Jira.APIToken == "" {
		cfg.Jira.APIToken = token
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" && cfg.Jira.Email == "" {
		cfg.Jira.Email = email
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && cfg.Slack.BotToken == "" {
		cfg.Slack.BotToken = token
	}
	if secret := os.Getenv("JIRA_WEBHOOK_SECRET"); secret != "" && cfg.Jira.WebhookSecret == "" {
		cfg.Jira.WebhookSecret = secret
	}

	if path, err := expandConfiguredPath(cfg.Tracker.DataPath); err == nil && path != "" {
		cfg.Tracker.DataPath = path
	}

	return &cfg, nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Clean(trimmed), nil
}
