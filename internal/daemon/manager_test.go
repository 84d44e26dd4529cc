package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/campwatch/internal/config"
)

type mockComponent struct {
	name         string
	dependencies []string
	initCalled   bool
	startCalled  bool
	stopCalled   bool
	initError    error
	healthResult *ComponentHealth
}

func newMockComponent(name string, dependencies []string) *mockComponent {
	return &mockComponent{
		name:         name,
		dependencies: dependencies,
		healthResult: &ComponentHealth{
			Name:    name,
			Healthy: true,
		},
	}
}

func (m *mockComponent) Name() string {
	return m.name
}

func (m *mockComponent) Dependencies() []string {
	return m.dependencies
}

func (m *mockComponent) Init(ctx context.Context) error {
	m.initCalled = true
	return m.initError
}

func (m *mockComponent) Start(ctx context.Context) error {
	m.startCalled = true
	return nil
}

func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopCalled = true
	return nil
}

func (m *mockComponent) Health(ctx context.Context) (*ComponentHealth, error) {
	return m.healthResult, nil
}

func testDaemonConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Jira: config.JiraConfig{
			Host:       "example.atlassian.net",
			ProjectKey: "CAMP",
		},
		Tracker: config.TrackerConfig{
			DataPath: filepath.Join(t.TempDir(), "data"),
		},
	}
}

func TestNewDaemon(t *testing.T) {
	if _, err := NewDaemon(nil); err == nil {
		t.Error("nil config should be rejected")
	}

	d, err := NewDaemon(testDaemonConfig(t))
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}
	if len(d.components) != 0 {
		t.Errorf("components = %d, want 0", len(d.components))
	}
	if d.Health() != StatusStarting {
		t.Errorf("health = %v, want starting", d.Health())
	}
}

func TestAddComponent_ShutdownOrderReversed(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))

	d.AddComponent(newMockComponent("Tracker", nil))
	d.AddComponent(newMockComponent("Scheduler", []string{"Tracker"}))
	d.AddComponent(newMockComponent("HTTPServer", []string{"Scheduler"}))

	want := []string{"HTTPServer", "Scheduler", "Tracker"}
	for i, name := range want {
		if d.shutdownOrder[i] != name {
			t.Errorf("shutdownOrder[%d] = %s, want %s", i, d.shutdownOrder[i], name)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, _ := NewDaemon(cfg)

	if err := d.validateConfig(); err != nil {
		t.Fatalf("validateConfig failed: %v", err)
	}
	if _, err := os.Stat(cfg.Tracker.DataPath); err != nil {
		t.Errorf("data directory should be created: %v", err)
	}

	cfg.Server.Port = 0
	if err := d.validateConfig(); err == nil {
		t.Error("invalid port should be rejected")
	}
	cfg.Server.Port = 8080

	cfg.Jira.ProjectKey = ""
	if err := d.validateConfig(); err == nil {
		t.Error("missing project key should be rejected")
	}
}

func TestResolveInitOrder(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))

	// Registered out of dependency order on purpose.
	d.AddComponent(newMockComponent("Scheduler", []string{"Tracker", "Reconciler"}))
	d.AddComponent(newMockComponent("Reconciler", []string{"Tracker"}))
	d.AddComponent(newMockComponent("Tracker", nil))

	order, err := d.resolveInitOrder()
	if err != nil {
		t.Fatalf("resolveInitOrder failed: %v", err)
	}

	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	if pos["Tracker"] > pos["Reconciler"] || pos["Reconciler"] > pos["Scheduler"] {
		t.Errorf("init order should respect dependencies, got %v", order)
	}
}

func TestResolveInitOrder_CircularDependency(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))

	d.AddComponent(newMockComponent("A", []string{"B"}))
	d.AddComponent(newMockComponent("B", []string{"A"}))

	if _, err := d.resolveInitOrder(); err == nil {
		t.Error("circular dependency should be rejected")
	}
}

func TestValidateDependencies_MissingDependency(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))
	d.AddComponent(newMockComponent("Scheduler", []string{"Tracker"}))

	if err := d.validateDependencies(); err == nil {
		t.Error("dependency on an unregistered component should be rejected")
	}
}

func TestInitializeComponents_RollbackOnFailure(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))

	good := newMockComponent("Tracker", nil)
	bad := newMockComponent("Scheduler", []string{"Tracker"})
	bad.initError = context.DeadlineExceeded

	d.AddComponent(good)
	d.AddComponent(bad)

	if err := d.initializeComponents(context.Background()); err == nil {
		t.Fatal("init failure should propagate")
	}
	if !good.initCalled {
		t.Error("dependency should be initialized first")
	}

	d.rollback(context.Background())
	if !good.stopCalled || !bad.stopCalled {
		t.Error("rollback should stop every registered component")
	}
	if d.Health() != StatusStopped {
		t.Errorf("health = %v, want stopped", d.Health())
	}
}

func TestComponentHealth(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))

	healthy := newMockComponent("Tracker", nil)
	unhealthy := newMockComponent("Scheduler", nil)
	unhealthy.healthResult = &ComponentHealth{Name: "Scheduler", Healthy: false}

	d.AddComponent(healthy)
	d.AddComponent(unhealthy)

	healths := d.ComponentHealth()
	if !healths["Tracker"].Healthy {
		t.Error("Tracker should report healthy")
	}
	if healths["Scheduler"].Healthy {
		t.Error("Scheduler should report unhealthy")
	}
}

func TestComponentLookup(t *testing.T) {
	d, _ := NewDaemon(testDaemonConfig(t))
	comp := newMockComponent("Tracker", nil)
	d.AddComponent(comp)

	if d.Component("Tracker") != comp {
		t.Error("Component should return the registered component")
	}
	if d.Component("Nope") != nil {
		t.Error("unknown name should return nil")
	}
}
