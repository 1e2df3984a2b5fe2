package valves

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m := New("test-pipeline", filepath.Join(dir, "valves.json"), nil)
	RegisterDefaults(m)
	m.Load()
	return m
}

// A batch update applies valid fields and reports rejected ones
// without touching their prior values.
func TestUpdatePartialAcceptance(t *testing.T) {
	m := newTestManager(t)
	before, _ := m.Get("routing_confidence_threshold")

	result, err := m.Update(map[string]any{
		"routing_confidence_threshold": 1.5,
		"debug_mode":                   true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(result.Updated) != 1 || result.Updated["debug_mode"] != true {
		t.Fatalf("expected only debug_mode to be applied, got %#v", result.Updated)
	}
	if result.Validation["routing_confidence_threshold"].Success {
		t.Fatalf("expected routing_confidence_threshold to be rejected")
	}
	if result.Validation["routing_confidence_threshold"].Error == "" {
		t.Fatalf("expected a rejection reason")
	}
	if !result.Validation["debug_mode"].Success {
		t.Fatalf("expected debug_mode to succeed")
	}

	after, _ := m.Get("routing_confidence_threshold")
	if after != before {
		t.Fatalf("rejected field must retain its prior value: before=%v after=%v", before, after)
	}
}

func TestUpdateUnknownField(t *testing.T) {
	m := newTestManager(t)
	result, err := m.Update(map[string]any{"does_not_exist": 1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Validation["does_not_exist"].Success {
		t.Fatalf("expected unknown field to be rejected")
	}
	if len(result.Updated) != 0 {
		t.Fatalf("expected no fields applied")
	}
}

func TestRestartRequiredSurfaced(t *testing.T) {
	m := newTestManager(t)
	result, err := m.Update(map[string]any{"max_iterations": 15})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !result.RestartRequired {
		t.Fatalf("expected restart_required=true for a restart_required valve")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "valves.json")

	m1 := New("p1", path, nil)
	RegisterDefaults(m1)
	m1.Load()
	if _, err := m1.Update(map[string]any{"debug_mode": true}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted file: %v", err)
	}

	m2 := New("p1", path, nil)
	RegisterDefaults(m2)
	m2.Load()
	if !m2.GetBool("debug_mode") {
		t.Fatalf("expected debug_mode to survive reload")
	}
}

func TestListenerPanicDoesNotAbortOthers(t *testing.T) {
	m := newTestManager(t)
	var secondCalled bool
	m.OnChange(func(delta map[string]any) { panic("boom") })
	m.OnChange(func(delta map[string]any) { secondCalled = true })

	if _, err := m.Update(map[string]any{"debug_mode": true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !secondCalled {
		t.Fatalf("expected second listener to run despite first panicking")
	}
}

func TestListenersFireInRegistrationOrder(t *testing.T) {
	m := newTestManager(t)
	var order []int
	m.OnChange(func(delta map[string]any) { order = append(order, 1) })
	m.OnChange(func(delta map[string]any) { order = append(order, 2) })
	m.OnChange(func(delta map[string]any) { order = append(order, 3) })

	if _, err := m.Update(map[string]any{"debug_mode": true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected listeners in registration order, got %v", order)
	}
}

func TestReset(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Update(map[string]any{"debug_mode": true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.GetBool("debug_mode") {
		t.Fatalf("expected debug_mode reset to default false")
	}
}
