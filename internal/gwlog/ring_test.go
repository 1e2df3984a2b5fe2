package gwlog

import (
	"strconv"
	"testing"
	"time"
)

func TestRingBufferEviction(t *testing.T) {
	ring := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		ring.Push(Record{Time: time.Now(), Level: "info", Message: strconv.Itoa(i)})
	}
	snap := ring.Snapshot("", time.Time{}, 0)
	if len(snap) != 3 {
		t.Fatalf("expected 3 records after eviction, got %d", len(snap))
	}
	if snap[len(snap)-1].Message != "4" {
		t.Fatalf("expected newest record last, got %q", snap[len(snap)-1].Message)
	}
}

func TestRingBufferLevelFilter(t *testing.T) {
	ring := NewRingBuffer(10)
	ring.Push(Record{Time: time.Now(), Level: "debug", Message: "d"})
	ring.Push(Record{Time: time.Now(), Level: "warn", Message: "w"})
	ring.Push(Record{Time: time.Now(), Level: "error", Message: "e"})

	snap := ring.Snapshot("warn", time.Time{}, 0)
	if len(snap) != 2 {
		t.Fatalf("expected 2 records at warn+ level, got %d", len(snap))
	}
}

func TestDiagnosticsSummaryStableKeys(t *testing.T) {
	ring := NewRingBuffer(10)
	d := NewDiagnostics(ring)
	d.Transition(StateReceived)
	d.Transition(StateShadowFailed)
	d.Transition(StateShadowFailed)

	summary := d.Summary()
	if summary[string(StateShadowFailed)] != 2 {
		t.Fatalf("expected shadow-failed count 2, got %d", summary[string(StateShadowFailed)])
	}
	if summary[string(StateRouted)] != 0 {
		t.Fatalf("expected untouched states present with zero count")
	}
}

func TestDiagnosticsScanSuggestions(t *testing.T) {
	ring := NewRingBuffer(10)
	d := NewDiagnostics(ring)
	ring.Push(Record{Time: time.Now(), Level: "error", Message: "dial tcp: connection refused"})
	ring.Push(Record{Time: time.Now(), Level: "error", Message: "dial tcp: connection refused"})

	suggestions := d.ScanSuggestions(0)
	if len(suggestions) != 1 {
		t.Fatalf("expected one matched signature, got %d", len(suggestions))
	}
	if suggestions[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", suggestions[0].Count)
	}
}
