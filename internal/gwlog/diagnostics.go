package gwlog

import (
	"sort"
	"strings"
	"sync"
	"time"
)

var timeZero = time.Time{}

// TurnState is a state in the per-turn diagnostics state machine.
type TurnState string

const (
	StateReceived        TurnState = "received"
	StateRouted          TurnState = "routed"
	StateExecuting       TurnState = "executing"
	StateResponded       TurnState = "responded"
	StateShadowScheduled TurnState = "shadow-scheduled"
	StateShadowComplete  TurnState = "shadow-complete"
	StateShadowDropped   TurnState = "shadow-dropped"
	StateShadowFailed    TurnState = "shadow-failed"
)

// stateOrder lists every state so diagnostics output always carries all
// of them as keys.
var stateOrder = []TurnState{
	StateReceived, StateRouted, StateExecuting, StateResponded,
	StateShadowScheduled, StateShadowComplete, StateShadowDropped, StateShadowFailed,
}

// Diagnostics accumulates per-state counters for the lifetime of the
// process (counts are not limited to a retention window) and scans
// recent log records for known error signatures.
type Diagnostics struct {
	mu     sync.Mutex
	counts map[TurnState]int64
	ring   *RingBuffer
}

// NewDiagnostics creates a diagnostics tracker backed by ring for its
// error-signature scan.
func NewDiagnostics(ring *RingBuffer) *Diagnostics {
	return &Diagnostics{counts: make(map[TurnState]int64), ring: ring}
}

// Transition records one state-machine transition. Callers log the
// transition through the structured logger separately; this method is
// the authoritative summary counter.
func (d *Diagnostics) Transition(state TurnState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[state]++
}

// Summary returns a snapshot of per-state counts with every state
// present, zero for states never reached.
func (d *Diagnostics) Summary() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64, len(stateOrder))
	for _, s := range stateOrder {
		out[string(s)] = d.counts[s]
	}
	return out
}

// errorSignatures maps a substring to an actionable suggestion.
var errorSignatures = []struct {
	substr     string
	suggestion string
}{
	{"connection refused", "backend appears unreachable; verify backend_base_url and that the service is running"},
	{"context deadline exceeded", "a downstream call exceeded its timeout; consider raising the relevant *_timeout_seconds valve"},
	{"unauthorized", "backend rejected credentials; verify backend_api_key"},
	{"tool not found", "an agent referenced a tool outside its allowlist or the tool was never registered"},
	{"schema validation", "a tool call's arguments failed schema validation; inspect the offending tool_call_id in the logs"},
	{"max iterations reached", "an agent hit its iteration cap; consider raising max_iterations or narrowing its tool_allowlist"},
	{"shadow observer panicked", "a shadow pipeline stage panicked; check the panic value in the surrounding log line"},
}

// scanText flattens a record's message and string-valued fields into one
// searchable line; error detail usually arrives as an "error" field, not
// in the message itself.
func scanText(rec Record) string {
	if len(rec.Fields) == 0 {
		return rec.Message
	}
	var b strings.Builder
	b.WriteString(rec.Message)
	for _, v := range rec.Fields {
		if s, ok := v.(string); ok {
			b.WriteString(" ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Suggestion is one actionable diagnostics finding.
type Suggestion struct {
	Signature  string `json:"signature"`
	Suggestion string `json:"suggestion"`
	Count      int    `json:"count"`
}

// ScanSuggestions scans the most recent maxLines warn-or-higher ring
// buffer records for known error signatures and returns actionable suggestions, most
// frequent first.
func (d *Diagnostics) ScanSuggestions(maxLines int) []Suggestion {
	records := d.ring.Snapshot("warn", timeZero, maxLines)
	counts := make(map[string]int)
	for _, rec := range records {
		text := strings.ToLower(scanText(rec))
		for _, sig := range errorSignatures {
			if strings.Contains(text, sig.substr) {
				counts[sig.substr]++
			}
		}
	}
	out := make([]Suggestion, 0, len(counts))
	for _, sig := range errorSignatures {
		if c, ok := counts[sig.substr]; ok {
			out = append(out, Suggestion{Signature: sig.substr, Suggestion: sig.suggestion, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
