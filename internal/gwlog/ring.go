// Package gwlog implements the gateway's structured logging and
// diagnostics surface: every log record is written to stdout via
// log/slog and also captured in a bounded ring buffer that the admin
// endpoints project as JSON.
package gwlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Record is one structured log entry as surfaced to the admin endpoints.
type Record struct {
	Time    time.Time      `json:"ts"`
	Level   string         `json:"level"`
	Source  string         `json:"source"`
	Message string         `json:"message"`
	TurnID  string         `json:"turn_id,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// RingBuffer is a fixed-capacity, lock-protected circular buffer of log
// records. Writes are constant time; reads take a snapshot.
type RingBuffer struct {
	mu      sync.Mutex
	records []Record
	cap     int
	next    int
	filled  bool
	dropped int64
}

// NewRingBuffer creates a ring buffer holding at most capacity records.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{
		records: make([]Record, capacity),
		cap:     capacity,
	}
}

// Push appends a record, evicting the oldest entry once full.
func (b *RingBuffer) Push(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[b.next] = r
	b.next = (b.next + 1) % b.cap
	if b.next == 0 {
		b.filled = true
	}
	if b.filled {
		b.dropped++
	}
}

// Resize changes the buffer capacity, discarding history. Used when the
// log_retention valve changes at runtime.
func (b *RingBuffer) Resize(capacity int) {
	if capacity <= 0 {
		capacity = 1000
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = make([]Record, capacity)
	b.cap = capacity
	b.next = 0
	b.filled = false
}

// Snapshot returns up to maxLines most recent records, newest last,
// optionally filtered by minimum level and a retention window.
func (b *RingBuffer) Snapshot(minLevel string, since time.Time, maxLines int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ordered []Record
	if b.filled {
		ordered = append(ordered, b.records[b.next:]...)
		ordered = append(ordered, b.records[:b.next]...)
	} else {
		ordered = append(ordered, b.records[:b.next]...)
	}

	minRank := levelRank(minLevel)
	out := make([]Record, 0, len(ordered))
	for _, r := range ordered {
		if r.Message == "" && r.Time.IsZero() {
			continue
		}
		if levelRank(r.Level) < minRank {
			continue
		}
		if !since.IsZero() && r.Time.Before(since) {
			continue
		}
		out = append(out, r)
	}
	if maxLines > 0 && len(out) > maxLines {
		out = out[len(out)-maxLines:]
	}
	return out
}

func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info", "":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}

// ringHandler is an slog.Handler that fans every record out to both a
// wrapped handler (stdout) and the ring buffer, so call sites only ever
// make one logging call to land in both places.
type ringHandler struct {
	next slog.Handler
	ring *RingBuffer
}

// NewHandler wraps next (typically an slog.JSONHandler writing to stdout)
// so every record is also pushed to ring.
func NewHandler(next slog.Handler, ring *RingBuffer) slog.Handler {
	return &ringHandler{next: next, ring: ring}
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ringHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := make(map[string]any, record.NumAttrs())
	var turnID, source string
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "turn_id":
			turnID, _ = a.Value.Any().(string)
		case "source":
			source, _ = a.Value.Any().(string)
		default:
			fields[a.Key] = a.Value.Any()
		}
		return true
	})
	h.ring.Push(Record{
		Time:    record.Time,
		Level:   levelName(record.Level),
		Source:  source,
		Message: record.Message,
		TurnID:  turnID,
		Fields:  fields,
	})
	return h.next.Handle(ctx, record)
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ringHandler{next: h.next.WithAttrs(attrs), ring: h.ring}
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	return &ringHandler{next: h.next.WithGroup(name), ring: h.ring}
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}
