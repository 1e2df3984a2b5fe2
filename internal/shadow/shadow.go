// Package shadow implements the background conversation-observation
// pipeline: a bounded-concurrency, fire-and-forget task that mines a
// completed turn for durable facts and writes them back to the
// knowledge backend. Saturation drops tasks and counts the drops;
// nothing queues unboundedly.
package shadow

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/myndy/gateway/internal/backendclient"
)

// Task is the input to one shadow observation run.
type Task struct {
	UserMessage      string
	AssistantMessage string
	PrimaryAgent     string
	TurnID           string
	User             *backendclient.UserContext
}

// Stage is one step of the observation pipeline.
type Stage string

const (
	StageEntityExtraction     Stage = "entity_extraction"
	StageIntentClassification Stage = "intent_classification"
	StageDurabilityJudgment   Stage = "durability_judgment"
	StageConditionalWrite     Stage = "conditional_write"
)

// Pipeline runs the four stages of shadow observation over a Task. It
// is supplied by the caller so the stages can be swapped out;
// BackendPipeline is the default implementation and writes through a
// *backendclient.Client.
type Pipeline interface {
	ExtractEntities(ctx context.Context, t Task) ([]string, error)
	ClassifyIntent(ctx context.Context, t Task, entities []string) (string, error)
	JudgeDurability(ctx context.Context, t Task, intent string) (bool, error)
	Write(ctx context.Context, t Task, intent string) error
}

// Observer schedules and runs shadow tasks, bounded by MaxConcurrency
// across all turns, each subject to its own Deadline.
type Observer struct {
	pipeline Pipeline
	logger   *slog.Logger

	mu       sync.Mutex
	enabled  bool
	deadline time.Duration
	sem      chan struct{}

	completed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// Config configures an Observer.
type Config struct {
	Enabled        bool
	Deadline       time.Duration
	MaxConcurrency int
	Logger         *slog.Logger
}

func New(pipeline Pipeline, cfg Config) *Observer {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		pipeline: pipeline,
		logger:   logger,
		enabled:  cfg.Enabled,
		deadline: cfg.Deadline,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Reconfigure updates live settings from the shadow_* valves.
func (o *Observer) Reconfigure(enabled bool, deadline time.Duration, maxConcurrency int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = enabled
	if deadline > 0 {
		o.deadline = deadline
	}
	if maxConcurrency > 0 && maxConcurrency != cap(o.sem) {
		o.sem = make(chan struct{}, maxConcurrency)
	}
}

// Schedule launches t in the background, never blocking the caller.
// When the observer is disabled, scheduling is a no-op. When the
// concurrency cap is saturated, the task is dropped and counted rather
// than queued.
func (o *Observer) Schedule(t Task, onStateChange func(state string)) {
	o.mu.Lock()
	enabled := o.enabled
	deadline := o.deadline
	sem := o.sem
	o.mu.Unlock()

	if !enabled {
		return
	}

	select {
	case sem <- struct{}{}:
	default:
		o.dropped.Add(1)
		o.logger.Warn("shadow task dropped: concurrency cap reached", "turn_id", t.TurnID)
		if onStateChange != nil {
			onStateChange("shadow-dropped")
		}
		return
	}

	go func() {
		defer func() { <-sem }()
		o.run(t, deadline, onStateChange)
	}()
}

func (o *Observer) run(t Task, deadline time.Duration, onStateChange func(state string)) {
	defer func() {
		if r := recover(); r != nil {
			o.failed.Add(1)
			o.logger.Error("shadow observer panicked", "turn_id", t.TurnID, "panic", r, "stack", string(debug.Stack()))
			if onStateChange != nil {
				onStateChange("shadow-failed")
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	if onStateChange != nil {
		onStateChange("shadow-scheduled")
	}

	entities, err := o.pipeline.ExtractEntities(ctx, t)
	if err != nil {
		o.failed.Add(1)
		o.logger.Warn("shadow entity extraction failed", "turn_id", t.TurnID, "error", err)
		if onStateChange != nil {
			onStateChange("shadow-failed")
		}
		return
	}

	intent, err := o.pipeline.ClassifyIntent(ctx, t, entities)
	if err != nil {
		o.failed.Add(1)
		o.logger.Warn("shadow intent classification failed", "turn_id", t.TurnID, "error", err)
		if onStateChange != nil {
			onStateChange("shadow-failed")
		}
		return
	}

	durable, err := o.pipeline.JudgeDurability(ctx, t, intent)
	if err != nil {
		o.failed.Add(1)
		o.logger.Warn("shadow durability judgment failed", "turn_id", t.TurnID, "error", err)
		if onStateChange != nil {
			onStateChange("shadow-failed")
		}
		return
	}
	if !durable {
		o.completed.Add(1)
		if onStateChange != nil {
			onStateChange("shadow-complete")
		}
		return
	}

	if err := o.pipeline.Write(ctx, t, intent); err != nil {
		o.failed.Add(1)
		o.logger.Warn("shadow conditional write failed", "turn_id", t.TurnID, "error", err)
		if onStateChange != nil {
			onStateChange("shadow-failed")
		}
		return
	}

	o.completed.Add(1)
	if onStateChange != nil {
		onStateChange("shadow-complete")
	}
}

// Counters is a snapshot of the observer's lifetime counters.
type Counters struct {
	Completed int64
	Dropped   int64
	Failed    int64
}

func (o *Observer) Counters() Counters {
	return Counters{
		Completed: o.completed.Load(),
		Dropped:   o.dropped.Load(),
		Failed:    o.failed.Load(),
	}
}
