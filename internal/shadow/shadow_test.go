package shadow

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakePipeline struct {
	mu         sync.Mutex
	panicOn    string
	writes     []string
	extractErr error
}

func (f *fakePipeline) ExtractEntities(ctx context.Context, t Task) ([]string, error) {
	if f.panicOn == "extract" && t.TurnID == "panic-turn" {
		panic("boom")
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return []string{"entity"}, nil
}

func (f *fakePipeline) ClassifyIntent(ctx context.Context, t Task, entities []string) (string, error) {
	return "preference_statement", nil
}

func (f *fakePipeline) JudgeDurability(ctx context.Context, t Task, intent string) (bool, error) {
	return true, nil
}

func (f *fakePipeline) Write(ctx context.Context, t Task, intent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, t.TurnID)
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// A panicking shadow task must not escape to the caller and must be
// counted as shadow-failed.
func TestShadowPanicIsolation(t *testing.T) {
	pipeline := &fakePipeline{panicOn: "extract"}
	obs := New(pipeline, Config{Enabled: true, Deadline: time.Second, MaxConcurrency: 4})

	var states []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	obs.Schedule(Task{TurnID: "panic-turn"}, record)

	waitFor(t, time.Second, func() bool { return obs.Counters().Failed == 1 })

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, s := range states {
		if s == "shadow-failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a shadow-failed state transition, got %v", states)
	}
}

func TestShadowDisabledIsNoOp(t *testing.T) {
	pipeline := &fakePipeline{}
	obs := New(pipeline, Config{Enabled: false})
	obs.Schedule(Task{TurnID: "t1"}, nil)

	time.Sleep(10 * time.Millisecond)
	c := obs.Counters()
	if c.Completed != 0 || c.Failed != 0 || c.Dropped != 0 {
		t.Fatalf("expected no activity while disabled, got %+v", c)
	}
}

func TestShadowDropsWhenSaturated(t *testing.T) {
	pipeline := &fakePipeline{}
	obs := New(pipeline, Config{Enabled: true, Deadline: time.Second, MaxConcurrency: 1})

	block := make(chan struct{})
	blockingPipeline := &blockingFakePipeline{fakePipeline: fakePipeline{}, block: block}
	obs2 := New(blockingPipeline, Config{Enabled: true, Deadline: time.Second, MaxConcurrency: 1})

	obs2.Schedule(Task{TurnID: "first"}, nil)
	time.Sleep(10 * time.Millisecond) // let the first task acquire the only slot
	obs2.Schedule(Task{TurnID: "second"}, nil)

	waitFor(t, time.Second, func() bool { return obs2.Counters().Dropped == 1 })
	close(block)
	_ = obs
}

type blockingFakePipeline struct {
	fakePipeline
	block chan struct{}
}

func (b *blockingFakePipeline) ExtractEntities(ctx context.Context, t Task) ([]string, error) {
	<-b.block
	return []string{}, nil
}
