package agentrt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/toolregistry"
)

func registryWithEchoTool(t *testing.T) *toolregistry.Registry {
	t.Helper()
	r := toolregistry.New(nil)
	err := r.Register(toolregistry.ToolSpec{
		Name: "echo",
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			return json.RawMessage(`{"ok":true}`), nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

// An agent whose LLM always answers with one tool call stops after
// exactly MaxIterations calls and reports iteration_cap.
func TestIterationCapTerminatesWithLength(t *testing.T) {
	toolCallResponse := llm.Response{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Input: json.RawMessage(`{}`)}},
	}
	fake := llm.NewFakeClient(toolCallResponse, toolCallResponse)
	fake.Fallback = toolCallResponse

	rt := New(fake, registryWithEchoTool(t), 4)
	agent := AgentDescriptor{Name: "personal_assistant", MaxIterations: 2}

	rec, err := rt.Run(context.Background(), agent, "do the thing repeatedly", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fake.CallCount() != 2 {
		t.Fatalf("expected exactly 2 LLM calls, got %d", fake.CallCount())
	}
	if rec.Reason != ReasonIterationCap {
		t.Fatalf("expected iteration_cap, got %s", rec.Reason)
	}
	if rec.Content == "" {
		t.Fatalf("expected a non-empty fallback summary")
	}
}

func TestNaturalStopOnNoToolCalls(t *testing.T) {
	fake := llm.NewFakeClient(llm.Response{Text: "all done", StopReason: llm.StopEndTurn})
	rt := New(fake, registryWithEchoTool(t), 4)
	agent := AgentDescriptor{Name: "personal_assistant", MaxIterations: 5}

	rec, err := rt.Run(context.Background(), agent, "hello", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Reason != ReasonNaturalStop {
		t.Fatalf("expected natural_stop, got %s", rec.Reason)
	}
	if rec.Content != "all done" {
		t.Fatalf("expected response content preserved, got %q", rec.Content)
	}
	if fake.CallCount() != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", fake.CallCount())
	}
}

func TestDeadlineTerminatesRun(t *testing.T) {
	toolCallResponse := llm.Response{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Input: json.RawMessage(`{}`)}},
	}
	fake := llm.NewFakeClient()
	fake.Fallback = toolCallResponse

	rt := New(fake, registryWithEchoTool(t), 4)
	agent := AgentDescriptor{Name: "personal_assistant", MaxIterations: 1 << 30, MaxWallTime: 5 * time.Millisecond}

	rec, err := rt.Run(context.Background(), agent, "loop forever", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Reason != ReasonDeadline {
		t.Fatalf("expected deadline, got %s", rec.Reason)
	}
}

func TestToolResultOrderMatchesCallOrder(t *testing.T) {
	fake := llm.NewFakeClient(llm.Response{
		ToolCalls: []llm.ToolCall{
			{ID: "call-a", Name: "echo", Input: json.RawMessage(`{}`)},
			{ID: "call-b", Name: "echo", Input: json.RawMessage(`{}`)},
			{ID: "call-c", Name: "echo", Input: json.RawMessage(`{}`)},
		},
	}, llm.Response{Text: "done"})

	rt := New(fake, registryWithEchoTool(t), 4)
	agent := AgentDescriptor{Name: "personal_assistant", MaxIterations: 5}

	rec, err := rt.Run(context.Background(), agent, "fan out", nil, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.ToolCalls) != 3 {
		t.Fatalf("expected 3 tool call records, got %d", len(rec.ToolCalls))
	}
	want := []string{"call-a", "call-b", "call-c"}
	for i, w := range want {
		if rec.ToolCalls[i].CallID != w {
			t.Fatalf("expected call order %v, got %+v", want, rec.ToolCalls)
		}
	}
}

func TestOnlyAllowlistedToolsAreAdvertised(t *testing.T) {
	r := toolregistry.New(nil)
	r.Register(toolregistry.ToolSpec{Name: "echo"})
	r.Register(toolregistry.ToolSpec{Name: "search"})

	rt := New(llm.NewFakeClient(llm.Response{Text: "ok"}), r, 4)
	defs := rt.allowedToolDefinitions([]string{"echo"})
	if len(defs) != 1 || defs[0].Name != "echo" {
		t.Fatalf("expected only echo to be advertised, got %+v", defs)
	}
}
