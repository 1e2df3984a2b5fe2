package gatewayhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/myndy/gateway/internal/agentrt"
	"github.com/myndy/gateway/internal/gwlog"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/router"
	"github.com/myndy/gateway/internal/toolregistry"
	"github.com/myndy/gateway/internal/valves"
	"github.com/myndy/gateway/pkg/chatapi"
)

func testValves(t *testing.T) *valves.Manager {
	t.Helper()
	dir := t.TempDir()
	m := valves.New("test-pipeline", dir+"/valves.json", nil)
	m.Register(valves.Spec{Name: "max_concurrent_tools", Type: valves.TypeInt, Default: 4, Category: "execution"})
	m.Register(valves.Spec{Name: "request_timeout_seconds", Type: valves.TypeInt, Default: 0, Category: "execution"})
	m.Register(valves.Spec{Name: "expose_logs_ui", Type: valves.TypeBool, Default: false, Category: "logging"})
	m.Register(valves.Spec{Name: "log_level", Type: valves.TypeEnum, Default: "info", EnumOptions: []string{"debug", "info", "warn", "error"}, Category: "logging"})
	return m
}

func testAgents() []AgentBinding {
	personal := AgentBinding{
		Descriptor: agentrt.AgentDescriptor{
			Name:          "personal_assistant",
			SystemPrompt:  "You are a helpful assistant.",
			MaxIterations: 5,
			MaxWallTime:   time.Second,
		},
		RoutingDescriptor: router.AgentDescriptor{
			Name:    "personal_assistant",
			Default: true,
			Bundle:  router.Bundle{Keywords: []string{"analyze"}, PriorityMultiplier: 1.0},
		},
	}
	shadowAgent := AgentBinding{
		Descriptor: agentrt.AgentDescriptor{Name: "shadow_observer", MaxIterations: 1},
		RoutingDescriptor: router.AgentDescriptor{
			Name:   "shadow_observer",
			Bundle: router.Bundle{PriorityMultiplier: 0},
		},
		IsShadow: true,
	}
	return []AgentBinding{personal, shadowAgent}
}

func newTestServer(t *testing.T, llmClient llm.Client) *Server {
	t.Helper()
	tools := toolregistry.New(nil)
	deps := Dependencies{
		PipelineID: "myndy-gateway",
		Agents:     testAgents(),
		Valves:     testValves(t),
		LLMClient:  llmClient,
		Tools:      tools,
	}
	return New(deps)
}

func postJSON(t *testing.T, mux http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatCompletionsExplicitModel(t *testing.T) {
	fake := llm.NewFakeClient(llm.Response{Text: "hello back", StopReason: llm.StopEndTurn})
	s := newTestServer(t, fake)

	rec := postJSON(t, s.Mux(), "/v1/chat/completions", chatapi.ChatCompletionRequest{
		Model:    "personal_assistant",
		Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chatapi.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("expected exactly one choice, got %d", len(resp.Choices))
	}
	if resp.Choices[0].Message.Content == "" {
		t.Fatalf("expected non-empty content")
	}
}

func TestChatCompletionsAutoRoutesViaRouter(t *testing.T) {
	fake := llm.NewFakeClient(llm.Response{Text: "routed response", StopReason: llm.StopEndTurn})
	s := newTestServer(t, fake)

	rec := postJSON(t, s.Mux(), "/v1/chat/completions", chatapi.ChatCompletionRequest{
		Model:    "auto",
		Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "please analyze this"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp chatapi.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "personal_assistant" {
		t.Fatalf("expected router to select personal_assistant, got %q", resp.Model)
	}
}

func TestChatCompletionsRejectsShadowAgentAsPrimary(t *testing.T) {
	fake := llm.NewFakeClient(llm.Response{Text: "unused"})
	s := newTestServer(t, fake)

	rec := postJSON(t, s.Mux(), "/v1/chat/completions", chatapi.ChatCompletionRequest{
		Model:    "shadow_observer",
		Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for shadow agent selection, got %d", rec.Code)
	}
}

func TestChatCompletionsAlwaysReturnsWellFormedResponseOnFailure(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Fallback = llm.Response{}
	// force an error path by using a runtime with no tools and a client
	// whose only scripted response is exhausted immediately, falling
	// back to an empty Response{} with no tool calls and no error --
	// exercise the degraded path via a one-nanosecond deadline instead.
	s := newTestServer(t, fake)
	s.deps.Agents[0].Descriptor.MaxWallTime = time.Nanosecond

	rec := postJSON(t, s.Mux(), "/v1/chat/completions", chatapi.ChatCompletionRequest{
		Model:    "personal_assistant",
		Messages: []chatapi.Message{{Role: chatapi.RoleUser, Content: "hi"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when the agent run degrades, got %d", rec.Code)
	}
	var resp chatapi.ChatCompletionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content == "" {
		t.Fatalf("expected a single well-formed choice with content, got %+v", resp.Choices)
	}
}

func TestModelsListsAutoAndNonShadowAgents(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	var list chatapi.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	var sawAuto, sawShadow bool
	for _, e := range list.Data {
		if e.ID == "auto" {
			sawAuto = true
		}
		if e.ID == "shadow_observer" {
			sawShadow = true
		}
	}
	if !sawAuto {
		t.Fatalf("expected auto pseudo-model in list: %+v", list.Data)
	}
	if sawShadow {
		t.Fatalf("shadow agent must never appear in the model list: %+v", list.Data)
	}
}

func TestValvesUpdateAndReset(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)

	rec := postJSON(t, s.Mux(), "/myndy-gateway/valves", map[string]any{"max_concurrent_tools": 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := s.deps.Valves.GetInt("max_concurrent_tools"); got != 8 {
		t.Fatalf("expected updated valve to take effect, got %d", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/myndy-gateway/valves/reset", nil)
	resetRec := httptest.NewRecorder()
	s.Mux().ServeHTTP(resetRec, req)
	if resetRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on reset, got %d", resetRec.Code)
	}
	if got := s.deps.Valves.GetInt("max_concurrent_tools"); got != 4 {
		t.Fatalf("expected reset to restore default 4, got %d", got)
	}
}

func TestModelListMarksPipelines(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	var list chatapi.ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if !list.Pipelines {
		t.Fatalf("expected pipelines=true in model list")
	}
}

func TestLogsEndpointGatedByExposeValve(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)
	s.deps.Ring = gwlog.NewRingBuffer(10)

	req := httptest.NewRequest(http.MethodGet, "/myndy-gateway/logs", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 while expose_logs_ui is off, got %d", rec.Code)
	}

	if _, err := s.deps.Valves.Update(map[string]any{"expose_logs_ui": true}); err != nil {
		t.Fatalf("enable expose_logs_ui: %v", err)
	}
	rec = httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/myndy-gateway/logs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once exposed, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	fake := llm.NewFakeClient()
	s := newTestServer(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
