package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/toolregistry"
)

func TestRegisterAllInstallsEveryTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := backendclient.New(backendclient.Config{BaseURL: srv.URL})
	reg := toolregistry.New(nil)

	if err := RegisterAll(reg, client); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	for _, name := range []string{
		"memory_search", "create_person", "add_fact", "get_profile",
		"update_profile", "get_status", "update_status",
		"search_conversations", "current_time",
	} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("expected tool %q to be registered", name)
		}
	}
}

func TestMemorySearchToolRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(backendclient.MemorySearchResponse{
			Results: []backendclient.MemoryResult{{ID: "1", Content: "hi", Score: 0.9}},
		})
	}))
	defer srv.Close()

	client := backendclient.New(backendclient.Config{BaseURL: srv.URL})
	reg := toolregistry.New(nil)
	if err := RegisterAll(reg, client); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}

	inv, err := reg.Invoke(context.Background(), "memory_search", json.RawMessage(`{"query":"hello"}`), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if inv.IsError {
		t.Fatalf("unexpected error invocation: %s", inv.Error)
	}
	var resp backendclient.MemorySearchResponse
	if err := json.Unmarshal(inv.Result, &resp); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "1" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

// With the backend unreachable, current_time resolves through the
// local handler, is marked local-fallback, and echoes the requested
// timezone.
func TestCurrentTimeFallsBackToLocalClock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed immediately so the remote call gets connection refused

	client := backendclient.New(backendclient.Config{BaseURL: srv.URL})
	reg := toolregistry.New(nil)
	if err := reg.Register(currentTimeTool(client)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	inv, err := reg.Invoke(context.Background(), "current_time", json.RawMessage(`{"timezone":"UTC"}`), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if inv.Source != toolregistry.SourceLocalFallback {
		t.Fatalf("expected local-fallback source, got %s", inv.Source)
	}
	var out currentTimeResult
	if err := json.Unmarshal(inv.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Timezone != "UTC" {
		t.Fatalf("expected requested timezone echoed, got %q", out.Timezone)
	}
	if out.Time == "" {
		t.Fatalf("expected a timestamp")
	}
}
