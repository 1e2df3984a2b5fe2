package backendclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnonymousHeaderFallback(t *testing.T) {
	var gotID, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(headerUserID)
		gotAuth = r.Header.Get(headerUserAuthenticated)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Status{State: "ok"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.GetStatus(context.Background(), nil); err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if gotID != anonymousMarker {
		t.Fatalf("expected anonymous marker, got %q", gotID)
	}
	if gotAuth != "false" {
		t.Fatalf("expected authenticated=false, got %q", gotAuth)
	}
}

func TestUserHeaderPropagation(t *testing.T) {
	var gotID, gotName, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(headerUserID)
		gotName = r.Header.Get(headerUserName)
		gotAuth = r.Header.Get(headerUserAuthenticated)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"state":"ok"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	user := &UserContext{ID: "u1", DisplayName: "Ada", Authenticated: true}
	if _, err := c.GetStatus(context.Background(), user); err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if gotID != "u1" || gotName != "Ada" || gotAuth != "true" {
		t.Fatalf("unexpected headers: id=%q name=%q auth=%q", gotID, gotName, gotAuth)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusBadRequest, KindValidation},
		{http.StatusInternalServerError, KindUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"message":"boom"}`))
		}))
		c := New(Config{BaseURL: srv.URL})
		_, err := c.GetStatus(context.Background(), nil)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !IsKind(err, tc.want) {
			t.Fatalf("status %d: expected kind %s, got %v", tc.status, tc.want, err)
		}
	}
}

func TestContextCancellationHonored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.GetStatus(ctx, nil)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if !IsKind(err, KindUnavailable) {
		t.Fatalf("expected unavailable classification for transport failure, got %v", err)
	}
}

func TestRawPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/custom/endpoint" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	raw, err := c.Raw(context.Background(), "GET", "/api/v1/custom/endpoint", nil, nil)
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	var decoded struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil || !decoded.OK {
		t.Fatalf("unexpected raw payload: %s", raw)
	}
}
