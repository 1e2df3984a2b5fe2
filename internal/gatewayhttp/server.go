// Package gatewayhttp implements the gateway's external HTTP surface:
// the OpenAI-compatible chat-completions endpoint, model listing,
// valve admin, and health/diagnostics.
package gatewayhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/myndy/gateway/internal/agentrt"
	"github.com/myndy/gateway/internal/gwlog"
	"github.com/myndy/gateway/internal/gwmetrics"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/router"
	"github.com/myndy/gateway/internal/shadow"
	"github.com/myndy/gateway/internal/toolregistry"
	"github.com/myndy/gateway/internal/valves"
)

// Dependencies bundles everything the server needs to answer requests.
type Dependencies struct {
	PipelineID  string
	Agents      []AgentBinding
	Valves      *valves.Manager
	Ring        *gwlog.RingBuffer
	Diagnostics *gwlog.Diagnostics
	Observer    *shadow.Observer
	LLMClient   llm.Client
	Tools       *toolregistry.Registry
	Metrics     *gwmetrics.Metrics
	Logger      *slog.Logger
}

// Server is the gateway's HTTP front door.
type Server struct {
	deps       Dependencies
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger}
}

// newRuntime builds the agent runtime for one turn, reading
// max_concurrent_tools at call time so valve updates apply to the next
// request without a restart.
func (s *Server) newRuntime() *agentrt.Runtime {
	maxConcurrentTools := 4
	if s.deps.Valves != nil {
		if v := s.deps.Valves.GetInt("max_concurrent_tools"); v > 0 {
			maxConcurrentTools = v
		}
	}
	return agentrt.New(s.deps.LLMClient, s.deps.Tools, maxConcurrentTools)
}

// Mux builds the ServeMux so tests can exercise handlers directly
// without a listening socket.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleManifest)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)

	pfx := "/" + s.deps.PipelineID
	mux.HandleFunc("GET "+pfx+"/valves/spec", s.handleValvesSpec)
	mux.HandleFunc("GET "+pfx+"/valves", s.handleValvesCurrent)
	mux.HandleFunc("POST "+pfx+"/valves", s.handleValvesUpdate)
	mux.HandleFunc("POST "+pfx+"/valves/reset", s.handleValvesReset)
	mux.HandleFunc("GET "+pfx+"/logs", s.handleLogs)
	mux.HandleFunc("GET "+pfx+"/status", s.handleStatus)
	mux.HandleFunc("GET "+pfx+"/diagnostics", s.handleDiagnostics)
	return mux
}

// Serve binds addr and runs until ctx is cancelled. When the
// port_recovery valve is enabled, a bind failure triggers a best-effort
// attempt to terminate whatever process holds the port, then a bounded
// retry; with the valve off (the default) a bind failure is immediately
// fatal.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := s.bind(addr)
	if err != nil {
		return err
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

const maxBindAttempts = 3

func (s *Server) bind(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}
	if s.deps.Valves == nil || !s.deps.Valves.GetBool("port_recovery") {
		return nil, fmt.Errorf("gatewayhttp: listen: %w", err)
	}

	port := portFromAddr(addr)
	for attempt := 1; attempt <= maxBindAttempts; attempt++ {
		s.logger.Warn("bind failed, attempting port recovery",
			"addr", addr, "attempt", attempt, "error", err)
		if killErr := terminatePortHolder(port); killErr != nil {
			s.logger.Warn("port recovery could not terminate holder", "port", port, "error", killErr)
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			s.logger.Info("port recovered", "addr", addr, "attempt", attempt)
			return listener, nil
		}
	}
	return nil, fmt.Errorf("gatewayhttp: listen after %d recovery attempts: %w", maxBindAttempts, err)
}

func portFromAddr(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return strings.TrimPrefix(addr, ":")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        s.deps.PipelineID,
		"description": "agent-orchestration gateway",
		"endpoints": []string{
			"/v1/chat/completions", "/v1/models", "/health", "/metrics",
		},
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildModelList(s.deps.Agents))
}

func (s *Server) routingAgents() []router.AgentDescriptor {
	out := make([]router.AgentDescriptor, 0, len(s.deps.Agents))
	for _, a := range s.deps.Agents {
		out = append(out, a.RoutingDescriptor)
	}
	return out
}
