package gatewayhttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

func (s *Server) handleValvesSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Valves.Catalogue())
}

func (s *Server) handleValvesCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Valves.Current())
}

func (s *Server) handleValvesUpdate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("malformed request body"))
		return
	}
	result, err := s.deps.Valves.Update(fields)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleValvesReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Valves.Reset(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Valves.Current())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Valves != nil && !s.deps.Valves.GetBool("expose_logs_ui") {
		writeJSON(w, http.StatusForbidden, errorEnvelope("log exposure is disabled; enable the expose_logs_ui valve"))
		return
	}
	if s.deps.Ring == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	level := r.URL.Query().Get("level")
	if level == "" && s.deps.Valves != nil {
		level = s.deps.Valves.GetString("log_level")
	}
	limit := parseQueryInt(r, "limit", 200)
	writeJSON(w, http.StatusOK, s.deps.Ring.Snapshot(level, time.Time{}, limit))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"pipeline_id": s.deps.PipelineID,
		"agents":      agentNames(s.deps.Agents),
	}
	if s.deps.Observer != nil {
		status["shadow"] = s.deps.Observer.Counters()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Diagnostics == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	limit := parseQueryInt(r, "scan_lines", 500)
	writeJSON(w, http.StatusOK, map[string]any{
		"turn_states": s.deps.Diagnostics.Summary(),
		"suggestions": s.deps.Diagnostics.ScanSuggestions(limit),
	})
}

func agentNames(agents []AgentBinding) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Descriptor.Name)
	}
	return out
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
