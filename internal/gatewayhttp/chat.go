package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/myndy/gateway/internal/agentrt"
	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/gwlog"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/router"
	"github.com/myndy/gateway/internal/shadow"
	"github.com/myndy/gateway/pkg/chatapi"
)

// AgentBinding pairs a runtime-executable agent with its routing bundle
// and model-listing metadata.
type AgentBinding struct {
	Descriptor        agentrt.AgentDescriptor
	RoutingDescriptor router.AgentDescriptor
	IsShadow          bool
}

const autoModel = "auto"

func buildModelList(agents []AgentBinding) chatapi.ModelList {
	created := time.Now().Unix()
	entries := []chatapi.ModelEntry{{ID: autoModel, Name: "Automatic routing", Object: "model", Created: created, OwnedBy: "myndy-gateway"}}
	for _, a := range agents {
		if a.IsShadow {
			continue
		}
		entries = append(entries, chatapi.ModelEntry{ID: a.Descriptor.Name, Name: a.Descriptor.Name, Object: "model", Created: created, OwnedBy: "myndy-gateway"})
	}
	return chatapi.ModelList{Object: "list", Data: entries, Pipelines: true}
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatapi.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("malformed request body"))
		return
	}

	agentName, shadowRejected := s.resolveAgent(req)
	if shadowRejected {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("the shadow agent cannot be selected as a primary model"))
		return
	}

	binding, ok := s.findAgent(agentName)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("unknown model: "+agentName))
		return
	}

	turnID := uuid.NewString()
	user := userContextFromHeaders(r)
	userMessage, history := splitMessages(req.Messages)

	timeoutSeconds := s.deps.Valves.GetInt("request_timeout_seconds")
	ctx := r.Context()
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	s.noteState(turnID, "received")
	s.noteState(turnID, "routed")
	s.noteState(turnID, "executing")

	rec, err := s.newRuntime().Run(ctx, binding.Descriptor, userMessage, history, user)
	finish := chatapi.FinishStop
	content := rec.Content

	switch {
	case err != nil:
		s.logger.Error("agent run failed", "turn_id", turnID, "agent", binding.Descriptor.Name, "error", err)
		finish = chatapi.FinishError
		content = "I'm sorry, something went wrong while processing your request."
	case rec.Reason == agentrt.ReasonIterationCap:
		s.logger.Warn("max iterations reached", "turn_id", turnID, "agent", binding.Descriptor.Name, "iterations", rec.Iterations)
		finish = chatapi.FinishLength
	case rec.Reason == agentrt.ReasonDeadline:
		s.logger.Warn("agent run hit its deadline", "turn_id", turnID, "agent", binding.Descriptor.Name)
		finish = chatapi.FinishTimeout
		if content == "" {
			content = "The request took too long to complete."
		}
	}
	if content == "" {
		content = "I wasn't able to produce a response."
	}

	s.noteState(turnID, "responded")
	s.recordTurnMetrics(turnID, binding.Descriptor.Name, finish, rec.ToolCalls)

	resp := chatapi.ChatCompletionResponse{
		ID:      "chatcmpl-" + turnID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   binding.Descriptor.Name,
		Choices: []chatapi.Choice{{
			Index:        0,
			Message:      chatapi.Message{Role: chatapi.RoleAssistant, Content: content},
			FinishReason: finish,
		}},
		Usage: chatapi.Usage{
			PromptTokens:     rec.InputTokens,
			CompletionTokens: rec.OutputTokens,
			TotalTokens:      rec.InputTokens + rec.OutputTokens,
		},
	}

	writeJSON(w, http.StatusOK, resp)

	if s.deps.Observer != nil {
		s.deps.Observer.Schedule(shadow.Task{
			UserMessage:      userMessage,
			AssistantMessage: content,
			PrimaryAgent:     binding.Descriptor.Name,
			TurnID:           turnID,
			User:             user,
		}, func(state string) { s.noteState(turnID, state) })
	}
}

func (s *Server) resolveAgent(req chatapi.ChatCompletionRequest) (agentName string, shadowRejected bool) {
	if req.Model == "" || req.Model == autoModel {
		decision := router.Decide(lastUserMessage(req.Messages), nil, s.routingAgents())
		if s.deps.Metrics != nil {
			s.deps.Metrics.RoutingDecisionsTotal.WithLabelValues(decision.Agent).Inc()
		}
		return decision.Agent, false
	}
	for _, a := range s.deps.Agents {
		if a.Descriptor.Name == req.Model && a.IsShadow {
			return "", true
		}
	}
	return req.Model, false
}

func (s *Server) findAgent(name string) (AgentBinding, bool) {
	for _, a := range s.deps.Agents {
		if a.Descriptor.Name == name {
			return a, true
		}
	}
	return AgentBinding{}, false
}

var turnStates = map[string]gwlog.TurnState{
	"received":         gwlog.StateReceived,
	"routed":           gwlog.StateRouted,
	"executing":        gwlog.StateExecuting,
	"responded":        gwlog.StateResponded,
	"shadow-scheduled": gwlog.StateShadowScheduled,
	"shadow-complete":  gwlog.StateShadowComplete,
	"shadow-dropped":   gwlog.StateShadowDropped,
	"shadow-failed":    gwlog.StateShadowFailed,
}

var shadowOutcomeLabels = map[string]string{
	"shadow-complete": "completed",
	"shadow-dropped":  "dropped",
	"shadow-failed":   "failed",
}

func (s *Server) noteState(turnID, state string) {
	s.logger.Debug("turn state transition", "turn_id", turnID, "state", state)
	if s.deps.Diagnostics != nil {
		if ts, ok := turnStates[state]; ok {
			s.deps.Diagnostics.Transition(ts)
		}
	}
	if s.deps.Metrics != nil {
		if outcome, ok := shadowOutcomeLabels[state]; ok {
			s.deps.Metrics.ShadowOutcomesTotal.WithLabelValues(outcome).Inc()
		}
	}
}

func (s *Server) recordTurnMetrics(turnID, agent, finish string, toolCalls []agentrt.ToolInvocationRecord) {
	for _, tc := range toolCalls {
		if tc.Error != "" {
			s.logger.Warn("tool invocation failed", "turn_id", turnID, "tool", tc.Name, "error", tc.Error)
		}
	}
	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.TurnsTotal.WithLabelValues(agent, finish).Inc()
	for _, tc := range toolCalls {
		outcome := "ok"
		if tc.Error != "" {
			outcome = "error"
		}
		s.deps.Metrics.ToolInvocationsTotal.WithLabelValues(tc.Name, string(tc.Source), outcome).Inc()
	}
}

func lastUserMessage(messages []chatapi.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chatapi.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func splitMessages(messages []chatapi.Message) (userMessage string, history []llm.Message) {
	for i, m := range messages {
		if m.Role == chatapi.RoleUser && i == len(messages)-1 {
			userMessage = m.Content
			continue
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return userMessage, history
}

func userContextFromHeaders(r *http.Request) *backendclient.UserContext {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		return nil
	}
	authenticated, _ := strconv.ParseBool(r.Header.Get("X-User-Authenticated"))
	return &backendclient.UserContext{
		ID:            id,
		DisplayName:   r.Header.Get("X-User-Name"),
		Email:         r.Header.Get("X-User-Email"),
		Role:          r.Header.Get("X-User-Role"),
		Authenticated: authenticated,
	}
}

func errorEnvelope(message string) map[string]any {
	return map[string]any{"error": map[string]any{"message": message}}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
