// Package agentrt implements the gateway's bounded tool-use agent
// loop: an iteration- and wall-time-capped state machine with
// semaphore-bounded concurrent tool dispatch and order-preserving
// results.
package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/llm"
	"github.com/myndy/gateway/internal/toolregistry"
)

// TerminationReason distinguishes why a run ended.
type TerminationReason string

const (
	ReasonNaturalStop  TerminationReason = "natural_stop"
	ReasonIterationCap TerminationReason = "iteration_cap"
	ReasonDeadline     TerminationReason = "deadline"
	ReasonFatalError   TerminationReason = "fatal_error"
)

// AgentDescriptor is one configured agent: its system prompt, the tools
// it may call, and its execution budget.
type AgentDescriptor struct {
	Name          string
	SystemPrompt  string
	ToolAllowlist []string
	MaxIterations int
	MaxWallTime   time.Duration
}

// ToolInvocationRecord is one tool call made during a run, kept for
// diagnostics and for the shadow observer's transcript mining.
type ToolInvocationRecord struct {
	CallID  string
	Name    string
	Source  toolregistry.Source
	Latency time.Duration
	Error   string
}

// TurnRecord is the outcome of one Run call.
type TurnRecord struct {
	Content      string
	Reason       TerminationReason
	Iterations   int
	ToolCalls    []ToolInvocationRecord
	InputTokens  int
	OutputTokens int
}

// Runtime drives one agent through its tool-use loop.
type Runtime struct {
	llmClient          llm.Client
	tools              *toolregistry.Registry
	maxConcurrentTools int
}

// New creates a Runtime. maxConcurrentTools bounds in-turn parallel tool
// dispatch (the max_concurrent_tools valve).
func New(llmClient llm.Client, tools *toolregistry.Registry, maxConcurrentTools int) *Runtime {
	if maxConcurrentTools <= 0 {
		maxConcurrentTools = 1
	}
	return &Runtime{llmClient: llmClient, tools: tools, maxConcurrentTools: maxConcurrentTools}
}

// Run executes agent's bounded tool-use loop against the given user
// message and conversation history.
func (rt *Runtime) Run(ctx context.Context, agent AgentDescriptor, userMessage string, history []llm.Message, user *backendclient.UserContext) (TurnRecord, error) {
	maxIterations := agent.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if agent.MaxWallTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, agent.MaxWallTime)
		defer cancel()
	}

	system := buildSystemPrompt(agent.SystemPrompt, user)
	toolDefs := rt.allowedToolDefinitions(agent.ToolAllowlist)

	transcript := make([]llm.Message, 0, len(history)+1)
	transcript = append(transcript, history...)
	transcript = append(transcript, llm.Message{Role: llm.RoleUser, Content: userMessage})

	rec := TurnRecord{}

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := runCtx.Err(); err != nil {
			rec.Reason = ReasonDeadline
			rec.Iterations = iteration
			return rec, nil
		}

		resp, err := rt.llmClient.Complete(runCtx, llm.Request{
			System:   system,
			Messages: transcript,
			Tools:    toolDefs,
		})
		if err != nil {
			if runCtx.Err() != nil {
				rec.Reason = ReasonDeadline
				rec.Iterations = iteration
				return rec, nil
			}
			rec.Reason = ReasonFatalError
			rec.Iterations = iteration
			return rec, fmt.Errorf("agentrt: llm completion failed: %w", err)
		}

		rec.InputTokens += resp.InputTokens
		rec.OutputTokens += resp.OutputTokens
		rec.Iterations = iteration + 1

		if len(resp.ToolCalls) == 0 {
			rec.Content = resp.Text
			rec.Reason = ReasonNaturalStop
			return rec, nil
		}

		transcript = append(transcript, llm.Message{Role: llm.RoleAssistant, ToolCalls: resp.ToolCalls, Content: resp.Text})

		results, records := rt.dispatchToolCalls(runCtx, resp.ToolCalls, user)
		rec.ToolCalls = append(rec.ToolCalls, records...)
		transcript = append(transcript, llm.Message{Role: llm.RoleUser, ToolResults: results})

		if runCtx.Err() != nil {
			rec.Reason = ReasonDeadline
			return rec, nil
		}
	}

	rec.Reason = ReasonIterationCap
	rec.Content = summarizeIncomplete(transcript)
	return rec, nil
}

// dispatchToolCalls runs tool calls concurrently, bounded by
// maxConcurrentTools, and returns results in the same order as calls
// regardless of completion order.
func (rt *Runtime) dispatchToolCalls(ctx context.Context, calls []llm.ToolCall, user *backendclient.UserContext) ([]llm.ToolResult, []ToolInvocationRecord) {
	results := make([]llm.ToolResult, len(calls))
	records := make([]ToolInvocationRecord, len(calls))

	sem := make(chan struct{}, rt.maxConcurrentTools)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc llm.ToolCall) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = llm.ToolResult{ToolCallID: tc.ID, Content: ctx.Err().Error(), IsError: true}
				records[idx] = ToolInvocationRecord{CallID: tc.ID, Name: tc.Name, Error: ctx.Err().Error()}
				return
			}

			inv, err := rt.tools.Invoke(ctx, tc.Name, json.RawMessage(tc.Input), user)
			if err != nil {
				results[idx] = llm.ToolResult{ToolCallID: tc.ID, Content: err.Error(), IsError: true}
				records[idx] = ToolInvocationRecord{CallID: tc.ID, Name: tc.Name, Error: err.Error()}
				return
			}
			results[idx] = llm.ToolResult{ToolCallID: tc.ID, Content: string(inv.Result)}
			records[idx] = ToolInvocationRecord{CallID: tc.ID, Name: tc.Name, Source: inv.Source, Latency: inv.Latency}
		}(i, call)
	}

	wg.Wait()
	return results, records
}

func (rt *Runtime) allowedToolDefinitions(allowlist []string) []llm.ToolDefinition {
	if rt.tools == nil {
		return nil
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		allowed[name] = struct{}{}
	}
	specs := rt.tools.List("")
	defs := make([]llm.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		if len(allowed) > 0 {
			if _, ok := allowed[s.Name]; !ok {
				continue
			}
		}
		defs = append(defs, llm.ToolDefinition{Name: s.Name, Description: s.Description, InputSchema: s.InputSchema})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func buildSystemPrompt(base string, user *backendclient.UserContext) string {
	block := "[user_context: anonymous]"
	if user != nil {
		encoded, err := json.Marshal(user)
		if err == nil {
			block = "[user_context: " + string(encoded) + "]"
		}
	}
	if base == "" {
		return block
	}
	return base + "\n\n" + block
}

func summarizeIncomplete(transcript []llm.Message) string {
	return "I was unable to finish this within the allotted number of steps. Here is what I found before stopping: " + lastAssistantText(transcript)
}

func lastAssistantText(transcript []llm.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == llm.RoleAssistant && transcript[i].Content != "" {
			return transcript[i].Content
		}
	}
	return "no partial answer was produced."
}
