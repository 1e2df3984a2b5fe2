// Package agents defines the gateway's fixed, in-process agent set:
// the keyword/pattern routing bundle each agent answers to and the
// runtime budget it executes under.
package agents

import (
	"regexp"
	"time"

	"github.com/myndy/gateway/internal/agentrt"
	"github.com/myndy/gateway/internal/router"
)

// Name constants for the two in-scope agents.
const (
	PersonalAssistant = "personal_assistant"
	ShadowObserver    = "shadow_observer"
)

var personalAssistantKeywords = []string{
	"calendar", "schedule", "appointment", "meeting", "time", "date", "weather", "temperature", "forecast",
	"remind", "task", "todo", "organize", "plan", "event", "deadline",
	"remember", "contact", "person", "email", "phone", "address", "save", "store", "update", "delete",
	"information", "database", "knowledge", "entity", "relationship",
	"research", "analyze", "document", "text", "sentiment", "language", "summarize", "extract", "study",
	"investigate", "report", "paper", "article", "analysis", "insights",
	"health", "fitness", "exercise", "sleep", "steps", "heart", "blood", "medical", "wellness",
	"workout", "activity", "calories",
	"money", "expense", "cost", "budget", "spending", "transaction", "financial", "price",
	"payment", "bank", "account", "dollar", "finance",
}

var personalAssistantPatterns = compilePatterns(
	`what.*time|current.*time|time.*now`,
	`weather|temperature|forecast`,
	`temperature.*in|weather.*in`,
	`schedule|calendar|appointment`,
	`remind.*me|set.*reminder`,
	`what.*date|today.*date`,
	`meeting|event`,
	`\b\w+@\w+\.\w+\b`,
	`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
	`\b[A-Z][a-z]+ [A-Z][a-z]+\b`,
	`works at|employed by|job at|company|organization`,
	`lives in|address|location|located at`,
	`analyze.*sentiment|sentiment.*analysis`,
	`summarize|summary`,
	`extract.*from|parse.*document`,
	`research.*topic|investigate`,
	`what.*language|detect.*language`,
	`document.*analysis`,
	`health.*data|fitness.*data`,
	`sleep.*pattern|sleep.*quality`,
	`exercise|workout|physical.*activity`,
	`heart.*rate|blood.*pressure`,
	`steps|calories|weight`,
	`\$\d+|\d+.*dollar`,
	`expense|spending|cost`,
	`budget|financial|transaction`,
	`paid|payment|bank|account`,
	`\bparagraph\b`,
)

var shadowObserverKeywords = []string{
	"pattern", "behavior", "preference", "learn", "observe", "track", "monitor", "analyze behavior", "understanding", "insights",
}

var shadowObserverPatterns = compilePatterns(
	`learn.*about.*me|understand.*me|analyze.*behavior`,
	`what.*pattern|behavioral.*pattern`,
	`preference|how.*I.*usually|my.*habit`,
	`observe|monitor.*behavior|track.*pattern`,
	`insight.*about|understand.*better`,
)

// personalAssistantTools is the full tool surface; the assistant is the
// one agent that answers users directly, so it sees everything.
var personalAssistantTools = []string{
	"memory_search", "create_person", "add_fact",
	"get_profile", "update_profile",
	"get_status", "update_status",
	"search_conversations", "current_time",
}

// shadowObserverTools is read-only: the observation pipeline performs
// its own writes through the backend client, never through the agent
// tool loop.
var shadowObserverTools = []string{
	"memory_search", "search_conversations",
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+expr))
	}
	return out
}

// Binding is the unit handed to the gateway HTTP server: routing bundle
// plus runtime execution config for one agent.
type Binding struct {
	Routing router.AgentDescriptor
	Runtime agentrt.AgentDescriptor
}

// Defaults returns the fixed two-agent set: personal_assistant (the
// default, comprehensive responder) and shadow_observer (background
// pattern analysis, priority_multiplier 0 so it can never win routing).
// maxIterations and maxWallTime come from the agents category valves so
// callers can rebuild the set after a restart-required valve change.
func Defaults(maxIterations int, maxWallTime time.Duration) []Binding {
	return []Binding{
		{
			Routing: router.AgentDescriptor{
				Name:    PersonalAssistant,
				Default: true,
				Bundle: router.Bundle{
					Keywords:           personalAssistantKeywords,
					Patterns:           personalAssistantPatterns,
					PriorityMultiplier: 1.0,
				},
			},
			Runtime: agentrt.AgentDescriptor{
				Name:          PersonalAssistant,
				SystemPrompt:  personalAssistantSystemPrompt,
				ToolAllowlist: personalAssistantTools,
				MaxIterations: maxIterations,
				MaxWallTime:   maxWallTime,
			},
		},
		{
			Routing: router.AgentDescriptor{
				Name: ShadowObserver,
				Bundle: router.Bundle{
					Keywords:           shadowObserverKeywords,
					Patterns:           shadowObserverPatterns,
					PriorityMultiplier: 0.0,
				},
			},
			Runtime: agentrt.AgentDescriptor{
				Name:          ShadowObserver,
				SystemPrompt:  shadowObserverSystemPrompt,
				ToolAllowlist: shadowObserverTools,
				MaxIterations: maxIterations,
				MaxWallTime:   maxWallTime,
			},
		},
	}
}

const personalAssistantSystemPrompt = `You are the personal assistant agent of an agent-orchestration gateway. ` +
	`You handle scheduling, reminders, contacts, research, health tracking, and finance questions using the ` +
	`tools available to you. Answer directly and concisely.`

const shadowObserverSystemPrompt = `You silently observe user behavior and preferences. You are never the ` +
	`primary responder to a user; your analysis only feeds the background observation pipeline.`
