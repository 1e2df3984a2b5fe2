// Package router implements the gateway's pure, deterministic agent
// selection function. Keyword and pattern matches accumulate a weighted
// score per agent; the highest score wins, with tie-break, complexity,
// and collaborator thresholds applied on top.
package router

import (
	"regexp"
	"strings"
)

// Bundle declares the keywords and patterns that route a message to an
// agent, and the multiplier applied to its raw score.
type Bundle struct {
	Keywords           []string
	Patterns           []*regexp.Regexp
	PriorityMultiplier float64
}

// AgentDescriptor is one selectable agent.
type AgentDescriptor struct {
	Name    string
	Bundle  Bundle
	Default bool
}

const (
	weightKeyword = 2
	weightPattern = 3
)

// Message is the minimal shape the router needs from a chat message.
type Message struct {
	Role    string
	Content string
}

// RoutingDecision is the router's output.
type RoutingDecision struct {
	Agent                 string
	Rationale             string
	Confidence            float64
	Complexity            string
	Collaborators         []string
	RequiresCollaboration bool
	Scores                map[string]float64
}

const (
	ComplexitySimple  = "simple"
	ComplexityComplex = "complex"
)

// Decide selects an agent for message, given optional recent history
// and the available agents. It performs no I/O and is deterministic:
// identical inputs always yield identical outputs.
func Decide(message string, history []Message, agents []AgentDescriptor) RoutingDecision {
	lower := strings.ToLower(message)
	scores := make(map[string]float64, len(agents))

	for _, a := range agents {
		raw := scoreBundle(lower, a.Bundle)
		scores[a.Name] = raw * a.Bundle.PriorityMultiplier
	}

	winner, winnerScore := pickWinner(agents, scores)

	if winnerScore == 0 {
		def := defaultAgentName(agents)
		if def != "" {
			winner = def
		}
		return RoutingDecision{
			Agent:      winner,
			Rationale:  "no patterns matched",
			Confidence: 0,
			Complexity: ComplexitySimple,
			Scores:     scores,
		}
	}

	confidence := winnerScore / 10
	if confidence > 1.0 {
		confidence = 1.0
	}

	complexity := ComplexitySimple
	if winnerScore >= 5 {
		complexity = ComplexityComplex
	}

	threshold := 0.7 * winnerScore
	var collaborators []string
	for _, a := range agents {
		if a.Name == winner {
			continue
		}
		if scores[a.Name] >= threshold && scores[a.Name] > 0 {
			collaborators = append(collaborators, a.Name)
		}
	}

	return RoutingDecision{
		Agent:                 winner,
		Rationale:             "matched " + winner + " bundle",
		Confidence:            confidence,
		Complexity:            complexity,
		Collaborators:         collaborators,
		RequiresCollaboration: len(collaborators) > 0,
		Scores:                scores,
	}
}

func scoreBundle(lowerMessage string, b Bundle) float64 {
	var score float64
	for _, kw := range b.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(lowerMessage, k) {
			score += weightKeyword
		}
	}
	for _, p := range b.Patterns {
		if p == nil {
			continue
		}
		if p.MatchString(lowerMessage) {
			score += weightPattern
		}
	}
	return score
}

// pickWinner returns the highest-scoring agent, breaking ties by
// preferring the default agent, else declaration order.
func pickWinner(agents []AgentDescriptor, scores map[string]float64) (string, float64) {
	var best float64
	var tied []AgentDescriptor
	first := true
	for _, a := range agents {
		s := scores[a.Name]
		if first || s > best {
			best = s
			tied = []AgentDescriptor{a}
			first = false
			continue
		}
		if s == best {
			tied = append(tied, a)
		}
	}
	if len(tied) == 0 {
		return "", 0
	}
	for _, a := range tied {
		if a.Default {
			return a.Name, best
		}
	}
	return tied[0].Name, best
}

func defaultAgentName(agents []AgentDescriptor) string {
	for _, a := range agents {
		if a.Default {
			return a.Name
		}
	}
	if len(agents) > 0 {
		return agents[0].Name
	}
	return ""
}
