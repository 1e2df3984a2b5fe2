package shadow

import (
	"context"
	"strings"

	"github.com/myndy/gateway/internal/backendclient"
)

// BackendPipeline is the default Pipeline implementation: a cheap
// lexical entity/intent scan followed by a conditional analysis write.
type BackendPipeline struct {
	client *backendclient.Client
}

func NewBackendPipeline(client *backendclient.Client) *BackendPipeline {
	return &BackendPipeline{client: client}
}

// durableIntents are the intent labels that warrant a conditional
// write; anything else is observed and discarded.
var durableIntents = map[string]bool{
	"preference_statement": true,
	"factual_disclosure":   true,
	"status_update":        true,
}

func (p *BackendPipeline) ExtractEntities(ctx context.Context, t Task) ([]string, error) {
	combined := strings.ToLower(t.UserMessage + " " + t.AssistantMessage)
	var entities []string
	for _, candidate := range []string{"i am", "i'm", "my name is", "i live", "i work", "i prefer", "i like", "i dislike"} {
		if strings.Contains(combined, candidate) {
			entities = append(entities, candidate)
		}
	}
	return entities, nil
}

func (p *BackendPipeline) ClassifyIntent(ctx context.Context, t Task, entities []string) (string, error) {
	if len(entities) == 0 {
		return "none", nil
	}
	lower := strings.ToLower(t.UserMessage)
	switch {
	case strings.Contains(lower, "prefer") || strings.Contains(lower, "like") || strings.Contains(lower, "dislike"):
		return "preference_statement", nil
	case strings.Contains(lower, "i am") || strings.Contains(lower, "i'm") || strings.Contains(lower, "my name is") || strings.Contains(lower, "i live") || strings.Contains(lower, "i work"):
		return "factual_disclosure", nil
	default:
		return "status_update", nil
	}
}

func (p *BackendPipeline) JudgeDurability(ctx context.Context, t Task, intent string) (bool, error) {
	return durableIntents[intent], nil
}

func (p *BackendPipeline) Write(ctx context.Context, t Task, intent string) error {
	if p.client == nil {
		return nil
	}
	return p.client.StoreConversationAnalysis(ctx, t.User, backendclient.ConversationAnalysis{
		ConversationID: t.TurnID,
		Intent:         intent,
		Durable:        true,
		Extra: map[string]any{
			"primary_agent": t.PrimaryAgent,
		},
	})
}
