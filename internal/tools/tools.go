// Package tools registers the concrete tool set agents may call,
// wiring each one to a backend client operation. The gateway core only
// cares about a tool's name, schema, and invocation contract, so this
// package stays deliberately thin.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/myndy/gateway/internal/backendclient"
	"github.com/myndy/gateway/internal/toolregistry"
)

func schema(properties string, required string) json.RawMessage {
	raw := `{"type":"object","properties":` + properties + `,"required":` + required + `}`
	return json.RawMessage(raw)
}

// RegisterAll installs every backend-bound tool into reg.
func RegisterAll(reg *toolregistry.Registry, client *backendclient.Client) error {
	tools := []toolregistry.ToolSpec{
		memorySearchTool(client),
		createPersonTool(client),
		addFactTool(client),
		getProfileTool(client),
		updateProfileTool(client),
		getStatusTool(client),
		updateStatusTool(client),
		searchConversationsTool(client),
		currentTimeTool(client),
	}
	for _, spec := range tools {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func memorySearchTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "memory_search",
		Description: "Search the user's stored memory for relevant facts and context.",
		Category:    "memory",
		InputSchema: schema(`{"query":{"type":"string"},"limit":{"type":"integer"}}`, `["query"]`),
		Normalizer:  toolregistry.StripQuotedPrefix,
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var req backendclient.MemorySearchRequest
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
			resp, err := client.MemorySearch(ctx, user, req)
			if err != nil {
				return nil, err
			}
			return json.Marshal(resp)
		},
		Local: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			return json.Marshal(backendclient.MemorySearchResponse{Results: []backendclient.MemoryResult{}})
		},
	}
}

func createPersonTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "create_person",
		Description: "Create a new person record in the user's contact memory.",
		Category:    "memory",
		InputSchema: schema(`{"name":{"type":"string"},"notes":{"type":"string"}}`, `["name"]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var p backendclient.Person
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			out, err := client.CreatePerson(ctx, user, p)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func addFactTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "add_fact",
		Description: "Record a durable fact about a subject in the user's memory.",
		Category:    "memory",
		InputSchema: schema(`{"subject":{"type":"string"},"content":{"type":"string"}}`, `["subject","content"]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var f backendclient.Fact
			if err := json.Unmarshal(args, &f); err != nil {
				return nil, err
			}
			out, err := client.AddFact(ctx, user, f)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func getProfileTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "get_profile",
		Description: "Fetch the current user's profile.",
		Category:    "profile",
		InputSchema: schema(`{}`, `[]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			out, err := client.GetProfile(ctx, user)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func updateProfileTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "update_profile",
		Description: "Update fields on the current user's profile.",
		Category:    "profile",
		InputSchema: schema(`{"display_name":{"type":"string"},"preferences":{"type":"object"}}`, `[]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var p backendclient.Profile
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			out, err := client.UpdateProfile(ctx, user, p)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func getStatusTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "get_status",
		Description: "Fetch the current user's status.",
		Category:    "status",
		InputSchema: schema(`{}`, `[]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			out, err := client.GetStatus(ctx, user)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func updateStatusTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "update_status",
		Description: "Update the current user's status.",
		Category:    "status",
		InputSchema: schema(`{"state":{"type":"string"},"message":{"type":"string"}}`, `["state"]`),
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var s backendclient.Status
			if err := json.Unmarshal(args, &s); err != nil {
				return nil, err
			}
			out, err := client.UpdateStatus(ctx, user, s)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

func searchConversationsTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "search_conversations",
		Description: "Search previously analyzed conversations for relevant history.",
		Category:    "conversations",
		InputSchema: schema(`{"query":{"type":"string"},"limit":{"type":"integer"}}`, `["query"]`),
		Normalizer:  toolregistry.CoerceNumericString,
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var req backendclient.ConversationSearchRequest
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
			out, err := client.SearchConversations(ctx, user, req)
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
	}
}

type currentTimeArgs struct {
	Timezone string `json:"timezone"`
}

type currentTimeResult struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// currentTimeTool asks the backend's time service first (it may carry
// user-specific timezone data) and falls back to the local clock when
// the backend is unreachable.
func currentTimeTool(client *backendclient.Client) toolregistry.ToolSpec {
	return toolregistry.ToolSpec{
		Name:        "current_time",
		Description: "Return the current time, optionally in a named timezone.",
		Category:    "utility",
		InputSchema: schema(`{"timezone":{"type":"string"}}`, `[]`),
		Normalizer:  toolregistry.StripQuotedPrefix,
		Remote: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var in currentTimeArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			return client.Raw(ctx, "POST", "/api/v1/tools/execute", user, backendclient.ToolExecuteRequest{
				Name:      "current_time",
				Arguments: map[string]any{"timezone": in.Timezone},
			})
		},
		Local: func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error) {
			var in currentTimeArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			tz := in.Timezone
			if tz == "" {
				tz = "UTC"
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return nil, &backendclient.Error{
					Kind:    backendclient.KindValidation,
					Message: "unknown timezone: " + in.Timezone,
				}
			}
			return json.Marshal(currentTimeResult{
				Time:     time.Now().In(loc).Format(time.RFC3339),
				Timezone: tz,
			})
		},
	}
}
