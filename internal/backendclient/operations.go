package backendclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// These wrap the backend's fixed /api/v1 surface.

type MemorySearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type MemoryResult struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type MemorySearchResponse struct {
	Results []MemoryResult `json:"results"`
}

func (c *Client) MemorySearch(ctx context.Context, user *UserContext, req MemorySearchRequest) (*MemorySearchResponse, error) {
	var out MemorySearchResponse
	if err := c.do(ctx, "POST", "/api/v1/memory/search", user, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Person struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

func (c *Client) CreatePerson(ctx context.Context, user *UserContext, p Person) (*Person, error) {
	var out Person
	if err := c.do(ctx, "POST", "/api/v1/people", user, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Fact struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (c *Client) AddFact(ctx context.Context, user *UserContext, f Fact) (*Fact, error) {
	var out Fact
	if err := c.do(ctx, "POST", "/api/v1/facts", user, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Profile struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

func (c *Client) GetProfile(ctx context.Context, user *UserContext) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, "GET", "/api/v1/profile", user, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, user *UserContext, p Profile) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, "PUT", "/api/v1/profile", user, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Status struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

func (c *Client) GetStatus(ctx context.Context, user *UserContext) (*Status, error) {
	var out Status
	if err := c.do(ctx, "GET", "/api/v1/status", user, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, user *UserContext, s Status) (*Status, error) {
	var out Status
	if err := c.do(ctx, "PUT", "/api/v1/status", user, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ConversationAnalysis struct {
	ConversationID string         `json:"conversation_id"`
	Entities       []string       `json:"entities,omitempty"`
	Intent         string         `json:"intent,omitempty"`
	Durable        bool           `json:"durable"`
	Extra          map[string]any `json:"extra,omitempty"`
}

func (c *Client) StoreConversationAnalysis(ctx context.Context, user *UserContext, a ConversationAnalysis) error {
	return c.do(ctx, "POST", "/api/v1/conversations/analyze", user, a, nil)
}

type ConversationSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type ConversationSearchResponse struct {
	Matches []ConversationAnalysis `json:"matches"`
}

func (c *Client) SearchConversations(ctx context.Context, user *UserContext, req ConversationSearchRequest) (*ConversationSearchResponse, error) {
	var out ConversationSearchResponse
	if err := c.do(ctx, "POST", "/api/v1/conversations/search", user, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type ToolExecuteRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ToolExecuteResponse struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) ExecuteTool(ctx context.Context, user *UserContext, req ToolExecuteRequest) (*ToolExecuteResponse, error) {
	var out ToolExecuteResponse
	if err := c.do(ctx, "POST", "/api/v1/tools/execute", user, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type RemoteToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) ListTools(ctx context.Context, user *UserContext) ([]RemoteToolDescriptor, error) {
	var out []RemoteToolDescriptor
	if err := c.do(ctx, "GET", "/api/v1/tools", user, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ToolSchema(ctx context.Context, user *UserContext, name string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "GET", fmt.Sprintf("/api/v1/tools/%s/schema", name), user, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
