// Package toolregistry implements the gateway's tool registry:
// name-scoped registration, jsonschema argument validation, declared
// normalizers, and remote-with-local-fallback dispatch.
package toolregistry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/myndy/gateway/internal/backendclient"
)

// Source identifies which handler ultimately produced a ToolInvocation's
// result.
type Source string

const (
	SourceRemote        Source = "remote"
	SourceLocalFallback Source = "local-fallback"
)

// Normalizer rewrites raw tool arguments before schema validation. It is
// attached to a ToolSpec explicitly at registration time and never
// applies implicitly.
type Normalizer func(json.RawMessage) (json.RawMessage, error)

// RemoteHandler dispatches a tool call to the knowledge backend.
type RemoteHandler func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error)

// LocalHandler services a tool call in-process, used when the remote
// handler reports backendclient.KindUnavailable.
type LocalHandler func(ctx context.Context, args json.RawMessage, user *backendclient.UserContext) (json.RawMessage, error)

// ToolSpec describes one registered tool.
type ToolSpec struct {
	Name        string
	Description string
	Category    string
	InputSchema json.RawMessage
	Normalizer  Normalizer
	Remote      RemoteHandler
	Local       LocalHandler
}

// ToolInvocation is the result of one Invoke call.
type ToolInvocation struct {
	Name      string
	Arguments json.RawMessage
	Result    json.RawMessage
	Source    Source
	Latency   time.Duration
	IsError   bool
	Error     string
}
