package toolregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/myndy/gateway/internal/backendclient"
)

func mustReader(raw json.RawMessage) io.Reader {
	return bytes.NewReader(raw)
}

// MaxToolNameLength and MaxArgsSize bound inputs so a misbehaving
// model cannot exhaust memory through a single call.
const (
	MaxToolNameLength = 256
	MaxArgsSize       = 10 << 20
)

// Registry is a thread-safe tool name -> ToolSpec map with schema
// validation and remote/local-fallback dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]ToolSpec
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]ToolSpec),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger,
	}
}

// Register installs or replaces a tool by name (idempotent, last write
// wins), compiling its input schema eagerly so invoke-time failures are
// limited to argument-level problems.
func (r *Registry) Register(spec ToolSpec) error {
	var compiled *jsonschema.Schema
	if len(spec.InputSchema) > 0 {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(spec.Name, mustReader(spec.InputSchema)); err != nil {
			return fmt.Errorf("toolregistry: compiling schema for %q: %w", spec.Name, err)
		}
		s, err := c.Compile(spec.Name)
		if err != nil {
			return fmt.Errorf("toolregistry: compiling schema for %q: %w", spec.Name, err)
		}
		compiled = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
	if compiled != nil {
		r.schemas[spec.Name] = compiled
	} else {
		delete(r.schemas, spec.Name)
	}
	r.logger.Info("tool registered", "name", spec.Name, "category", spec.Category)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns tools, optionally filtered by category, ordered by name
// for deterministic output.
func (r *Registry) List(category string) []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs a tool by name: normalize, validate, dispatch remote,
// fall back to local on Unavailable.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage, user *backendclient.UserContext) (*ToolInvocation, error) {
	if len(name) > MaxToolNameLength {
		return nil, &backendclient.Error{Kind: backendclient.KindValidation, Message: "tool name exceeds maximum length"}
	}
	if len(args) > MaxArgsSize {
		return nil, &backendclient.Error{Kind: backendclient.KindValidation, Message: "tool arguments exceed maximum size"}
	}

	r.mu.RLock()
	spec, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &backendclient.Error{Kind: backendclient.KindNotFound, Message: "tool not found: " + name}
	}

	normalized := args
	if spec.Normalizer != nil {
		n, err := spec.Normalizer(args)
		if err != nil {
			return nil, &backendclient.Error{Kind: backendclient.KindValidation, Message: "normalization failed: " + err.Error()}
		}
		normalized = n
	}

	if schema != nil {
		var decoded any
		if err := json.Unmarshal(normalized, &decoded); err != nil {
			return nil, &backendclient.Error{Kind: backendclient.KindValidation, Message: "arguments were not valid JSON"}
		}
		if err := schema.Validate(decoded); err != nil {
			fieldErrs := fieldErrorsFrom(err)
			return nil, &backendclient.Error{Kind: backendclient.KindValidation, Message: "schema validation failed", FieldErrors: fieldErrs}
		}
	}

	inv := &ToolInvocation{Name: name, Arguments: normalized}
	start := time.Now()

	if spec.Remote != nil {
		result, err := spec.Remote(ctx, normalized, user)
		if err == nil {
			inv.Result = result
			inv.Source = SourceRemote
			inv.Latency = time.Since(start)
			return inv, nil
		}
		if !backendclient.IsKind(err, backendclient.KindUnavailable) || spec.Local == nil {
			return nil, err
		}
		r.logger.Warn("remote tool unavailable, falling back to local handler", "tool", name, "error", err)
	}

	if spec.Local == nil {
		return nil, &backendclient.Error{Kind: backendclient.KindUnavailable, Message: "no handler available for tool: " + name}
	}
	result, err := spec.Local(ctx, normalized, user)
	if err != nil {
		return nil, err
	}
	inv.Result = result
	inv.Source = SourceLocalFallback
	inv.Latency = time.Since(start)
	return inv, nil
}

func fieldErrorsFrom(err error) map[string]string {
	out := make(map[string]string)
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, cause := range ve.Causes {
		out[cause.InstanceLocation] = cause.Message
	}
	if len(out) == 0 {
		out[ve.InstanceLocation] = ve.Message
	}
	return out
}
