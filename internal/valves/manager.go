package valves

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Listener is notified after a successful persisted update. It must not
// panic the caller's goroutine; Manager recovers from listener panics.
type Listener func(delta map[string]any)

// FieldResult reports the outcome of validating a single field in an
// update batch.
type FieldResult struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UpdateResult is the response to Manager.Update.
type UpdateResult struct {
	Updated         map[string]any         `json:"updated"`
	Validation      map[string]FieldResult `json:"validation"`
	RestartRequired bool                   `json:"restart_required"`
	CurrentValues   map[string]any         `json:"current_values"`
}

// Manager is a typed, validated, category-organised configuration store.
// Mutation goes through Update, which validates every field, persists the
// full current map atomically, and then notifies listeners in
// registration order.
type Manager struct {
	mu         sync.RWMutex
	pipelineID string
	configPath string
	specs      map[string]Spec
	order      []string
	categories map[string]Category
	current    map[string]any
	listeners  []Listener
	logger     *slog.Logger
}

// New creates a Manager for pipelineID, persisting to configPath. If
// configPath is empty it defaults to "<pipelineID>_valves.json" in the
// working directory, matching the source's default.
func New(pipelineID, configPath string, logger *slog.Logger) *Manager {
	if configPath == "" {
		configPath = fmt.Sprintf("./%s_valves.json", pipelineID)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pipelineID: pipelineID,
		configPath: configPath,
		specs:      make(map[string]Spec),
		categories: make(map[string]Category),
		current:    make(map[string]any),
		logger:     logger,
	}
}

// RegisterCategory adds a category used for UI grouping.
func (m *Manager) RegisterCategory(c Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.Name] = c
}

// Register adds a valve definition and seeds its default into current,
// unless a persisted value was already loaded for it. Idempotent by name.
func (m *Manager) Register(spec Spec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.specs[spec.Name]; !exists {
		m.order = append(m.order, spec.Name)
	}
	m.specs[spec.Name] = spec
	if _, ok := m.current[spec.Name]; !ok {
		m.current[spec.Name] = spec.Default
	}
}

// OnChange registers a listener invoked after every successful update.
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// propertySpec is the per-field shape returned by Catalogue() for UI rendering.
type propertySpec struct {
	Type            string   `json:"type"`
	Default         any      `json:"default"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Required        bool     `json:"required,omitempty"`
	Advanced        bool     `json:"advanced,omitempty"`
	RestartRequired bool     `json:"restart_required,omitempty"`
	Enum            []string `json:"enum,omitempty"`
	DependsOn       string   `json:"depends_on,omitempty"`
}

// CatalogueResponse is the body of GET /valves/spec.
type CatalogueResponse struct {
	Properties map[string]propertySpec `json:"properties"`
	Categories map[string]Category     `json:"categories"`
}

// Catalogue returns the full valve catalogue for UI rendering.
func (m *Manager) Catalogue() CatalogueResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props := make(map[string]propertySpec, len(m.specs))
	for name, spec := range m.specs {
		props[name] = propertySpec{
			Type:            string(spec.Type),
			Default:         spec.Default,
			Title:           spec.Title,
			Description:     spec.Description,
			Category:        spec.Category,
			Required:        spec.Required,
			Advanced:        spec.Advanced,
			RestartRequired: spec.RestartRequired,
			Enum:            spec.EnumOptions,
			DependsOn:       spec.DependsOn,
		}
	}
	cats := make(map[string]Category, len(m.categories))
	for k, v := range m.categories {
		cats[k] = v
	}
	return CatalogueResponse{Properties: props, Categories: cats}
}

// Current returns a snapshot of the name -> value map.
func (m *Manager) Current() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMap(m.current)
}

// Get returns a single valve's current value.
func (m *Manager) Get(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.current[name]
	return v, ok
}

// GetBool, GetInt, GetFloat, GetString are typed convenience accessors
// that fall back to the zero value when the valve is unset or of the
// wrong type; callers that need strict typing should use Get directly.
func (m *Manager) GetBool(name string) bool {
	v, _ := m.Get(name)
	b, _ := v.(bool)
	return b
}

func (m *Manager) GetInt(name string) int {
	v, _ := m.Get(name)
	if f, ok := asFloat(v); ok {
		return int(f)
	}
	return 0
}

func (m *Manager) GetFloat(name string) float64 {
	v, _ := m.Get(name)
	f, _ := asFloat(v)
	return f
}

func (m *Manager) GetString(name string) string {
	v, _ := m.Get(name)
	s, _ := v.(string)
	return s
}

// Update validates every field in the batch, applies the ones that pass
// (atomically persisting the whole current map), leaves rejected fields
// at their prior value, and notifies listeners. A field never partially
// applies: it is either accepted as given or left untouched, and one
// field's rejection never blocks another's acceptance.
func (m *Manager) Update(fields map[string]any) (UpdateResult, error) {
	m.mu.Lock()

	result := UpdateResult{
		Updated:    make(map[string]any),
		Validation: make(map[string]FieldResult),
	}
	delta := make(map[string]any)

	// Stable order so results/log lines are deterministic across calls.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := fields[name]
		spec, known := m.specs[name]
		if !known {
			result.Validation[name] = FieldResult{Error: fmt.Sprintf("unknown valve %q", name)}
			continue
		}
		if err := validateField(spec, value); err != nil {
			result.Validation[name] = FieldResult{Error: err.Error()}
			continue
		}
		m.current[name] = value
		delta[name] = value
		result.Updated[name] = value
		result.Validation[name] = FieldResult{Success: true}
		if spec.RestartRequired {
			result.RestartRequired = true
		}
	}

	if len(delta) > 0 {
		if err := m.persistLocked(); err != nil {
			m.mu.Unlock()
			return UpdateResult{}, fmt.Errorf("persist valves: %w", err)
		}
	}

	result.CurrentValues = cloneMap(m.current)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if len(delta) > 0 {
		m.notify(listeners, delta)
	}
	return result, nil
}

func validateField(spec Spec, value any) error {
	if err := spec.typeCheck(value); err != nil {
		return err
	}
	for _, v := range spec.Validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// notify calls listeners in registration order; a panicking listener is
// recovered and logged, never aborting the remaining listeners.
func (m *Manager) notify(listeners []Listener, delta map[string]any) {
	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("valve change listener panicked", "recover", r)
				}
			}()
			l(delta)
		}()
	}
}

// Reset restores every valve to its declared default and persists.
func (m *Manager) Reset() error {
	m.mu.Lock()
	for name, spec := range m.specs {
		m.current[name] = spec.Default
	}
	err := m.persistLocked()
	listeners := append([]Listener(nil), m.listeners...)
	delta := cloneMap(m.current)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persist valves: %w", err)
	}
	m.notify(listeners, delta)
	return nil
}

// persistedFile is the on-disk shape.
type persistedFile struct {
	PipelineID string         `json:"pipeline_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Values     map[string]any `json:"values"`
}

func (m *Manager) persistLocked() error {
	payload := persistedFile{
		PipelineID: m.pipelineID,
		Timestamp:  time.Now().UTC(),
		Values:     cloneMap(m.current),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.configPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, ".valves-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, m.configPath)
}

// Load reads the persisted configuration file, if present, seeding
// current values for already-registered valves. On a missing or
// unparseable file it logs a warning and leaves defaults in place.
func (m *Manager) Load() {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read valve config, starting from defaults", "path", m.configPath, "error", err)
		}
		return
	}
	var payload persistedFile
	if err := json.Unmarshal(data, &payload); err != nil {
		m.logger.Warn("failed to parse valve config, starting from defaults", "path", m.configPath, "error", err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, value := range payload.Values {
		if _, known := m.specs[name]; known {
			m.current[name] = value
		}
	}
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
