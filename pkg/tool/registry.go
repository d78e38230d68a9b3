package tool

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Registry manages the available tools. Registration order is preserved so
// the exposed tool list is stable across runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry. Re-registering a name replaces the
// tool but keeps its original position.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// InputSchema returns the input parameter schema for a tool.
func (r *Registry) InputSchema(name string) (ParameterSchema, bool) {
	t, ok := r.Get(name)
	if !ok {
		return ParameterSchema{}, false
	}
	return t.Parameters(), true
}

// UpdateSchema returns the schema governing user edits to a pending call.
// Tools that declare no update schema fall back to their input schema, so the
// result is always usable when the tool exists.
func (r *Registry) UpdateSchema(name string) (ParameterSchema, bool) {
	t, ok := r.Get(name)
	if !ok {
		return ParameterSchema{}, false
	}
	if u, ok := t.(Updatable); ok {
		return u.UpdateParameters(), true
	}
	return t.Parameters(), true
}

// LookupEnv resolves an environment variable; os.LookupEnv in production,
// a map-backed stub in tests.
type LookupEnv func(key string) (string, bool)

// OSLookupEnv reads from the process environment.
func OSLookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// Enabled filters the registered tools down to the active set: tools whose
// name appears in disabled are dropped, and env-gated tools are dropped when
// any required variable is missing or empty. Order is preserved and the
// registry is never mutated.
func (r *Registry) Enabled(disabled []string, lookup LookupEnv) []Tool {
	disabledSet := make(map[string]struct{}, len(disabled))
	for _, name := range disabled {
		disabledSet[name] = struct{}{}
	}

	if lookup == nil {
		lookup = OSLookupEnv
	}

	out := make([]Tool, 0)
	for _, t := range r.List() {
		if _, off := disabledSet[t.Name()]; off {
			continue
		}
		if !envSatisfied(t, lookup) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func envSatisfied(t Tool, lookup LookupEnv) bool {
	gated, ok := t.(EnvGated)
	if !ok {
		return true
	}
	for _, key := range gated.RequiredEnv() {
		val, present := lookup(key)
		if !present || val == "" {
			return false
		}
	}
	return true
}

// Metadata is the external description of a tool, suitable for listing
// endpoints and client-side rendering.
type Metadata struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Parameters   ParameterSchema `json:"parameters"`
	UpdateSchema ParameterSchema `json:"updateSchema"`
	Confirmable  bool            `json:"confirmable"`
	RequiredEnv  []string        `json:"requiredEnv,omitempty"`
}

// ListMetadata describes the active tool set after filtering.
func (r *Registry) ListMetadata(disabled []string, lookup LookupEnv) []Metadata {
	tools := r.Enabled(disabled, lookup)
	out := make([]Metadata, 0, len(tools))
	for _, t := range tools {
		md := Metadata{
			Name:         t.Name(),
			Description:  t.Description(),
			Parameters:   t.Parameters(),
			UpdateSchema: t.Parameters(),
		}
		if u, ok := t.(Updatable); ok {
			md.UpdateSchema = u.UpdateParameters()
		}
		if _, ok := t.(Confirmable); ok {
			md.Confirmable = true
		}
		if g, ok := t.(EnvGated); ok {
			md.RequiredEnv = g.RequiredEnv()
		}
		out = append(out, md)
	}
	return out
}

// WriteMetadata streams the active tool set as newline-delimited JSON.
func (r *Registry) WriteMetadata(w io.Writer, disabled []string, lookup LookupEnv) error {
	enc := json.NewEncoder(w)
	for _, md := range r.ListMetadata(disabled, lookup) {
		if err := enc.Encode(md); err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", md.Name, err)
		}
	}
	return nil
}
