package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/infinitepi-io/chatrix/internal/models"
)

// Descriptor maps a public model name to a backend model and its family.
type Descriptor struct {
	Name      string
	BackendID string
	Family    Family
}

// Model returns the descriptor in the unified model schema.
func (d Descriptor) Model() models.Model {
	return models.Model{
		ID:        d.Name,
		BackendID: d.BackendID,
		Family:    d.Family.Name(),
	}
}

// DefaultModel is the logical name unknown models resolve to.
const DefaultModel = "claude-3-7-sonnet"

// DefaultDescriptor is returned for names the registry does not know.
var DefaultDescriptor = Descriptor{
	Name:      DefaultModel,
	BackendID: "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	Family:    ConversationalBlockDelta,
}

var builtinDescriptors = []Descriptor{
	{Name: "claude-sonnet-4", BackendID: "us.anthropic.claude-sonnet-4-20250514-v1:0", Family: ConversationalBlockDelta},
	{Name: "claude-sonnet-3", BackendID: "us.anthropic.claude-3-7-sonnet-20250219-v1:0", Family: ConversationalBlockDelta},
	DefaultDescriptor,
	{Name: "claude-3-5-haiku", BackendID: "us.anthropic.claude-3-5-haiku-20241022-v1:0", Family: ConversationalBlockDelta},
	{Name: "deepseek", BackendID: "us.deepseek.r1-v1:0", Family: CompletionText},
	{Name: "nova-pro", BackendID: "us.amazon.nova-pro-v1:0", Family: ConverseUnified},
	{Name: "nova-lite", BackendID: "us.amazon.nova-lite-v1:0", Family: ConverseUnified},
	{Name: "nova-premier", BackendID: "us.amazon.nova-premier-v1:0", Family: ConverseUnified},
	{Name: "nova-2-lite", BackendID: "global.amazon.nova-2-lite-v1:0", Family: ConverseUnified},
}

// Registry maintains the mapping of logical model names to descriptors.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]Descriptor
	fallback Descriptor
}

// NewRegistry constructs an empty registry whose fallback is DefaultDescriptor.
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]Descriptor),
		fallback: DefaultDescriptor,
	}
}

// DefaultRegistry constructs a registry holding the built-in model table.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range builtinDescriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a descriptor.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.New("model name must not be empty")
	}
	if strings.TrimSpace(d.BackendID) == "" {
		return fmt.Errorf("model %q: backend id must not be empty", d.Name)
	}
	if d.Family == nil {
		return fmt.Errorf("model %q: family must be set", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, d.Name)
	}
	r.models[d.Name] = d
	return nil
}

// RegisterAliases makes each alias resolve to the descriptor of its target.
func (r *Registry) RegisterAliases(aliases map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)

	for _, alias := range names {
		target := aliases[alias]
		if _, exists := r.models[alias]; exists {
			return fmt.Errorf("alias %q conflicts with existing model", alias)
		}
		entry, ok := r.models[target]
		if !ok {
			return fmt.Errorf("alias %q references %w %q", alias, ErrUnknownModel, target)
		}
		entry.Name = alias
		r.models[alias] = entry
	}
	return nil
}

// SetDefault changes the descriptor unknown names resolve to.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.models[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	r.fallback = entry
	return nil
}

// Fallback returns the descriptor unknown names resolve to.
func (r *Registry) Fallback() Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.models[name]
	return d, ok
}

// Resolve returns the descriptor for name, or the default descriptor when
// the name is unknown. Matching is exact.
func (r *Registry) Resolve(name string) Descriptor {
	if d, ok := r.Lookup(name); ok {
		return d
	}

	fallback := r.Fallback()
	slog.Warn("unknown model requested, using default",
		"model", name,
		"default", fallback.Name,
		"backend_id", fallback.BackendID,
	)
	return fallback
}

// List returns all registered descriptors ordered by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.models))
	for _, d := range r.models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
