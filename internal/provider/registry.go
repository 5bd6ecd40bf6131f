package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds all registered provider adapters and provides dispatch
// accessors for the optional adapter interfaces. It must be created via
// NewRegistry and passed explicitly to components that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Type]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: map[Type]Adapter{},
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter is nil")
	}
	pt := normalizeType(adapter.Type().String())
	if pt == "" {
		return errors.New("provider type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[pt]; exists {
		return fmt.Errorf("provider type already registered: %s", pt)
	}
	r.adapters[pt] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given provider type.
func (r *Registry) Get(providerType Type) (Adapter, bool) {
	pt := normalizeType(providerType.String())
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[pt]
	return adapter, ok
}

// Types returns all registered provider types, sorted.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Type, 0, len(r.adapters))
	for pt := range r.adapters {
		items = append(items, pt)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

// ParseType validates and normalizes a raw string into a registered Type.
func (r *Registry) ParseType(raw string) (Type, error) {
	pt := normalizeType(raw)
	if pt == "" {
		return "", fmt.Errorf("unsupported provider type: %s", raw)
	}
	if _, ok := r.Get(pt); !ok {
		return "", fmt.Errorf("unsupported provider type: %s", raw)
	}
	return pt, nil
}

// GetDescriptor returns the descriptor for the given provider type.
func (r *Registry) GetDescriptor(providerType Type) (Descriptor, bool) {
	adapter, ok := r.Get(providerType)
	if !ok {
		return Descriptor{}, false
	}
	return adapter.Descriptor(), true
}

// ListDescriptors returns descriptors for all registered providers, sorted by type.
func (r *Registry) ListDescriptors() []Descriptor {
	types := r.Types()
	items := make([]Descriptor, 0, len(types))
	for _, pt := range types {
		if desc, ok := r.GetDescriptor(pt); ok {
			items = append(items, desc)
		}
	}
	return items
}

// GetCapabilities returns the capability matrix for the given provider type.
func (r *Registry) GetCapabilities(providerType Type) (Capabilities, bool) {
	desc, ok := r.GetDescriptor(providerType)
	if !ok {
		return Capabilities{}, false
	}
	return desc.Capabilities, true
}

// GetClaimStarter returns the ClaimStarter for the given provider type.
func (r *Registry) GetClaimStarter(providerType Type) (ClaimStarter, bool) {
	adapter, ok := r.Get(providerType)
	if !ok {
		return nil, false
	}
	starter, ok := adapter.(ClaimStarter)
	return starter, ok
}

// GetClaimCompleter returns the ClaimCompleter for the given provider type, or nil if unsupported.
func (r *Registry) GetClaimCompleter(providerType Type) (ClaimCompleter, bool) {
	adapter, ok := r.Get(providerType)
	if !ok {
		return nil, false
	}
	completer, ok := adapter.(ClaimCompleter)
	return completer, ok
}

// GetTemplateSyncer returns the TemplateSyncer for the given provider type, or nil if unsupported.
func (r *Registry) GetTemplateSyncer(providerType Type) (TemplateSyncer, bool) {
	adapter, ok := r.Get(providerType)
	if !ok {
		return nil, false
	}
	syncer, ok := adapter.(TemplateSyncer)
	return syncer, ok
}

// GetCredentialRefresher returns the CredentialRefresher for the given provider type, or nil if unsupported.
func (r *Registry) GetCredentialRefresher(providerType Type) (CredentialRefresher, bool) {
	adapter, ok := r.Get(providerType)
	if !ok {
		return nil, false
	}
	refresher, ok := adapter.(CredentialRefresher)
	return refresher, ok
}

func normalizeType(raw string) Type {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	if normalized == "" {
		return ""
	}
	return Type(normalized)
}
