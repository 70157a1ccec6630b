package network

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"chainstate/pkg/domain"
)

// Constructor builds a capability, restoring from state when it is non-empty.
type Constructor func(state json.RawMessage) (Capability, error)

// Factory maps each network kind to its constructor. The zero value is not
// usable; call NewFactory.
type Factory struct {
	mu    sync.RWMutex
	ctors map[domain.ChainKind]Constructor
}

// NewFactory returns a factory with simulator-backed constructors installed for
// both built-in kinds.
func NewFactory() *Factory {
	f := &Factory{ctors: make(map[domain.ChainKind]Constructor)}
	for _, kind := range []domain.ChainKind{domain.ChainLocal, domain.ChainRemote} {
		k := kind
		f.ctors[k] = func(state json.RawMessage) (Capability, error) {
			sim, err := RestoreSimulator(k, state)
			if err != nil {
				return nil, err
			}
			return sim, nil
		}
	}
	return f
}

// Register installs or replaces the constructor for kind.
func (f *Factory) Register(kind domain.ChainKind, ctor Constructor) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown network kind %q", kind)
	}
	if ctor == nil {
		return fmt.Errorf("nil constructor for %q", kind)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[kind] = ctor
	return nil
}

// New constructs a capability for kind, restoring from state when provided.
func (f *Factory) New(kind domain.ChainKind, state json.RawMessage) (Capability, error) {
	f.mu.RLock()
	ctor, ok := f.ctors[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no constructor registered for network kind %q", kind)
	}
	capability, err := ctor(state)
	if err != nil {
		return nil, fmt.Errorf("construct %s network: %w", kind, err)
	}
	return capability, nil
}

// Kinds lists the registered kinds in sorted order.
func (f *Factory) Kinds() []domain.ChainKind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.ChainKind, 0, len(f.ctors))
	for k := range f.ctors {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
