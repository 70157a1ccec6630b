package observable

import (
	"sync"

	"chainstate/pkg/chainerr"
)

// MapHook is a keyed collection that emits added(k), removed(k) and changed()
// events. Add rejects duplicate keys; iteration follows insertion order.
type MapHook[K comparable, V any] struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	entries map[K]V
	order   []K

	added   subscribers[K]
	removed subscribers[K]
	changed subscribers[struct{}]
}

// NewMapHook returns an empty MapHook.
func NewMapHook[K comparable, V any]() *MapHook[K, V] {
	return &MapHook[K, V]{entries: make(map[K]V)}
}

// Add inserts key. It fails with a DUPLICATE_KEY error, without mutating or
// notifying, when key is already present.
func (m *MapHook[K, V]) Add(key K, value V) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[K]V)
	}
	if _, exists := m.entries[key]; exists {
		m.mu.Unlock()
		return chainerr.DuplicateKey(key)
	}
	m.entries[key] = value
	m.order = append(m.order, key)
	m.mu.Unlock()

	m.added.notify(key)
	m.changed.notify(struct{}{})
	return nil
}

// Put inserts or replaces key. A replacement fires only changed().
func (m *MapHook[K, V]) Put(key K, value V) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[K]V)
	}
	_, existed := m.entries[key]
	m.entries[key] = value
	if !existed {
		m.order = append(m.order, key)
	}
	m.mu.Unlock()

	if !existed {
		m.added.notify(key)
	}
	m.changed.notify(struct{}{})
}

// Delete removes key and reports whether it was present. Deleting an absent
// key is a no-op without notification.
func (m *MapHook[K, V]) Delete(key K) bool {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if _, exists := m.entries[key]; !exists {
		m.mu.Unlock()
		return false
	}
	delete(m.entries, key)
	next := make([]K, 0, len(m.order))
	for _, k := range m.order {
		if k != key {
			next = append(next, k)
		}
	}
	m.order = next
	m.mu.Unlock()

	m.removed.notify(key)
	m.changed.notify(struct{}{})
	return true
}

// Touch fires changed() without mutating the map. It relays changes made
// inside the stored values themselves.
func (m *MapHook[K, V]) Touch() {
	m.changed.notify(struct{}{})
}

// Get returns the value stored under key.
func (m *MapHook[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Contains reports whether key is present.
func (m *MapHook[K, V]) Contains(key K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *MapHook[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]K(nil), m.order...)
}

// GetAll returns the values in insertion order.
func (m *MapHook[K, V]) GetAll() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]V, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	return out
}

// Len returns the number of entries.
func (m *MapHook[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// OnAdded registers fn for added(k) events.
func (m *MapHook[K, V]) OnAdded(fn func(K)) Unsubscribe {
	return m.added.add(Func(fn))
}

// OnRemoved registers fn for removed(k) events.
func (m *MapHook[K, V]) OnRemoved(fn func(K)) Unsubscribe {
	return m.removed.add(Func(fn))
}

// OnChanged registers fn for changed() events, fired after every mutation.
func (m *MapHook[K, V]) OnChanged(fn func()) Unsubscribe {
	return m.changed.add(Func(func(struct{}) { fn() }))
}
