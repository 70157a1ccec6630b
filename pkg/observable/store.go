// Package observable provides the reactive containers the chain state core is
// built on: Store, a single-value cell, and MapHook, a keyed collection with
// distinct added/removed/changed events.
//
// Every mutation through a public setter notifies all current subscribers
// exactly once, synchronously, in registration order, before the setter
// returns. Writers are serialized per container; a subscriber must not call a
// setter of the container that is notifying it.
package observable

import "sync"

// Store holds one value of type T and notifies subscribers on every Set.
type Store[T any] struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	value   T
	subs    subscribers[T]
}

// New returns a Store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value, then notifies subscribers with it.
func (s *Store[T]) Set(v T) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.assign(v)
	s.subs.notify(v)
}

// Update applies fn to the current value and stores the result with a single
// notification. It returns the stored value.
func (s *Store[T]) Update(fn func(T) T) T {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := fn(s.Get())
	s.assign(next)
	s.subs.notify(next)
	return next
}

// Mutate is Update for mutators that can reject the change. When fn returns an
// error the value is left untouched and nobody is notified.
func (s *Store[T]) Mutate(fn func(T) (T, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next, err := fn(s.Get())
	if err != nil {
		return err
	}
	s.assign(next)
	s.subs.notify(next)
	return nil
}

// Subscribe registers sub. Registering the same subscriber again is a no-op.
func (s *Store[T]) Subscribe(sub Subscriber[T]) Unsubscribe {
	return s.subs.add(sub)
}

// OnChange registers fn as a new subscription.
func (s *Store[T]) OnChange(fn func(T)) Unsubscribe {
	return s.subs.add(Func(fn))
}

// Len returns the number of registered subscribers.
func (s *Store[T]) Len() int {
	return s.subs.len()
}

func (s *Store[T]) assign(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}
