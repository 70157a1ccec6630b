// Package substore implements the domain sub-stores aggregated by a chain:
// accounts, deployed contracts and transaction history per chain, plus the
// process-wide compilation store shared by all chains.
//
// Every mutator computes the next collection and assigns it through the
// underlying observable store exactly once, so each logical operation produces
// one notification.
package substore

import (
	"errors"

	"chainstate/pkg/chainerr"
	"chainstate/pkg/observable"
)

// errUnchanged aborts a Mutate without notifying.
var errUnchanged = errors.New("substore: unchanged")

// keyed is an ordered collection with unique keys and upsert-on-add semantics.
type keyed[T any] struct {
	entity string
	key    func(T) string
	store  *observable.Store[[]T]
}

func newKeyed[T any](entity string, key func(T) string) keyed[T] {
	return keyed[T]{entity: entity, key: key, store: observable.New[[]T](nil)}
}

func (k *keyed[T]) all() []T {
	return append([]T(nil), k.store.Get()...)
}

func (k *keyed[T]) get(key string) (T, bool) {
	for _, item := range k.store.Get() {
		if k.key(item) == key {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// upsert replaces the entry with the same key in place, or appends.
func (k *keyed[T]) upsert(item T) {
	id := k.key(item)
	k.store.Update(func(cur []T) []T {
		next := make([]T, 0, len(cur)+1)
		replaced := false
		for _, existing := range cur {
			if k.key(existing) == id {
				next = append(next, item)
				replaced = true
				continue
			}
			next = append(next, existing)
		}
		if !replaced {
			next = append(next, item)
		}
		return next
	})
}

func (k *keyed[T]) remove(key string) bool {
	err := k.store.Mutate(func(cur []T) ([]T, error) {
		next := make([]T, 0, len(cur))
		for _, existing := range cur {
			if k.key(existing) != key {
				next = append(next, existing)
			}
		}
		if len(next) == len(cur) {
			return cur, errUnchanged
		}
		return next, nil
	})
	return err == nil
}

func (k *keyed[T]) update(key string, patch func(*T) error) error {
	return k.store.Mutate(func(cur []T) ([]T, error) {
		next := append([]T(nil), cur...)
		for i := range next {
			if k.key(next[i]) != key {
				continue
			}
			if err := patch(&next[i]); err != nil {
				return cur, err
			}
			if k.key(next[i]) != key {
				return cur, chainerr.InvalidInput(k.entity + " key cannot be changed by update")
			}
			return next, nil
		}
		return cur, chainerr.NotFound(k.entity, key)
	})
}

// setAll replaces the whole collection. Duplicate keys collapse to the last
// occurrence, kept at the position of the first.
func (k *keyed[T]) setAll(items []T) {
	next := make([]T, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := k.key(item)
		if i, ok := index[id]; ok {
			next[i] = item
			continue
		}
		index[id] = len(next)
		next = append(next, item)
	}
	k.store.Set(next)
}
