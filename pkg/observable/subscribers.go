package observable

import (
	"reflect"
	"sync"
)

// Unsubscribe removes exactly the registration that produced it. Calling it
// more than once is safe.
type Unsubscribe func()

// Subscriber receives change notifications. Identity is interface equality:
// registering an equal subscriber twice is a no-op. A subscriber whose value
// is not comparable is held behind a fresh pointer, so each of its
// registrations is distinct.
type Subscriber[T any] interface {
	OnChange(T)
}

// SubscriberFunc adapts a plain function. Each adapter value is a distinct
// registration.
type SubscriberFunc[T any] struct {
	fn func(T)
}

// Func wraps fn as a Subscriber with its own identity.
func Func[T any](fn func(T)) *SubscriberFunc[T] {
	return &SubscriberFunc[T]{fn: fn}
}

// OnChange implements Subscriber.
func (f *SubscriberFunc[T]) OnChange(v T) { f.fn(v) }

// subscribers is a copy-on-write registration list. Notification rounds iterate
// a snapshot, so registrations made during a round take effect in the next one.
type subscribers[T any] struct {
	mu   sync.Mutex
	list []Subscriber[T]
}

// boxed gives a non-comparable subscriber a pointer identity.
type boxed[T any] struct {
	Subscriber[T]
}

func (s *subscribers[T]) add(sub Subscriber[T]) Unsubscribe {
	if !reflect.ValueOf(sub).Comparable() {
		sub = &boxed[T]{sub}
	}
	s.mu.Lock()
	present := false
	for _, existing := range s.list {
		if existing == sub {
			present = true
			break
		}
	}
	if !present {
		next := make([]Subscriber[T], len(s.list), len(s.list)+1)
		copy(next, s.list)
		s.list = append(next, sub)
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(sub) })
	}
}

func (s *subscribers[T]) remove(sub Subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.list {
		if existing != sub {
			continue
		}
		next := make([]Subscriber[T], 0, len(s.list)-1)
		next = append(next, s.list[:i]...)
		next = append(next, s.list[i+1:]...)
		s.list = next
		return
	}
}

func (s *subscribers[T]) snapshot() []Subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list
}

func (s *subscribers[T]) notify(v T) {
	for _, sub := range s.snapshot() {
		sub.OnChange(v)
	}
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}
