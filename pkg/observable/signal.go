package observable

// Signal is an event source without a payload. The zero value is ready to use.
type Signal struct {
	subs subscribers[struct{}]
}

// Emit notifies every subscriber synchronously, in registration order.
func (s *Signal) Emit() {
	s.subs.notify(struct{}{})
}

// Subscribe registers fn as a new subscription.
func (s *Signal) Subscribe(fn func()) Unsubscribe {
	return s.subs.add(Func(func(struct{}) { fn() }))
}

// Len returns the number of registered subscribers.
func (s *Signal) Len() int {
	return s.subs.len()
}
