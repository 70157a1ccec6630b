// Package autosave debounces chain changes into snapshot saves: every change
// notification re-arms the chain's timer, and the chain is saved once the
// timer expires without further changes.
package autosave

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chainstate/internal/clock"
	"chainstate/internal/logging"
	"chainstate/pkg/observable"
)

// DefaultDelay is the quiescence period before a chain is saved.
const DefaultDelay = 30 * time.Second

// SaveFunc persists one chain.
type SaveFunc func(ctx context.Context, id string) error

// Source is anything that identifies a chain and relays its changes.
type Source interface {
	ID() string
	OnChange(fn func()) observable.Unsubscribe
}

type slot struct {
	deferred *Deferred
	watch    observable.Unsubscribe
	running  bool
	again    bool
}

// Scheduler owns one debounce timer per chain. Saves of the same chain never
// overlap: a timer that fires while a save is running is folded into a single
// follow-up save.
type Scheduler struct {
	save    SaveFunc
	clock   clock.Clock
	delay   time.Duration
	enabled bool
	log     *logrus.Entry

	mu      sync.Mutex
	slots   map[string]*slot
	stopped bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay overrides DefaultDelay. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithEnabled turns autosave on or off. Disabled schedulers ignore Touch.
func WithEnabled(on bool) Option {
	return func(s *Scheduler) { s.enabled = on }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Scheduler) { s.log = logging.OrDiscard(l) }
}

// New returns a Scheduler that calls save on quiescence.
func New(save SaveFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		save:    save,
		clock:   clock.Real{},
		delay:   DefaultDelay,
		enabled: true,
		log:     logging.Discard(),
		slots:   make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delay returns the configured quiescence period.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Enabled reports whether Touch arms timers.
func (s *Scheduler) Enabled() bool { return s.enabled }

// slotFor must be called with s.mu held.
func (s *Scheduler) slotFor(id string) *slot {
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{}
		sl.deferred = NewDeferred(s.clock, func() { s.fire(id) })
		s.slots[id] = sl
	}
	return sl
}

// Touch (re)starts the chain's timer.
func (s *Scheduler) Touch(id string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	sl := s.slotFor(id)
	s.mu.Unlock()
	sl.deferred.Schedule(s.delay)
}

// Watch touches the chain on every change it relays. The returned function
// stops watching; Forget does the same.
func (s *Scheduler) Watch(src Source) observable.Unsubscribe {
	id := src.ID()
	stop := src.OnChange(func() { s.Touch(id) })
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotFor(id)
	if sl.watch != nil {
		sl.watch()
	}
	sl.watch = stop
	return stop
}

// Forget cancels the chain's pending save without running it and stops
// watching it. It reports whether a save was pending.
func (s *Scheduler) Forget(id string) bool {
	s.mu.Lock()
	sl, ok := s.slots[id]
	delete(s.slots, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if sl.watch != nil {
		sl.watch()
	}
	return sl.deferred.Cancel()
}

// Pending reports whether the chain has an armed timer.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	sl, ok := s.slots[id]
	s.mu.Unlock()
	return ok && sl.deferred.Pending()
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	sl, ok := s.slots[id]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	if sl.running {
		sl.again = true
		s.mu.Unlock()
		return
	}
	sl.running = true
	s.mu.Unlock()

	for {
		s.run(context.Background(), id)
		s.mu.Lock()
		if sl.again && s.slots[id] == sl && !s.stopped {
			sl.again = false
			s.mu.Unlock()
			continue
		}
		sl.running = false
		sl.again = false
		s.mu.Unlock()
		return
	}
}

func (s *Scheduler) run(ctx context.Context, id string) error {
	if err := s.save(ctx, id); err != nil {
		s.log.WithError(err).WithField("chain", id).Warn("autosave failed")
		return err
	}
	return nil
}

// Flush cancels every pending timer and saves those chains immediately.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	var due []string
	for id, sl := range s.slots {
		if sl.deferred.Cancel() {
			due = append(due, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(due)

	var errs []error
	for _, id := range due {
		if err := s.run(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop cancels all timers and watches. Touch is ignored afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	slots := s.slots
	s.slots = make(map[string]*slot)
	s.mu.Unlock()
	for _, sl := range slots {
		sl.deferred.Cancel()
		if sl.watch != nil {
			sl.watch()
		}
	}
}
