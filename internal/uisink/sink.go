// Package uisink delivers serialized state payloads to view surfaces.
// Delivery is fire-and-forget: nothing is acknowledged or retried.
package uisink

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
	"chainstate/pkg/observable"
)

// Message is one state payload addressed to a view by state id.
type Message struct {
	StateID string          `json:"stateId"`
	Payload json.RawMessage `json:"payload"`
}

// Sink receives messages. Post must not block on slow consumers.
type Sink interface {
	Post(msg Message)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Post(Message) {}

// Multi posts to every sink in order.
type Multi []Sink

func (m Multi) Post(msg Message) {
	for _, s := range m {
		if s != nil {
			s.Post(msg)
		}
	}
}

// Recorder keeps every message it receives.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Post(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// Messages returns a copy of everything posted so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// For returns the messages posted to stateID.
func (r *Recorder) For(stateID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.msgs {
		if m.StateID == stateID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent payload posted to stateID.
func (r *Recorder) Last(stateID string) (json.RawMessage, bool) {
	msgs := r.For(stateID)
	if len(msgs) == 0 {
		return nil, false
	}
	return msgs[len(msgs)-1].Payload, true
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// Post marshals v and posts it. Values that cannot be encoded are dropped and
// the error returned.
func Post(s Sink, stateID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Post(Message{StateID: stateID, Payload: payload})
	return nil
}

// Bind posts the store's current value to stateID, then every new value.
// Values that cannot be encoded are logged to log and skipped.
func Bind[T any](s Sink, stateID string, store *observable.Store[T], log *logrus.Entry) observable.Unsubscribe {
	log = logging.OrDiscard(log)
	post := func(v T) {
		if err := Post(s, stateID, v); err != nil {
			log.WithError(err).WithField("state", stateID).Warn("view payload not posted")
		}
	}
	stop := store.OnChange(post)
	post(store.Get())
	return stop
}
