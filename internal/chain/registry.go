package chain

import (
	"sync"

	"github.com/sirupsen/logrus"

	"chainstate/internal/logging"
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// Registry is the single source of truth for which chains exist. It keeps
// the current-chain cell consistent with the map: Current is "" exactly when
// the registry is empty, otherwise it names a registered chain.
//
// Registry mutators hold an internal lock while events fire; subscribers must
// not call Add, Remove or Select synchronously.
type Registry struct {
	mu      sync.Mutex
	chains  *observable.MapHook[string, *Provider]
	current *observable.Store[string]
	retired map[string]struct{}
	relays  map[string]observable.Unsubscribe
	log     *logrus.Entry
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logrus.Entry) *Registry {
	return &Registry{
		chains:  observable.NewMapHook[string, *Provider](),
		current: observable.New(""),
		retired: make(map[string]struct{}),
		relays:  make(map[string]observable.Unsubscribe),
		log:     logging.OrDiscard(log),
	}
}

// Current is the active chain id cell.
func (r *Registry) Current() *observable.Store[string] {
	return r.current
}

// CurrentProvider returns the active chain, if any.
func (r *Registry) CurrentProvider() (*Provider, bool) {
	id := r.current.Get()
	if id == "" {
		return nil, false
	}
	return r.chains.Get(id)
}

// Add registers p. Ids that are present, or were ever registered before, are
// rejected with DUPLICATE_CHAIN. The first chain added becomes current.
func (r *Registry) Add(p *Provider) error {
	if p == nil {
		return chainerr.InvalidInput("nil provider")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, used := r.retired[id]; used || r.chains.Contains(id) {
		return chainerr.DuplicateChain(id)
	}
	relay := p.OnChange(r.chains.Touch)
	if err := r.chains.Add(id, p); err != nil {
		relay()
		return chainerr.DuplicateChain(id)
	}
	r.relays[id] = relay
	if r.current.Get() == "" {
		r.current.Set(id)
	}
	r.log.WithFields(logrus.Fields{"chain": id, "kind": p.Kind()}).Info("chain registered")
	return nil
}

// Remove unregisters id and closes its provider. Removing an absent id is a
// no-op. The sole remaining chain cannot be removed (LAST_CHAIN). When id is
// current, the first other chain in insertion order becomes current before
// removed fires. Removed ids are never accepted again.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.chains.Get(id)
	if !ok {
		return nil
	}
	if r.chains.Len() == 1 {
		return chainerr.LastChain(id)
	}
	if r.current.Get() == id {
		for _, other := range r.chains.Keys() {
			if other != id {
				r.current.Set(other)
				break
			}
		}
	}
	if relay, ok := r.relays[id]; ok {
		relay()
		delete(r.relays, id)
	}
	r.retired[id] = struct{}{}
	r.chains.Delete(id)
	p.Close()
	r.log.WithField("chain", id).Info("chain removed")
	return nil
}

// Select makes id the current chain.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.chains.Contains(id) {
		return chainerr.ChainNotFound(id)
	}
	if r.current.Get() != id {
		r.current.Set(id)
	}
	return nil
}

// Retired reports whether id was registered and later removed.
func (r *Registry) Retired(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.retired[id]
	return ok
}

func (r *Registry) Get(id string) (*Provider, bool) { return r.chains.Get(id) }
func (r *Registry) Contains(id string) bool { return r.chains.Contains(id) }
func (r *Registry) IDs() []string { return r.chains.Keys() }
func (r *Registry) Len() int { return r.chains.Len() }

// All returns the providers in insertion order.
func (r *Registry) All() []*Provider {
	return r.chains.GetAll()
}

// Infos returns the descriptive identity of every chain in insertion order.
func (r *Registry) Infos() []domain.ChainInfo {
	all := r.chains.GetAll()
	out := make([]domain.ChainInfo, 0, len(all))
	for _, p := range all {
		out = append(out, p.Info())
	}
	return out
}

// OnAdded registers fn for chain additions.
func (r *Registry) OnAdded(fn func(id string)) observable.Unsubscribe {
	return r.chains.OnAdded(fn)
}

// OnRemoved registers fn for chain removals.
func (r *Registry) OnRemoved(fn func(id string)) observable.Unsubscribe {
	return r.chains.OnRemoved(fn)
}

// OnChanged fires after every registry mutation and after any change inside
// a registered chain.
func (r *Registry) OnChanged(fn func()) observable.Unsubscribe {
	return r.chains.OnChanged(fn)
}
