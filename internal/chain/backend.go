package chain

import (
	"sync"

	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// WatchBackend force-disconnects every local chain whenever avail transitions
// from true to false. Remote chains do not depend on the backend and are left
// alone.
func WatchBackend(avail *observable.Store[bool], reg *Registry) observable.Unsubscribe {
	var mu sync.Mutex
	prev := avail.Get()
	return avail.OnChange(func(up bool) {
		mu.Lock()
		wasUp := prev
		prev = up
		mu.Unlock()
		if !wasUp || up {
			return
		}
		for _, p := range reg.All() {
			if p.Kind() == domain.ChainLocal {
				p.ForceDisconnect()
			}
		}
	})
}
