// Package compiler connects the shared compilation store to the things that
// make it stale: the compiler backend going away and edits to source files.
// Recompiling is left to the caller, which reports results through
// substore.Compilation.Complete.
package compiler

import (
	"sync"

	"chainstate/pkg/observable"
)

// Target is the part of the compilation store the watchers drive.
type Target interface {
	MarkDirty()
	BackendStopped()
}

// WatchService resets comp whenever avail transitions from true to false.
func WatchService(avail *observable.Store[bool], comp Target) observable.Unsubscribe {
	var mu sync.Mutex
	prev := avail.Get()
	return avail.OnChange(func(up bool) {
		mu.Lock()
		wasUp := prev
		prev = up
		mu.Unlock()
		if wasUp && !up {
			comp.BackendStopped()
		}
	})
}
