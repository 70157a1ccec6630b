package substore

import (
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// Compilation is the process-wide compiler output. One instance is shared by
// every chain. Dirty is set whenever artifacts may be stale and cleared only by
// a successful full recompute (Complete).
type Compilation struct {
	store *observable.Store[domain.Compilation]
}

// NewCompilation returns an empty, dirty compilation store: nothing has been
// compiled yet.
func NewCompilation() *Compilation {
	return &Compilation{store: observable.New(domain.Compilation{Dirty: true})}
}

// Snapshot returns a copy of the current state.
func (c *Compilation) Snapshot() domain.Compilation {
	return cloneCompilation(c.store.Get())
}

// Complete records the result of a successful full recompute and clears Dirty.
func (c *Compilation) Complete(contracts []domain.CompiledContract, issues []domain.CompilationIssue) {
	c.store.Set(domain.Compilation{
		Contracts: append([]domain.CompiledContract(nil), contracts...),
		Issues:    append([]domain.CompilationIssue(nil), issues...),
		Dirty:     false,
	})
}

// MarkDirty flags artifacts as possibly stale.
func (c *Compilation) MarkDirty() {
	c.store.Update(func(cur domain.Compilation) domain.Compilation {
		next := cloneCompilation(cur)
		next.Dirty = true
		return next
	})
}

// BackendStopped drops all artifacts and diagnostics and marks the store dirty.
func (c *Compilation) BackendStopped() {
	c.store.Set(domain.Compilation{Dirty: true})
}

// AddContract inserts or replaces a contract by fully qualified name. Partial
// updates do not clear Dirty.
func (c *Compilation) AddContract(contract domain.CompiledContract) {
	c.store.Update(func(cur domain.Compilation) domain.Compilation {
		next := cloneCompilation(cur)
		for i, existing := range next.Contracts {
			if existing.FullyQualifiedName == contract.FullyQualifiedName {
				next.Contracts[i] = contract
				return next
			}
		}
		next.Contracts = append(next.Contracts, contract)
		return next
	})
}

// Contract looks a contract up by fully qualified name.
func (c *Compilation) Contract(fqn string) (domain.CompiledContract, bool) {
	for _, contract := range c.store.Get().Contracts {
		if contract.FullyQualifiedName == fqn {
			return contract, true
		}
	}
	return domain.CompiledContract{}, false
}

// Restore replaces the whole state, used when loading the shared snapshot.
func (c *Compilation) Restore(state domain.Compilation) {
	c.store.Set(cloneCompilation(state))
}

// Store exposes the observable cell for subscriptions and UI binding.
func (c *Compilation) Store() *observable.Store[domain.Compilation] {
	return c.store
}

func cloneCompilation(in domain.Compilation) domain.Compilation {
	return domain.Compilation{
		Contracts: append([]domain.CompiledContract(nil), in.Contracts...),
		Issues:    append([]domain.CompilationIssue(nil), in.Issues...),
		Dirty:     in.Dirty,
	}
}
