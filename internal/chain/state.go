// Package chain implements the per-chain aggregate, the provider that owns it,
// and the registry of live chains.
package chain

import (
	"chainstate/internal/substore"
	"chainstate/pkg/observable"
)

// State aggregates one chain's sub-stores. Compilation is the process-wide
// store shared by every chain; the other fields are owned by a single provider.
type State struct {
	Accounts    *substore.Accounts
	Deployment  *substore.Deployment
	History     *substore.History
	Connected   *observable.Store[bool]
	Compilation *substore.Compilation
}

func newState(shared *substore.Compilation) *State {
	if shared == nil {
		shared = substore.NewCompilation()
	}
	return &State{
		Accounts:    substore.NewAccounts(),
		Deployment:  substore.NewDeployment(),
		History:     substore.NewHistory(),
		Connected:   observable.New(false),
		Compilation: shared,
	}
}
