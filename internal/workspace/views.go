package workspace

import (
	"chainstate/internal/uisink"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// State ids posted to the UI sink.
const (
	StateChains      = "chains"
	StateAccounts    = "accounts"
	StateDeployment  = "deployment"
	StateHistory     = "history"
	StateConnection  = "connection"
	StateCompilation = "compilation"
)

// ChainView is one entry of the chains payload.
type ChainView struct {
	domain.ChainInfo
	Connected bool `json:"connected"`
	Current   bool `json:"current"`
}

// Chains lists every chain with its connection state, in registration order.
func (w *Workspace) Chains() []ChainView {
	current := w.registry.Current().Get()
	all := w.registry.All()
	out := make([]ChainView, 0, len(all))
	for _, p := range all {
		out = append(out, ChainView{
			ChainInfo: p.Info(),
			Connected: p.Connected().Get(),
			Current:   p.ID() == current,
		})
	}
	return out
}

func (w *Workspace) postChains() {
	if err := uisink.Post(w.sink, StateChains, w.Chains()); err != nil {
		w.log.WithError(err).Warn("chains view not posted")
	}
}

// rebind points the per-chain views at the current chain.
func (w *Workspace) rebind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, stop := range w.viewStops {
		stop()
	}
	w.viewStops = nil
	p, ok := w.registry.CurrentProvider()
	if !ok {
		return
	}
	st := p.State()
	w.viewStops = []observable.Unsubscribe{
		uisink.Bind(w.sink, StateAccounts, st.Accounts.Store(), w.log),
		uisink.Bind(w.sink, StateDeployment, st.Deployment.Store(), w.log),
		uisink.Bind(w.sink, StateHistory, st.History.Store(), w.log),
		uisink.Bind(w.sink, StateConnection, st.Connected, w.log),
	}
}
