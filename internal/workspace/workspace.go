// Package workspace is the process-lifetime context that owns the chain
// registry, the shared compilation store, persistence, autosave and the
// bindings that keep view surfaces in sync. Tests build fresh workspaces
// instead of relying on globals.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chainstate/internal/autosave"
	"chainstate/internal/blob"
	"chainstate/internal/chain"
	"chainstate/internal/clock"
	"chainstate/internal/compiler"
	"chainstate/internal/logging"
	"chainstate/internal/metrics"
	"chainstate/internal/network"
	"chainstate/internal/persistence"
	"chainstate/internal/substore"
	"chainstate/internal/uisink"
	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
	"chainstate/pkg/observable"
)

// DefaultChainName is the display name of the chain created for an empty
// workspace.
const DefaultChainName = "Local"

// Options configures a Workspace. Store is required.
type Options struct {
	Store    blob.Store
	Sink     uisink.Sink
	Logger   *logrus.Entry
	Metrics  metrics.Recorder
	Networks *network.Factory
	Decoder  chain.Decoder

	DisableAutosave bool
	AutosaveDelay   time.Duration
	Clock           clock.Clock
}

// Workspace wires the chain state core together.
type Workspace struct {
	registry    *chain.Registry
	compilation *substore.Compilation
	backend     *observable.Store[bool]
	compilerUp  *observable.Store[bool]
	persister   *persistence.Persister
	scheduler   *autosave.Scheduler
	networks    *network.Factory
	notifier    *uisink.Notifier
	sink        uisink.Sink
	decoder     chain.Decoder
	log         *logrus.Entry

	mu        sync.Mutex
	viewStops []observable.Unsubscribe
	stops     []observable.Unsubscribe
	closeOnce sync.Once
}

// New builds a workspace with an empty registry. Backend and compiler
// service availability start out true.
func New(opts Options) (*Workspace, error) {
	if opts.Store == nil {
		return nil, chainerr.InvalidInput("workspace needs a blob store")
	}
	log := logging.OrDiscard(opts.Logger)
	sink := opts.Sink
	if sink == nil {
		sink = uisink.Discard{}
	}
	networks := opts.Networks
	if networks == nil {
		networks = network.NewFactory()
	}
	w := &Workspace{
		registry:    chain.NewRegistry(log.WithField("part", "registry")),
		compilation: substore.NewCompilation(),
		backend:     observable.New(true),
		compilerUp:  observable.New(true),
		networks:    networks,
		notifier:    uisink.NewNotifier(sink, log.WithField("part", "notifier")),
		sink:        sink,
		decoder:     opts.Decoder,
		log:         log,
	}
	w.persister = persistence.New(opts.Store,
		persistence.WithLogger(log.WithField("part", "persistence")),
		persistence.WithNotifier(w.notifier),
		persistence.WithMetrics(opts.Metrics),
	)
	w.scheduler = autosave.New(w.autosave,
		autosave.WithEnabled(!opts.DisableAutosave),
		autosave.WithDelay(opts.AutosaveDelay),
		autosave.WithClock(opts.Clock),
		autosave.WithLogger(log.WithField("part", "autosave")),
	)
	w.stops = append(w.stops,
		chain.WatchBackend(w.backend, w.registry),
		compiler.WatchService(w.compilerUp, w.compilation),
		w.registry.OnChanged(w.postChains),
		w.registry.Current().OnChange(func(string) {
			w.rebind()
			w.postChains()
		}),
		uisink.Bind(sink, StateCompilation, w.compilation.Store(), log),
	)
	w.postChains()
	return w, nil
}

func (w *Workspace) Registry() *chain.Registry { return w.registry }
func (w *Workspace) Compilation() *substore.Compilation { return w.compilation }
func (w *Workspace) Backend() *observable.Store[bool] { return w.backend }
func (w *Workspace) CompilerService() *observable.Store[bool] { return w.compilerUp }
func (w *Workspace) Persister() *persistence.Persister { return w.persister }
func (w *Workspace) Scheduler() *autosave.Scheduler { return w.scheduler }
func (w *Workspace) Notifier() *uisink.Notifier { return w.notifier }

// SetBackendAvailable publishes the local node backend state. Going down
// force-disconnects local chains.
func (w *Workspace) SetBackendAvailable(up bool) {
	if w.backend.Get() != up {
		w.backend.Set(up)
	}
}

// SetCompilerAvailable publishes the compiler service state. Going down
// resets the shared compilation.
func (w *Workspace) SetCompilerAvailable(up bool) {
	if w.compilerUp.Get() != up {
		w.compilerUp.Set(up)
	}
}

func (w *Workspace) providerOptions() []chain.Option {
	return []chain.Option{
		chain.WithLogger(w.log.WithField("part", "chain")),
		chain.WithDecoder(w.decoder),
		chain.WithReporter(w.notifier),
	}
}

// shouldConnect reports whether a chain of kind can be connected now.
func (w *Workspace) shouldConnect(kind domain.ChainKind) bool {
	return kind != domain.ChainLocal || w.backend.Get()
}

// CreateChain builds a chain with a fresh id, registers it and connects it
// when its backend is available.
func (w *Workspace) CreateChain(ctx context.Context, displayName string, kind domain.ChainKind) (*chain.Provider, error) {
	info := domain.ChainInfo{ID: uuid.NewString(), DisplayName: displayName, Kind: kind}
	if !kind.Valid() {
		return nil, chainerr.InvalidInput(fmt.Sprintf("unknown chain kind %q", kind))
	}
	net, err := w.networks.New(kind, nil)
	if err != nil {
		return nil, err
	}
	p, err := chain.NewProvider(info, net, w.compilation, w.providerOptions()...)
	if err != nil {
		return nil, err
	}
	if err := w.AddChain(p); err != nil {
		return nil, err
	}
	if w.shouldConnect(kind) {
		if err := p.Connect(ctx); err != nil {
			w.notifier.Warn(fmt.Sprintf("Could not connect %s: %v", displayName, err))
		}
	}
	w.scheduler.Touch(p.ID())
	return p, nil
}

// AddChain registers p and starts autosaving it.
func (w *Workspace) AddChain(p *chain.Provider) error {
	if err := w.registry.Add(p); err != nil {
		return err
	}
	w.scheduler.Watch(p)
	return nil
}

// RemoveChain unregisters the chain, drops any pending autosave and deletes
// its snapshot. Removing the last chain fails with LAST_CHAIN.
func (w *Workspace) RemoveChain(ctx context.Context, id string) error {
	if !w.registry.Contains(id) {
		return chainerr.ChainNotFound(id)
	}
	if err := w.registry.Remove(id); err != nil {
		return err
	}
	w.scheduler.Forget(id)
	return w.persister.Delete(ctx, id)
}

// SelectChain makes id the current chain.
func (w *Workspace) SelectChain(id string) error {
	return w.registry.Select(id)
}

// Chain returns a registered chain.
func (w *Workspace) Chain(id string) (*chain.Provider, error) {
	p, ok := w.registry.Get(id)
	if !ok {
		return nil, chainerr.ChainNotFound(id)
	}
	return p, nil
}

// SaveChain persists the chain now. saved is false when nothing changed.
func (w *Workspace) SaveChain(ctx context.Context, id string) (bool, error) {
	p, err := w.Chain(id)
	if err != nil {
		return false, err
	}
	return w.persister.Save(ctx, p)
}

func (w *Workspace) autosave(ctx context.Context, id string) error {
	_, err := w.SaveChain(ctx, id)
	return err
}

// Snapshot dumps the chain without writing it.
func (w *Workspace) Snapshot(ctx context.Context, id string) (persistence.Snapshot, error) {
	p, err := w.Chain(id)
	if err != nil {
		return persistence.Snapshot{}, err
	}
	return w.persister.Dump(ctx, p)
}

// SaveShared persists the compilation and the current chain selection.
func (w *Workspace) SaveShared(ctx context.Context) (bool, error) {
	return w.persister.SaveShared(ctx, persistence.SharedSnapshot{
		Compilation:  w.compilation.Snapshot(),
		CurrentChain: w.registry.Current().Get(),
	})
}

// Restore loads the shared snapshot and every stored chain. Chains that fail
// to restore are skipped and reported once; the error is non-nil only when
// the snapshot index cannot be read.
func (w *Workspace) Restore(ctx context.Context) (persistence.LoadResult, error) {
	shared, haveShared, err := w.persister.LoadShared(ctx)
	if err != nil {
		w.log.WithError(err).Warn("shared state not restored")
	}
	if haveShared {
		w.compilation.Restore(shared.Compilation)
	}
	res, err := w.persister.LoadAll(ctx, w.restoreChain)
	if err != nil {
		return res, err
	}
	for _, snap := range res.Loaded {
		if p, ok := w.registry.Get(snap.ID); ok && w.shouldConnect(p.Kind()) {
			if cerr := p.Connect(ctx); cerr != nil {
				w.log.WithError(cerr).WithField("chain", snap.ID).Warn("restored chain not connected")
			}
		}
	}
	if haveShared && shared.CurrentChain != "" && w.registry.Contains(shared.CurrentChain) {
		_ = w.registry.Select(shared.CurrentChain)
	}
	return res, nil
}

func (w *Workspace) restoreChain(_ context.Context, snap persistence.Snapshot) error {
	net, err := w.networks.New(snap.Kind, snap.NetworkState)
	if err != nil {
		return err
	}
	p, err := chain.NewProvider(snap.Info(), net, w.compilation, w.providerOptions()...)
	if err != nil {
		return err
	}
	if err := snap.ApplyTo(p.State()); err != nil {
		p.Close()
		return err
	}
	if err := w.AddChain(p); err != nil {
		p.Close()
		return err
	}
	return nil
}

// EnsureChain creates a local chain when the workspace has none, so there is
// always a current chain.
func (w *Workspace) EnsureChain(ctx context.Context) (*chain.Provider, error) {
	if p, ok := w.registry.CurrentProvider(); ok {
		return p, nil
	}
	return w.CreateChain(ctx, DefaultChainName, domain.ChainLocal)
}

// Teardown saves pending autosaves, every chain and the shared snapshot.
func (w *Workspace) Teardown(ctx context.Context) error {
	var errs []error
	if err := w.scheduler.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, p := range w.registry.All() {
		if _, err := w.persister.Save(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := w.SaveShared(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close stops autosave and every subscription the workspace holds. It does
// not save; call Teardown first.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		w.scheduler.Stop()
		w.mu.Lock()
		stops := append(w.stops, w.viewStops...)
		w.stops, w.viewStops = nil, nil
		w.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		for _, p := range w.registry.All() {
			p.Close()
		}
	})
}
