// Package persistence snapshots chains to a blob store and restores them.
// Each chain lives in its own blob; process-wide state lives in SharedKey.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chainstate/internal/blob"
	"chainstate/internal/chain"
	"chainstate/internal/logging"
	"chainstate/internal/metrics"
	"chainstate/pkg/chainerr"
)

// Notifier receives user-facing warnings.
type Notifier interface {
	Warn(message string)
}

type nopNotifier struct{}

func (nopNotifier) Warn(string) {}

// RestoreFunc rebuilds a chain from a loaded snapshot.
type RestoreFunc func(ctx context.Context, snap Snapshot) error

// Failure describes a chain blob that could not be restored.
type Failure struct {
	Key         string
	ID          string
	DisplayName string
	Err         error
}

// Name is the label used in user-facing messages.
func (f Failure) Name() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.ID
}

// LoadResult summarizes a LoadAll pass.
type LoadResult struct {
	Loaded []Snapshot
	Failed []Failure
}

// Persister writes and reads chain snapshots. Saves of one chain never
// overlap; saves of different chains may run concurrently.
type Persister struct {
	store    blob.Store
	log      *logrus.Entry
	notifier Notifier
	metrics  metrics.Recorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	last  map[string]string
}

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Persister) { p.log = logging.OrDiscard(l) }
}

// WithNotifier routes user-facing warnings.
func WithNotifier(n Notifier) Option {
	return func(p *Persister) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithMetrics observes every save, load and delete.
func WithMetrics(r metrics.Recorder) Option {
	return func(p *Persister) { p.metrics = metrics.OrNoop(r) }
}

// New returns a Persister over store.
func New(store blob.Store, opts ...Option) *Persister {
	p := &Persister{
		store:    store,
		log:      logging.Discard(),
		notifier: nopNotifier{},
		metrics:  metrics.Noop{},
		locks:    make(map[string]*sync.Mutex),
		last:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the underlying blob store.
func (p *Persister) Store() blob.Store { return p.store }

func (p *Persister) lockFor(key string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

func (p *Persister) lastFingerprint(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last[key]
}

func (p *Persister) remember(key, fp string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fp == "" {
		delete(p.last, key)
		return
	}
	p.last[key] = fp
}

// Dump reads the chain's sub-stores and network state into a fingerprinted
// snapshot.
func (p *Persister) Dump(ctx context.Context, c *chain.Provider) (Snapshot, error) {
	info := c.Info()
	st := c.State()
	snap := Snapshot{
		ID:          info.ID,
		DisplayName: info.DisplayName,
		Kind:        info.Kind,
		DomainState: DomainState{
			Accounts:   st.Accounts.All(),
			Deployment: st.Deployment.All(),
			History:    st.History.All(),
		},
	}
	netState, err := c.Network().DumpState(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("dump network state: %w", err)
	}
	snap.NetworkState = netState
	fp, err := snap.ComputeFingerprint()
	if err != nil {
		return Snapshot{}, fmt.Errorf("fingerprint: %w", err)
	}
	snap.Fingerprint = fp
	return snap, nil
}

// Save writes the chain snapshot unless its fingerprint matches the last one
// persisted. Failures are reported to the notifier and returned as
// PERSISTENCE errors; they are not retried.
func (p *Persister) Save(ctx context.Context, c *chain.Provider) (saved bool, err error) {
	key := ChainKey(c.ID())
	l := p.lockFor(key)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	defer func() { p.metrics.Observe(ctx, "save", err == nil, time.Since(start)) }()

	snap, err := p.Dump(ctx, c)
	if err != nil {
		return false, p.fail("save", key, c.Info().DisplayName, err)
	}
	if snap.Fingerprint == p.lastFingerprint(key) {
		p.log.WithField("chain", snap.ID).Debug("snapshot unchanged, skipping write")
		return false, nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return false, p.fail("save", key, snap.DisplayName, err)
	}
	if _, err := p.store.Write(ctx, key, data); err != nil {
		return false, p.fail("save", key, snap.DisplayName, err)
	}
	p.remember(key, snap.Fingerprint)
	p.log.WithFields(logrus.Fields{"chain": snap.ID, "fingerprint": snap.Fingerprint[:12]}).Info("chain saved")
	return true, nil
}

func (p *Persister) fail(op, key, name string, cause error) error {
	perr := chainerr.Persistence(op, key, cause)
	p.log.WithError(cause).WithFields(logrus.Fields{"op": op, "key": key}).Warn("persistence failed")
	if name == "" {
		name = key
	}
	p.notifier.Warn(fmt.Sprintf("Could not %s %s: %v", op, name, cause))
	return perr
}

// Read loads one chain snapshot without restoring it.
func (p *Persister) Read(ctx context.Context, id string) (Snapshot, bool, error) {
	key := ChainKey(id)
	data, ok, err := p.store.Read(ctx, key)
	if err != nil {
		return Snapshot{}, false, chainerr.Persistence("read", key, err)
	}
	if !ok {
		p.remember(key, "")
		return Snapshot{}, false, nil
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return Snapshot{}, false, chainerr.Persistence("read", key, err)
	}
	return snap, true, nil
}

// forgetMissing drops remembered fingerprints of chain blobs that are no
// longer stored, so the next Save rewrites them.
func (p *Persister) forgetMissing(present map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.last {
		if _, ok := ChainIDFromKey(key); !ok {
			continue
		}
		if _, ok := present[key]; !ok {
			delete(p.last, key)
		}
	}
}

// Keys lists the chain blob keys in key order. Chains whose blob has gone
// missing are written again by their next Save.
func (p *Persister) Keys(ctx context.Context) ([]blob.Info, error) {
	infos, err := p.store.List(ctx, chainKeyPrefix)
	if err != nil {
		return nil, chainerr.Persistence("list", chainKeyPrefix+"*", err)
	}
	out := infos[:0]
	present := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if _, ok := ChainIDFromKey(info.Key); ok {
			out = append(out, info)
			present[info.Key] = struct{}{}
		}
	}
	p.forgetMissing(present)
	return out, nil
}

// LoadAll restores every stored chain through restore. A chain that cannot be
// read, parsed or restored is logged and skipped; all such chains are named in
// a single notifier warning. The error is non-nil only when listing fails.
func (p *Persister) LoadAll(ctx context.Context, restore RestoreFunc) (res LoadResult, err error) {
	start := time.Now()
	defer func() { p.metrics.Observe(ctx, "load", err == nil && len(res.Failed) == 0, time.Since(start)) }()

	infos, err := p.Keys(ctx)
	if err != nil {
		p.log.WithError(err).Error("could not list chain snapshots")
		return LoadResult{}, err
	}
	for _, info := range infos {
		id, _ := ChainIDFromKey(info.Key)
		snap, name, lerr := p.loadOne(ctx, info.Key, restore)
		if lerr != nil {
			f := Failure{Key: info.Key, ID: id, DisplayName: name, Err: lerr}
			p.log.WithError(lerr).WithField("key", info.Key).Warn("chain could not be restored")
			res.Failed = append(res.Failed, f)
			continue
		}
		res.Loaded = append(res.Loaded, snap)
	}
	if len(res.Failed) > 0 {
		names := make([]string, 0, len(res.Failed))
		for _, f := range res.Failed {
			names = append(names, f.Name())
		}
		p.notifier.Warn(fmt.Sprintf("Failed to restore %d chain(s): %s", len(names), strings.Join(names, ", ")))
	}
	p.log.WithFields(logrus.Fields{"loaded": len(res.Loaded), "failed": len(res.Failed)}).Info("chains restored")
	return res, nil
}

func (p *Persister) loadOne(ctx context.Context, key string, restore RestoreFunc) (Snapshot, string, error) {
	data, ok, err := p.store.Read(ctx, key)
	if err != nil {
		return Snapshot{}, "", err
	}
	if !ok {
		return Snapshot{}, "", fmt.Errorf("blob vanished")
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return Snapshot{}, salvageDisplayName(data), err
	}
	if id, _ := ChainIDFromKey(key); id != snap.ID {
		return Snapshot{}, snap.DisplayName, fmt.Errorf("snapshot id %s does not match key %s", snap.ID, key)
	}
	fp, err := snap.ComputeFingerprint()
	if err != nil {
		return Snapshot{}, snap.DisplayName, err
	}
	if snap.Fingerprint != "" && snap.Fingerprint != fp {
		p.log.WithField("chain", snap.ID).Warn("stored fingerprint does not match content")
	}
	if restore != nil {
		if err := restore(ctx, snap); err != nil {
			return Snapshot{}, snap.DisplayName, err
		}
	}
	p.remember(key, fp)
	return snap, snap.DisplayName, nil
}

// Delete removes the chain's blob. A missing blob is not an error.
func (p *Persister) Delete(ctx context.Context, id string) (err error) {
	key := ChainKey(id)
	l := p.lockFor(key)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	defer func() { p.metrics.Observe(ctx, "delete", err == nil, time.Since(start)) }()

	if _, err := p.store.Delete(ctx, key); err != nil {
		return p.fail("delete", key, id, err)
	}
	p.remember(key, "")
	p.mu.Lock()
	delete(p.locks, key)
	p.mu.Unlock()
	return nil
}

// SaveShared writes the process-wide snapshot when it changed.
func (p *Persister) SaveShared(ctx context.Context, shared SharedSnapshot) (saved bool, err error) {
	l := p.lockFor(SharedKey)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	defer func() { p.metrics.Observe(ctx, "save_shared", err == nil, time.Since(start)) }()

	fp, err := shared.ComputeFingerprint()
	if err != nil {
		return false, p.fail("save", SharedKey, "", err)
	}
	if fp == p.lastFingerprint(SharedKey) {
		return false, nil
	}
	shared.Fingerprint = fp
	data, err := json.MarshalIndent(shared, "", "  ")
	if err != nil {
		return false, p.fail("save", SharedKey, "", err)
	}
	if _, err := p.store.Write(ctx, SharedKey, data); err != nil {
		return false, p.fail("save", SharedKey, "", err)
	}
	p.remember(SharedKey, fp)
	return true, nil
}

// LoadShared reads the process-wide snapshot. ok is false when none exists.
func (p *Persister) LoadShared(ctx context.Context) (shared SharedSnapshot, ok bool, err error) {
	start := time.Now()
	defer func() { p.metrics.Observe(ctx, "load_shared", err == nil, time.Since(start)) }()

	data, ok, err := p.store.Read(ctx, SharedKey)
	if err != nil {
		return SharedSnapshot{}, false, p.fail("load", SharedKey, "", err)
	}
	if !ok {
		return SharedSnapshot{}, false, nil
	}
	if err := json.Unmarshal(data, &shared); err != nil {
		return SharedSnapshot{}, false, p.fail("load", SharedKey, "", err)
	}
	if fp, ferr := shared.ComputeFingerprint(); ferr == nil {
		p.remember(SharedKey, fp)
	}
	return shared, true, nil
}
