// Package memory implements an in-memory blob Store for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chainstate/internal/blob/core"
)

type blobEntry struct {
	info core.Info
	data []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string]blobEntry
	now  func() time.Time
}

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{objs: make(map[string]blobEntry), now: func() time.Time { return time.Now().UTC() }}
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Write stores a copy of data under key, replacing any previous blob.
func (s *Store) Write(ctx context.Context, key string, data []byte) (core.Info, error) {
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	b := append([]byte(nil), data...)
	info := core.Info{Key: k, Size: int64(len(b)), ETag: core.ETag(b), LastModified: s.now()}
	s.mu.Lock()
	s.objs[k] = blobEntry{info: info, data: b}
	s.mu.Unlock()
	return info, nil
}

// Read returns a copy of the blob content.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	k, err := core.CleanKey(key)
	if err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	obj, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), obj.data...), true, nil
}

// Delete removes the blob returning true if it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[k]
	if ok {
		delete(s.objs, k)
	}
	return ok, nil
}

// List returns all blobs matching prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.objs))
	for k, v := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
