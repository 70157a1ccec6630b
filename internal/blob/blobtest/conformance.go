// Package blobtest holds the behaviour every blob driver must share.
package blobtest

import (
	"context"
	"errors"
	"testing"

	"chainstate/internal/blob/core"
)

// Run exercises store against the core.Store contract. newStore must return
// an empty store.
func Run(t *testing.T, newStore func(t *testing.T) core.Store) {
	t.Helper()

	t.Run("write read replace", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		info, err := s.Write(ctx, "local-a.json", []byte(`{"v":1}`))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		if info.Key != "local-a.json" || info.Size != 7 || info.ETag != core.ETag([]byte(`{"v":1}`)) {
			t.Fatalf("unexpected info %+v", info)
		}
		if _, err := s.Write(ctx, "local-a.json", []byte(`{"v":22}`)); err != nil {
			t.Fatalf("replace: %v", err)
		}
		got, ok, err := s.Read(ctx, "local-a.json")
		if err != nil || !ok || string(got) != `{"v":22}` {
			t.Fatalf("read after replace: %v %v %q", err, ok, got)
		}
	})

	t.Run("missing is not an error", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, ok, err := s.Read(ctx, "nope.json")
		if err != nil || ok {
			t.Fatalf("expected absent read, got ok=%v err=%v", ok, err)
		}
		existed, err := s.Delete(ctx, "nope.json")
		if err != nil || existed {
			t.Fatalf("expected absent delete, got existed=%v err=%v", existed, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, _ = s.Write(ctx, "k.json", []byte("x"))
		existed, err := s.Delete(ctx, "k.json")
		if err != nil || !existed {
			t.Fatalf("delete: %v %v", existed, err)
		}
		if _, ok, _ := s.Read(ctx, "k.json"); ok {
			t.Fatalf("blob still readable after delete")
		}
	})

	t.Run("list by prefix sorted", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, k := range []string{"local-c.json", "shared.json", "local-a.json", "local-b.json"} {
			if _, err := s.Write(ctx, k, []byte(k)); err != nil {
				t.Fatalf("write %s: %v", k, err)
			}
		}
		infos, err := s.List(ctx, "local-")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"local-a.json", "local-b.json", "local-c.json"}
		if len(infos) != len(want) {
			t.Fatalf("expected %v, got %+v", want, infos)
		}
		for i, info := range infos {
			if info.Key != want[i] {
				t.Fatalf("expected %v, got %+v", want, infos)
			}
			if info.Size != int64(len(want[i])) {
				t.Fatalf("unexpected size for %s: %d", info.Key, info.Size)
			}
		}
		all, _ := s.List(ctx, "")
		if len(all) != 4 {
			t.Fatalf("expected 4 blobs, got %d", len(all))
		}
	})

	t.Run("invalid keys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, k := range []string{"", "../escape", "/abs"} {
			if _, err := s.Write(ctx, k, []byte("x")); !errors.Is(err, core.ErrInvalidKey) {
				t.Fatalf("key %q: expected ErrInvalidKey, got %v", k, err)
			}
		}
	})
}
