package seen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"whoprelay/internal/storage"
	logx "whoprelay/pkg/logx"
)

type failingBackend struct {
	loadErr error
	saveErr error
}

func (f failingBackend) Load(context.Context) (storage.State, error) { return nil, f.loadErr }
func (f failingBackend) Save(context.Context, storage.State) error  { return f.saveErr }
func (f failingBackend) Close() error                               { return nil }

func TestMarkSeenIdempotent(t *testing.T) {
	t.Parallel()
	s := New(storage.NewMemory(), logx.Nop())

	if s.HasSeen("c1", "m1") {
		t.Fatal("empty store reports m1 as seen")
	}
	s.MarkSeen("c1", "m1")
	s.MarkSeen("c1", "m1")
	if !s.HasSeen("c1", "m1") {
		t.Fatal("m1 not seen after MarkSeen")
	}
	if got := s.Count("c1"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	if s.HasSeen("c2", "m1") {
		t.Fatal("seen-set leaked across channels")
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".message-state.json")

	backend, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s := New(backend, logx.Nop())
	s.MarkSeen("c1", "b")
	s.MarkSeen("c1", "a")
	s.MarkSeen("c2", "z")
	if err := s.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reopened, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fresh := New(reopened, logx.Nop())
	fresh.Load(ctx)

	for _, tc := range []struct{ ch, id string }{{"c1", "a"}, {"c1", "b"}, {"c2", "z"}} {
		if !fresh.HasSeen(tc.ch, tc.id) {
			t.Fatalf("%s/%s missing after reload", tc.ch, tc.id)
		}
	}
	if fresh.Count("c1") != 2 || fresh.Count("c2") != 1 {
		t.Fatalf("counts after reload = %d/%d, want 2/1", fresh.Count("c1"), fresh.Count("c2"))
	}
}

func TestLoadMergesIntoMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := storage.NewMemory()
	_ = backend.Save(ctx, storage.State{"c1": {"old"}})

	s := New(backend, logx.Nop())
	s.MarkSeen("c1", "new")
	s.Load(ctx)

	if !s.HasSeen("c1", "old") || !s.HasSeen("c1", "new") {
		t.Fatalf("Load did not merge: %v", s.Snapshot())
	}
}

func TestLoadFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	s := New(failingBackend{loadErr: errors.New("disk on fire")}, logx.Nop())
	s.Load(context.Background())
	if len(s.Snapshot()) != 0 {
		t.Fatal("expected empty state after failed load")
	}

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("]]"), 0o600); err != nil {
		t.Fatal(err)
	}
	backend, err := storage.Open(storage.Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	corrupt := New(backend, logx.Nop())
	corrupt.Load(context.Background())
	if len(corrupt.Snapshot()) != 0 {
		t.Fatal("expected empty state after corrupt file")
	}
}

func TestResetClearsAndPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := storage.NewMemory()
	s := New(backend, logx.Nop())
	s.MarkSeen("c1", "m1")
	if err := s.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.HasSeen("c1", "m1") {
		t.Fatal("m1 still seen after Reset")
	}
	st, _ := backend.Load(ctx)
	if len(st["c1"]) != 0 {
		t.Fatalf("persisted state after Reset = %v, want empty", st)
	}
	if backend.Saves() != 2 {
		t.Fatalf("Saves = %d, want 2 (persist + reset)", backend.Saves())
	}
}

func TestPersistError(t *testing.T) {
	t.Parallel()
	s := New(failingBackend{saveErr: errors.New("read-only fs")}, logx.Nop())
	s.MarkSeen("c", "m")
	if err := s.Persist(context.Background()); err == nil {
		t.Fatal("expected persist error")
	}
	if !s.HasSeen("c", "m") {
		t.Fatal("in-memory state lost after failed persist")
	}
}
