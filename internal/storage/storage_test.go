package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	logx "whoprelay/pkg/logx"
)

func sortedState(st State) State {
	out := st.Clone()
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

func assertSameState(t *testing.T, got, want State) {
	t.Helper()
	got, want = sortedState(got), sortedState(want)
	if len(got) != len(want) {
		t.Fatalf("channels = %d, want %d (got %v)", len(got), len(want), got)
	}
	for ch, ids := range want {
		g := got[ch]
		if len(g) != len(ids) {
			t.Fatalf("channel %s ids = %v, want %v", ch, g, ids)
		}
		for i := range ids {
			if g[i] != ids[i] {
				t.Fatalf("channel %s ids = %v, want %v", ch, g, ids)
			}
		}
	}
}

func TestBackendsRoundTrip(t *testing.T) {
	t.Parallel()
	want := State{
		"chat_feed_a": {"post_3", "post_1", "post_2"},
		"chat_feed_b": {"post_9"},
	}

	tests := []struct {
		name string
		cfg  func(dir string) Config
	}{
		{name: "file", cfg: func(dir string) Config { return Config{Driver: "file", Path: filepath.Join(dir, "state.json")} }},
		{name: "sqlite", cfg: func(dir string) Config { return Config{Driver: "sqlite", Path: filepath.Join(dir, "state.db")} }},
		{name: "memory", cfg: func(string) Config { return Config{Driver: "memory"} }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			b, err := Open(tt.cfg(t.TempDir()), logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			t.Cleanup(func() { _ = b.Close() })

			empty, err := b.Load(ctx)
			if err != nil {
				t.Fatalf("Load (empty): %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("fresh backend has state %v", empty)
			}

			if err := b.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := b.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameState(t, got, want)

			// Save overwrites, it does not merge.
			if err := b.Save(ctx, State{"chat_feed_b": {"post_10"}}); err != nil {
				t.Fatalf("Save (overwrite): %v", err)
			}
			got, err = b.Load(ctx)
			if err != nil {
				t.Fatalf("Load (overwrite): %v", err)
			}
			assertSameState(t, got, State{"chat_feed_b": {"post_10"}})
		})
	}
}

func TestFileStateFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), ".message-state.json")
	if err := os.WriteFile(path, []byte(`{"chat_feed_x":["a","b"]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameState(t, got, State{"chat_feed_x": {"a", "b"}})
}

func TestFileCorruptState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := b.Load(context.Background()); err == nil {
		t.Fatal("expected decode error for corrupt state")
	}
	// A corrupt file must not block writing fresh state.
	if err := b.Save(context.Background(), State{"c": {"1"}}); err != nil {
		t.Fatalf("Save after corrupt load: %v", err)
	}
}

func TestFileClosed(t *testing.T) {
	t.Parallel()
	b, err := Open(Config{Path: filepath.Join(t.TempDir(), "s.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_ = b.Close()
	if err := b.Save(context.Background(), State{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Save after Close = %v, want ErrClosed", err)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("unknown driver err = %v, want ErrUnknownDriver", err)
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestMemoryCountsSaves(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	_ = m.Save(context.Background(), State{"a": {"1"}})
	_ = m.Save(context.Background(), State{"a": {"1", "2"}})
	if m.Saves() != 2 {
		t.Fatalf("Saves = %d, want 2", m.Saves())
	}
}
