// Package seen tracks, per channel, which message ids have already been
// relayed, and keeps that set durable through a storage.Backend.
package seen

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"whoprelay/internal/storage"
	logx "whoprelay/pkg/logx"
)

// Store is the in-memory seen-set plus its persistence backend.
// It is safe for concurrent use.
type Store struct {
	backend storage.Backend
	log     logx.Logger

	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func New(backend storage.Backend, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if backend == nil {
		backend = storage.NewMemory()
	}
	return &Store{
		backend: backend,
		log:     log.Component("seen"),
		sets:    map[string]map[string]struct{}{},
	}
}

// Load merges persisted state into memory. Failures are logged and the store
// carries on with whatever it already holds; startup is never blocked.
func (s *Store) Load(ctx context.Context) {
	st, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Error("failed to load seen state; starting empty", logx.Err(err))
		return
	}

	s.mu.Lock()
	total := 0
	for channelID, ids := range st {
		set := s.setLocked(channelID)
		for _, id := range ids {
			set[id] = struct{}{}
		}
		total += len(set)
	}
	s.mu.Unlock()

	s.log.Info("loaded seen state", logx.Int("channels", len(st)), logx.Int("messages", total))
}

func (s *Store) setLocked(channelID string) map[string]struct{} {
	set, ok := s.sets[channelID]
	if !ok {
		set = map[string]struct{}{}
		s.sets[channelID] = set
	}
	return set
}

func (s *Store) HasSeen(channelID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[channelID][messageID]
	return ok
}

// MarkSeen records messageID for channelID. Marking twice is a no-op.
func (s *Store) MarkSeen(channelID, messageID string) {
	s.mu.Lock()
	s.setLocked(channelID)[messageID] = struct{}{}
	s.mu.Unlock()
}

// Count returns how many ids are recorded for channelID.
func (s *Store) Count(channelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[channelID])
}

// Snapshot copies the in-memory state. Ids are sorted so the output is stable.
func (s *Store) Snapshot() storage.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := make(storage.State, len(s.sets))
	for channelID, set := range s.sets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		st[channelID] = ids
	}
	return st
}

// Persist writes the full in-memory state, replacing what the backend held.
func (s *Store) Persist(ctx context.Context) error {
	st := s.Snapshot()
	if err := s.backend.Save(ctx, st); err != nil {
		return fmt.Errorf("persist seen state: %w", err)
	}
	return nil
}

// Reset forgets every channel's ids and persists the empty state right away.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	for channelID := range s.sets {
		s.sets[channelID] = map[string]struct{}{}
	}
	s.mu.Unlock()

	if err := s.Persist(ctx); err != nil {
		return err
	}
	s.log.Info("seen state reset")
	return nil
}
