// Package memory provides the in-memory ledger store used by tests and by
// deployments that have not configured Postgres yet.
package memory

import (
	"context"
	"sort"
	"sync"

	"sentra/internal/ledger"
	"sentra/pkg/sentinel"
)

// Store keeps events per stream, in append order. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	streams map[string][]*ledger.Event
	byID    map[string]*ledger.Event
	// order preserves insertion order across streams for List, oldest first.
	order []string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		streams: make(map[string][]*ledger.Event),
		byID:    make(map[string]*ledger.Event),
	}
}

func (s *Store) Head(_ context.Context, streamID string) (ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.streams[streamID]
	if len(events) == 0 {
		return ledger.Event{}, sentinel.ErrNotFound
	}
	return *events[len(events)-1], nil
}

func (s *Store) Append(_ context.Context, event ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.streams[event.TraceID] {
		if e.ChainPosition == event.ChainPosition {
			return sentinel.ErrConflict
		}
	}
	stored := event
	s.streams[event.TraceID] = append(s.streams[event.TraceID], &stored)
	s.byID[event.AuditID] = &stored
	s.order = append(s.order, event.AuditID)
	return nil
}

func (s *Store) Get(_ context.Context, auditID string) (ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[auditID]
	if !ok {
		return ledger.Event{}, sentinel.ErrNotFound
	}
	return *e, nil
}

func (s *Store) ListStream(_ context.Context, streamID string) ([]ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]ledger.Event, 0, len(s.streams[streamID]))
	for _, e := range s.streams[streamID] {
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ChainPosition < events[j].ChainPosition
	})
	return events, nil
}

func (s *Store) List(_ context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Event
	// Walk newest first.
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.byID[s.order[i]]
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
		if filter.Take > 0 && len(out) >= filter.Take {
			break
		}
	}
	return out, nil
}

func (s *Store) Streams(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UpdateSyncState(_ context.Context, auditID string, state ledger.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[auditID]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.Sync = state
	return nil
}

func (s *Store) ListBySync(_ context.Context, status ledger.SyncStatus, maxAttempts, limit int) ([]ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ledger.Event
	for _, id := range s.order {
		e := s.byID[id]
		if e.Sync.Status != status {
			continue
		}
		if maxAttempts > 0 && e.Sync.Attempts >= maxAttempts {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Tamper overwrites a stored event in place, bypassing immutability. Only
// chain-validation tests use this; production code has no mutation path.
func (s *Store) Tamper(auditID string, mutate func(*ledger.Event)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[auditID]
	if !ok {
		return false
	}
	mutate(e)
	return true
}
