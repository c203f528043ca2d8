// Package memory is the in-process ledger backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"traitforge/internal/ledger/core"
)

// Store keeps records in a map keyed by token id.
type Store struct {
	mu      sync.RWMutex
	records map[int64]core.Record
	now     func() time.Time
}

// New returns an empty ledger.
func New() *Store {
	return &Store{records: make(map[int64]core.Record), now: time.Now}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(_ context.Context, rec core.Record) (core.Record, error) {
	rec, err := core.Prepare(rec, s.now())
	if err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.TokenID]; ok {
		return core.Record{}, fmt.Errorf("token %d: %w", rec.TokenID, core.ErrExists)
	}
	s.records[rec.TokenID] = clone(rec)
	return clone(rec), nil
}

func (s *Store) Get(_ context.Context, tokenID int64) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[tokenID]
	if !ok {
		return core.Record{}, fmt.Errorf("token %d: %w", tokenID, core.ErrNotFound)
	}
	return clone(rec), nil
}

func (s *Store) List(_ context.Context) ([]core.Record, error) {
	s.mu.RLock()
	out := make([]core.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clone(rec))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func clone(rec core.Record) core.Record {
	rec.Layers = append([]string(nil), rec.Layers...)
	rec.Attributes = append([]core.Attribute(nil), rec.Attributes...)
	return rec
}
