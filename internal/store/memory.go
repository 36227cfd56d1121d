package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xssautomation/xssbot/internal/model"
)

// MemoryStore is a Store backed by a sync.Map.
type MemoryStore struct {
	reports sync.Map // key -> *model.Report
	closed  atomic.Bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

type key struct {
	identity model.Identity
	domain   model.Domain
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, identity model.Identity, domain model.Domain, report *model.Report) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := checkPut(identity, domain, report); err != nil {
		return err
	}
	s.reports.Store(key{identity, domain}, report.Clone())
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, identity model.Identity, domain model.Domain) (*model.Report, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	v, ok := s.reports.Load(key{identity, domain})
	if !ok {
		return nil, false, nil
	}
	return v.(*model.Report).Clone(), true, nil //nolint:forcetypeassert // only *model.Report is stored
}

// DrillDown implements Store.
func (s *MemoryStore) DrillDown(ctx context.Context, identity model.Identity, domain model.Domain, kind model.ArtifactKind) ([]string, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}
	v, ok := s.reports.Load(key{identity, domain})
	if !ok {
		return nil, false, nil
	}
	lines, ok := v.(*model.Report).Lines(kind) //nolint:forcetypeassert // only *model.Report is stored
	return lines, ok, nil
}

// Close drops every cached report.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	s.reports.Clear()
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
