package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
	"mastercom/pkg/requestcontext"
)

type key struct {
	table models.Table
	id    id.RecordID
}

// InMemoryStore keeps records per collection. Each call is atomic.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[key]*models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[key]*models.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, table models.Table, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key{table, recordID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(rec), nil
}

func (s *InMemoryStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{record.Table, record.ID}
	if _, exists := s.records[k]; exists {
		return sentinel.ErrConflict
	}
	s.records[k] = clone(record)
	return nil
}

// Update merges patch into the stored payload.
func (s *InMemoryStore) Update(ctx context.Context, table models.Table, recordID id.RecordID, patch json.RawMessage) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key{table, recordID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	merged, err := models.MergeObjects(rec.Data, patch)
	if err != nil {
		return nil, err
	}
	rec.Data = merged
	rec.UpdatedAt = requestcontext.Now(ctx)
	return clone(rec), nil
}

func (s *InMemoryStore) Delete(_ context.Context, table models.Table, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{table, recordID}
	if _, ok := s.records[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

// List returns the collection ordered by creation time.
func (s *InMemoryStore) List(_ context.Context, table models.Table) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Record, 0)
	for k, rec := range s.records {
		if k.table == table {
			out = append(out, clone(rec))
		}
	}
	slices.SortFunc(out, func(a, b *models.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

func compareIDs(a, b id.RecordID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func clone(r *models.Record) *models.Record {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}
