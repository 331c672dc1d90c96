package store

import (
	"context"
	"slices"
	"sync"

	"mastercom/internal/deletion/models"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
)

type target struct {
	table    recordmodels.Table
	recordID id.RecordID
}

// InMemoryLedger is the process-local ledger. It enforces at most one pending
// request per target under its mutex, the same rule the Postgres partial
// unique index enforces.
type InMemoryLedger struct {
	mu       sync.RWMutex
	requests map[id.DeletionRequestID]*models.DeletionRequest
	pending  map[target]id.DeletionRequestID
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		requests: make(map[id.DeletionRequestID]*models.DeletionRequest),
		pending:  make(map[target]id.DeletionRequestID),
	}
}

func (l *InMemoryLedger) Create(_ context.Context, req *models.DeletionRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	t := target{req.Table, req.RecordID}
	if req.IsPending() {
		if _, busy := l.pending[t]; busy {
			return sentinel.ErrConflict
		}
		l.pending[t] = req.ID
	}
	l.requests[req.ID] = req.Clone()
	return nil
}

func (l *InMemoryLedger) FindByID(_ context.Context, requestID id.DeletionRequestID) (*models.DeletionRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	req, ok := l.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// FindPending returns the pending request for a target, or sentinel.ErrNotFound.
func (l *InMemoryLedger) FindPending(_ context.Context, table recordmodels.Table, recordID id.RecordID) (*models.DeletionRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	requestID, ok := l.pending[target{table, recordID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l.requests[requestID].Clone(), nil
}

// List returns every entry, newest first.
func (l *InMemoryLedger) List(_ context.Context) ([]*models.DeletionRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sorted(func(*models.DeletionRequest) bool { return true }), nil
}

func (l *InMemoryLedger) ListByStatus(_ context.Context, status models.Status) ([]*models.DeletionRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sorted(func(r *models.DeletionRequest) bool { return r.Status == status }), nil
}

// Resolve applies a review to a pending entry. Entries that are no longer
// pending yield sentinel.ErrInvalidState and are left untouched.
func (l *InMemoryLedger) Resolve(_ context.Context, requestID id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !current.IsPending() {
		return nil, sentinel.ErrInvalidState
	}
	next := current.Clone()
	if err := next.ApplyReview(review); err != nil {
		return nil, err
	}
	l.requests[requestID] = next
	delete(l.pending, target{next.Table, next.RecordID})
	return next.Clone(), nil
}

func (l *InMemoryLedger) sorted(keep func(*models.DeletionRequest) bool) []*models.DeletionRequest {
	out := make([]*models.DeletionRequest, 0, len(l.requests))
	for _, req := range l.requests {
		if keep(req) {
			out = append(out, req.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.DeletionRequest) int {
		if c := b.RequestedAt.Compare(a.RequestedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out
}

func compareIDs(a, b id.DeletionRequestID) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
