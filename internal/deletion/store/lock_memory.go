package store

import (
	"context"
	"sync"

	id "mastercom/pkg/domain"
)

// InMemoryLock is a process-local review lock. It does not wait: a held lock
// yields ErrLockHeld immediately.
type InMemoryLock struct {
	mu   sync.Mutex
	held map[id.DeletionRequestID]struct{}
}

func NewInMemoryLock() *InMemoryLock {
	return &InMemoryLock{held: make(map[id.DeletionRequestID]struct{})}
}

func (l *InMemoryLock) Acquire(_ context.Context, requestID id.DeletionRequestID) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[requestID]; busy {
		return nil, ErrLockHeld
	}
	l.held[requestID] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, requestID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// Held reports whether requestID is currently locked.
func (l *InMemoryLock) Held(requestID id.DeletionRequestID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[requestID]
	return busy
}
