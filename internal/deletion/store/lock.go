package store

import (
	"context"
	"fmt"

	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
)

// ErrLockHeld means another reviewer is processing the same request.
var ErrLockHeld = fmt.Errorf("review lock held: %w", sentinel.ErrConflict)

// Release gives a review lock back. Releasing twice is a no-op.
type Release func(ctx context.Context) error

// Lock serialises review of a single deletion request.
type Lock interface {
	Acquire(ctx context.Context, requestID id.DeletionRequestID) (Release, error)
}
