package store

import (
	"context"
	"errors"
	"log/slog"

	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/circuit"
)

// FallbackLock prefers a shared lock and drops to a local one when the shared
// lock's backend fails. The breaker keeps failing calls off the primary until
// its cooldown lets a trial call through.
//
// While degraded, two instances can both hold the lock for the same request;
// the ledger's conditional resolve still admits only one reviewer.
type FallbackLock struct {
	primary  Lock
	fallback Lock
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackLock(primary, fallback Lock, breaker *circuit.Breaker, logger *slog.Logger) *FallbackLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackLock{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (l *FallbackLock) Acquire(ctx context.Context, requestID id.DeletionRequestID) (Release, error) {
	if !l.breaker.Allow() {
		return l.fallback.Acquire(ctx, requestID)
	}

	release, err := l.primary.Acquire(ctx, requestID)
	if err == nil || errors.Is(err, ErrLockHeld) {
		if _, change := l.breaker.RecordSuccess(); change.Closed {
			l.logger.InfoContext(ctx, "review lock backend recovered", "breaker", l.breaker.Name())
		}
		return release, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	if _, change := l.breaker.RecordFailure(); change.Opened {
		l.logger.WarnContext(ctx, "review lock backend unavailable, using local lock",
			"breaker", l.breaker.Name(),
			"error", err,
		)
	} else {
		l.logger.WarnContext(ctx, "review lock acquire failed, using local lock",
			"deletion_request_id", requestID.String(),
			"error", err,
		)
	}
	return l.fallback.Acquire(ctx, requestID)
}
