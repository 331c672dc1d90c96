package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mastercom/pkg/domain"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/audit/store/memory"
	"mastercom/pkg/platform/middleware/metadata"
	"mastercom/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestPublisher_Emit(t *testing.T) {
	store := memory.NewInMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := New(store, WithMetrics(metrics))

	subject := id.DeletionRequestID(uuid.New())
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = metadata.WithClientMetadata(ctx, "203.0.113.9", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")

	err := pub.Emit(ctx, audit.Event{
		Subject: subject,
		Action:  string(audit.EventDeletionRequested),
	})
	require.NoError(t, err)

	events, err := store.ListBySubject(ctx, subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
	assert.Equal(t, "203.0.113.9", events[0].ClientIP)
	assert.Contains(t, events[0].Device, "Firefox")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsEmitted.WithLabelValues(string(audit.EventDeletionRequested))))
}

func TestPublisher_RequiresAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	err := pub.Emit(context.Background(), audit.Event{})
	require.Error(t, err)
}

func TestPublisher_PropagatesStoreFailure(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := New(failingStore{}, WithMetrics(metrics))

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDeletionApproved)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
}
