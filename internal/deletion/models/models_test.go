package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
)

var testNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *DeletionRequest {
	t.Helper()
	req, err := NewDeletionRequest(
		id.NewDeletionRequestID(),
		recordmodels.TableInvoices,
		"INV-42",
		json.RawMessage(`{"total":120}`),
		"  duplicate entry  ",
		id.UserID(uuid.New()),
		testNow,
	)
	require.NoError(t, err)
	return req
}

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusRejected}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status{}.IsValid())
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("rejected")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, s)

	_, err = ParseStatus("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestStatusCodecs(t *testing.T) {
	b, err := json.Marshal(StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, `"approved"`, string(b))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"pending"`), &s))
	assert.Equal(t, StatusPending, s)
	assert.Error(t, json.Unmarshal([]byte(`"gone"`), &s))

	_, err = json.Marshal(Status{})
	assert.Error(t, err)

	v, err := StatusRejected.Value()
	require.NoError(t, err)
	assert.Equal(t, "rejected", v)

	require.NoError(t, s.Scan([]byte("approved")))
	assert.Equal(t, StatusApproved, s)
	assert.Error(t, s.Scan(42))
}

func TestNewDeletionRequest(t *testing.T) {
	t.Run("starts pending without review metadata", func(t *testing.T) {
		req := newPending(t)
		assert.True(t, req.IsPending())
		assert.Equal(t, "duplicate entry", req.Reason)
		assert.Nil(t, req.ReviewedBy)
		assert.Nil(t, req.ReviewedAt)
		assert.True(t, req.ReviewMetadataConsistent())
		assert.Equal(t, testNow, req.RequestedAt)
	})

	t.Run("empty reason is accepted", func(t *testing.T) {
		req, err := NewDeletionRequest(id.NewDeletionRequestID(), recordmodels.TableClients, "C1", nil, "", id.UserID(uuid.New()), testNow)
		require.NoError(t, err)
		assert.Equal(t, "", req.Reason)
		assert.JSONEq(t, `{}`, string(req.RecordData))
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		_, err := NewDeletionRequest(id.NewDeletionRequestID(), recordmodels.TableClients, "C1", nil, "", id.UserID{}, testNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewDeletionRequest(id.NewDeletionRequestID(), recordmodels.Table("users"), "C1", nil, "", id.UserID(uuid.New()), testNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewDeletionRequest(id.NewDeletionRequestID(), recordmodels.TableClients, "", nil, "", id.UserID(uuid.New()), testNow)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestApplyReview(t *testing.T) {
	reviewer := id.UserID(uuid.New())
	at := testNow.Add(time.Hour)

	t.Run("approve stamps metadata", func(t *testing.T) {
		req := newPending(t)
		require.NoError(t, req.ApplyReview(Review{Decision: StatusApproved, ReviewerID: reviewer, Notes: " ok ", At: at}))
		assert.Equal(t, StatusApproved, req.Status)
		require.NotNil(t, req.ReviewedBy)
		assert.Equal(t, reviewer, *req.ReviewedBy)
		assert.Equal(t, at, *req.ReviewedAt)
		assert.Equal(t, "ok", req.ReviewNotes)
		assert.True(t, req.ReviewMetadataConsistent())
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		req := newPending(t)
		require.NoError(t, req.ApplyReview(Review{Decision: StatusRejected, ReviewerID: reviewer, At: at}))

		err := req.ApplyReview(Review{Decision: StatusApproved, ReviewerID: reviewer, At: at})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, StatusRejected, req.Status)
	})

	t.Run("pending is not a decision", func(t *testing.T) {
		req := newPending(t)
		err := req.ApplyReview(Review{Decision: StatusPending, ReviewerID: reviewer, At: at})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.True(t, req.IsPending())
	})

	t.Run("reviewer is required", func(t *testing.T) {
		req := newPending(t)
		err := req.ApplyReview(Review{Decision: StatusApproved, At: at})
		assert.Error(t, err)
		assert.Nil(t, req.ReviewedBy)
	})
}

func TestCloneIsDeep(t *testing.T) {
	req := newPending(t)
	require.NoError(t, req.ApplyReview(Review{Decision: StatusApproved, ReviewerID: id.UserID(uuid.New()), At: testNow}))

	c := req.Clone()
	c.RecordData[1] = 'X'
	*c.ReviewedAt = testNow.Add(time.Hour)

	assert.JSONEq(t, `{"total":120}`, string(req.RecordData))
	assert.Equal(t, testNow, *req.ReviewedAt)
}

func TestDeletionRequestJSON(t *testing.T) {
	req := newPending(t)
	b, err := json.Marshal(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "invoices", out["table_name"])
	assert.Equal(t, "INV-42", out["record_id"])
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, req.RequestedBy.String(), out["requested_by"])
	assert.Nil(t, out["reviewed_by"])
	assert.Nil(t, out["reviewed_at"])
}
