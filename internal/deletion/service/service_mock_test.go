package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mastercom/internal/deletion/models"
	"mastercom/internal/deletion/service"
	"mastercom/internal/deletion/service/mocks"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/sentinel"
	"mastercom/pkg/requestcontext"
)

var now = time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC)

func pendingRequest(t *testing.T, table recordmodels.Table, recordID string) *models.DeletionRequest {
	t.Helper()
	req, err := models.NewDeletionRequest(id.NewDeletionRequestID(), table, id.RecordID(recordID),
		json.RawMessage(`{}`), "reason", id.UserID(uuid.New()), now)
	require.NoError(t, err)
	return req
}

func resolvedCopy(req *models.DeletionRequest, review models.Review) *models.DeletionRequest {
	c := req.Clone()
	_ = c.ApplyReview(review)
	return c
}

// Every approved request gets exactly one delete for its target.
func TestApproveIssuesExactlyOneDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)
	ctx := requestcontext.WithTime(context.Background(), now)
	reviewer := id.UserID(uuid.New())

	req := pendingRequest(t, recordmodels.TableClients, "C1")
	ledger.EXPECT().Resolve(gomock.Any(), req.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
			assert.Equal(t, models.StatusApproved, review.Decision)
			assert.Equal(t, reviewer, review.ReviewerID)
			assert.Equal(t, now, review.At)
			return resolvedCopy(req, review), nil
		})
	records.EXPECT().Delete(gomock.Any(), recordmodels.TableClients, id.RecordID("C1")).Return(nil).Times(1)

	svc := service.New(ledger, records)
	result, err := svc.Approve(ctx, req.ID, reviewer, "confirmed duplicate")
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeDeleted, result.Outcome)
	assert.Equal(t, "confirmed duplicate", result.Request.ReviewNotes)
}

// A rejected request never causes a delete.
func TestRejectIssuesNoDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)
	ctx := requestcontext.WithTime(context.Background(), now)

	req := pendingRequest(t, recordmodels.TableInvoices, "I9")
	ledger.EXPECT().Resolve(gomock.Any(), req.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
			return resolvedCopy(req, review), nil
		})
	records.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := service.New(ledger, records)
	rejected, err := svc.Reject(ctx, req.ID, id.UserID(uuid.New()), "insufficient justification")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
}

// A ledger update that loses to another reviewer stops before the delete.
func TestLostResolveIssuesNoDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)
	publisher := mocks.NewMockAuditPublisher(ctrl)

	ledger.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrInvalidState)
	records.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e audit.Event) error {
			assert.Equal(t, string(audit.EventReviewDenied), e.Action)
			return nil
		})

	svc := service.New(ledger, records, service.WithAuditPublisher(publisher))
	_, err := svc.Approve(context.Background(), id.NewDeletionRequestID(), id.UserID(uuid.New()), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

// A failing compliance write aborts the ledger transition's unit of work and
// the record is left alone.
func TestComplianceFailureAbortsApprove(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)
	publisher := mocks.NewMockAuditPublisher(ctrl)
	tx := mocks.NewMockTransactor(ctrl)

	req := pendingRequest(t, recordmodels.TableQuotes, "Q1")
	committed := false
	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			err := fn(ctx)
			committed = err == nil
			return err
		})
	ledger.EXPECT().Resolve(gomock.Any(), req.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
			return resolvedCopy(req, review), nil
		})
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))
	records.EXPECT().Delete(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	svc := service.New(ledger, records, service.WithAuditPublisher(publisher), service.WithTransactor(tx))
	result, err := svc.Approve(context.Background(), req.ID, id.UserID(uuid.New()), "")
	assert.Nil(t, result)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.False(t, committed)
}

func TestSubmitLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)

	ledger.EXPECT().FindPending(gomock.Any(), recordmodels.TableClients, id.RecordID("C1")).
		Return(nil, errors.New("connection refused"))
	ledger.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	svc := service.New(ledger, records)
	_, err := svc.RequestDeletion(context.Background(), service.SubmitCommand{
		Table:       recordmodels.TableClients,
		RecordID:    "C1",
		RecordData:  json.RawMessage(`{}`),
		RequestedBy: id.UserID(uuid.New()),
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestReconcileReportsStoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	records := mocks.NewMockRecordStore(ctrl)

	reviewer := id.UserID(uuid.New())
	stuck := resolvedCopy(pendingRequest(t, recordmodels.TableClients, "C1"),
		models.Review{Decision: models.StatusApproved, ReviewerID: reviewer, At: now})
	done := resolvedCopy(pendingRequest(t, recordmodels.TableClients, "C2"),
		models.Review{Decision: models.StatusApproved, ReviewerID: reviewer, At: now})

	ledger.EXPECT().ListByStatus(gomock.Any(), models.StatusApproved).
		Return([]*models.DeletionRequest{stuck, done}, nil)
	records.EXPECT().Get(gomock.Any(), recordmodels.TableClients, id.RecordID("C1")).
		Return(&recordmodels.Record{ID: "C1", Table: recordmodels.TableClients}, nil)
	records.EXPECT().Delete(gomock.Any(), recordmodels.TableClients, id.RecordID("C1")).
		Return(errors.New("still down"))
	records.EXPECT().Get(gomock.Any(), recordmodels.TableClients, id.RecordID("C2")).
		Return(nil, sentinel.ErrNotFound)

	svc := service.New(ledger, records)
	results, err := svc.Reconcile(context.Background(), reviewer)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stuck.ID, results[0].RequestID)
	assert.Equal(t, service.ReconcileFailed, results[0].Outcome)
	assert.Contains(t, results[0].Error, "still down")
}
