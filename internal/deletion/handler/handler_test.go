package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"mastercom/internal/deletion/handler/mocks"
	"mastercom/internal/deletion/models"
	"mastercom/internal/deletion/service"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	"mastercom/pkg/testutil"
)

type DeletionHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func (s *DeletionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	h := New(s.service, logger)
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func TestDeletionHandlerSuite(t *testing.T) {
	suite.Run(t, new(DeletionHandlerSuite))
}

func (s *DeletionHandlerSuite) pending(table recordmodels.Table, recordID string) *models.DeletionRequest {
	req, err := models.NewDeletionRequest(id.NewDeletionRequestID(), table, id.RecordID(recordID),
		json.RawMessage(`{"name":"Acme"}`), "duplicate entry", id.UserID(uuid.New()),
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	return req
}

func (s *DeletionHandlerSuite) action(rr *httptest.ResponseRecorder) ActionResponse {
	var resp ActionResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func (s *DeletionHandlerSuite) TestSubmit() {
	s.Run("records a pending request for the caller", func() {
		created := s.pending(recordmodels.TableClients, "C1")
		req, userID := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name":  "clients",
			"record_id":   "C1",
			"record_data": map[string]any{"name": "Acme"},
			"reason":      "  duplicate entry ",
		}))
		s.service.EXPECT().RequestDeletion(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, cmd service.SubmitCommand) (*models.DeletionRequest, error) {
				s.Equal(recordmodels.TableClients, cmd.Table)
				s.Equal(id.RecordID("C1"), cmd.RecordID)
				s.Equal("duplicate entry", cmd.Reason)
				s.Equal(userID, cmd.RequestedBy)
				s.JSONEq(`{"name":"Acme"}`, string(cmd.RecordData))
				return created, nil
			})

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusCreated, rr.Code)
		resp := s.action(rr)
		s.True(resp.Success)
		s.Equal(service.MsgRequestSubmitted, resp.Message)
		s.Require().NotNil(resp.Request)
		s.Equal(created.ID, resp.Request.ID)
		s.Equal(models.StatusPending, resp.Request.Status)
	})

	s.Run("duplicate returns the conflict message", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name": "clients", "record_id": "C1", "reason": "again",
		}))
		s.service.EXPECT().RequestDeletion(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, service.MsgDuplicateRequest))

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusConflict, rr.Code)
		resp := s.action(rr)
		s.False(resp.Success)
		s.Equal(service.MsgDuplicateRequest, resp.Message)
		s.Equal(string(dErrors.CodeConflict), resp.Error)
		s.Nil(resp.Request)
	})

	s.Run("reason is required", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name": "clients", "record_id": "C1", "reason": "   ",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown table", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name": "users", "record_id": "U1", "reason": "x",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("internal errors hide details", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name": "quotes", "record_id": "Q1", "reason": "x",
		}))
		s.service.EXPECT().RequestDeletion(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to record deletion request"))

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusInternalServerError, rr.Code)
		s.Equal(msgSubmitFailed, s.action(rr).Message)
		s.NotContains(rr.Body.String(), "connection refused")
	})

	s.Run("requires authentication", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests", map[string]any{
			"table_name": "clients", "record_id": "C1", "reason": "x",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *DeletionHandlerSuite) TestListOffersActionsOnlyOnPending() {
	open := s.pending(recordmodels.TableClients, "C1")
	closed := s.pending(recordmodels.TableInvoices, "I9")
	s.Require().NoError(closed.ApplyReview(models.Review{
		Decision: models.StatusRejected, ReviewerID: id.UserID(uuid.New()), At: time.Now(),
	}))

	for _, tc := range []struct {
		name        string
		asReviewer  bool
		openActions []Action
	}{
		{name: "reviewer", asReviewer: true, openActions: []Action{ActionExamine, ActionApprove, ActionReject}},
		{name: "member", asReviewer: false, openActions: []Action{ActionExamine}},
	} {
		s.Run(tc.name, func() {
			s.service.EXPECT().List(gomock.Any()).Return([]*models.DeletionRequest{open, closed}, nil)
			req := testutil.NewJSONRequest(s.T(), http.MethodGet, "/deletion-requests", nil)
			if tc.asReviewer {
				req, _ = testutil.AsReviewer(req)
			} else {
				req, _ = testutil.AsMember(req)
			}

			rr := testutil.DoRequest(s.router, req)
			s.Require().Equal(http.StatusOK, rr.Code)
			resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
			s.Equal(2, resp.Total)
			s.Equal(open.ID, resp.Requests[0].ID)
			s.Equal(tc.openActions, resp.Requests[0].Actions)
			s.Equal([]Action{ActionExamine}, resp.Requests[1].Actions)
			s.Equal(models.StatusRejected, resp.Requests[1].Status)
		})
	}
}

func (s *DeletionHandlerSuite) TestExamine() {
	pending := s.pending(recordmodels.TableClients, "C1")
	live := &recordmodels.Record{ID: "C1", Table: recordmodels.TableClients, Data: json.RawMessage(`{"name":"Acme SA"}`)}
	s.service.EXPECT().Examine(gomock.Any(), pending.ID).Return(&service.Examination{
		Request: pending, LiveRecord: live, SnapshotDiverged: true,
	}, nil)

	req, _ := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/deletion-requests/"+pending.ID.String(), nil))
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rr.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal(true, body["record_exists"])
	s.Equal(true, body["snapshot_diverged"])
	request := body["request"].(map[string]any)
	s.Equal(map[string]any{"name": "Acme"}, request["record_data"])
	s.Equal(map[string]any{"name": "Acme SA"}, body["live_record"].(map[string]any)["data"])

	s.Run("malformed id", func() {
		req, _ := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodGet, "/deletion-requests/not-a-uuid", nil))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *DeletionHandlerSuite) TestApprove() {
	pending := s.pending(recordmodels.TableClients, "C1")
	path := "/deletion-requests/" + pending.ID.String() + "/approve"

	s.Run("reviewer approves with notes", func() {
		req, reviewerID := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, path,
			map[string]any{"review_notes": "confirmed duplicate"}))
		approved := pending.Clone()
		s.Require().NoError(approved.ApplyReview(models.Review{
			Decision: models.StatusApproved, ReviewerID: reviewerID, Notes: "confirmed duplicate", At: time.Now(),
		}))
		s.service.EXPECT().Approve(gomock.Any(), pending.ID, reviewerID, "confirmed duplicate").
			Return(&service.ApproveResult{Request: approved, Outcome: service.OutcomeDeleted}, nil)

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
		resp := s.action(rr)
		s.True(resp.Success)
		s.Equal(service.MsgApproved, resp.Message)
		s.Equal(string(service.OutcomeDeleted), resp.Outcome)
		s.Equal(models.StatusApproved, resp.Request.Status)
	})

	s.Run("notes are optional", func() {
		req, reviewerID := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		s.service.EXPECT().Approve(gomock.Any(), pending.ID, reviewerID, "").
			Return(&service.ApproveResult{Request: pending, Outcome: service.OutcomeAlreadyGone}, nil)

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
		s.Equal(service.MsgApprovedGone, s.action(rr).Message)
	})

	s.Run("delete failure is reported with the approved request", func() {
		req, _ := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		s.service.EXPECT().Approve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&service.ApproveResult{Request: pending, Outcome: service.OutcomeDeleteFailed, DeleteError: "pq: timeout"}, nil)

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusInternalServerError, rr.Code)
		resp := s.action(rr)
		s.False(resp.Success)
		s.Equal(service.MsgDeleteFailed, resp.Message)
		s.Equal(string(service.OutcomeDeleteFailed), resp.Outcome)
		s.NotNil(resp.Request)
		s.NotContains(rr.Body.String(), "pq: timeout")
	})

	s.Run("already reviewed", func() {
		req, _ := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		s.service.EXPECT().Approve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, service.MsgAlreadyReviewed))

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusConflict, rr.Code)
		s.Equal(service.MsgAlreadyReviewed, s.action(rr).Message)
	})

	s.Run("members cannot approve", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, path, nil))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})
}

func (s *DeletionHandlerSuite) TestReject() {
	pending := s.pending(recordmodels.TableInvoices, "I9")
	path := "/deletion-requests/" + pending.ID.String() + "/reject"

	req, reviewerID := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, path,
		map[string]any{"review_notes": "insufficient justification"}))
	rejected := pending.Clone()
	s.Require().NoError(rejected.ApplyReview(models.Review{
		Decision: models.StatusRejected, ReviewerID: reviewerID, Notes: "insufficient justification", At: time.Now(),
	}))
	s.service.EXPECT().Reject(gomock.Any(), pending.ID, reviewerID, "insufficient justification").Return(rejected, nil)
	s.service.EXPECT().Approve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
	resp := s.action(rr)
	s.True(resp.Success)
	s.Equal(service.MsgRejected, resp.Message)
	s.Equal(models.StatusRejected, resp.Request.Status)
}

func (s *DeletionHandlerSuite) TestReconcile() {
	results := []service.ReconcileResult{{
		RequestID: id.NewDeletionRequestID(),
		Table:     recordmodels.TableClients,
		RecordID:  "C2",
		Outcome:   service.ReconcileDeleted,
	}}

	s.Run("reviewer route", func() {
		req, reviewerID := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests/reconcile", nil))
		s.service.EXPECT().Reconcile(gomock.Any(), reviewerID).Return(results, nil)

		rr := testutil.DoRequest(s.router, req)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ReconcileResponse](s.T(), rr)
		s.Equal(1, resp.Total)
		s.Equal(service.ReconcileDeleted, resp.Results[0].Outcome)
	})

	s.Run("admin route", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/deletion-requests/reconcile", nil)
		s.service.EXPECT().Reconcile(gomock.Any(), id.UserID{}).Return(nil, nil)

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("members cannot reconcile", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/deletion-requests/reconcile", nil))
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})
}
