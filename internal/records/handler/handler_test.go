package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"mastercom/internal/records/handler/mocks"
	"mastercom/internal/records/models"
	"mastercom/internal/records/service"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	"mastercom/pkg/testutil"
)

type RecordHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func (s *RecordHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func TestRecordHandlerSuite(t *testing.T) {
	suite.Run(t, new(RecordHandlerSuite))
}

func (s *RecordHandlerSuite) record(table models.Table, recordID string) *models.Record {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.Record{ID: id.RecordID(recordID), Table: table, Data: json.RawMessage(`{"name":"Acme"}`), CreatedAt: now, UpdatedAt: now}
}

func (s *RecordHandlerSuite) TestCreate() {
	s.Run("creates a record for the authenticated user", func() {
		req, userID := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/clients", map[string]any{
			"id":   "C1",
			"data": map[string]any{"name": "Acme"},
		}))
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, cmd service.CreateCommand) (*models.Record, error) {
				s.Equal(models.TableClients, cmd.Table)
				s.Equal("C1", cmd.ID.String())
				s.Equal(userID, cmd.Actor)
				return s.record(models.TableClients, "C1"), nil
			})

		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusCreated, rr.Code)
		got := testutil.UnmarshalResponse[models.Record](s.T(), rr)
		s.Equal("C1", got.ID.String())
	})

	s.Run("unknown table is rejected before the service", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/tickets", map[string]any{"data": map[string]any{}}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("requires authentication", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/clients", map[string]any{"data": map[string]any{}})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("non-object data fails validation", func() {
		req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/clients", map[string]any{"data": []int{1}}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *RecordHandlerSuite) TestGetListUpdate() {
	s.service.EXPECT().Get(gomock.Any(), models.TableClients, gomock.Any()).Return(nil, dErrors.New(dErrors.CodeNotFound, "record not found"))
	req, _ := testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/clients/C404", nil))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))

	s.service.EXPECT().List(gomock.Any(), models.TableClients).Return([]*models.Record{s.record(models.TableClients, "C1")}, nil)
	req, _ = testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodGet, "/records/clients", nil))
	rr = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
	s.Len(list.Records, 1)

	s.service.EXPECT().Update(gomock.Any(), gomock.Any()).Return(s.record(models.TableClients, "C1"), nil)
	req, _ = testutil.AsMember(testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/clients/C1", map[string]any{"data": map[string]any{"city": "Paris"}}))
	rr = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *RecordHandlerSuite) TestNoDeleteRoute() {
	req, _ := testutil.AsReviewer(testutil.NewJSONRequest(s.T(), http.MethodDelete, "/records/clients/C1", nil))
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}
