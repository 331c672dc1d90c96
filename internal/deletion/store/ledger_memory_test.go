package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mastercom/internal/deletion/models"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
)

type LedgerSuite struct {
	suite.Suite
	ledger    *InMemoryLedger
	ctx       context.Context
	now       time.Time
	requester id.UserID
	reviewer  id.UserID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ledger = NewInMemoryLedger()
	s.ctx = context.Background()
	s.now = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	s.requester = id.UserID(uuid.New())
	s.reviewer = id.UserID(uuid.New())
}

func (s *LedgerSuite) newRequest(table recordmodels.Table, recordID string, at time.Time) *models.DeletionRequest {
	req, err := models.NewDeletionRequest(id.NewDeletionRequestID(), table, id.RecordID(recordID),
		json.RawMessage(`{"name":"Acme"}`), "obsolete", s.requester, at)
	s.Require().NoError(err)
	return req
}

func (s *LedgerSuite) review(decision models.Status) models.Review {
	return models.Review{Decision: decision, ReviewerID: s.reviewer, Notes: " checked\n", At: s.now.Add(time.Hour)}
}

func (s *LedgerSuite) TestCreate() {
	s.Run("one pending request per target", func() {
		first := s.newRequest(recordmodels.TableClients, "C1", s.now)
		s.Require().NoError(s.ledger.Create(s.ctx, first))

		err := s.ledger.Create(s.ctx, s.newRequest(recordmodels.TableClients, "C1", s.now))
		s.ErrorIs(err, sentinel.ErrConflict)

		all, err := s.ledger.List(s.ctx)
		s.Require().NoError(err)
		s.Len(all, 1)
	})

	s.Run("same record id in another table is another target", func() {
		s.NoError(s.ledger.Create(s.ctx, s.newRequest(recordmodels.TableQuotes, "C1", s.now)))
	})

	s.Run("resolved request frees the target", func() {
		pending, err := s.ledger.FindPending(s.ctx, recordmodels.TableClients, "C1")
		s.Require().NoError(err)
		_, err = s.ledger.Resolve(s.ctx, pending.ID, s.review(models.StatusRejected))
		s.Require().NoError(err)

		s.NoError(s.ledger.Create(s.ctx, s.newRequest(recordmodels.TableClients, "C1", s.now)))
	})
}

func (s *LedgerSuite) TestConcurrentCreateAdmitsOne() {
	const submitters = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	requests := make([]*models.DeletionRequest, submitters)
	for i := range requests {
		requests[i] = s.newRequest(recordmodels.TableInvoices, "INV-1", s.now)
	}
	for _, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ledger.Create(s.ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, sentinel.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(submitters-1, conflicts)
}

func (s *LedgerSuite) TestResolve() {
	req := s.newRequest(recordmodels.TableProjects, "P1", s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, req))

	s.Run("pending to approved", func() {
		resolved, err := s.ledger.Resolve(s.ctx, req.ID, s.review(models.StatusApproved))
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, resolved.Status)
		s.Require().NotNil(resolved.ReviewedBy)
		s.Equal(s.reviewer, *resolved.ReviewedBy)
		s.Equal("checked", resolved.ReviewNotes)
	})

	s.Run("terminal entries are immutable", func() {
		_, err := s.ledger.Resolve(s.ctx, req.ID, s.review(models.StatusRejected))
		s.ErrorIs(err, sentinel.ErrInvalidState)

		stored, err := s.ledger.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, stored.Status)
	})

	s.Run("unknown request", func() {
		_, err := s.ledger.Resolve(s.ctx, id.NewDeletionRequestID(), s.review(models.StatusApproved))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("no pending entry after resolve", func() {
		_, err := s.ledger.FindPending(s.ctx, recordmodels.TableProjects, "P1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerSuite) TestListOrderAndFilter() {
	older := s.newRequest(recordmodels.TableClients, "C1", s.now)
	newer := s.newRequest(recordmodels.TableClients, "C2", s.now.Add(time.Minute))
	s.Require().NoError(s.ledger.Create(s.ctx, older))
	s.Require().NoError(s.ledger.Create(s.ctx, newer))
	_, err := s.ledger.Resolve(s.ctx, older.ID, s.review(models.StatusRejected))
	s.Require().NoError(err)

	all, err := s.ledger.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID)
	s.Equal(older.ID, all[1].ID)

	pending, err := s.ledger.ListByStatus(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(newer.ID, pending[0].ID)
}

func (s *LedgerSuite) TestReturnsCopies() {
	req := s.newRequest(recordmodels.TableClients, "C9", s.now)
	s.Require().NoError(s.ledger.Create(s.ctx, req))
	req.Reason = "changed after create"

	found, err := s.ledger.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal("obsolete", found.Reason)
	found.RecordData[0] = 'X'

	again, err := s.ledger.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.JSONEq(`{"name":"Acme"}`, string(again.RecordData))
}
