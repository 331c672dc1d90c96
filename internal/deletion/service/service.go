package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mastercom/internal/deletion/metrics"
	"mastercom/internal/deletion/models"
	"mastercom/internal/deletion/store"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/sentinel"
	"mastercom/pkg/requestcontext"
)

// User-facing messages. The duplicate message is matched verbatim by clients.
const (
	MsgDuplicateRequest = "Une demande de suppression est déjà en cours pour cet enregistrement"
	MsgRequestSubmitted = "Demande de suppression envoyée pour validation"
	MsgRequestNotFound  = "Demande de suppression introuvable"
	MsgAlreadyReviewed  = "Cette demande de suppression a déjà été traitée"
	MsgReviewInProgress = "Cette demande est en cours de traitement par un autre valideur"
	MsgRecordNotFound   = "Enregistrement introuvable"
	MsgApproved         = "Demande approuvée, enregistrement supprimé"
	MsgApprovedGone     = "Demande approuvée, l'enregistrement avait déjà été supprimé"
	MsgDeleteFailed     = "Demande approuvée mais la suppression de l'enregistrement a échoué"
	MsgRejected         = "Demande rejetée"
)

var tracer = otel.Tracer("mastercom/internal/deletion/service")

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger,RecordStore,AuditPublisher,Transactor

// Ledger persists deletion requests. Resolve must be conditional on the entry
// still being pending and return sentinel.ErrInvalidState otherwise.
type Ledger interface {
	Create(ctx context.Context, req *models.DeletionRequest) error
	FindByID(ctx context.Context, requestID id.DeletionRequestID) (*models.DeletionRequest, error)
	FindPending(ctx context.Context, table recordmodels.Table, recordID id.RecordID) (*models.DeletionRequest, error)
	List(ctx context.Context) ([]*models.DeletionRequest, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.DeletionRequest, error)
	Resolve(ctx context.Context, requestID id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error)
}

// RecordStore is the part of the record store the workflow touches.
type RecordStore interface {
	Get(ctx context.Context, table recordmodels.Table, recordID id.RecordID) (*recordmodels.Record, error)
	Delete(ctx context.Context, table recordmodels.Table, recordID id.RecordID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Transactor runs fn in a unit of work carried by ctx.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Phase names a point in the approve sequence.
type Phase string

const (
	// PhaseLedgerApproved: the ledger says approved and the record has not been
	// deleted yet. A crash or delete failure here leaves the two disagreeing.
	PhaseLedgerApproved Phase = "ledger_approved"
	// PhaseRecordDeleted: the record is gone (or was already gone).
	PhaseRecordDeleted Phase = "record_deleted"
	// PhaseRecordDeleteFailed: the delete failed; Reconcile can retry it.
	PhaseRecordDeleteFailed Phase = "record_delete_failed"
)

// PhaseHook observes the approve sequence. It runs synchronously.
type PhaseHook func(ctx context.Context, phase Phase, req *models.DeletionRequest)

type Service struct {
	ledger         Ledger
	records        RecordStore
	tx             Transactor
	transactional  bool
	lock           store.Lock
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	phaseHook      PhaseHook
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTransactor makes ledger writes and their compliance audit rows commit
// together. Without it the compliance row is written after the ledger write
// and a failure there is only logged.
func WithTransactor(tx Transactor) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
			s.transactional = true
		}
	}
}

// WithLock replaces the default process-local review lock.
func WithLock(lock store.Lock) Option {
	return func(s *Service) {
		s.lock = lock
	}
}

func WithPhaseHook(hook PhaseHook) Option {
	return func(s *Service) {
		s.phaseHook = hook
	}
}

func New(ledger Ledger, records RecordStore, opts ...Option) *Service {
	s := &Service{
		ledger:  ledger,
		records: records,
		tx:      inlineTx{},
		lock:    store.NewInMemoryLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type inlineTx struct{}

func (inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// SubmitCommand asks for a record to be deleted. An empty RecordData makes the
// service snapshot the live record.
type SubmitCommand struct {
	Table       recordmodels.Table
	RecordID    id.RecordID
	RecordData  json.RawMessage
	Reason      string
	RequestedBy id.UserID
}

// RequestDeletion records a pending request. It never touches the record.
// A pending request for the same target yields a CodeConflict error carrying
// MsgDuplicateRequest, whether it is caught by the lookup or by the ledger's
// uniqueness rule.
func (s *Service) RequestDeletion(ctx context.Context, cmd SubmitCommand) (*models.DeletionRequest, error) {
	ctx, span := s.startSpan(ctx, "deletion.RequestDeletion",
		attribute.String("table", cmd.Table.String()),
		attribute.String("record_id", cmd.RecordID.String()),
	)
	defer span.End()

	req, err := s.requestDeletion(ctx, cmd)
	recordSpanError(span, err)
	return req, err
}

func (s *Service) requestDeletion(ctx context.Context, cmd SubmitCommand) (*models.DeletionRequest, error) {
	if !cmd.Table.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported table")
	}
	if cmd.RecordID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "record ID is required")
	}
	if cmd.RequestedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "requester is required")
	}

	_, err := s.ledger.FindPending(ctx, cmd.Table, cmd.RecordID)
	switch {
	case err == nil:
		return nil, s.duplicate(ctx, cmd)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check pending deletion requests")
	}

	snapshot, err := s.snapshot(ctx, cmd)
	if err != nil {
		return nil, err
	}

	req, err := models.NewDeletionRequest(
		id.NewDeletionRequestID(),
		cmd.Table,
		cmd.RecordID,
		snapshot,
		cmd.Reason,
		cmd.RequestedBy,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Create(ctx, req); err != nil {
			return err
		}
		return s.emitCompliance(ctx, audit.EventDeletionRequested, cmd.RequestedBy, req)
	})
	if err == nil {
		s.emitAfterCommit(ctx, audit.EventDeletionRequested, cmd.RequestedBy, req)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.duplicate(ctx, cmd)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record deletion request")
	}

	s.metrics.IncSubmitted(cmd.Table.String())
	s.logAudit(ctx, audit.EventDeletionRequested, cmd.RequestedBy, req)
	return req, nil
}

func (s *Service) snapshot(ctx context.Context, cmd SubmitCommand) (json.RawMessage, error) {
	if len(cmd.RecordData) > 0 {
		return recordmodels.EnsureObject(cmd.RecordData)
	}
	rec, err := s.records.Get(ctx, cmd.Table, cmd.RecordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, MsgRecordNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to snapshot record")
	}
	return rec.Data, nil
}

func (s *Service) duplicate(ctx context.Context, cmd SubmitCommand) error {
	s.metrics.IncDuplicate(cmd.Table.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "duplicate deletion request refused",
			"table", cmd.Table,
			"record_id", cmd.RecordID,
			"user_id", cmd.RequestedBy,
			"request_id", requestcontext.RequestID(ctx),
			"event", string(audit.EventDuplicateRequest),
			"log_type", "audit",
		)
	}
	s.emitBestEffort(ctx, audit.Event{
		ActorID:  cmd.RequestedBy,
		Action:   string(audit.EventDuplicateRequest),
		Table:    cmd.Table.String(),
		RecordID: cmd.RecordID.String(),
	})
	return dErrors.New(dErrors.CodeConflict, MsgDuplicateRequest)
}

// DeleteOutcome is the result of the second approve phase.
type DeleteOutcome string

const (
	OutcomeDeleted      DeleteOutcome = "deleted"
	OutcomeAlreadyGone  DeleteOutcome = "already_gone"
	OutcomeDeleteFailed DeleteOutcome = "delete_failed"
)

// ApproveResult reports both phases. With OutcomeDeleteFailed the request is
// approved and the record still exists.
type ApproveResult struct {
	Request     *models.DeletionRequest
	Outcome     DeleteOutcome
	DeleteError string
}

// Message is the user-facing summary of the result.
func (r *ApproveResult) Message() string {
	switch r.Outcome {
	case OutcomeDeleted:
		return MsgApproved
	case OutcomeAlreadyGone:
		return MsgApprovedGone
	default:
		return MsgDeleteFailed
	}
}

// Approve runs the two-phase approve sequence:
//
//  1. resolve the ledger entry to approved, with its compliance audit row
//  2. delete the target record
//
// The phases are never reordered and phase 1 is not rolled back when phase 2
// fails. The review lock is held across both phases.
func (s *Service) Approve(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*ApproveResult, error) {
	ctx, span := s.startSpan(ctx, "deletion.Approve", attribute.String("deletion_request_id", requestID.String()))
	defer span.End()
	start := time.Now()

	result, err := s.approve(ctx, requestID, reviewerID, notes)
	recordSpanError(span, err)
	if result != nil {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		s.metrics.ObserveApprove(time.Since(start).Seconds())
	}
	return result, err
}

func (s *Service) approve(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*ApproveResult, error) {
	release, err := s.acquire(ctx, requestID, reviewerID)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, requestID, release)

	approved, err := s.resolve(ctx, requestID, models.Review{
		Decision:   models.StatusApproved,
		ReviewerID: reviewerID,
		Notes:      notes,
		At:         requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncReview(models.StatusApproved.String())
	s.logAudit(ctx, audit.EventDeletionApproved, reviewerID, approved)
	s.firePhase(ctx, PhaseLedgerApproved, approved)

	outcome, deleteErr := s.deleteRecord(ctx, approved, reviewerID)
	result := &ApproveResult{Request: approved, Outcome: outcome}
	if deleteErr != nil {
		result.DeleteError = deleteErr.Error()
	}
	return result, nil
}

// deleteRecord is the second approve phase, shared with Reconcile.
func (s *Service) deleteRecord(ctx context.Context, req *models.DeletionRequest, actor id.UserID) (DeleteOutcome, error) {
	err := s.records.Delete(ctx, req.Table, req.RecordID)
	switch {
	case err == nil:
		s.metrics.IncRecordDeleted(req.Table.String())
		s.logAudit(ctx, audit.EventRecordDeleted, actor, req)
		s.emitBestEffort(ctx, s.eventFor(audit.EventRecordDeleted, actor, req))
		s.firePhase(ctx, PhaseRecordDeleted, req)
		return OutcomeDeleted, nil
	case errors.Is(err, sentinel.ErrNotFound):
		if s.logger != nil {
			s.logger.InfoContext(ctx, "approved record already deleted",
				"deletion_request_id", req.ID,
				"table", req.Table,
				"record_id", req.RecordID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.firePhase(ctx, PhaseRecordDeleted, req)
		return OutcomeAlreadyGone, nil
	default:
		s.metrics.IncInconsistent(req.Table.String())
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "record delete failed after approval",
				"deletion_request_id", req.ID,
				"table", req.Table,
				"record_id", req.RecordID,
				"request_id", requestcontext.RequestID(ctx),
				"event", string(audit.EventRecordDeleteFailed),
				"log_type", "audit",
				"error", err,
			)
		}
		event := s.eventFor(audit.EventRecordDeleteFailed, actor, req)
		event.Reason = err.Error()
		s.emitBestEffort(ctx, event)
		s.firePhase(ctx, PhaseRecordDeleteFailed, req)
		return OutcomeDeleteFailed, err
	}
}

// Reject resolves a pending request to rejected. The record is never touched.
func (s *Service) Reject(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*models.DeletionRequest, error) {
	ctx, span := s.startSpan(ctx, "deletion.Reject", attribute.String("deletion_request_id", requestID.String()))
	defer span.End()

	rejected, err := s.reject(ctx, requestID, reviewerID, notes)
	recordSpanError(span, err)
	return rejected, err
}

func (s *Service) reject(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID, notes string) (*models.DeletionRequest, error) {
	release, err := s.acquire(ctx, requestID, reviewerID)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, requestID, release)

	rejected, err := s.resolve(ctx, requestID, models.Review{
		Decision:   models.StatusRejected,
		ReviewerID: reviewerID,
		Notes:      notes,
		At:         requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncReview(models.StatusRejected.String())
	s.logAudit(ctx, audit.EventDeletionRejected, reviewerID, rejected)
	return rejected, nil
}

func (s *Service) acquire(ctx context.Context, requestID id.DeletionRequestID, reviewerID id.UserID) (store.Release, error) {
	if reviewerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "reviewer is required")
	}
	release, err := s.lock.Acquire(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return nil, dErrors.New(dErrors.CodeConflict, MsgReviewInProgress)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock deletion request")
	}
	return release, nil
}

func (s *Service) release(ctx context.Context, requestID id.DeletionRequestID, release store.Release) {
	if err := release(context.WithoutCancel(ctx)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to release review lock",
			"deletion_request_id", requestID,
			"error", err,
		)
	}
}

// resolve moves a pending entry to its terminal state and writes the matching
// compliance event in the same unit of work.
func (s *Service) resolve(ctx context.Context, requestID id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
	event := audit.EventDeletionApproved
	if review.Decision == models.StatusRejected {
		event = audit.EventDeletionRejected
	}

	var resolved *models.DeletionRequest
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err := s.ledger.Resolve(ctx, requestID, review)
		if err != nil {
			return err
		}
		resolved = req
		return s.emitCompliance(ctx, event, review.ReviewerID, req)
	})
	if err == nil {
		s.emitAfterCommit(ctx, event, review.ReviewerID, resolved)
		return resolved, nil
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, MsgRequestNotFound)
	case errors.Is(err, sentinel.ErrInvalidState):
		s.reviewDenied(ctx, requestID, review)
		return nil, dErrors.New(dErrors.CodeConflict, MsgAlreadyReviewed)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return nil, err
	}
	return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve deletion request")
}

func (s *Service) reviewDenied(ctx context.Context, requestID id.DeletionRequestID, review models.Review) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "review refused on resolved deletion request",
			"deletion_request_id", requestID,
			"user_id", review.ReviewerID,
			"decision", review.Decision.String(),
			"request_id", requestcontext.RequestID(ctx),
			"event", string(audit.EventReviewDenied),
			"log_type", "audit",
		)
	}
	s.emitBestEffort(ctx, audit.Event{
		ActorID: review.ReviewerID,
		Subject: requestID,
		Action:  string(audit.EventReviewDenied),
		Reason:  review.Decision.String(),
	})
}

// List returns the whole ledger, newest first. Filtering is left to callers.
func (s *Service) List(ctx context.Context) ([]*models.DeletionRequest, error) {
	ctx, span := s.startSpan(ctx, "deletion.List")
	defer span.End()

	reqs, err := s.ledger.List(ctx)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deletion requests")
		recordSpanError(span, err)
		return nil, err
	}
	pending := 0
	for _, r := range reqs {
		if r.IsPending() {
			pending++
		}
	}
	s.metrics.SetPending(pending)
	span.SetAttributes(attribute.Int("count", len(reqs)))
	return reqs, nil
}

// Examination is what a reviewer sees before deciding: the snapshot taken at
// submission next to the record as it is now.
type Examination struct {
	Request          *models.DeletionRequest
	LiveRecord       *recordmodels.Record
	SnapshotDiverged bool
}

// RecordExists reports whether the target record is still in the store.
func (e *Examination) RecordExists() bool {
	return e.LiveRecord != nil
}

func (s *Service) Examine(ctx context.Context, requestID id.DeletionRequestID) (*Examination, error) {
	ctx, span := s.startSpan(ctx, "deletion.Examine", attribute.String("deletion_request_id", requestID.String()))
	defer span.End()

	exam, err := s.examine(ctx, requestID)
	recordSpanError(span, err)
	return exam, err
}

func (s *Service) examine(ctx context.Context, requestID id.DeletionRequestID) (*Examination, error) {
	req, err := s.ledger.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, MsgRequestNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deletion request")
	}

	exam := &Examination{Request: req}
	live, err := s.records.Get(ctx, req.Table, req.RecordID)
	switch {
	case err == nil:
		exam.LiveRecord = live
		exam.SnapshotDiverged = !recordmodels.SameJSON(req.RecordData, live.Data)
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return exam, nil
}

// ReconcileResult is the outcome for one approved request whose record was
// still present.
type ReconcileResult struct {
	RequestID id.DeletionRequestID `json:"deletion_request_id"`
	Table     recordmodels.Table   `json:"table_name"`
	RecordID  id.RecordID          `json:"record_id"`
	Outcome   ReconcileOutcome     `json:"outcome"`
	Error     string               `json:"error,omitempty"`
}

type ReconcileOutcome string

const (
	ReconcileDeleted  ReconcileOutcome = "deleted"
	ReconcileFailed   ReconcileOutcome = "failed"
	ReconcileSkipped  ReconcileOutcome = "skipped_in_review"
	reconcileUpToDate ReconcileOutcome = "up_to_date"
)

// Reconcile re-issues the delete for every approved request whose record still
// exists. Requests currently locked by a reviewer are skipped. It only runs
// when an operator asks for it.
func (s *Service) Reconcile(ctx context.Context, actor id.UserID) ([]ReconcileResult, error) {
	ctx, span := s.startSpan(ctx, "deletion.Reconcile")
	defer span.End()

	approved, err := s.ledger.ListByStatus(ctx, models.StatusApproved)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approved deletion requests")
		recordSpanError(span, err)
		return nil, err
	}

	results := make([]ReconcileResult, 0)
	for _, req := range approved {
		if err := ctx.Err(); err != nil {
			recordSpanError(span, err)
			return results, dErrors.Wrap(err, dErrors.CodeTimeout, "reconcile interrupted")
		}
		res := s.reconcileOne(ctx, req, actor)
		s.metrics.IncReconciled(string(res.Outcome))
		if res.Outcome != reconcileUpToDate {
			results = append(results, res)
		}
	}

	span.SetAttributes(attribute.Int("repaired_candidates", len(results)))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "reconcile finished",
			"approved", len(approved),
			"acted_on", len(results),
			"user_id", actor,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return results, nil
}

func (s *Service) reconcileOne(ctx context.Context, req *models.DeletionRequest, actor id.UserID) ReconcileResult {
	res := ReconcileResult{RequestID: req.ID, Table: req.Table, RecordID: req.RecordID}

	release, err := s.lock.Acquire(ctx, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			res.Outcome = ReconcileSkipped
			return res
		}
		res.Outcome = ReconcileFailed
		res.Error = err.Error()
		return res
	}
	defer s.release(ctx, req.ID, release)

	live, err := s.records.Get(ctx, req.Table, req.RecordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			res.Outcome = reconcileUpToDate
			return res
		}
		res.Outcome = ReconcileFailed
		res.Error = err.Error()
		return res
	}
	if recreatedAfterReview(live, req) {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "record recreated after approval, left in place",
				"deletion_request_id", req.ID,
				"table", req.Table,
				"record_id", req.RecordID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		res.Outcome = reconcileUpToDate
		return res
	}

	outcome, err := s.deleteRecord(ctx, req, actor)
	if outcome == OutcomeDeleteFailed {
		res.Outcome = ReconcileFailed
		res.Error = err.Error()
		return res
	}
	res.Outcome = ReconcileDeleted
	s.logAudit(ctx, audit.EventDeletionReconciled, actor, req)
	s.emitBestEffort(ctx, s.eventFor(audit.EventDeletionReconciled, actor, req))
	return res
}

// recreatedAfterReview reports whether the live record is a new record that
// reuses the id of one already deleted under req. Such a record needs its own
// deletion request.
func recreatedAfterReview(live *recordmodels.Record, req *models.DeletionRequest) bool {
	if req.ReviewedAt == nil {
		return false
	}
	return live.CreatedAt.After(*req.ReviewedAt)
}

func (s *Service) firePhase(ctx context.Context, phase Phase, req *models.DeletionRequest) {
	if s.phaseHook != nil {
		s.phaseHook(ctx, phase, req.Clone())
	}
}

func (s *Service) eventFor(event audit.AuditEvent, actor id.UserID, req *models.DeletionRequest) audit.Event {
	return audit.Event{
		ActorID:  actor,
		Subject:  req.ID,
		Action:   string(event),
		Table:    req.Table.String(),
		RecordID: req.RecordID.String(),
		Reason:   req.Reason,
	}
}

// emitCompliance writes a ledger transition event inside the unit of work.
// Its error aborts the transaction. Without a transactor there is nothing to
// abort, so the event is left to emitAfterCommit.
func (s *Service) emitCompliance(ctx context.Context, event audit.AuditEvent, actor id.UserID, req *models.DeletionRequest) error {
	if s.auditPublisher == nil || !s.transactional {
		return nil
	}
	return s.auditPublisher.Emit(ctx, s.eventFor(event, actor, req))
}

func (s *Service) emitAfterCommit(ctx context.Context, event audit.AuditEvent, actor id.UserID, req *models.DeletionRequest) {
	if s.transactional {
		return
	}
	s.emitBestEffort(ctx, s.eventFor(event, actor, req))
}

func (s *Service) emitBestEffort(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", event.Action,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor id.UserID, req *models.DeletionRequest) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, string(event),
		"deletion_request_id", req.ID,
		"table", req.Table,
		"record_id", req.RecordID,
		"status", req.Status.String(),
		"user_id", actor,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(event),
		"log_type", "audit",
	)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
