package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"mastercom/internal/records/metrics"
	"mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	dErrors "mastercom/pkg/domain-errors"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/sentinel"
	"mastercom/pkg/requestcontext"
)

// Store is the record store consumed by the CRUD screens.
type Store interface {
	Get(ctx context.Context, table models.Table, recordID id.RecordID) (*models.Record, error)
	Insert(ctx context.Context, record *models.Record) error
	Update(ctx context.Context, table models.Table, recordID id.RecordID, patch json.RawMessage) (*models.Record, error)
	List(ctx context.Context, table models.Table) ([]*models.Record, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service exposes create, read and update on the record store. Deletion is
// deliberately absent: records leave the store only through an approved
// deletion request.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCommand inserts a record. An empty ID gets a generated one.
type CreateCommand struct {
	Table models.Table
	ID    id.RecordID
	Data  json.RawMessage
	Actor id.UserID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Record, error) {
	if !cmd.Table.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unsupported table")
	}
	data, err := models.EnsureObject(cmd.Data)
	if err != nil {
		return nil, err
	}
	recordID := cmd.ID
	if recordID == "" {
		recordID = id.RecordID(uuid.NewString())
	}

	now := requestcontext.Now(ctx)
	rec := &models.Record{
		ID:        recordID,
		Table:     cmd.Table,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "record already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create record")
	}

	s.metrics.IncCreated(cmd.Table.String())
	s.logAudit(ctx, audit.EventRecordCreated, cmd.Actor, rec)
	return rec, nil
}

func (s *Service) Get(ctx context.Context, table models.Table, recordID id.RecordID) (*models.Record, error) {
	rec, err := s.store.Get(ctx, table, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, table models.Table) ([]*models.Record, error) {
	recs, err := s.store.List(ctx, table)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	return recs, nil
}

// UpdateCommand merges Patch into the stored record.
type UpdateCommand struct {
	Table models.Table
	ID    id.RecordID
	Patch json.RawMessage
	Actor id.UserID
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*models.Record, error) {
	patch, err := models.EnsureObject(cmd.Patch)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, cmd.Table, cmd.ID, patch)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update record")
	}

	s.metrics.IncUpdated(cmd.Table.String())
	s.logAudit(ctx, audit.EventRecordUpdated, cmd.Actor, rec)
	return rec, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor id.UserID, rec *models.Record) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"table", rec.Table,
			"record_id", rec.ID,
			"user_id", actor,
			"request_id", requestcontext.RequestID(ctx),
			"event", string(event),
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:  actor,
		Action:   string(event),
		Table:    rec.Table.String(),
		RecordID: rec.ID.String(),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event),
			"error", err,
		)
	}
}
