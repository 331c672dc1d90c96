package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mastercom/internal/deletion/models"
	"mastercom/internal/platform/postgres"
	recordmodels "mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
	txcontext "mastercom/pkg/platform/tx"
)

const ledgerColumns = `id, table_name, record_id, record_data, reason, requested_by, status,
	requested_at, reviewed_by, reviewed_at, review_notes`

// PostgresLedger persists deletion requests in the deletion_requests table.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger constructs a PostgreSQL-backed ledger.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *PostgresLedger) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return l.db
}

// Create inserts a new entry. A second pending entry for the same target
// violates deletion_requests_one_pending and yields sentinel.ErrConflict.
func (l *PostgresLedger) Create(ctx context.Context, req *models.DeletionRequest) error {
	_, err := l.execer(ctx).ExecContext(ctx, `
		INSERT INTO deletion_requests (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(req.ID),
		req.Table.String(),
		req.RecordID.String(),
		[]byte(req.RecordData),
		req.Reason,
		uuid.UUID(req.RequestedBy),
		req.Status,
		req.RequestedAt,
		nullableUserID(req.ReviewedBy),
		req.ReviewedAt,
		nullableString(req.ReviewNotes),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert deletion request: %w", err)
	}
	return nil
}

func (l *PostgresLedger) FindByID(ctx context.Context, requestID id.DeletionRequestID) (*models.DeletionRequest, error) {
	row := l.execer(ctx).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM deletion_requests WHERE id = $1`,
		uuid.UUID(requestID),
	)
	req, err := scanDeletionRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find deletion request: %w", err)
	}
	return req, nil
}

func (l *PostgresLedger) FindPending(ctx context.Context, table recordmodels.Table, recordID id.RecordID) (*models.DeletionRequest, error) {
	row := l.execer(ctx).QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM deletion_requests
		 WHERE table_name = $1 AND record_id = $2 AND status = 'pending'`,
		table.String(), recordID.String(),
	)
	req, err := scanDeletionRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find pending deletion request: %w", err)
	}
	return req, nil
}

func (l *PostgresLedger) List(ctx context.Context) ([]*models.DeletionRequest, error) {
	return l.query(ctx,
		`SELECT `+ledgerColumns+` FROM deletion_requests ORDER BY requested_at DESC, id`,
	)
}

func (l *PostgresLedger) ListByStatus(ctx context.Context, status models.Status) ([]*models.DeletionRequest, error) {
	return l.query(ctx,
		`SELECT `+ledgerColumns+` FROM deletion_requests WHERE status = $1 ORDER BY requested_at DESC, id`,
		status,
	)
}

// Resolve updates the entry only while it is still pending, so concurrent
// reviewers cannot both transition it.
func (l *PostgresLedger) Resolve(ctx context.Context, requestID id.DeletionRequestID, review models.Review) (*models.DeletionRequest, error) {
	resolved := &models.DeletionRequest{Status: models.StatusPending}
	if err := resolved.ApplyReview(review); err != nil {
		return nil, err
	}
	row := l.execer(ctx).QueryRowContext(ctx, `
		UPDATE deletion_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+ledgerColumns,
		uuid.UUID(requestID),
		resolved.Status,
		uuid.UUID(*resolved.ReviewedBy),
		*resolved.ReviewedAt,
		nullableString(resolved.ReviewNotes),
	)
	req, err := scanDeletionRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve deletion request: %w", err)
	}
	if _, findErr := l.FindByID(ctx, requestID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrInvalidState
}

func (l *PostgresLedger) query(ctx context.Context, query string, args ...any) ([]*models.DeletionRequest, error) {
	rows, err := l.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.DeletionRequest, 0)
	for rows.Next() {
		req, err := scanDeletionRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deletion request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeletionRequest(row rowScanner) (*models.DeletionRequest, error) {
	var (
		requestID   uuid.UUID
		table       string
		recordID    string
		data        []byte
		requestedBy uuid.UUID
		reviewedBy  uuid.NullUUID
		reviewedAt  sql.NullTime
		notes       sql.NullString
		req         models.DeletionRequest
	)
	if err := row.Scan(
		&requestID, &table, &recordID, &data, &req.Reason, &requestedBy, &req.Status,
		&req.RequestedAt, &reviewedBy, &reviewedAt, &notes,
	); err != nil {
		return nil, err
	}
	req.ID = id.DeletionRequestID(requestID)
	req.Table = recordmodels.Table(table)
	req.RecordID = id.RecordID(recordID)
	req.RecordData = json.RawMessage(data)
	req.RequestedBy = id.UserID(requestedBy)
	if reviewedBy.Valid {
		reviewer := id.UserID(reviewedBy.UUID)
		req.ReviewedBy = &reviewer
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time
		req.ReviewedAt = &at
	}
	req.ReviewNotes = notes.String
	return &req, nil
}

func nullableUserID(u *id.UserID) uuid.NullUUID {
	if u == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*u), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
