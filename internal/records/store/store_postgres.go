package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mastercom/internal/platform/postgres"
	"mastercom/internal/records/models"
	id "mastercom/pkg/domain"
	"mastercom/pkg/platform/sentinel"
	txcontext "mastercom/pkg/platform/tx"
	"mastercom/pkg/requestcontext"
)

// PostgresStore keeps each collection in its own table with a JSONB payload.
// Table names are interpolated only after models.Table validation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func checkTable(table models.Table) error {
	if !table.IsValid() {
		return fmt.Errorf("unsupported table %q", table)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, table models.Table, recordID id.RecordID) (*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s WHERE id = $1`, table)
	rec, err := scanRecord(table, s.execer(ctx).QueryRowContext(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s record: %w", table, err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record *models.Record) error {
	if err := checkTable(record.Table); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data, created_at, updated_at) VALUES ($1, $2, $3, $4)`, record.Table)
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID.String(), []byte(record.Data), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert %s record: %w", record.Table, err)
	}
	return nil
}

// Update merges patch into the stored payload with the jsonb || operator,
// then drops keys the patch sets to null.
func (s *PostgresStore) Update(ctx context.Context, table models.Table, recordID id.RecordID, patch json.RawMessage) (*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET data = (data || $2::jsonb)
		           - ARRAY(SELECT key FROM jsonb_each($2::jsonb) WHERE value = 'null'::jsonb),
		    updated_at = $3
		WHERE id = $1
		RETURNING id, data, created_at, updated_at
	`, table)
	rec, err := scanRecord(table, s.execer(ctx).QueryRowContext(ctx, query,
		recordID.String(), []byte(patch), requestcontext.Now(ctx),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update %s record: %w", table, err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, table models.Table, recordID id.RecordID) error {
	if err := checkTable(table); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	res, err := s.execer(ctx).ExecContext(ctx, query, recordID.String())
	if err != nil {
		return fmt.Errorf("delete %s record: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s record: %w", table, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, table models.Table) ([]*models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, data, created_at, updated_at FROM %s ORDER BY created_at, id`, table)
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", table, err)
	}
	defer rows.Close()

	out := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(table, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s records: %w", table, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(table models.Table, row rowScanner) (*models.Record, error) {
	var (
		rawID string
		data  []byte
		rec   = models.Record{Table: table}
	)
	if err := row.Scan(&rawID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(rawID)
	rec.Data = json.RawMessage(data)
	return &rec, nil
}
