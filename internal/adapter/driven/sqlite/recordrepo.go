package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noisemap/noisemap/internal/domain/model"
	"github.com/noisemap/noisemap/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordCache = (*RecordRepo)(nil)

// RecordRepo is the SQLite implementation of the RecordCache port interface.
// Only ledger-backed state is persisted: a provisional plaintext is a
// session-local courtesy and is stored as not-decrypted.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo backed by the given DB.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// ReplaceAll atomically swaps the cached snapshot for the given records.
func (r *RecordRepo) ReplaceAll(ctx context.Context, records []model.Record) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	cachedAt := time.Now().UTC().Format(time.RFC3339)
	for _, record := range records {
		if err := insertRecord(ctx, tx, record, cachedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	return nil
}

// Upsert inserts or updates a single cached record.
func (r *RecordRepo) Upsert(ctx context.Context, record model.Record) error {
	const query = `INSERT INTO records
		(id, label, area_code, public_tag, submitted_at, submitter, is_verified, verified_value, ciphertext_handle, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			area_code = excluded.area_code,
			public_tag = excluded.public_tag,
			submitted_at = excluded.submitted_at,
			submitter = excluded.submitter,
			is_verified = excluded.is_verified,
			verified_value = excluded.verified_value,
			ciphertext_handle = excluded.ciphertext_handle,
			cached_at = excluded.cached_at`

	verified, verifiedValue := persistedClear(record.Clear)
	_, err := r.db.Writer.ExecContext(ctx, query,
		record.ID, record.Label, record.AreaCode, record.PublicTag,
		record.SubmittedAt, record.Submitter, verified, verifiedValue,
		record.CiphertextHandle, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", record.ID, err)
	}

	return nil
}

// List returns all cached records ordered newest first.
func (r *RecordRepo) List(ctx context.Context) ([]model.Record, error) {
	const query = `SELECT id, label, area_code, public_tag, submitted_at, submitter, is_verified, verified_value, ciphertext_handle
		FROM records ORDER BY submitted_at DESC, id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// Get retrieves a cached record by id. Returns nil, nil if the record is not
// cached.
func (r *RecordRepo) Get(ctx context.Context, id string) (*model.Record, error) {
	const query = `SELECT id, label, area_code, public_tag, submitted_at, submitter, is_verified, verified_value, ciphertext_handle
		FROM records WHERE id = ?`

	record, err := scanRecord(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	return record, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, record model.Record, cachedAt string) error {
	const query = `INSERT INTO records
		(id, label, area_code, public_tag, submitted_at, submitter, is_verified, verified_value, ciphertext_handle, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	verified, verifiedValue := persistedClear(record.Clear)
	_, err := tx.ExecContext(ctx, query,
		record.ID, record.Label, record.AreaCode, record.PublicTag,
		record.SubmittedAt, record.Submitter, verified, verifiedValue,
		record.CiphertextHandle, cachedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", record.ID, err)
	}

	return nil
}

// persistedClear maps a ClearValue to its stored form. Provisional values
// collapse to not-decrypted on the way in.
func persistedClear(cv model.ClearValue) (bool, sql.NullInt64) {
	if !cv.IsVerified() {
		return false, sql.NullInt64{}
	}
	value, _ := cv.Value()
	return true, sql.NullInt64{Int64: value, Valid: true}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.Record, error) {
	var record model.Record
	var verified bool
	var verifiedValue sql.NullInt64

	err := s.Scan(&record.ID, &record.Label, &record.AreaCode, &record.PublicTag,
		&record.SubmittedAt, &record.Submitter, &verified, &verifiedValue,
		&record.CiphertextHandle)
	if err != nil {
		return nil, err
	}

	record.Clear = model.NotDecrypted()
	if verified && verifiedValue.Valid {
		record.Clear = model.Verified(verifiedValue.Int64)
	}

	return &record, nil
}
