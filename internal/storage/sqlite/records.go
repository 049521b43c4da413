package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/vitalmem/internal/core"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

// Put inserts or fully overwrites the record at (user, kind, key).
// An overwrite resurrects an archived record: it gets a fresh local
// payload and becomes eligible for archival again later.
func (r *RecordsRepo) Put(ctx context.Context, rec core.Record) error {
	query := `
		INSERT INTO records (user_id, kind, key, payload, encrypted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, kind, key) DO UPDATE SET
			payload = excluded.payload,
			encrypted = excluded.encrypted,
			archived = 0,
			archive_uri = '',
			updated_at = CURRENT_TIMESTAMP`

	_, err := r.db.ExecContext(ctx, query,
		rec.UserID, string(rec.Kind), rec.Key, rec.Payload, boolToInt(rec.Encrypted))
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

func (r *RecordsRepo) Get(ctx context.Context, userID string, kind core.RecordKind, key string) (*core.Record, error) {
	query := `
		SELECT user_id, kind, key, payload, encrypted, archived, archive_uri, created_at, updated_at
		FROM records
		WHERE user_id = ? AND kind = ? AND key = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, string(kind), key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (r *RecordsRepo) QueryByKeyRange(ctx context.Context, userID string, kind core.RecordKind, start, end string) ([]core.Record, error) {
	query := `
		SELECT user_id, kind, key, payload, encrypted, archived, archive_uri, created_at, updated_at
		FROM records
		WHERE user_id = ? AND kind = ? AND key >= ? AND key <= ? AND archived = 0
		ORDER BY key ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, string(kind), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *RecordsRepo) ListUpdatedBefore(ctx context.Context, cutoff time.Time) ([]core.Record, error) {
	query := `
		SELECT user_id, kind, key, payload, encrypted, archived, archive_uri, created_at, updated_at
		FROM records
		WHERE archived = 0 AND updated_at < ?
		ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list aged records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// MarkArchived records where the payload went and evicts the local
// copy. Runs only after the upload has fully succeeded.
func (r *RecordsRepo) MarkArchived(ctx context.Context, userID string, kind core.RecordKind, key, archiveURI string) error {
	query := `
		UPDATE records
		SET archived = 1, archive_uri = ?, payload = x''
		WHERE user_id = ? AND kind = ? AND key = ?`

	res, err := r.db.ExecContext(ctx, query, archiveURI, userID, string(kind), key)
	if err != nil {
		return fmt.Errorf("failed to mark record archived: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *RecordsRepo) Delete(ctx context.Context, userID string, kind core.RecordKind, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE user_id = ? AND kind = ? AND key = ?`,
		userID, string(kind), key)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.Record, error) {
	var rec core.Record
	var kind string
	var encrypted, archived int
	if err := row.Scan(&rec.UserID, &kind, &rec.Key, &rec.Payload,
		&encrypted, &archived, &rec.ArchiveURI, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Kind = core.RecordKind(kind)
	rec.Encrypted = encrypted == 1
	rec.Archived = archived == 1
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]core.Record, error) {
	var records []core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
