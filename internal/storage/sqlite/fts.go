package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/vitalmem/internal/core"
)

// SearchStore backs the hybrid search index with SQLite FTS5. The
// search_docs row and its FTS5 row share the same rowid so bm25 ranks
// can be joined back to document metadata.
type SearchStore struct {
	db *sql.DB
}

func NewSearchStore(db *sql.DB) *SearchStore {
	return &SearchStore{db: db}
}

// Upsert indexes a document, replacing any previous content for the
// same doc id.
func (s *SearchStore) Upsert(ctx context.Context, doc core.SearchDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM search_docs WHERE doc_id = ?`, doc.ID).Scan(&rowID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO search_docs (doc_id, user_id, kind, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			doc.ID, doc.UserID, string(doc.Kind), doc.Content, doc.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert search doc: %w", err)
		}
		if rowID, err = res.LastInsertId(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to look up search doc: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE search_docs SET content = ?, created_at = ? WHERE id = ?`,
			doc.Content, doc.CreatedAt.UTC(), rowID); err != nil {
			return fmt.Errorf("failed to update search doc: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM search_fts WHERE rowid = ?`, rowID); err != nil {
			return fmt.Errorf("failed to clear stale fts row: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_fts (rowid, content) VALUES (?, ?)`, rowID, doc.Content); err != nil {
		return fmt.Errorf("failed to insert fts row: %w", err)
	}

	return tx.Commit()
}

// Match runs an FTS5 MATCH expression scoped to one user. bm25() ranks
// are negative with more negative meaning a better match, so the score
// is negated to be higher-is-better. Ties break by recency.
func (s *SearchStore) Match(ctx context.Context, userID, matchExpr string, limit int) ([]core.SearchResult, error) {
	query := `
		SELECT d.doc_id, d.content, -search_fts.rank AS score, d.created_at
		FROM search_fts
		JOIN search_docs d ON d.id = search_fts.rowid
		WHERE search_fts MATCH ? AND d.user_id = ?
		ORDER BY search_fts.rank ASC, d.created_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, matchExpr, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("fts match failed: %w", err)
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var r core.SearchResult
		if err := rows.Scan(&r.ID, &r.Content, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteByUserKind drops the user's indexed documents of one record
// kind. The memory wipe uses it to clear conversation-memory documents
// while daily-log and profile documents stay searchable.
func (s *SearchStore) DeleteByUserKind(ctx context.Context, userID string, kind core.RecordKind) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_fts WHERE rowid IN (SELECT id FROM search_docs WHERE user_id = ? AND kind = ?)`,
		userID, string(kind)); err != nil {
		return fmt.Errorf("failed to delete fts rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_docs WHERE user_id = ? AND kind = ?`, userID, string(kind)); err != nil {
		return fmt.Errorf("failed to delete search docs: %w", err)
	}
	return tx.Commit()
}
