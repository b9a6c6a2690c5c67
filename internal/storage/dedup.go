package storage

import (
	"context"
	"database/sql"
	"errors"

	"issuecast/internal/digest"
)

// SeenIssue reports whether the issue ID was accepted into an earlier batch.
func (s *Store) SeenIssue(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_issues WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSeen records a batch's issue IDs so no future poll re-offers them.
// Re-marking an already seen ID is harmless.
func (s *Store) MarkSeen(ctx context.Context, batch digest.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO seen_issues (id, url) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, is := range batch {
		if _, err := stmt.ExecContext(ctx, is.ID, is.URL); err != nil {
			return err
		}
	}
	return tx.Commit()
}
