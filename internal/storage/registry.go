package storage

import (
	"context"
	"database/sql"
	"time"

	"issuecast/internal/channel"
	"issuecast/internal/digest"

	logx "issuecast/pkg/logx"
)

// AddDestination registers a recipient for a kind. The row starts idle and
// is picked up by the next armed cycle.
func (s *Store) AddDestination(ctx context.Context, kind channel.Kind, externalID string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO destinations (kind, external_id) VALUES (?, ?)
		 ON CONFLICT(kind, external_id) DO NOTHING`,
		string(kind), externalID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

// RemoveDestination drops a recipient, pending or not.
func (s *Store) RemoveDestination(ctx context.Context, kind channel.Kind, externalID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM destinations WHERE kind = ? AND external_id = ?`,
		string(kind), externalID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Destinations lists every recipient of a kind regardless of state.
func (s *Store) Destinations(ctx context.Context, kind channel.Kind) ([]Destination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, external_id, state FROM destinations WHERE kind = ? ORDER BY created_at`,
		string(kind))
	if err != nil {
		return nil, err
	}
	return scanDestinations(rows)
}

// PendingDestinations returns up to limit rows awaiting delivery for the
// kind. Order is unspecified but stable, so repeated calls across ticks
// exhaust the pending set.
func (s *Store) PendingDestinations(ctx context.Context, kind channel.Kind, limit int) ([]Destination, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, external_id, state FROM destinations
		 WHERE kind = ? AND state = ? LIMIT ?`,
		string(kind), string(StatePending), limit)
	if err != nil {
		return nil, err
	}
	return scanDestinations(rows)
}

// Disarm transitions one destination back to idle after an attempted send.
// Idempotent: disarming an already idle row is not an error.
func (s *Store) Disarm(ctx context.Context, kind channel.Kind, externalID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE destinations SET state = ? WHERE kind = ? AND external_id = ?`,
		string(StateIdle), string(kind), externalID)
	return err
}

// ArmCycle performs the single write path that fans a cycle out to both
// dispatch queues, in one transaction:
//
//   - advance last_sent to at
//   - set every destination of both kinds to pending
//   - replace the cycle batch artifact
//
// If any step fails the whole transition rolls back, so a worker never
// observes a partially armed registry and the next eligible tick retries
// from scratch.
func (s *Store) ArmCycle(ctx context.Context, cycleID string, at time.Time, batch digest.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE settings SET value = ? WHERE key = ?`,
		at.Unix(), KeyLastSent); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE destinations SET state = ?`, string(StatePending)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cycle_batch`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cycle_batch (position, cycle_id, issue_id, title, url, repo_url, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, is := range batch {
		if _, err := stmt.ExecContext(ctx, i, cycleID, is.ID, is.Title, is.URL, is.RepoURL, string(is.Category)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Info("cycle armed",
		logx.String("cycle", cycleID),
		logx.Int("issues", len(batch)),
		logx.Time("at", at))
	return nil
}

// Batch loads the current cycle batch artifact in acceptance order.
func (s *Store) Batch(ctx context.Context) (cycleID string, batch digest.Batch, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, issue_id, title, url, repo_url, category
		 FROM cycle_batch ORDER BY position`)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var is digest.Issue
		var cat string
		if err := rows.Scan(&cycleID, &is.ID, &is.Title, &is.URL, &is.RepoURL, &cat); err != nil {
			return "", nil, err
		}
		is.Category = digest.Category(cat)
		batch = append(batch, is)
	}
	return cycleID, batch, rows.Err()
}

func scanDestinations(rows *sql.Rows) ([]Destination, error) {
	defer rows.Close()
	var out []Destination
	for rows.Next() {
		var d Destination
		var kind, state string
		if err := rows.Scan(&kind, &d.ExternalID, &state); err != nil {
			return nil, err
		}
		d.Kind = channel.Kind(kind)
		d.State = DeliveryState(state)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
