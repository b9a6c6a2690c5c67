package storage

import (
	"context"
	"database/sql"
	"errors"
)

// AddUser registers a telegram user if not already present.
func (s *Store) AddUser(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id) VALUES (?)
		 ON CONFLICT(telegram_id) DO NOTHING`, telegramID)
	return err
}

// EnsureAdmin registers the user and grants admin in one call. Used at
// bootstrap to seed the owner from static config.
func (s *Store) EnsureAdmin(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (telegram_id, is_admin) VALUES (?, TRUE)
		 ON CONFLICT(telegram_id) DO UPDATE SET is_admin = TRUE`, telegramID)
	return err
}

// IsAdmin reports whether the telegram user has admin rights.
// Unknown users are not admins.
func (s *Store) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var admin bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_admin FROM users WHERE telegram_id = ?`, telegramID).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return admin, nil
}

// SetAdmin grants or revokes admin rights for an existing user.
func (s *Store) SetAdmin(ctx context.Context, telegramID int64, admin bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ? WHERE telegram_id = ?`, admin, telegramID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Admins lists the telegram IDs of all admins.
func (s *Store) Admins(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT telegram_id FROM users WHERE is_admin = TRUE ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
