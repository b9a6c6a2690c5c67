package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Settings reads the whole settings table into a typed snapshot.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()

	raw := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, err
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}

	out := Settings{
		RepoCreatedBefore: raw[KeyRepoCreatedBefore],
		IssueCreatedAfter: raw[KeyIssueCreatedAfter],
		GeneralTopic:      raw[KeyGeneralTopic],
		SpotlightTopic:    raw[KeySpotlightTopic],
	}
	out.Stars, _ = strconv.Atoi(raw[KeyStars])
	out.IssuesPerRepo, _ = strconv.Atoi(raw[KeyIssuesPerRepo])
	out.ServiceChatID, _ = strconv.ParseInt(raw[KeyServiceChatID], 10, 64)
	out.LastSentUnix, _ = strconv.ParseInt(raw[KeyLastSent], 10, 64)
	out.SendHours = parseHours(raw[KeySendHours])
	return out, nil
}

// SetSetting writes one settings key. The key must already exist (all keys
// are seeded by the migration), so a missing row is a programming error.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settings SET value = ? WHERE key = ?`, value, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("settings key %q: %w", key, ErrNotFound)
	}
	return nil
}

// AddSendHour adds an allowed hour to the trigger gate. Idempotent.
func (s *Store) AddSendHour(ctx context.Context, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour %d out of range", hour)
	}
	set, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	for _, h := range set.SendHours {
		if h == hour {
			return nil
		}
	}
	hours := append(set.SendHours, hour)
	return s.SetSetting(ctx, KeySendHours, formatHours(hours))
}

// RemoveSendHour removes an allowed hour. Removing an absent hour is a no-op.
func (s *Store) RemoveSendHour(ctx context.Context, hour int) error {
	set, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	out := set.SendHours[:0]
	for _, h := range set.SendHours {
		if h != hour {
			out = append(out, h)
		}
	}
	return s.SetSetting(ctx, KeySendHours, formatHours(out))
}

// parseHours decodes the space-separated hour list ("16" or "9 16 21").
func parseHours(v string) []int {
	var out []int
	for _, f := range strings.Fields(v) {
		h, err := strconv.Atoi(f)
		if err != nil || h < 0 || h > 23 {
			continue
		}
		out = append(out, h)
	}
	return out
}

func formatHours(hours []int) string {
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, strconv.Itoa(h))
	}
	return strings.Join(parts, " ")
}
