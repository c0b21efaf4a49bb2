package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/omega-championship/overlays/internal/overlay"
)

func (s *SQLiteStore) UpsertUser(ctx context.Context, u overlay.User) error {
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, discord, omegastrikers_id, startgg_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			discord = excluded.discord,
			omegastrikers_id = excluded.omegastrikers_id,
			startgg_id = COALESCE(excluded.startgg_id, users.startgg_id),
			updated_at = excluded.updated_at
	`, u.Username, u.Discord, nullString(u.OmegaStrikersID), nullString(u.StartGGID), now, now)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.Username, err)
	}
	return nil
}

func (s *SQLiteStore) User(ctx context.Context, username string) (overlay.User, error) {
	var (
		u                    overlay.User
		osID, sgID           sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT username, discord, omegastrikers_id, startgg_id, created_at, updated_at
		FROM users
		WHERE username = ?
	`, username).Scan(&u.Username, &u.Discord, &osID, &sgID, &createdAt, &updatedAt)
	if err != nil {
		return overlay.User{}, notFound(err)
	}
	u.OmegaStrikersID = stringPtr(osID)
	u.StartGGID = stringPtr(sgID)
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}
