package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/omega-championship/overlays/internal/overlay"
)

// UpsertTeam caches a tournament team. A nil nickname keeps the stored one,
// so refreshing teams from start.gg never erases organizer nicknames.
func (s *SQLiteStore) UpsertTeam(ctx context.Context, tournamentSlug string, t overlay.Team) error {
	members, err := json.Marshal(t.Members)
	if err != nil {
		return fmt.Errorf("encoding members: %w", err)
	}
	if t.Members == nil {
		members = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO teams (id, tournament_slug, name, nickname, image_url, members)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			tournament_slug = excluded.tournament_slug,
			name = excluded.name,
			nickname = COALESCE(excluded.nickname, teams.nickname),
			image_url = excluded.image_url,
			members = excluded.members
	`, t.ID, tournamentSlug, t.Name, nullString(t.Nickname), nullString(t.ImageURL), string(members))
	if err != nil {
		return fmt.Errorf("upserting team %s: %w", t.ID, err)
	}
	return nil
}

func scanTeam(row rowScanner) (overlay.Team, error) {
	var (
		t        overlay.Team
		nickname sql.NullString
		imageURL sql.NullString
		members  string
	)
	if err := row.Scan(&t.ID, &t.Name, &nickname, &imageURL, &members); err != nil {
		return overlay.Team{}, err
	}
	t.Nickname = stringPtr(nickname)
	t.ImageURL = stringPtr(imageURL)
	if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
		return overlay.Team{}, fmt.Errorf("decoding members of %s: %w", t.ID, err)
	}
	return t, nil
}

func (s *SQLiteStore) Team(ctx context.Context, id string) (overlay.Team, error) {
	t, err := scanTeam(s.db.QueryRowContext(ctx, `
		SELECT id, name, nickname, image_url, members
		FROM teams
		WHERE id = ?
	`, id))
	if err != nil {
		return overlay.Team{}, notFound(err)
	}
	return t, nil
}

func (s *SQLiteStore) TournamentTeams(ctx context.Context, tournamentSlug string) ([]overlay.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, nickname, image_url, members
		FROM teams
		WHERE tournament_slug = ?
		ORDER BY name COLLATE NOCASE, id
	`, tournamentSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []overlay.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// SetTeamNickname replaces the nickname; an empty one clears it.
func (s *SQLiteStore) SetTeamNickname(ctx context.Context, id, nickname string) error {
	var v sql.NullString
	if nickname != "" {
		v = sql.NullString{String: nickname, Valid: true}
	}
	result, err := s.db.ExecContext(ctx, `UPDATE teams SET nickname = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("setting team nickname: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
