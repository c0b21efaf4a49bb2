package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/omega-championship/overlays/internal/overlay"
)

// Team names come from a LEFT JOIN so a match survives a team missing from
// the cache; the id stands in for its name.
const selectMatch = `
	SELECT m.id, m.overlay_id, m.tournament_slug,
	       m.team_a, COALESCE(ta.name, m.team_a), ta.nickname, ta.image_url,
	       m.team_b, COALESCE(tb.name, m.team_b), tb.nickname, tb.image_url,
	       m.team_a_score, m.team_b_score, m.completed, m.in_progress, m.featured,
	       m.created_at
	FROM matches m
	LEFT JOIN teams ta ON ta.id = m.team_a
	LEFT JOIN teams tb ON tb.id = m.team_b
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (overlay.Match, error) {
	var (
		m           overlay.Match
		overlayID   sql.NullString
		aNick, aImg sql.NullString
		bNick, bImg sql.NullString
		createdAt   string
		flags       [3]int
	)
	err := row.Scan(&m.ID, &overlayID, &m.TournamentSlug,
		&m.TeamA.ID, &m.TeamA.Name, &aNick, &aImg,
		&m.TeamB.ID, &m.TeamB.Name, &bNick, &bImg,
		&m.TeamAScore, &m.TeamBScore, &flags[0], &flags[1], &flags[2],
		&createdAt)
	if err != nil {
		return overlay.Match{}, err
	}
	m.Completed, m.InProgress, m.Featured = flags[0] == 1, flags[1] == 1, flags[2] == 1
	m.OverlayID = stringPtr(overlayID)
	m.TeamA.Nickname, m.TeamA.ImageURL = stringPtr(aNick), stringPtr(aImg)
	m.TeamB.Nickname, m.TeamB.ImageURL = stringPtr(bNick), stringPtr(bImg)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// UpsertMatch inserts the match, or updates it in place when the id exists.
// An update keeps created_at, so the match keeps its position in the list.
func (s *SQLiteStore) UpsertMatch(ctx context.Context, m overlay.Match) (overlay.Match, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches
			(id, overlay_id, tournament_slug, team_a, team_b, team_a_score, team_b_score,
			 completed, in_progress, featured, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			overlay_id = excluded.overlay_id,
			tournament_slug = excluded.tournament_slug,
			team_a = excluded.team_a,
			team_b = excluded.team_b,
			team_a_score = excluded.team_a_score,
			team_b_score = excluded.team_b_score,
			completed = excluded.completed,
			in_progress = excluded.in_progress,
			featured = excluded.featured,
			updated_at = excluded.updated_at
	`, m.ID, nullString(m.OverlayID), m.TournamentSlug, m.TeamA.ID, m.TeamB.ID,
		m.TeamAScore, m.TeamBScore, boolInt(m.Completed), boolInt(m.InProgress), boolInt(m.Featured), now, now)
	if err != nil {
		return overlay.Match{}, fmt.Errorf("upserting match: %w", err)
	}
	return s.Match(ctx, m.ID)
}

func (s *SQLiteStore) Match(ctx context.Context, id string) (overlay.Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, selectMatch+` WHERE m.id = ?`, id))
	if err != nil {
		return overlay.Match{}, notFound(err)
	}
	return m, nil
}

// OverlayMatches lists the overlay matches in creation order.
func (s *SQLiteStore) OverlayMatches(ctx context.Context, overlayID string) ([]overlay.Match, error) {
	rows, err := s.db.QueryContext(ctx, selectMatch+`
		WHERE m.overlay_id = ?
		ORDER BY m.created_at, m.rowid
	`, overlayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []overlay.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DetachMatch unlinks the match from its overlay without deleting it.
func (s *SQLiteStore) DetachMatch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE matches SET overlay_id = NULL, updated_at = ? WHERE id = ?
	`, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("detaching match: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
