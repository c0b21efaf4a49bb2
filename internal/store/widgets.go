package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/omega-championship/overlays/internal/overlay"
)

func (s *SQLiteStore) UpsertScoreboard(ctx context.Context, sb overlay.Scoreboard) (overlay.Scoreboard, error) {
	if sb.TeamAStanding == "" {
		sb.TeamAStanding = overlay.DefaultStanding
	}
	if sb.TeamBStanding == "" {
		sb.TeamBStanding = overlay.DefaultStanding
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scoreboard
			(overlay_id, team_a, team_b, team_a_score, team_b_score,
			 team_a_standing, team_b_standing, championship_phase, logo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (overlay_id) DO UPDATE SET
			team_a = excluded.team_a,
			team_b = excluded.team_b,
			team_a_score = excluded.team_a_score,
			team_b_score = excluded.team_b_score,
			team_a_standing = excluded.team_a_standing,
			team_b_standing = excluded.team_b_standing,
			championship_phase = excluded.championship_phase,
			logo = excluded.logo
	`, sb.OverlayID, sb.TeamA, sb.TeamB, sb.TeamAScore, sb.TeamBScore,
		sb.TeamAStanding, sb.TeamBStanding, nullString(sb.ChampionshipPhase), sb.Logo)
	if err != nil {
		return overlay.Scoreboard{}, fmt.Errorf("upserting scoreboard: %w", err)
	}
	return sb, nil
}

func (s *SQLiteStore) Scoreboard(ctx context.Context, overlayID string) (overlay.Scoreboard, error) {
	var (
		sb    overlay.Scoreboard
		phase sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT overlay_id, team_a, team_b, team_a_score, team_b_score,
		       team_a_standing, team_b_standing, championship_phase, logo
		FROM scoreboard
		WHERE overlay_id = ?
	`, overlayID).Scan(&sb.OverlayID, &sb.TeamA, &sb.TeamB, &sb.TeamAScore, &sb.TeamBScore,
		&sb.TeamAStanding, &sb.TeamBStanding, &phase, &sb.Logo)
	if err != nil {
		return overlay.Scoreboard{}, notFound(err)
	}
	sb.ChampionshipPhase = stringPtr(phase)
	return sb, nil
}

func (s *SQLiteStore) UpsertCaster(ctx context.Context, c overlay.Caster) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO casters (overlay_id, kind, name, stream_video)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (overlay_id, kind) DO UPDATE SET
			name = excluded.name,
			stream_video = excluded.stream_video
	`, c.OverlayID, string(c.Kind), c.Name, c.StreamVideo)
	if err != nil {
		return fmt.Errorf("upserting %s caster: %w", c.Kind, err)
	}
	return nil
}

// Casters returns the overlay casters, narrator first.
func (s *SQLiteStore) Casters(ctx context.Context, overlayID string) ([]overlay.Caster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT overlay_id, kind, name, stream_video
		FROM casters
		WHERE overlay_id = ?
		ORDER BY CASE kind WHEN 'narrator' THEN 0 ELSE 1 END
	`, overlayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var casters []overlay.Caster
	for rows.Next() {
		var (
			c    overlay.Caster
			kind string
		)
		if err := rows.Scan(&c.OverlayID, &kind, &c.Name, &c.StreamVideo); err != nil {
			return nil, err
		}
		c.Kind = overlay.CasterKind(kind)
		casters = append(casters, c)
	}
	return casters, rows.Err()
}

// CasterPair returns ErrNotFound unless both casters were assigned.
func (s *SQLiteStore) CasterPair(ctx context.Context, overlayID string) (overlay.CasterPair, error) {
	casters, err := s.Casters(ctx, overlayID)
	if err != nil {
		return overlay.CasterPair{}, err
	}
	var (
		pair     overlay.CasterPair
		narrator bool
		comment  bool
	)
	for _, c := range casters {
		switch c.Kind {
		case overlay.CasterNarrator:
			pair.Narrator, narrator = c, true
		case overlay.CasterCommenter:
			pair.Commenter, comment = c, true
		}
	}
	if !narrator || !comment {
		return overlay.CasterPair{}, ErrNotFound
	}
	return pair, nil
}

// UpsertWaitTimer stores wait_until as RFC 2822 text so the original offset
// survives the round-trip.
func (s *SQLiteStore) UpsertWaitTimer(ctx context.Context, w overlay.WaitTimer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wait_timer (overlay_id, wait_until, wait_type)
		VALUES (?, ?, ?)
		ON CONFLICT (overlay_id) DO UPDATE SET
			wait_until = excluded.wait_until,
			wait_type = excluded.wait_type
	`, w.OverlayID, w.WaitUntil.Format(time.RFC1123Z), string(w.WaitType))
	if err != nil {
		return fmt.Errorf("upserting wait timer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WaitTimer(ctx context.Context, overlayID string) (overlay.WaitTimer, error) {
	var (
		w         overlay.WaitTimer
		waitUntil string
		waitType  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT overlay_id, wait_until, wait_type
		FROM wait_timer
		WHERE overlay_id = ?
	`, overlayID).Scan(&w.OverlayID, &waitUntil, &waitType)
	if err != nil {
		return overlay.WaitTimer{}, notFound(err)
	}
	w.WaitUntil, err = time.Parse(time.RFC1123Z, waitUntil)
	if err != nil {
		return overlay.WaitTimer{}, fmt.Errorf("parsing wait_until %q: %w", waitUntil, err)
	}
	wt, ok := overlay.ParseWaitType(waitType)
	if !ok {
		return overlay.WaitTimer{}, fmt.Errorf("invalid wait type %q", waitType)
	}
	w.WaitType = wt
	return w, nil
}
