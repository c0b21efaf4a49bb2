package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/omega-championship/overlays/internal/overlay"
)

func (s *SQLiteStore) CreateOverlay(ctx context.Context, tournamentSlug string) (overlay.Overlay, error) {
	o := overlay.Overlay{ID: uuid.NewString(), TournamentSlug: tournamentSlug}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stream_overlay (id, tournament_slug, created_at)
		VALUES (?, ?, ?)
		RETURNING created_at
	`, o.ID, tournamentSlug, s.timestamp()).Scan(&createdAt)
	if err != nil {
		return overlay.Overlay{}, fmt.Errorf("inserting overlay: %w", err)
	}
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

func (s *SQLiteStore) Overlay(ctx context.Context, id string) (overlay.Overlay, error) {
	var (
		o         overlay.Overlay
		name      sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tournament_slug, name, created_at
		FROM stream_overlay
		WHERE id = ?
	`, id).Scan(&o.ID, &o.TournamentSlug, &name, &createdAt)
	if err != nil {
		return overlay.Overlay{}, notFound(err)
	}
	o.Name = stringPtr(name)
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

func (s *SQLiteStore) TournamentOverlays(ctx context.Context, tournamentSlug string) ([]overlay.Overlay, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tournament_slug, name, created_at
		FROM stream_overlay
		WHERE tournament_slug = ?
		ORDER BY created_at, rowid
	`, tournamentSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overlays []overlay.Overlay
	for rows.Next() {
		var (
			o         overlay.Overlay
			name      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.TournamentSlug, &name, &createdAt); err != nil {
			return nil, err
		}
		o.Name = stringPtr(name)
		o.CreatedAt = parseTime(createdAt)
		overlays = append(overlays, o)
	}
	return overlays, rows.Err()
}

func (s *SQLiteStore) RenameOverlay(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE stream_overlay SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("renaming overlay: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOverlay removes the overlay together with its scoreboard, casters
// and wait timer. Its matches stay, detached.
func (s *SQLiteStore) DeleteOverlay(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Children are cleaned up explicitly so a database opened without
	// foreign_keys behaves the same.
	for _, q := range []string{
		`UPDATE matches SET overlay_id = NULL WHERE overlay_id = ?`,
		`DELETE FROM scoreboard WHERE overlay_id = ?`,
		`DELETE FROM casters WHERE overlay_id = ?`,
		`DELETE FROM wait_timer WHERE overlay_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("deleting overlay children: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM stream_overlay WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting overlay: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
