package server

import (
	"context"

	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/startgg"
)

// Store is the persistence the handlers need. *store.SQLiteStore satisfies it.
type Store interface {
	CreateOverlay(ctx context.Context, tournamentSlug string) (overlay.Overlay, error)
	Overlay(ctx context.Context, id string) (overlay.Overlay, error)
	TournamentOverlays(ctx context.Context, tournamentSlug string) ([]overlay.Overlay, error)
	RenameOverlay(ctx context.Context, id, name string) error
	DeleteOverlay(ctx context.Context, id string) error

	UpsertTeam(ctx context.Context, tournamentSlug string, t overlay.Team) error
	Team(ctx context.Context, id string) (overlay.Team, error)
	TournamentTeams(ctx context.Context, tournamentSlug string) ([]overlay.Team, error)
	SetTeamNickname(ctx context.Context, id, nickname string) error

	UpsertScoreboard(ctx context.Context, sb overlay.Scoreboard) (overlay.Scoreboard, error)
	Scoreboard(ctx context.Context, overlayID string) (overlay.Scoreboard, error)
	UpsertCaster(ctx context.Context, c overlay.Caster) error
	CasterPair(ctx context.Context, overlayID string) (overlay.CasterPair, error)
	UpsertWaitTimer(ctx context.Context, w overlay.WaitTimer) error
	WaitTimer(ctx context.Context, overlayID string) (overlay.WaitTimer, error)

	UpsertMatch(ctx context.Context, m overlay.Match) (overlay.Match, error)
	Match(ctx context.Context, id string) (overlay.Match, error)
	OverlayMatches(ctx context.Context, overlayID string) ([]overlay.Match, error)
	DetachMatch(ctx context.Context, id string) error
}

// StartGG is the slice of the start.gg client the handlers call.
// *startgg.Client satisfies it.
type StartGG interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (startgg.Token, error)
	Refresh(ctx context.Context, refreshToken string) (startgg.Token, error)
	CurrentUser(ctx context.Context, token string) (startgg.User, error)
	OrganizedTournaments(ctx context.Context, token string) ([]overlay.Tournament, error)
	Tournament(ctx context.Context, token, slug string) (overlay.Tournament, error)
	TournamentTeams(ctx context.Context, token, slug string) ([]overlay.Team, error)
}
