package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/store"
	"github.com/omega-championship/overlays/internal/view"
)

const teamUpsertConcurrency = 8

func handleTournamentSetup(logger *slog.Logger, sg StartGG, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		slug := tournamentSlug(r)

		t, err := sg.Tournament(r.Context(), sess.AccessToken, slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		overlays, err := st.TournamentOverlays(r.Context(), slug)
		if err != nil {
			fail(w, logger, err)
			return
		}

		d := view.TournamentSetupData{Viewer: viewerOf(sess), Tournament: t, Overlays: overlays}
		if id := r.URL.Query().Get("overlay"); id != "" {
			ov, err := st.Overlay(r.Context(), id)
			if err != nil {
				fail(w, logger, err)
				return
			}
			if ov.TournamentSlug != slug {
				writeError(w, http.StatusForbidden, "overlay belongs to another tournament")
				return
			}
			d.Selected = &ov
		}

		view.RenderPage(w, r, view.ManageOverlay(d), view.TournamentSetup(d))
	}
}

// renderManageOverlay answers overlay mutations with the editor panel and
// the refreshed overlay list.
func renderManageOverlay(w http.ResponseWriter, r *http.Request, logger *slog.Logger, st Store, selected *overlay.Overlay) {
	overlays, err := st.TournamentOverlays(r.Context(), tournamentSlug(r))
	if err != nil {
		fail(w, logger, err)
		return
	}
	templ.Handler(view.ManageOverlay(view.TournamentSetupData{
		Tournament: tournamentFrom(r),
		Overlays:   overlays,
		Selected:   selected,
	})).ServeHTTP(w, r)
}

func handleCreateOverlay(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov, err := st.CreateOverlay(r.Context(), tournamentSlug(r))
		if err != nil {
			fail(w, logger, err)
			return
		}
		logger.Info("overlay created", "overlay_id", ov.ID, "tournament", ov.TournamentSlug)
		renderManageOverlay(w, r, logger, st, &ov)
	}
}

func handleRenameOverlay(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)
		name := strings.TrimSpace(r.FormValue("name"))
		if err := st.RenameOverlay(r.Context(), ov.ID, name); err != nil {
			fail(w, logger, err)
			return
		}
		ov, err := st.Overlay(r.Context(), ov.ID)
		if err != nil {
			fail(w, logger, err)
			return
		}
		renderManageOverlay(w, r, logger, st, &ov)
	}
}

func handleDeleteOverlay(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)
		if err := st.DeleteOverlay(r.Context(), ov.ID); err != nil {
			fail(w, logger, err)
			return
		}
		logger.Info("overlay deleted", "overlay_id", ov.ID, "tournament", ov.TournamentSlug)
		renderManageOverlay(w, r, logger, st, nil)
	}
}

// refreshTeams pulls the tournament's entrants from start.gg into the store
// and returns the stored list, nicknames included.
func refreshTeams(ctx context.Context, sg StartGG, st Store, token, slug string) ([]overlay.Team, error) {
	teams, err := sg.TournamentTeams(ctx, token, slug)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(teamUpsertConcurrency)
	for _, t := range teams {
		g.Go(func() error {
			return st.UpsertTeam(gctx, slug, t)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("storing teams: %w", err)
	}

	return st.TournamentTeams(ctx, slug)
}

func teamsSetupData(ctx context.Context, st Store, r *http.Request, teams []overlay.Team) (view.TeamsSetupData, error) {
	ov := overlayFrom(r)
	d := view.TeamsSetupData{
		TournamentSlug: chi.URLParam(r, "slug"),
		OverlayID:      ov.ID,
		Teams:          teams,
	}

	sb, err := st.Scoreboard(ctx, ov.ID)
	if errors.Is(err, store.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	d.Scoreboard = &sb
	for i := range teams {
		if teams[i].ID == sb.TeamA {
			d.TeamA = &teams[i]
		}
		if teams[i].ID == sb.TeamB {
			d.TeamB = &teams[i]
		}
	}
	return d, nil
}

func handleTeamsSetup(logger *slog.Logger, sg StartGG, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := refreshTeams(r.Context(), sg, st, sessionFrom(r).AccessToken, tournamentSlug(r))
		if err != nil {
			fail(w, logger, err)
			return
		}
		d, err := teamsSetupData(r.Context(), st, r, teams)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.TeamsSetup(d)).ServeHTTP(w, r)
	}
}

func handleTeamNickname(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := tournamentSlug(r)
		teamID := r.FormValue("team")

		teams, err := st.TournamentTeams(r.Context(), slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		if _, ok := findTeam(teams, teamID); !ok {
			writeError(w, http.StatusBadRequest, "unknown team")
			return
		}
		if err := st.SetTeamNickname(r.Context(), teamID, strings.TrimSpace(r.FormValue("team_nickname"))); err != nil {
			fail(w, logger, err)
			return
		}

		teams, err = st.TournamentTeams(r.Context(), slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		d, err := teamsSetupData(r.Context(), st, r, teams)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.TeamsSetup(d)).ServeHTTP(w, r)
	}
}

// parseCount reads a non-negative integer; blank means zero.
func parseCount(field, v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errStatus(http.StatusBadRequest, field+" must be a non-negative integer")
	}
	return n, nil
}

func formInt(r *http.Request, field string) (int, error) {
	return parseCount(field, r.FormValue(field))
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

type websocketScoreboard struct {
	OverlayID string `json:"overlay_id"`
	TeamA     string `json:"team_a"`
	TeamB     string `json:"team_b"`
}

func handleUpdateIngame(logger *slog.Logger, st Store, pub publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)
		slug := tournamentSlug(r)

		teams, err := st.TournamentTeams(r.Context(), slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		sb := overlay.Scoreboard{
			OverlayID:         ov.ID,
			TeamA:             r.FormValue("team_a"),
			TeamB:             r.FormValue("team_b"),
			TeamAStanding:     strings.TrimSpace(r.FormValue("team_a_standing")),
			TeamBStanding:     strings.TrimSpace(r.FormValue("team_b_standing")),
			ChampionshipPhase: optionalString(r.FormValue("championship_phase")),
			Logo:              strings.TrimSpace(r.FormValue("logo")),
		}
		_, okA := findTeam(teams, sb.TeamA)
		_, okB := findTeam(teams, sb.TeamB)
		if !okA || !okB {
			writeError(w, http.StatusBadRequest, "unknown team")
			return
		}
		if sb.TeamAScore, err = formInt(r, "team_a_score"); err != nil {
			fail(w, logger, err)
			return
		}
		if sb.TeamBScore, err = formInt(r, "team_b_score"); err != nil {
			fail(w, logger, err)
			return
		}

		sb, err = st.UpsertScoreboard(r.Context(), sb)
		if err != nil {
			fail(w, logger, err)
			return
		}

		d, err := teamsSetupData(r.Context(), st, r, teams)
		if err != nil {
			fail(w, logger, err)
			return
		}

		pub.render(r.Context(), ov.ID, fanout.KindIngameOverlayUpdate, view.Scoreboard(view.ScoreboardData{
			TeamA:         *d.TeamA,
			TeamB:         *d.TeamB,
			TeamAScore:    sb.TeamAScore,
			TeamBScore:    sb.TeamBScore,
			TeamAStanding: sb.TeamAStanding,
			TeamBStanding: sb.TeamBStanding,
			Logo:          sb.Logo,
		}))
		pub.render(r.Context(), ov.ID, fanout.KindChampionshipPhaseUpdate, view.ChampionshipPhase(sb.ChampionshipPhase))
		if msg, err := json.Marshal(websocketScoreboard{OverlayID: ov.ID, TeamA: sb.TeamA, TeamB: sb.TeamB}); err == nil {
			pub.raw(ov.ID, fanout.KindWebsocketEvent, string(msg))
		}

		templ.Handler(view.TeamsSetup(d)).ServeHTTP(w, r)
	}
}

func castersSetupData(ctx context.Context, st Store, r *http.Request) (view.CastersSetupData, error) {
	d := view.CastersSetupData{TournamentSlug: chi.URLParam(r, "slug"), Overlay: overlayFrom(r)}
	pair, err := st.CasterPair(ctx, d.Overlay.ID)
	if errors.Is(err, store.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	d.Casters = &pair
	return d, nil
}

func handleCastersSetup(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := castersSetupData(r.Context(), st, r)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.CastersSetup(d)).ServeHTTP(w, r)
	}
}

func handleUpdateCasters(logger *slog.Logger, st Store, pub publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)
		pair := overlay.CasterPair{
			Narrator: overlay.Caster{
				OverlayID:   ov.ID,
				Kind:        overlay.CasterNarrator,
				Name:        strings.TrimSpace(r.FormValue("narrator")),
				StreamVideo: strings.TrimSpace(r.FormValue("narrator_video")),
			},
			Commenter: overlay.Caster{
				OverlayID:   ov.ID,
				Kind:        overlay.CasterCommenter,
				Name:        strings.TrimSpace(r.FormValue("commenter")),
				StreamVideo: strings.TrimSpace(r.FormValue("commenter_video")),
			},
		}
		if pair.Narrator.Name == "" || pair.Commenter.Name == "" {
			writeError(w, http.StatusBadRequest, "both casters need a name")
			return
		}

		for _, c := range []overlay.Caster{pair.Narrator, pair.Commenter} {
			if err := st.UpsertCaster(r.Context(), c); err != nil {
				fail(w, logger, err)
				return
			}
		}

		pub.render(r.Context(), ov.ID, fanout.KindCasterOverlayUpdate, view.CastersContent(&pair))

		templ.Handler(view.CastersSetup(view.CastersSetupData{
			TournamentSlug: chi.URLParam(r, "slug"),
			Overlay:        ov,
			Casters:        &pair,
			Message:        "Casters updated",
		})).ServeHTTP(w, r)
	}
}
