package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/store"
	"github.com/omega-championship/overlays/internal/view"
)

const (
	waitUntilLayout = "2006-01-02T15:04"
	// defaultUTCOffset applies when the browser sends no usable offset.
	defaultUTCOffset = -3 * time.Hour
)

// optionalWaitTimer returns nil when the overlay has no timer yet.
func optionalWaitTimer(ctx context.Context, st Store, overlayID string) (*overlay.WaitTimer, error) {
	wt, err := st.WaitTimer(ctx, overlayID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wt, nil
}

func waitingSetupData(ctx context.Context, st Store, r *http.Request, teams []overlay.Team) (view.WaitingSetupData, error) {
	ov := overlayFrom(r)
	d := view.WaitingSetupData{TournamentSlug: chi.URLParam(r, "slug"), OverlayID: ov.ID, Teams: teams}

	matches, err := st.OverlayMatches(ctx, ov.ID)
	if err != nil {
		return d, err
	}
	d.Matches = matches

	d.WaitTimer, err = optionalWaitTimer(ctx, st, ov.ID)
	return d, err
}

func handleWaitingSetup(logger *slog.Logger, sg StartGG, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teams, err := refreshTeams(r.Context(), sg, st, sessionFrom(r).AccessToken, tournamentSlug(r))
		if err != nil {
			fail(w, logger, err)
			return
		}
		d, err := waitingSetupData(r.Context(), st, r, teams)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.WaitingSetup(d)).ServeHTTP(w, r)
	}
}

// matchesForm is the today's matches editor. Rows are parallel slices
// indexed like match_id; the checkbox fields list the ids that are checked.
type matchesForm struct {
	existing   []string
	ids        []string
	teamA      []string
	teamB      []string
	scoreA     []string
	scoreB     []string
	completed  []string
	inProgress []string
	featured   []string
}

func parseMatchesForm(r *http.Request) (matchesForm, error) {
	if err := r.ParseForm(); err != nil {
		return matchesForm{}, errStatus(http.StatusBadRequest, "invalid form")
	}
	f := matchesForm{
		existing:   r.PostForm["existing_match_id"],
		ids:        r.PostForm["match_id"],
		teamA:      r.PostForm["team_a"],
		teamB:      r.PostForm["team_b"],
		scoreA:     r.PostForm["team_a_score"],
		scoreB:     r.PostForm["team_b_score"],
		completed:  r.PostForm["completed"],
		inProgress: r.PostForm["in_progress"],
		featured:   r.PostForm["featured"],
	}
	n := len(f.ids)
	if len(f.teamA) != n || len(f.teamB) != n || len(f.scoreA) != n || len(f.scoreB) != n {
		return matchesForm{}, errStatus(http.StatusBadRequest, "match rows are incomplete")
	}
	return f, nil
}

func findTeam(teams []overlay.Team, id string) (overlay.Team, bool) {
	for _, t := range teams {
		if t.ID == id {
			return t, true
		}
	}
	return overlay.Team{}, false
}

// validateMatches checks every row before anything is stored and returns
// the rows to upsert, in form order. Rows with no team at all are skipped.
// A row may reuse the id of a stored match only when that match belongs to
// the same tournament.
func validateMatches(ctx context.Context, st Store, f matchesForm, teams []overlay.Team, overlayID, slug string) ([]overlay.Match, error) {
	rows := make([]overlay.Match, 0, len(f.ids))
	for i, id := range f.ids {
		row := strconv.Itoa(i + 1)
		if _, err := uuid.Parse(id); err != nil {
			return nil, errStatus(http.StatusBadRequest, "invalid match id in row "+row)
		}
		if slices.Contains(f.ids[:i], id) {
			return nil, errStatus(http.StatusBadRequest, "duplicate match id in row "+row)
		}
		if f.teamA[i] == "" && f.teamB[i] == "" {
			continue
		}

		stored, err := st.Match(ctx, id)
		switch {
		case err == nil && stored.TournamentSlug != slug:
			return nil, errStatus(http.StatusForbidden, "match in row "+row+" belongs to another tournament")
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		}

		a, okA := findTeam(teams, f.teamA[i])
		b, okB := findTeam(teams, f.teamB[i])
		if !okA || !okB {
			return nil, errStatus(http.StatusBadRequest, "unknown team in match row "+row)
		}
		m := overlay.Match{
			ID:             id,
			OverlayID:      &overlayID,
			TournamentSlug: slug,
			TeamA:          a,
			TeamB:          b,
			Completed:      slices.Contains(f.completed, id),
			InProgress:     slices.Contains(f.inProgress, id),
			Featured:       slices.Contains(f.featured, id),
		}
		if m.TeamAScore, err = parseCount("team_a_score", f.scoreA[i]); err != nil {
			return nil, err
		}
		if m.TeamBScore, err = parseCount("team_b_score", f.scoreB[i]); err != nil {
			return nil, err
		}
		rows = append(rows, m)
	}
	return rows, nil
}

func handleUpdateMatches(logger *slog.Logger, st Store, pub publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)
		slug := tournamentSlug(r)

		f, err := parseMatchesForm(r)
		if err != nil {
			fail(w, logger, err)
			return
		}
		teams, err := st.TournamentTeams(r.Context(), slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		rows, err := validateMatches(r.Context(), st, f, teams, ov.ID, slug)
		if err != nil {
			fail(w, logger, err)
			return
		}
		current, err := st.OverlayMatches(r.Context(), ov.ID)
		if err != nil {
			fail(w, logger, err)
			return
		}

		// Rows removed in the editor leave the overlay but keep their history.
		for _, m := range current {
			if slices.Contains(f.existing, m.ID) && !slices.Contains(f.ids, m.ID) {
				if err := st.DetachMatch(r.Context(), m.ID); err != nil {
					logger.Error("detaching match", "match_id", m.ID, "error", err)
				}
			}
		}

		// Stored one at a time, in form order, which is the display order.
		for _, m := range rows {
			if _, err := st.UpsertMatch(r.Context(), m); err != nil {
				logger.Error("storing match", "match_id", m.ID, "error", err)
			}
		}

		d, err := waitingSetupData(r.Context(), st, r, teams)
		if err != nil {
			fail(w, logger, err)
			return
		}

		pub.render(r.Context(), ov.ID, fanout.KindTodaysMatchesUpdate, view.TodaysMatches(d.Matches))
		pub.render(r.Context(), ov.ID, fanout.KindNextMatchInfoUpdate, view.NextMatchInfo(d.Matches))

		templ.Handler(view.WaitingSetup(d)).ServeHTTP(w, r)
	}
}

// parseWaitUntil reads the datetime-local value in the browser's zone.
// offset is JavaScript's getTimezoneOffset: minutes west of UTC.
func parseWaitUntil(value, offset string) (time.Time, error) {
	zone := time.FixedZone("", int(defaultUTCOffset.Seconds()))
	if offset = strings.TrimSpace(offset); offset != "" {
		minutes, err := strconv.Atoi(offset)
		if err != nil {
			return time.Time{}, errStatus(http.StatusBadRequest, "invalid timezone_offset")
		}
		if west := minutes * 60; west > -86400 && west < 86400 {
			zone = time.FixedZone("", -west)
		}
	}
	t, err := time.ParseInLocation(waitUntilLayout, strings.TrimSpace(value), zone)
	if err != nil {
		return time.Time{}, errStatus(http.StatusBadRequest, "invalid waiting_until")
	}
	return t, nil
}

func handleUpdateTimer(logger *slog.Logger, st Store, pub publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ov := overlayFrom(r)

		waitType, ok := overlay.ParseWaitType(r.FormValue("wait_type"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid wait_type")
			return
		}
		until, err := parseWaitUntil(r.FormValue("waiting_until"), r.FormValue("timezone_offset"))
		if err != nil {
			fail(w, logger, err)
			return
		}

		if err := st.UpsertWaitTimer(r.Context(), overlay.WaitTimer{OverlayID: ov.ID, WaitUntil: until, WaitType: waitType}); err != nil {
			fail(w, logger, err)
			return
		}
		wt, err := optionalWaitTimer(r.Context(), st, ov.ID)
		if err != nil {
			fail(w, logger, err)
			return
		}

		pub.render(r.Context(), ov.ID, fanout.KindWaitInfoUpdate, view.WaitInfo(ov.ID, wt))
		pub.render(r.Context(), ov.ID, fanout.KindWaitInfoStandaloneUpdate, view.StandaloneWaitInfo(ov.ID, wt))

		templ.Handler(view.WaitSection(view.WaitingSetupData{
			TournamentSlug: chi.URLParam(r, "slug"),
			OverlayID:      ov.ID,
			WaitTimer:      wt,
		})).ServeHTTP(w, r)
	}
}
