package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/store"
	"github.com/omega-championship/overlays/internal/view"
)

// publicOverlay loads {overlayID} for the stream-facing routes, which need
// no session.
func publicOverlay(logger *slog.Logger, st Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ov, err := st.Overlay(r.Context(), chi.URLParam(r, "overlayID"))
			if err != nil {
				fail(w, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyOverlay, ov)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func scoreboardData(ctx context.Context, st Store, overlayID string) (view.ScoreboardData, error) {
	sb, err := st.Scoreboard(ctx, overlayID)
	if err != nil {
		return view.ScoreboardData{}, err
	}
	a, err := st.Team(ctx, sb.TeamA)
	if err != nil {
		return view.ScoreboardData{}, err
	}
	b, err := st.Team(ctx, sb.TeamB)
	if err != nil {
		return view.ScoreboardData{}, err
	}
	return view.ScoreboardData{
		TeamA:         a,
		TeamB:         b,
		TeamAScore:    sb.TeamAScore,
		TeamBScore:    sb.TeamBScore,
		TeamAStanding: sb.TeamAStanding,
		TeamBStanding: sb.TeamBStanding,
		Logo:          sb.Logo,
	}, nil
}

func championshipPhase(ctx context.Context, st Store, overlayID string) (*string, error) {
	sb, err := st.Scoreboard(ctx, overlayID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sb.ChampionshipPhase, nil
}

func optionalCasters(ctx context.Context, st Store, overlayID string) (*overlay.CasterPair, error) {
	pair, err := st.CasterPair(ctx, overlayID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func hasFragment(kind fanout.Kind) bool {
	switch kind {
	case fanout.KindTest, fanout.KindWebsocketEvent, fanout.KindAny:
		return false
	}
	return true
}

// fragment renders the current state of the surface an event kind refreshes.
func fragment(ctx context.Context, st Store, overlayID string, kind fanout.Kind) (templ.Component, error) {
	switch kind {
	case fanout.KindIngameOverlayUpdate:
		d, err := scoreboardData(ctx, st, overlayID)
		if err != nil {
			return nil, err
		}
		return view.Scoreboard(d), nil
	case fanout.KindChampionshipPhaseUpdate:
		phase, err := championshipPhase(ctx, st, overlayID)
		if err != nil {
			return nil, err
		}
		return view.ChampionshipPhase(phase), nil
	case fanout.KindCasterOverlayUpdate:
		pair, err := optionalCasters(ctx, st, overlayID)
		if err != nil {
			return nil, err
		}
		return view.CastersContent(pair), nil
	case fanout.KindTodaysMatchesUpdate, fanout.KindNextMatchInfoUpdate:
		matches, err := st.OverlayMatches(ctx, overlayID)
		if err != nil {
			return nil, err
		}
		if kind == fanout.KindTodaysMatchesUpdate {
			return view.TodaysMatches(matches), nil
		}
		return view.NextMatchInfo(matches), nil
	case fanout.KindWaitInfoUpdate, fanout.KindWaitInfoStandaloneUpdate:
		wt, err := optionalWaitTimer(ctx, st, overlayID)
		if err != nil {
			return nil, err
		}
		if kind == fanout.KindWaitInfoUpdate {
			return view.WaitInfo(overlayID, wt), nil
		}
		return view.StandaloneWaitInfo(overlayID, wt), nil
	default:
		return nil, errStatus(http.StatusNotFound, "no partial for "+string(kind))
	}
}

func handleIngamePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templ.Handler(view.IngamePage(overlayFrom(r).ID)).ServeHTTP(w, r)
	}
}

func handleScoreboard(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := scoreboardData(r.Context(), st, overlayFrom(r).ID)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.Scoreboard(d)).ServeHTTP(w, r)
	}
}

func handleChampionshipPhase(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		phase, err := championshipPhase(r.Context(), st, id)
		if err != nil {
			fail(w, logger, err)
			return
		}
		view.RenderPage(w, r, view.ChampionshipPhase(phase), view.ChampionshipPhasePage(id, phase))
	}
}

func handleCastersPage(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		pair, err := optionalCasters(r.Context(), st, id)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.CastersPage(id, pair)).ServeHTTP(w, r)
	}
}

func handleWaitingPage(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		wt, err := optionalWaitTimer(r.Context(), st, id)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.WaitingPage(id, wt)).ServeHTTP(w, r)
	}
}

func handleTimer(logger *slog.Logger, st Store, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wt, err := optionalWaitTimer(r.Context(), st, overlayFrom(r).ID)
		if err != nil {
			fail(w, logger, err)
			return
		}
		var remaining time.Duration
		if wt != nil {
			remaining = wt.Remaining(now())
		}
		templ.Handler(view.Timer(remaining)).ServeHTTP(w, r)
	}
}

func handleStandaloneTimer(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		wt, err := optionalWaitTimer(r.Context(), st, id)
		if err != nil {
			fail(w, logger, err)
			return
		}
		view.RenderPage(w, r, view.StandaloneWaitInfo(id, wt), view.StandaloneTimerPage(id, wt))
	}
}

func handleTodaysMatches(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := st.OverlayMatches(r.Context(), overlayFrom(r).ID)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.TodaysMatches(matches)).ServeHTTP(w, r)
	}
}

func handleNextMatch(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		matches, err := st.OverlayMatches(r.Context(), id)
		if err != nil {
			fail(w, logger, err)
			return
		}
		view.RenderPage(w, r, view.NextMatchInfo(matches), view.NextMatchPage(id, matches))
	}
}

func handleBackground() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templ.Handler(view.Background(overlayFrom(r).ID)).ServeHTTP(w, r)
	}
}

// handlePartial serves one live surface by event kind: the current fragment
// to htmx, a shell page that loads and subscribes to it otherwise.
func handlePartial(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID
		kind, err := fanout.ParseKind(r.URL.Query().Get("name"))
		if err != nil || kind == fanout.KindAny {
			writeError(w, http.StatusBadRequest, "unknown partial name")
			return
		}

		if !view.IsHTMX(r) {
			if !hasFragment(kind) {
				writeError(w, http.StatusNotFound, "no partial for "+string(kind))
				return
			}
			templ.Handler(view.Partial(id, string(kind))).ServeHTTP(w, r)
			return
		}

		c, err := fragment(r.Context(), st, id, kind)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(c).ServeHTTP(w, r)
	}
}
