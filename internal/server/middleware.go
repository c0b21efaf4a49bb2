package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omega-championship/overlays/internal/cookie"
	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/startgg"
	"github.com/omega-championship/overlays/internal/store"
	"github.com/omega-championship/overlays/internal/view"
)

type ctxKey int

const (
	ctxKeySession ctxKey = iota
	ctxKeyTournament
	ctxKeyOverlay
)

const (
	cookieAccessToken  = "sg_access_token"
	cookieRefreshToken = "sg_refresh_token"
	cookieExpiresAt    = "sg_expires_at"
	cookieOAuthState   = "sg_oauth_state"
	cookieRedirectGoto = "sg_oauth_redirect_goto"

	refreshTokenMaxAge = 30 * 24 * time.Hour
	expiryLeeway       = 60 * time.Second
)

// Session is the authenticated start.gg organizer behind a request.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	User        startgg.User
}

// sessionMiddleware attaches a Session when the token cookies hold a valid
// access token, refreshing it first when it is about to expire. Requests
// without usable cookies pass through anonymously.
func sessionMiddleware(logger *slog.Logger, sg StartGG, cookies *cookie.Codec, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, errA := cookies.Get(r, cookieAccessToken)
			rawExpiry, errE := cookies.Get(r, cookieExpiresAt)
			if errA != nil || errE != nil {
				if errors.Is(errA, cookie.ErrInvalid) || errors.Is(errE, cookie.ErrInvalid) {
					clearTokens(w, cookies)
				}
				next.ServeHTTP(w, r)
				return
			}

			expiresAt, err := time.Parse(time.RFC3339, rawExpiry)
			if err != nil {
				clearTokens(w, cookies)
				next.ServeHTTP(w, r)
				return
			}

			if !now().Before(expiresAt.Add(-expiryLeeway)) {
				refresh, err := cookies.Get(r, cookieRefreshToken)
				if err != nil {
					clearTokens(w, cookies)
					next.ServeHTTP(w, r)
					return
				}
				tok, err := sg.Refresh(r.Context(), refresh)
				if err != nil {
					logger.Warn("refreshing start.gg token", "error", err)
					clearTokens(w, cookies)
					next.ServeHTTP(w, r)
					return
				}
				if err := setTokens(w, cookies, tok, now()); err != nil {
					fail(w, logger, err)
					return
				}
				w.Header().Set("X-Set-Access-Token", tok.AccessToken)
				access, expiresAt = tok.AccessToken, tok.ExpiresAt(now())
			}

			user, err := sg.CurrentUser(r.Context(), access)
			if err != nil {
				logger.Debug("start.gg token rejected", "error", err)
				clearTokens(w, cookies)
				next.ServeHTTP(w, r)
				return
			}

			sess := &Session{AccessToken: access, ExpiresAt: expiresAt, User: user}
			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setTokens stores a fresh token set. The access token cookie dies a minute
// before start.gg expires it.
func setTokens(w http.ResponseWriter, cookies *cookie.Codec, tok startgg.Token, now time.Time) error {
	maxAge := time.Duration(tok.ExpiresIn)*time.Second - expiryLeeway
	if maxAge < time.Second {
		maxAge = time.Second
	}
	if err := cookies.Set(w, cookieAccessToken, tok.AccessToken, maxAge); err != nil {
		return err
	}
	if err := cookies.Set(w, cookieExpiresAt, tok.ExpiresAt(now).UTC().Format(time.RFC3339), maxAge); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		return cookies.Set(w, cookieRefreshToken, tok.RefreshToken, refreshTokenMaxAge)
	}
	return nil
}

func clearTokens(w http.ResponseWriter, cookies *cookie.Codec) {
	cookies.Clear(w, cookieAccessToken)
	cookies.Clear(w, cookieRefreshToken)
	cookies.Clear(w, cookieExpiresAt)
}

// requireSession sends anonymous browser navigations through /login and
// answers everything else with 401.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r) != nil {
			next.ServeHTTP(w, r)
			return
		}
		if wantsHTML(r) {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		writeError(w, http.StatusUnauthorized, "not authenticated")
	})
}

// wantsHTML is true for top-level page loads by a browser.
func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && !view.IsHTMX(r) && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// tournamentAccess lets through organizers of the {slug} tournament.
func tournamentAccess(logger *slog.Logger, sg StartGG) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r)
			slug := tournamentSlug(r)

			tournaments, err := sg.OrganizedTournaments(r.Context(), sess.AccessToken)
			if err != nil {
				fail(w, logger, err)
				return
			}
			for _, t := range tournaments {
				if t.Slug == slug {
					ctx := context.WithValue(r.Context(), ctxKeyTournament, t)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			writeError(w, http.StatusForbidden, "not an organizer of "+slug)
		})
	}
}

// overlayAccess loads {overlayID} and checks it belongs to the tournament
// being managed.
func overlayAccess(logger *slog.Logger, st Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ov, err := st.Overlay(r.Context(), chi.URLParam(r, "overlayID"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "overlay not found")
				return
			}
			if err != nil {
				fail(w, logger, err)
				return
			}
			if ov.TournamentSlug != tournamentSlug(r) {
				writeError(w, http.StatusForbidden, "overlay belongs to another tournament")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyOverlay, ov)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *Session {
	sess, _ := r.Context().Value(ctxKeySession).(*Session)
	return sess
}

// tournamentSlug is the {slug} route parameter. start.gg slugs contain a
// slash ("tournament/<name>"), so the route captures only the name part.
func tournamentSlug(r *http.Request) string {
	return "tournament/" + chi.URLParam(r, "slug")
}

func tournamentFrom(r *http.Request) overlay.Tournament {
	return r.Context().Value(ctxKeyTournament).(overlay.Tournament)
}

func overlayFrom(r *http.Request) overlay.Overlay {
	return r.Context().Value(ctxKeyOverlay).(overlay.Overlay)
}
