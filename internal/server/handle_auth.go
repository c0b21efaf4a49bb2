package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omega-championship/overlays/internal/cookie"
)

const (
	oauthCookieMaxAge = 5 * time.Minute
	defaultGoto       = "/app"
)

func handleLogin(logger *slog.Logger, sg StartGG, cookies *cookie.Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := newOAuthState()
		if err != nil {
			fail(w, logger, err)
			return
		}

		dest := r.URL.Query().Get("next")
		if !isLocalPath(dest) {
			dest = defaultGoto
		}

		if err := cookies.Set(w, cookieOAuthState, state, oauthCookieMaxAge); err != nil {
			fail(w, logger, err)
			return
		}
		if err := cookies.Set(w, cookieRedirectGoto, dest, oauthCookieMaxAge); err != nil {
			fail(w, logger, err)
			return
		}

		http.Redirect(w, r, sg.AuthorizeURL(state), http.StatusTemporaryRedirect)
	}
}

func handleOAuthCallback(logger *slog.Logger, sg StartGG, cookies *cookie.Codec, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		want, err := cookies.Get(r, cookieOAuthState)
		if err != nil || q.Get("state") == "" || q.Get("state") != want {
			logger.Warn("oauth state mismatch or cookie missing")
			writeError(w, http.StatusBadRequest, "oauth state mismatch, try logging in again")
			return
		}
		code := q.Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		tok, err := sg.ExchangeCode(r.Context(), code)
		if err != nil {
			fail(w, logger, err)
			return
		}
		logger.Info("start.gg login", "expires_in", tok.ExpiresIn)

		if err := setTokens(w, cookies, tok, now()); err != nil {
			fail(w, logger, err)
			return
		}

		dest, err := cookies.Get(r, cookieRedirectGoto)
		if err != nil || !isLocalPath(dest) {
			dest = defaultGoto
		}
		cookies.Clear(w, cookieOAuthState)
		cookies.Clear(w, cookieRedirectGoto)

		http.Redirect(w, r, dest, http.StatusTemporaryRedirect)
	}
}

func handleLogout(cookies *cookie.Codec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearTokens(w, cookies)
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	}
}

func newOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// isLocalPath rejects anything that could send the browser off-site.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, `/\`)
}
