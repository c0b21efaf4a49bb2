package server

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/omega-championship/overlays/internal/view"
)

func viewerOf(sess *Session) *view.Viewer {
	if sess == nil {
		return nil
	}
	v := &view.Viewer{Slug: sess.User.Slug, GamerTag: sess.User.Slug}
	if sess.User.GamerTag != nil {
		v.GamerTag = *sess.User.GamerTag
	}
	return v
}

func handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templ.Handler(view.Index(viewerOf(sessionFrom(r)))).ServeHTTP(w, r)
	}
}

func handleTournaments(logger *slog.Logger, sg StartGG) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		tournaments, err := sg.OrganizedTournaments(r.Context(), sess.AccessToken)
		if err != nil {
			fail(w, logger, err)
			return
		}
		templ.Handler(view.Tournaments(viewerOf(sess), tournaments)).ServeHTTP(w, r)
	}
}
