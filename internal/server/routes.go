package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omega-championship/overlays/internal/view"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	now := time.Now
	st, sg, cookies := deps.Store, deps.StartGG, deps.Cookies
	pub := publisher{pub: deps.Publisher, logger: logger}

	r.NotFound(handleNotFound())

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", handleSwaggerUI())
	r.Get("/sse", handleSSE(logger, deps.Events, deps.KeepAlive))
	r.Mount("/assets", handleAssets(view.Assets))

	r.Get("/login", handleLogin(logger, sg, cookies))
	r.Get("/oauth/startgg_callback", handleOAuthCallback(logger, sg, cookies, now))
	r.Get("/logout", handleLogout(cookies))

	// Stream overlays are opened by OBS browser sources and stay public.
	r.Route("/stream_overlay/{overlayID}", func(r chi.Router) {
		r.Use(publicOverlay(logger, st))
		r.Get("/ingame", handleIngamePage())
		r.Get("/ingame/scoreboard", handleScoreboard(logger, st))
		r.Get("/ingame/championship_phase", handleChampionshipPhase(logger, st))
		r.Get("/casters", handleCastersPage(logger, st))
		r.Get("/waiting", handleWaitingPage(logger, st))
		r.Get("/waiting/timer", handleTimer(logger, st, now))
		r.Get("/waiting/standalone_timer", handleStandaloneTimer(logger, st))
		r.Get("/waiting/todays_matches", handleTodaysMatches(logger, st))
		r.Get("/waiting/next_match", handleNextMatch(logger, st))
		r.Get("/background", handleBackground())
		r.Get("/partial", handlePartial(logger, st))
		r.Get("/ws", handleOverlayWS(logger, deps.Events, deps.WSOrigins))
	})

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware(logger, sg, cookies, now))
		r.Get("/", handleIndex())

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/send-sse", handleSendSSE(logger, deps.Publisher))

			r.Route("/app", func(r chi.Router) {
				r.Get("/", handleTournaments(logger, sg))
				r.Get("/tournament", handleTournaments(logger, sg))

				r.Route("/tournament/{slug}", func(r chi.Router) {
					r.Use(tournamentAccess(logger, sg))
					r.Get("/", handleTournamentSetup(logger, sg, st))
					r.Put("/overlay", handleCreateOverlay(logger, st))

					r.Route("/overlay/{overlayID}", func(r chi.Router) {
						r.Use(overlayAccess(logger, st))
						r.Patch("/", handleRenameOverlay(logger, st))
						r.Delete("/", handleDeleteOverlay(logger, st))
						r.Get("/teams", handleTeamsSetup(logger, sg, st))
						r.Post("/teams/nickname", handleTeamNickname(logger, st))
						r.Put("/ingame", handleUpdateIngame(logger, st, pub))
						r.Get("/casters", handleCastersSetup(logger, st))
						r.Put("/casters", handleUpdateCasters(logger, st, pub))
						r.Get("/waiting", handleWaitingSetup(logger, sg, st))
						r.Post("/waiting/matches", handleUpdateMatches(logger, st, pub))
						r.Post("/waiting/timer", handleUpdateTimer(logger, st, pub))
					})
				})
			})
		})
	})
}
