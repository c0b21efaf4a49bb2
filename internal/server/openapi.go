package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi31"
	"github.com/swaggest/swgui/v5emb"

	"github.com/omega-championship/overlays/internal/fanout"
)

// ErrorResponse is returned for all JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each dependency to "ok", "degraded" or "error".
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type sseRequest struct {
	Event   string `query:"event" description:"Only events of this kind."`
	Channel string `query:"channel" description:"Only events sent to this channel, such as overlay_<id>."`
}

type sendSSERequest struct {
	Channel string `query:"channel" description:"Target channel; broadcast when empty."`
}

type sendSSEResponse struct {
	Delivered int `json:"delivered"`
}

type loginRequest struct {
	Next string `query:"next" description:"Local path to return to after login."`
}

type callbackRequest struct {
	Code  string `query:"code" required:"true"`
	State string `query:"state" required:"true"`
}

type overlayPathParams struct {
	OverlayID string `path:"overlayID"`
}

type partialRequest struct {
	OverlayID string `path:"overlayID"`
	Name      string `query:"name" required:"true"`
}

type tournamentPath struct {
	Slug string `path:"slug"`
}

type overlayRenameRequest struct {
	Slug      string `path:"slug"`
	OverlayID string `path:"overlayID"`
	Name      string `formData:"name"`
}

type ingameRequest struct {
	Slug              string `path:"slug"`
	OverlayID         string `path:"overlayID"`
	TeamA             string `formData:"team_a" required:"true"`
	TeamB             string `formData:"team_b" required:"true"`
	TeamAScore        int    `formData:"team_a_score" minimum:"0"`
	TeamBScore        int    `formData:"team_b_score" minimum:"0"`
	TeamAStanding     string `formData:"team_a_standing"`
	TeamBStanding     string `formData:"team_b_standing"`
	ChampionshipPhase string `formData:"championship_phase"`
	Logo              string `formData:"logo"`
}

type castersRequest struct {
	Slug           string `path:"slug"`
	OverlayID      string `path:"overlayID"`
	Narrator       string `formData:"narrator" required:"true"`
	NarratorVideo  string `formData:"narrator_video"`
	Commenter      string `formData:"commenter" required:"true"`
	CommenterVideo string `formData:"commenter_video"`
}

type timerRequest struct {
	Slug           string `path:"slug"`
	OverlayID      string `path:"overlayID"`
	WaitType       string `formData:"wait_type" enum:"nothing,starting,break,ending" required:"true"`
	WaitingUntil   string `formData:"waiting_until" required:"true" description:"Local time as 2006-01-02T15:04."`
	TimezoneOffset int    `formData:"timezone_offset" description:"Minutes west of UTC, as JavaScript getTimezoneOffset."`
}

type matchesRequest struct {
	Slug       string   `path:"slug"`
	OverlayID  string   `path:"overlayID"`
	Existing   []string `formData:"existing_match_id" description:"Ids the editor loaded; missing ones are detached."`
	IDs        []string `formData:"match_id" description:"Row UUIDs in display order."`
	TeamA      []string `formData:"team_a"`
	TeamB      []string `formData:"team_b"`
	TeamAScore []int    `formData:"team_a_score"`
	TeamBScore []int    `formData:"team_b_score"`
	Completed  []string `formData:"completed"`
	InProgress []string `formData:"in_progress"`
	Featured   []string `formData:"featured"`
}

func htmlResponse(status int) []openapi.ContentOption {
	return []openapi.ContentOption{openapi.WithHTTPStatus(status), openapi.WithContentType("text/html")}
}

func newOpenAPISpec() *openapi31.Spec {
	r := openapi31.NewReflector()
	r.Spec.Info.Title = "Overlays API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Tournament stream overlays driven by start.gg.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /sse
	getSSE, _ := r.NewOperationContext(http.MethodGet, "/sse")
	getSSE.SetSummary("Live event stream")
	getSSE.SetDescription("Server-Sent Events carrying rendered overlay fragments. " +
		"The SSE event name is the event kind; a resync event reports dropped events.")
	getSSE.AddReqStructure(sseRequest{})
	getSSE.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	getSSE.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getSSE)

	// GET /send-sse
	getSendSSE, _ := r.NewOperationContext(http.MethodGet, "/send-sse")
	getSendSSE.SetSummary("Send a test event")
	getSendSSE.SetDescription("Publishes a test event. Requires a start.gg session.")
	getSendSSE.AddReqStructure(sendSSERequest{})
	getSendSSE.AddRespStructure(sendSSEResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getSendSSE.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getSendSSE)

	// GET /login
	getLogin, _ := r.NewOperationContext(http.MethodGet, "/login")
	getLogin.SetSummary("Log in with start.gg")
	getLogin.SetDescription("Redirects to the start.gg authorization page.")
	getLogin.AddReqStructure(loginRequest{})
	getLogin.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusTemporaryRedirect))
	_ = r.AddOperation(getLogin)

	// GET /oauth/startgg_callback
	getCallback, _ := r.NewOperationContext(http.MethodGet, "/oauth/startgg_callback")
	getCallback.SetSummary("start.gg OAuth callback")
	getCallback.SetDescription("Exchanges the authorization code and stores the sealed token cookies.")
	getCallback.AddReqStructure(callbackRequest{})
	getCallback.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusTemporaryRedirect))
	getCallback.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getCallback)

	// GET /logout
	getLogout, _ := r.NewOperationContext(http.MethodGet, "/logout")
	getLogout.SetSummary("Log out")
	getLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusTemporaryRedirect))
	_ = r.AddOperation(getLogout)

	// GET /app/tournament/{slug}
	getSetup, _ := r.NewOperationContext(http.MethodGet, "/app/tournament/{slug}")
	getSetup.SetSummary("Tournament setup")
	getSetup.SetDescription("Overlay manager for a tournament the user organizes.")
	getSetup.AddReqStructure(tournamentPath{})
	getSetup.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	getSetup.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getSetup)

	// PATCH /app/tournament/{slug}/overlay/{overlayID}
	patchOverlay, _ := r.NewOperationContext(http.MethodPatch, "/app/tournament/{slug}/overlay/{overlayID}")
	patchOverlay.SetSummary("Rename overlay")
	patchOverlay.AddReqStructure(overlayRenameRequest{})
	patchOverlay.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	patchOverlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	patchOverlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(patchOverlay)

	// PUT /app/tournament/{slug}/overlay/{overlayID}/ingame
	putIngame, _ := r.NewOperationContext(http.MethodPut, "/app/tournament/{slug}/overlay/{overlayID}/ingame")
	putIngame.SetSummary("Update scoreboard")
	putIngame.SetDescription("Stores the scoreboard and pushes " + string(fanout.KindIngameOverlayUpdate) + ", " +
		string(fanout.KindChampionshipPhaseUpdate) + " and " + string(fanout.KindWebsocketEvent) + " events.")
	putIngame.AddReqStructure(ingameRequest{})
	putIngame.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	putIngame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putIngame)

	// PUT /app/tournament/{slug}/overlay/{overlayID}/casters
	putCasters, _ := r.NewOperationContext(http.MethodPut, "/app/tournament/{slug}/overlay/{overlayID}/casters")
	putCasters.SetSummary("Update casters")
	putCasters.AddReqStructure(castersRequest{})
	putCasters.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	putCasters.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(putCasters)

	// POST /app/tournament/{slug}/overlay/{overlayID}/waiting/timer
	postTimer, _ := r.NewOperationContext(http.MethodPost, "/app/tournament/{slug}/overlay/{overlayID}/waiting/timer")
	postTimer.SetSummary("Set wait timer")
	postTimer.AddReqStructure(timerRequest{})
	postTimer.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	postTimer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postTimer)

	// POST /app/tournament/{slug}/overlay/{overlayID}/waiting/matches
	postMatches, _ := r.NewOperationContext(http.MethodPost, "/app/tournament/{slug}/overlay/{overlayID}/waiting/matches")
	postMatches.SetSummary("Update today's matches")
	postMatches.SetDescription("Validates every row, then stores them in form order and pushes " +
		string(fanout.KindTodaysMatchesUpdate) + " and " + string(fanout.KindNextMatchInfoUpdate) + " events.")
	postMatches.AddReqStructure(matchesRequest{})
	postMatches.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	postMatches.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postMatches.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postMatches)

	// GET /stream_overlay/{overlayID}/partial
	getPartial, _ := r.NewOperationContext(http.MethodGet, "/stream_overlay/{overlayID}/partial")
	getPartial.SetSummary("Overlay partial")
	getPartial.SetDescription("The fragment for an event kind to htmx requests, a live shell page otherwise.")
	getPartial.AddReqStructure(partialRequest{})
	getPartial.AddRespStructure(nil, htmlResponse(http.StatusOK)...)
	getPartial.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getPartial.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getPartial)

	// GET /stream_overlay/{overlayID}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/stream_overlay/{overlayID}/ws")
	getWS.SetSummary("Overlay websocket")
	getWS.SetDescription("Upgrades to a WebSocket that receives the overlay's " + string(fanout.KindWebsocketEvent) + " payloads.")
	getWS.AddReqStructure(overlayPathParams{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getWS.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.HandlerFunc {
	return v5emb.New("Overlays API", "/openapi.json", "/docs").ServeHTTP
}
