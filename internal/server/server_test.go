package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omega-championship/overlays/internal/cookie"
	"github.com/omega-championship/overlays/internal/database"
	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/migrations"
	"github.com/omega-championship/overlays/internal/overlay"
	"github.com/omega-championship/overlays/internal/startgg"
	"github.com/omega-championship/overlays/internal/store"
)

const (
	testToken = "tok"
	testSlug  = "tournament/cup"
)

// fakeStartGG answers like start.gg for a fixed set of tokens.
type fakeStartGG struct {
	mu          sync.Mutex
	users       map[string]startgg.User
	tournaments []overlay.Tournament
	teams       []overlay.Team
	codes       map[string]startgg.Token
	refreshes   map[string]startgg.Token
}

func newFakeStartGG() *fakeStartGG {
	tag := "Organizer"
	return &fakeStartGG{
		users: map[string]startgg.User{testToken: {ID: "1", Slug: "user/abc", GamerTag: &tag}},
		tournaments: []overlay.Tournament{
			{Name: "Omega Cup", Slug: testSlug, URL: "https://start.gg/" + testSlug},
		},
		teams: []overlay.Team{
			{ID: "t1", Name: "Alpha"},
			{ID: "t2", Name: "Bravo"},
			{ID: "t3", Name: "Charlie"},
		},
		codes:     map[string]startgg.Token{},
		refreshes: map[string]startgg.Token{},
	}
}

var errUnauthorized = &startgg.APIError{StatusCode: http.StatusUnauthorized, Body: "invalid token"}

func (f *fakeStartGG) AuthorizeURL(state string) string {
	return "https://start.gg/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeStartGG) ExchangeCode(_ context.Context, code string) (startgg.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.codes[code]
	if !ok {
		return startgg.Token{}, &startgg.APIError{StatusCode: http.StatusBadRequest, Body: "invalid code"}
	}
	return tok, nil
}

func (f *fakeStartGG) Refresh(_ context.Context, refreshToken string) (startgg.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.refreshes[refreshToken]
	if !ok {
		return startgg.Token{}, errUnauthorized
	}
	return tok, nil
}

func (f *fakeStartGG) CurrentUser(_ context.Context, token string) (startgg.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return startgg.User{}, errUnauthorized
	}
	return u, nil
}

func (f *fakeStartGG) OrganizedTournaments(_ context.Context, token string) ([]overlay.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[token]; !ok {
		return nil, errUnauthorized
	}
	return f.tournaments, nil
}

func (f *fakeStartGG) Tournament(_ context.Context, _, slug string) (overlay.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tournaments {
		if t.Slug == slug {
			return t, nil
		}
	}
	return overlay.Tournament{}, startgg.ErrNoData
}

func (f *fakeStartGG) TournamentTeams(context.Context, string, string) ([]overlay.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teams, nil
}

type testEnv struct {
	router  http.Handler
	store   *store.SQLiteStore
	hub     *fanout.Hub
	cookies *cookie.Codec
	sg      *fakeStartGG
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	codec, err := cookie.NewCodec("test secret", false)
	if err != nil {
		t.Fatalf("cookie codec: %v", err)
	}

	env := &testEnv{
		store:   store.NewSQLiteStore(db),
		hub:     fanout.NewHub(32),
		cookies: codec,
		sg:      newFakeStartGG(),
	}
	t.Cleanup(env.hub.Close)

	r := chi.NewRouter()
	addRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Store:     env.store,
		StartGG:   env.sg,
		Cookies:   codec,
		Publisher: env.hub,
		Events:    env.hub,
		KeepAlive: 50 * time.Millisecond,
		WSOrigins: []string{"obs.example"},
	})
	env.router = r
	return env
}

// sealed builds the cookies a browser would send back.
func (e *testEnv) sealed(t *testing.T, values map[string]string) []*http.Cookie {
	t.Helper()
	var out []*http.Cookie
	for name, v := range values {
		s, err := e.cookies.Seal(name, v)
		if err != nil {
			t.Fatalf("sealing %s: %v", name, err)
		}
		out = append(out, &http.Cookie{Name: name, Value: s})
	}
	return out
}

func (e *testEnv) session(t *testing.T) []*http.Cookie {
	return e.sealed(t, map[string]string{
		cookieAccessToken:  testToken,
		cookieExpiresAt:    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		cookieRefreshToken: "refresh",
	})
}

type request struct {
	method  string
	path    string
	form    url.Values
	cookies []*http.Cookie
	htmx    bool
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.htmx {
		r.Header.Set("HX-Request", "true")
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) createOverlay(t *testing.T, slug string) overlay.Overlay {
	t.Helper()
	ov, err := e.store.CreateOverlay(context.Background(), slug)
	if err != nil {
		t.Fatalf("CreateOverlay: %v", err)
	}
	return ov
}

func (e *testEnv) seedTeams(t *testing.T) {
	t.Helper()
	for _, team := range e.sg.teams {
		if err := e.store.UpsertTeam(context.Background(), testSlug, team); err != nil {
			t.Fatalf("UpsertTeam: %v", err)
		}
	}
}

// drain returns the events already queued on sub.
func drain(sub *fanout.Subscription) []fanout.Event {
	var out []fanout.Event
	for {
		select {
		case ev := <-sub.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestStructuredLogger(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := chi.NewRouter()
	r.Use(newStructuredLogger(logger))
	r.Get("/stream_overlay/{overlayID}/sse", func(w http.ResponseWriter, _ *http.Request) {
		w.(http.Flusher).Flush()
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {})

	for _, path := range []string{"/stream_overlay/o1/sse", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("logged %d lines, want 1 (health probes are debug):\n%s", len(lines), buf.String())
	}
	var entry struct {
		Status    int    `json:"status"`
		OverlayID string `json:"overlay_id"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if entry.Status != http.StatusOK || entry.OverlayID != "o1" {
		t.Errorf("log entry = %+v, want status 200 for overlay o1", entry)
	}
}
