package startgg

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/omega-championship/overlays/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.StartGG{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/oauth/startgg_callback",
		GraphQLURL:   srv.URL + "/gql",
		AuthorizeURL: "https://start.gg/oauth/authorize",
		TokenURL:     srv.URL + "/token",
	}, srv.Client())
}

func decodeGraphQL(t *testing.T, r *http.Request) graphqlRequest {
	t.Helper()
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Errorf("decoding request: %v", err)
	}
	return req
}

func TestCurrentUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		req := decodeGraphQL(t, r)
		if !strings.Contains(req.Query, "currentUser") {
			t.Errorf("unexpected query %q", req.Query)
		}
		w.Write([]byte(`{"data":{"currentUser":{"id":123,"slug":"user/abc","player":{"gamerTag":"Kiwi"}}}}`))
	})

	u, err := c.CurrentUser(t.Context(), "tok")
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if u.ID != "123" || u.Slug != "user/abc" || u.GamerTag == nil || *u.GamerTag != "Kiwi" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestCurrentUserFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "non-2xx",
			status: http.StatusUnauthorized,
			body:   `{"message":"Invalid authentication token"}`,
			check: func(err error) bool {
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.StatusCode == 401 && strings.Contains(apiErr.Body, "Invalid")
			},
		},
		{
			name:   "graphql errors",
			status: http.StatusOK,
			body:   `{"errors":[{"message":"boom"}]}`,
			check:  func(err error) bool { return err != nil && strings.Contains(err.Error(), "boom") },
		},
		{
			name:   "no data",
			status: http.StatusOK,
			body:   `{"data":null}`,
			check:  func(err error) bool { return errors.Is(err, ErrNoData) },
		},
		{
			name:   "missing user",
			status: http.StatusOK,
			body:   `{"data":{"currentUser":null}}`,
			check:  func(err error) bool { return errors.Is(err, ErrNoData) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.CurrentUser(t.Context(), "tok")
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOrganizedTournamentsKeepsAdministered(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		if req.Variables["perPage"] != float64(25) || req.Variables["page"] != float64(1) {
			t.Errorf("unexpected variables %v", req.Variables)
		}
		w.Write([]byte(`{"data":{"currentUser":{"tournaments":{"nodes":[
			{"name":"Omega Cup","slug":"tournament/omega-cup","url":"/tournament/omega-cup","images":[{"url":"https://img/1.png","width":100,"height":100},{"url":null}],"admins":[{"id":1}]},
			{"name":"Someone Else","slug":"tournament/else","url":"/tournament/else","images":[],"admins":null},
			null,
			{"name":null,"slug":"tournament/broken","admins":[]}
		]}}}}`))
	})

	got, err := c.OrganizedTournaments(t.Context(), "tok")
	if err != nil {
		t.Fatalf("OrganizedTournaments: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tournaments, want 1: %+v", len(got), got)
	}
	if got[0].Slug != "tournament/omega-cup" || len(got[0].Images) != 1 {
		t.Fatalf("unexpected tournament %+v", got[0])
	}
}

func TestTournament(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		if req.Variables["slug"] != "omega-cup" {
			t.Errorf("slug = %v", req.Variables["slug"])
		}
		w.Write([]byte(`{"data":{"tournament":{"name":"Omega Cup","slug":"tournament/omega-cup","url":"/t","images":[]}}}`))
	})
	got, err := c.Tournament(t.Context(), "tok", "omega-cup")
	if err != nil {
		t.Fatalf("Tournament: %v", err)
	}
	if got.Name != "Omega Cup" {
		t.Fatalf("name = %q", got.Name)
	}

	missing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"tournament":null}}`))
	})
	if _, err := missing.Tournament(t.Context(), "tok", "nope"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestTournamentTeamsPaginatesAndDedupes(t *testing.T) {
	pages := map[float64]string{
		1: `{"data":{"tournament":{"events":[
			{"entrants":{"pageInfo":{"totalPages":2},"nodes":[
				{"id":1,"name":"Aces","participants":[{"gamerTag":"a1"},{"gamerTag":"a2"}],"team":{"images":[{"url":"https://img/aces.png","type":"profile"}]}},
				{"id":2,"name":"Bolts","participants":[],"team":null}
			]}},
			{"entrants":{"pageInfo":{"totalPages":1},"nodes":[
				{"id":1,"name":"Aces","participants":[],"team":null}
			]}}
		]}}}`,
		2: `{"data":{"tournament":{"events":[
			{"entrants":{"pageInfo":{"totalPages":2},"nodes":[
				{"id":"3","name":"Comets","participants":[{"gamerTag":"c1"}],"team":null}
			]}},
			{"entrants":{"pageInfo":{"totalPages":1},"nodes":[]}}
		]}}}`,
	}
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		req := decodeGraphQL(t, r)
		body, ok := pages[req.Variables["page"].(float64)]
		if !ok {
			t.Errorf("unexpected page %v", req.Variables["page"])
		}
		w.Write([]byte(body))
	})

	teams, err := c.TournamentTeams(t.Context(), "tok", "omega-cup")
	if err != nil {
		t.Fatalf("TournamentTeams: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
	if len(teams) != 3 {
		t.Fatalf("got %d teams, want 3: %+v", len(teams), teams)
	}
	if teams[0].ID != "1" || len(teams[0].Members) != 2 || teams[0].ImageURL == nil {
		t.Fatalf("unexpected first team %+v", teams[0])
	}
	if teams[2].ID != "3" || teams[2].Name != "Comets" {
		t.Fatalf("unexpected third team %+v", teams[2])
	}
}

func TestExchangeCodeAndRefresh(t *testing.T) {
	requests := make(chan tokenRequest, 2)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding token request: %v", err)
		}
		requests <- body
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600}`))
	})

	tok, err := c.ExchangeCode(t.Context(), "code-1")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" || tok.ExpiresIn != 3600 {
		t.Fatalf("unexpected token %+v", tok)
	}
	last := <-requests
	if last.GrantType != "authorization_code" || last.Code != "code-1" || last.Scope != Scopes || last.ClientSecret != "secret" {
		t.Fatalf("unexpected exchange body %+v", last)
	}

	if _, err := c.Refresh(t.Context(), "rt"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	last = <-requests
	if last.GrantType != "refresh_token" || last.RefreshToken != "rt" {
		t.Fatalf("unexpected refresh body %+v", last)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad code", http.StatusBadRequest)
	})
	_, err := c.ExchangeCode(t.Context(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected APIError 400, got %v", err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	c := New(config.StartGG{ClientID: "cid", RedirectURI: "http://localhost/cb", AuthorizeURL: "https://start.gg/oauth/authorize"}, nil)
	u, err := url.Parse(c.AuthorizeURL("st4te"))
	if err != nil {
		t.Fatalf("parsing url: %v", err)
	}
	q := u.Query()
	want := map[string]string{
		"response_type": "code",
		"client_id":     "cid",
		"scope":         Scopes,
		"redirect_uri":  "http://localhost/cb",
		"state":         "st4te",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
}
