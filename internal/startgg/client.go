// Package startgg talks to the start.gg GraphQL API and its OAuth endpoints.
package startgg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omega-championship/overlays/internal/config"
)

// Scopes requested at login.
const Scopes = "user.identity user.email tournament.manager tournament.reporter"

// APIError is a non-2xx answer from start.gg.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("start.gg responded %d: %s", e.StatusCode, e.Body)
}

var ErrNoData = errors.New("start.gg returned no data")

type Client struct {
	http         *http.Client
	graphqlURL   string
	authorizeURL string
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
}

func New(cfg config.StartGG, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		http:         hc,
		graphqlURL:   cfg.GraphQLURL,
		authorizeURL: cfg.AuthorizeURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse[T any] struct {
	Data   *T             `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// query posts a GraphQL document authenticated with the user's token and
// decodes its data into T.
func query[T any](ctx context.Context, c *Client, token, doc string, vars map[string]any) (*T, error) {
	body, err := json.Marshal(graphqlRequest{Query: doc, Variables: vars})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var out graphqlResponse[T]
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("start.gg graphql: %s", strings.Join(msgs, "; "))
	}
	if out.Data == nil {
		return nil, ErrNoData
	}
	return out.Data, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling start.gg: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding start.gg response: %w", err)
	}
	return nil
}

// AuthorizeURL is where /login sends the browser.
func (c *Client) AuthorizeURL(state string) string {
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", c.clientID)
	v.Set("scope", Scopes)
	v.Set("redirect_uri", c.redirectURI)
	v.Set("state", state)
	return c.authorizeURL + "?" + v.Encode()
}
