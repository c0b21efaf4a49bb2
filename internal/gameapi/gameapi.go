// Package gameapi searches Omega Strikers players through the game's public
// API, authenticated with a saved game identity.
package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type DiscordLink struct {
	DiscordID      string `json:"discordId"`
	HasFullAccount bool   `json:"hasFullAccount"`
}

type PlatformIDs struct {
	Discord       *DiscordLink `json:"discord"`
	PlaystationID *string      `json:"playstationId"`
	XUID          *string      `json:"xuid"`
}

type Organization struct {
	OrganizationID string `json:"organizationId"`
	LogoID         string `json:"logoId"`
	Name           string `json:"name"`
}

type Player struct {
	Username     string        `json:"username"`
	PlayerID     string        `json:"playerId"`
	LogoID       string        `json:"logoId"`
	Title        string        `json:"title"`
	NameplateID  string        `json:"nameplateId"`
	EmoticonID   string        `json:"emoticonId"`
	TitleID      string        `json:"titleId"`
	Tags         []string      `json:"tags"`
	PlatformIDs  PlatformIDs   `json:"platformIds"`
	MasteryLevel int           `json:"masteryLevel"`
	PlayerStatus string        `json:"playerStatus"`
	Organization *Organization `json:"organization"`
}

// ProfileURL is the public stats page of the player.
func (p Player) ProfileURL() string {
	return "https://stats.omegastrikers.gg/get_username/" + url.PathEscape(p.PlayerID)
}

type identity struct {
	AccessTokens struct {
		JWT          string `json:"jwt"`
		RefreshToken string `json:"refreshToken"`
	} `json:"accessTokens"`
}

type Client struct {
	http         *http.Client
	baseURL      string
	jwt          string
	refreshToken string
}

// NewFromFile loads the identity JSON written by the game launcher.
func NewFromFile(path, baseURL string, hc *http.Client) (*Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	return New(raw, baseURL, hc)
}

func New(identityJSON []byte, baseURL string, hc *http.Client) (*Client, error) {
	// The launcher sometimes writes a BOM and other non-ASCII noise.
	clean := strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, string(identityJSON))

	var id identity
	if err := json.Unmarshal([]byte(clean), &id); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if id.AccessTokens.JWT == "" {
		return nil, errors.New("identity has no access token")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:         hc,
		baseURL:      strings.TrimRight(baseURL, "/"),
		jwt:          id.AccessTokens.JWT,
		refreshToken: id.AccessTokens.RefreshToken,
	}, nil
}

// ExpiresAt reads the exp claim of the identity token without verifying
// it. The zero time means the token carries no expiry.
func (c *Client) ExpiresAt() (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.jwt, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing identity token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// SearchPlayers returns up to five players whose name matches name.
func (c *Client) SearchPlayers(ctx context.Context, name string) ([]Player, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("pageSize", "5")
	q.Set("usernameQuery", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/players?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-authorization", "Bearer "+c.jwt)
	req.Header.Set("x-refresh-token", c.refreshToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("searching players: api responded %d: %s", resp.StatusCode, b)
	}

	var out struct {
		Matches []Player `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding players: %w", err)
	}
	return out.Matches, nil
}
