package startgg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/omega-championship/overlays/internal/overlay"
)

type User struct {
	ID       string
	Slug     string
	GamerTag *string
}

const currentUserQuery = `query CurrentUser {
  currentUser {
    id
    slug
    player { gamerTag }
  }
}`

// CurrentUser identifies the token owner. It doubles as token validation.
func (c *Client) CurrentUser(ctx context.Context, token string) (User, error) {
	type response struct {
		CurrentUser *struct {
			ID     json64  `json:"id"`
			Slug   *string `json:"slug"`
			Player *struct {
				GamerTag *string `json:"gamerTag"`
			} `json:"player"`
		} `json:"currentUser"`
	}
	data, err := query[response](ctx, c, token, currentUserQuery, nil)
	if err != nil {
		return User{}, err
	}
	u := data.CurrentUser
	if u == nil || u.Slug == nil || u.Player == nil {
		return User{}, fmt.Errorf("current user: %w", ErrNoData)
	}
	return User{ID: string(u.ID), Slug: *u.Slug, GamerTag: u.Player.GamerTag}, nil
}

type image struct {
	URL    *string  `json:"url"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

type tournamentNode struct {
	Name   *string  `json:"name"`
	Slug   *string  `json:"slug"`
	URL    *string  `json:"url"`
	Images []*image `json:"images"`
	Admins *[]struct {
		ID json64 `json:"id"`
	} `json:"admins"`
}

// toTournament drops the node when a required field is missing.
func (n *tournamentNode) toTournament() (overlay.Tournament, bool) {
	if n == nil || n.Name == nil || n.Slug == nil {
		return overlay.Tournament{}, false
	}
	t := overlay.Tournament{Name: *n.Name, Slug: *n.Slug}
	if n.URL != nil {
		t.URL = *n.URL
	}
	for _, img := range n.Images {
		if img == nil || img.URL == nil || img.Width == nil || img.Height == nil {
			continue
		}
		t.Images = append(t.Images, overlay.Image{URL: *img.URL, Width: *img.Width, Height: *img.Height})
	}
	return t, true
}

const organizedTournamentsQuery = `query UserTournaments($page: Int, $perPage: Int) {
  currentUser {
    tournaments(query: { page: $page, perPage: $perPage, filter: { tournamentView: "admin" } }) {
      nodes {
        name
        slug
        url
        images { url width height }
        admins { id }
      }
    }
  }
}`

// OrganizedTournaments lists the first page of tournaments the user
// administers. start.gg only reveals admins to admins, so nodes without
// them are dropped.
func (c *Client) OrganizedTournaments(ctx context.Context, token string) ([]overlay.Tournament, error) {
	type response struct {
		CurrentUser *struct {
			Tournaments *struct {
				Nodes []*tournamentNode `json:"nodes"`
			} `json:"tournaments"`
		} `json:"currentUser"`
	}
	data, err := query[response](ctx, c, token, organizedTournamentsQuery, map[string]any{"page": 1, "perPage": 25})
	if err != nil {
		return nil, err
	}
	if data.CurrentUser == nil || data.CurrentUser.Tournaments == nil {
		return nil, fmt.Errorf("organized tournaments: %w", ErrNoData)
	}

	tournaments := []overlay.Tournament{}
	for _, n := range data.CurrentUser.Tournaments.Nodes {
		if n == nil || n.Admins == nil {
			continue
		}
		if t, ok := n.toTournament(); ok {
			tournaments = append(tournaments, t)
		}
	}
	return tournaments, nil
}

const tournamentQuery = `query Tournament($slug: String) {
  tournament(slug: $slug) {
    name
    slug
    url
    images { url width height }
  }
}`

func (c *Client) Tournament(ctx context.Context, token, slug string) (overlay.Tournament, error) {
	type response struct {
		Tournament *tournamentNode `json:"tournament"`
	}
	data, err := query[response](ctx, c, token, tournamentQuery, map[string]any{"slug": slug})
	if err != nil {
		return overlay.Tournament{}, err
	}
	t, ok := data.Tournament.toTournament()
	if !ok {
		return overlay.Tournament{}, fmt.Errorf("tournament %s: %w", slug, ErrNoData)
	}
	return t, nil
}

const tournamentTeamsQuery = `query TournamentTeams($slug: String, $page: Int, $perPage: Int) {
  tournament(slug: $slug) {
    events {
      entrants(query: { page: $page, perPage: $perPage }) {
        pageInfo { totalPages }
        nodes {
          id
          name
          participants { gamerTag }
          team { images { url type } }
        }
      }
    }
  }
}`

const teamsPerPage = 64

// TournamentTeams gathers the entrants of every event of the tournament.
// An entrant registered in several events appears once.
func (c *Client) TournamentTeams(ctx context.Context, token, slug string) ([]overlay.Team, error) {
	type entrant struct {
		ID           json64  `json:"id"`
		Name         *string `json:"name"`
		Participants []*struct {
			GamerTag *string `json:"gamerTag"`
		} `json:"participants"`
		Team *struct {
			Images []*struct {
				URL  *string `json:"url"`
				Type *string `json:"type"`
			} `json:"images"`
		} `json:"team"`
	}
	type response struct {
		Tournament *struct {
			Events []*struct {
				Entrants *struct {
					PageInfo *struct {
						TotalPages int `json:"totalPages"`
					} `json:"pageInfo"`
					Nodes []*entrant `json:"nodes"`
				} `json:"entrants"`
			} `json:"events"`
		} `json:"tournament"`
	}

	var (
		teams []overlay.Team
		seen  = map[string]bool{}
	)
	for page, totalPages := 1, 1; page <= totalPages; page++ {
		data, err := query[response](ctx, c, token, tournamentTeamsQuery, map[string]any{
			"slug":    slug,
			"page":    page,
			"perPage": teamsPerPage,
		})
		if err != nil {
			return nil, err
		}
		if data.Tournament == nil {
			return nil, fmt.Errorf("tournament %s teams: %w", slug, ErrNoData)
		}
		for _, ev := range data.Tournament.Events {
			if ev == nil || ev.Entrants == nil {
				continue
			}
			if pi := ev.Entrants.PageInfo; pi != nil && pi.TotalPages > totalPages {
				totalPages = pi.TotalPages
			}
			for _, e := range ev.Entrants.Nodes {
				if e == nil || e.Name == nil || seen[string(e.ID)] {
					continue
				}
				seen[string(e.ID)] = true
				t := overlay.Team{ID: string(e.ID), Name: *e.Name, Members: []string{}}
				for _, p := range e.Participants {
					if p != nil && p.GamerTag != nil {
						t.Members = append(t.Members, *p.GamerTag)
					}
				}
				if e.Team != nil {
					for _, img := range e.Team.Images {
						if img != nil && img.URL != nil && (img.Type == nil || *img.Type == "profile") {
							u := *img.URL
							t.ImageURL = &u
							break
						}
					}
				}
				teams = append(teams, t)
			}
		}
	}
	return teams, nil
}

// json64 accepts ids that start.gg sends either as numbers or strings.
type json64 string

func (j *json64) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*j = json64(s)
		return nil
	}
	if string(b) == "null" {
		*j = ""
		return nil
	}
	*j = json64(b)
	return nil
}
