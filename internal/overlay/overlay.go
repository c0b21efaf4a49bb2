// Package overlay defines the core domain types of the broadcast overlays.
// It has no external dependencies.
package overlay

import (
	"strings"
	"time"
)

// Overlay is a named set of broadcast graphics tied to one tournament.
type Overlay struct {
	ID             string
	TournamentSlug string
	Name           *string
	CreatedAt      time.Time
}

// DisplayName returns the overlay name, or its id when it was never named.
func (o Overlay) DisplayName() string {
	if o.Name != nil && *o.Name != "" {
		return *o.Name
	}
	return o.ID
}

// Channel is the fan-out channel name carrying this overlay's updates.
func (o Overlay) Channel() string { return "overlay_" + o.ID }

type Team struct {
	ID       string
	Name     string
	Nickname *string
	ImageURL *string
	Members  []string
}

// DisplayName prefers the organizer-assigned nickname.
func (t Team) DisplayName() string {
	if t.Nickname != nil && *t.Nickname != "" {
		return *t.Nickname
	}
	return t.Name
}

type Scoreboard struct {
	OverlayID         string
	TeamA             string
	TeamB             string
	TeamAScore        int
	TeamBScore        int
	TeamAStanding     string
	TeamBStanding     string
	ChampionshipPhase *string
	Logo              string
}

// DefaultStanding is stored when the organizer leaves a standing blank.
const DefaultStanding = "0-0"

type CasterKind string

const (
	CasterNarrator  CasterKind = "narrator"
	CasterCommenter CasterKind = "commenter"
)

type Caster struct {
	OverlayID   string
	Kind        CasterKind
	Name        string
	StreamVideo string
}

// CasterPair is the narrator and commenter of an overlay. It is only
// complete when both were assigned.
type CasterPair struct {
	Narrator  Caster
	Commenter Caster
}

type WaitType string

const (
	WaitNothing  WaitType = "nothing"
	WaitStarting WaitType = "starting"
	WaitBreak    WaitType = "break"
	WaitEnding   WaitType = "ending"
)

// ParseWaitType reports false for anything outside the four known types.
func ParseWaitType(s string) (WaitType, bool) {
	switch w := WaitType(s); w {
	case WaitNothing, WaitStarting, WaitBreak, WaitEnding:
		return w, true
	}
	return "", false
}

type WaitTimer struct {
	OverlayID string
	WaitUntil time.Time
	WaitType  WaitType
}

// Remaining is the countdown left at now, never negative.
func (w WaitTimer) Remaining(now time.Time) time.Duration {
	d := w.WaitUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type Match struct {
	ID             string
	OverlayID      *string
	TournamentSlug string
	TeamA          Team
	TeamB          Team
	TeamAScore     int
	TeamBScore     int
	Completed      bool
	InProgress     bool
	Featured       bool
	CreatedAt      time.Time
}

// NextMatch picks the match to announce as "next up": a featured match that
// has not completed, otherwise one in progress, otherwise the first not yet
// completed. It reports false when every match is completed.
func NextMatch(matches []Match) (Match, bool) {
	for _, m := range matches {
		if m.Featured && !m.Completed {
			return m, true
		}
	}
	for _, m := range matches {
		if m.InProgress && !m.Completed {
			return m, true
		}
	}
	for _, m := range matches {
		if !m.Completed {
			return m, true
		}
	}
	return Match{}, false
}

type Image struct {
	URL    string
	Width  float64
	Height float64
}

type Tournament struct {
	Name   string
	Slug   string
	URL    string
	Images []Image
}

// ShortSlug drops the "tournament/" prefix start.gg puts on every slug.
func (t Tournament) ShortSlug() string {
	return strings.TrimPrefix(t.Slug, "tournament/")
}

// User links a Discord identity to game and tournament platform accounts.
type User struct {
	Username        string
	Discord         string
	OmegaStrikersID *string
	StartGGID       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
