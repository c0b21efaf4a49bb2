package view

import (
	"github.com/a-h/templ"

	"github.com/omega-championship/overlays/internal/overlay"
)

type overlayPage struct {
	OverlayID string
}

func IngamePage(overlayID string) templ.Component {
	return component("ingame_page", overlayPage{overlayID})
}

type ScoreboardData struct {
	TeamA         overlay.Team
	TeamB         overlay.Team
	TeamAScore    int
	TeamBScore    int
	TeamAStanding string
	TeamBStanding string
	Logo          string
}

func ChampionshipPhasePage(overlayID string, phase *string) templ.Component {
	return component("championship_phase_page", struct {
		OverlayID string
		Phase     *string
	}{overlayID, phase})
}

func CastersPage(overlayID string, casters *overlay.CasterPair) templ.Component {
	return component("casters_page", struct {
		OverlayID string
		Casters   *overlay.CasterPair
	}{overlayID, casters})
}

type waitData struct {
	OverlayID string
	WaitTimer *overlay.WaitTimer
}

func WaitingPage(overlayID string, w *overlay.WaitTimer) templ.Component {
	return component("waiting_page", waitData{overlayID, w})
}

func StandaloneTimerPage(overlayID string, w *overlay.WaitTimer) templ.Component {
	return component("standalone_timer_page", waitData{overlayID, w})
}

func NextMatchPage(overlayID string, matches []overlay.Match) templ.Component {
	return component("next_match_page", struct {
		OverlayID string
		Matches   []overlay.Match
	}{overlayID, matches})
}

func Background(overlayID string) templ.Component {
	return component("background", overlayPage{overlayID})
}

// Partial is a shell page that loads one fragment and keeps it live.
func Partial(overlayID, name string) templ.Component {
	return component("partial", struct {
		OverlayID string
		Name      string
	}{overlayID, name})
}

func matchClass(m overlay.Match) string {
	class := "match"
	if m.Completed {
		class += " completed"
	}
	if m.InProgress {
		class += " live"
	}
	if m.Featured {
		class += " featured"
	}
	return class
}

func timerPath(overlayID string) string {
	return "/stream_overlay/" + overlayID + "/waiting/timer"
}
