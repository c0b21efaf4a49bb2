package view

import (
	"github.com/a-h/templ"

	"github.com/omega-championship/overlays/internal/overlay"
)

// Viewer is the signed-in organizer shown in the page header.
type Viewer struct {
	Slug     string
	GamerTag string
}

func Index(viewer *Viewer) templ.Component {
	return component("index", struct{ Viewer *Viewer }{viewer})
}

func Tournaments(viewer *Viewer, tournaments []overlay.Tournament) templ.Component {
	return component("tournaments", struct {
		Viewer      *Viewer
		Tournaments []overlay.Tournament
	}{viewer, tournaments})
}

type TournamentSetupData struct {
	Viewer     *Viewer
	Tournament overlay.Tournament
	Overlays   []overlay.Overlay
	Selected   *overlay.Overlay
}

func TournamentSetup(d TournamentSetupData) templ.Component {
	return component("tournament_setup", d)
}

// ManageOverlay is the editor panel of the selected overlay, followed by
// the overlay list swapped out-of-band.
func ManageOverlay(d TournamentSetupData) templ.Component {
	return component("setup_fragments", d)
}

type TeamsSetupData struct {
	TournamentSlug string
	OverlayID      string
	Teams          []overlay.Team
	Scoreboard     *overlay.Scoreboard
	TeamA          *overlay.Team
	TeamB          *overlay.Team
}

func TeamsSetup(d TeamsSetupData) templ.Component {
	return component("teams_setup", d)
}

type CastersSetupData struct {
	TournamentSlug string
	Overlay        overlay.Overlay
	Casters        *overlay.CasterPair
	Message        string
}

func CastersSetup(d CastersSetupData) templ.Component {
	return component("casters_setup", d)
}

type WaitingSetupData struct {
	TournamentSlug string
	OverlayID      string
	Matches        []overlay.Match
	Teams          []overlay.Team
	WaitTimer      *overlay.WaitTimer
}

func WaitingSetup(d WaitingSetupData) templ.Component {
	return component("waiting_setup", d)
}

// WaitSection is the timer form alone, returned after a timer update.
func WaitSection(d WaitingSetupData) templ.Component {
	return component("wait_section", d)
}

func Error(status int, message string) templ.Component {
	return component("error", struct {
		Status  int
		Message string
	}{status, message})
}
