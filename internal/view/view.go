// Package view renders the organizer pages and the overlay fragments. The
// live-update fragments are templ components (stream.templ); the pages are
// html/template documents exposed as templ.Component, so handlers serve
// both with templ.Handler or render them to a string for an event.
package view

//go:generate templ generate

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/overlay"
)

//go:embed templates
var files embed.FS

//go:embed assets
var assets embed.FS

// Assets holds the static files served under /assets.
var Assets, _ = fs.Sub(assets, "assets")

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"deref":   deref,
	"channel": fanout.OverlayChannel,
	"fragment": func(c templ.Component) (template.HTML, error) {
		s, err := Render(context.Background(), c)
		return template.HTML(s), err
	},
	"castersContent":     CastersContent,
	"championshipPhase":  ChampionshipPhase,
	"nextMatchInfo":      NextMatchInfo,
	"waitInfo":           WaitInfo,
	"standaloneWaitInfo": StandaloneWaitInfo,
	"datetimeLocal": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02T15:04")
	},
	"matchRow": func(m any, teams []overlay.Team) matchRow {
		if v, ok := m.(overlay.Match); ok {
			return matchRow{ID: v.ID, Match: &v, Teams: teams}
		}
		return matchRow{ID: uuid.NewString(), Teams: teams}
	},
	"firstImage": func(images []overlay.Image) *overlay.Image {
		if len(images) == 0 {
			return nil
		}
		return &images[0]
	},
}).ParseFS(files, "templates/*.html", "templates/app/*.html", "templates/stream/*.html"))

// matchRow is one editable line of the today's matches form. New rows get
// their id up front so the checkboxes can refer to it.
type matchRow struct {
	ID    string
	Match *overlay.Match
	Teams []overlay.Team
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// countdown formats d as m:ss, or h:mm:ss past the hour.
func countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Round(time.Second).Seconds())
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func waitLabel(w overlay.WaitType) string {
	switch w {
	case overlay.WaitStarting:
		return "Starting soon"
	case overlay.WaitBreak:
		return "Be right back"
	case overlay.WaitEnding:
		return "Thanks for watching"
	default:
		return ""
	}
}

func component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return tmpl.ExecuteTemplate(w, name, data)
	})
}

// Render renders c to a string, the form event payloads travel in.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
