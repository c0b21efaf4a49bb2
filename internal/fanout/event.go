package fanout

import (
	"errors"
	"fmt"
)

// Kind names the overlay surface an event refreshes.
type Kind string

// KindAny in a Filter accepts every kind.
const KindAny Kind = ""

const (
	KindTest                     Kind = "test"
	KindIngameOverlayUpdate      Kind = "ingame_overlay_update"
	KindCasterOverlayUpdate      Kind = "caster_overlay_update"
	KindTodaysMatchesUpdate      Kind = "todays_matches_update"
	KindNextMatchInfoUpdate      Kind = "next_match_info_update"
	KindChampionshipPhaseUpdate  Kind = "championship_phase_update"
	KindWaitInfoUpdate           Kind = "wait_info_update"
	KindWaitInfoStandaloneUpdate Kind = "wait_info_standalone_update"
	KindWebsocketEvent           Kind = "websocket_event"
)

var kinds = []Kind{
	KindTest,
	KindIngameOverlayUpdate,
	KindCasterOverlayUpdate,
	KindTodaysMatchesUpdate,
	KindNextMatchInfoUpdate,
	KindChampionshipPhaseUpdate,
	KindWaitInfoUpdate,
	KindWaitInfoStandaloneUpdate,
	KindWebsocketEvent,
}

var ErrUnknownKind = errors.New("unknown event kind")

// ParseKind maps a wire name to its Kind. The empty string is KindAny.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindAny, nil
	}
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return KindAny, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds lists every concrete kind in wire order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Destination is either Broadcast or a named channel.
type Destination struct {
	Channel string
}

var Broadcast = Destination{}

func ToChannel(name string) Destination { return Destination{Channel: name} }

// ToOverlay addresses the channel of one overlay.
func ToOverlay(overlayID string) Destination { return ToChannel(OverlayChannel(overlayID)) }

func (d Destination) IsBroadcast() bool { return d.Channel == "" }

func OverlayChannel(overlayID string) string { return "overlay_" + overlayID }

type Event struct {
	To      Destination
	Kind    Kind
	Payload string
}

// Filter selects the events a subscriber sees. Broadcast events always pass.
// Channel events pass when every set field matches; an empty filter therefore
// sees broadcasts only.
type Filter struct {
	Channel string
	Kind    Kind
}

func (f Filter) Matches(e Event) bool {
	if e.To.IsBroadcast() {
		return true
	}
	if f.Channel == "" && f.Kind == KindAny {
		return false
	}
	if f.Channel != "" && f.Channel != e.To.Channel {
		return false
	}
	return f.Kind == KindAny || f.Kind == e.Kind
}
