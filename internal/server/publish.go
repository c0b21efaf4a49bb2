package server

import (
	"context"
	"log/slog"

	"github.com/a-h/templ"

	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/view"
)

// publisher pushes re-rendered fragments to an overlay's live viewers.
// Failures are logged and never fail the request that caused them.
type publisher struct {
	pub    fanout.Publisher
	logger *slog.Logger
}

func (p publisher) raw(overlayID string, kind fanout.Kind, payload string) {
	n, err := p.pub.Publish(fanout.Event{To: fanout.ToOverlay(overlayID), Kind: kind, Payload: payload})
	if err != nil {
		p.logger.Warn("publishing overlay event", "overlay_id", overlayID, "kind", kind, "error", err)
		return
	}
	p.logger.Debug("published overlay event", "overlay_id", overlayID, "kind", kind, "receivers", n)
}

func (p publisher) render(ctx context.Context, overlayID string, kind fanout.Kind, c templ.Component) {
	payload, err := view.Render(ctx, c)
	if err != nil {
		p.logger.Warn("rendering overlay event", "overlay_id", overlayID, "kind", kind, "error", err)
		return
	}
	p.raw(overlayID, kind, payload)
}
