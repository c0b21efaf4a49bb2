package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/omega-championship/overlays/internal/fanout"
)

const wsWriteTimeout = 5 * time.Second

// handleOverlayWS forwards the overlay's websocket_event payloads as text
// frames. Incoming frames are discarded; the first failed write ends the
// connection. Cross-origin upgrades are refused unless the origin host
// matches one of origins.
func handleOverlayWS(logger *slog.Logger, events Subscriber, origins []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := overlayFrom(r).ID

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: origins,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		sub := events.Subscribe(fanout.Filter{Channel: fanout.OverlayChannel(id), Kind: fanout.KindWebsocketEvent})
		defer sub.Close()

		ctx := conn.CloseRead(r.Context())
		logger.Debug("websocket connected", "overlay_id", id)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed", "overlay_id", id, "error", ctx.Err())
				return
			case ev, ok := <-sub.Events():
				if !ok {
					conn.Close(websocket.StatusGoingAway, "shutting down")
					return
				}
				if missed := sub.TakeMissed(); missed > 0 {
					logger.Warn("websocket subscriber lagged", "overlay_id", id, "missed", missed)
				}
				// Broadcasts pass every filter; only websocket events go out.
				if ev.Kind != fanout.KindWebsocketEvent {
					continue
				}
				if err := writeText(ctx, conn, ev.Payload); err != nil {
					logger.Debug("websocket write failed", "overlay_id", id, "error", err)
					return
				}
			}
		}
	}
}

func writeText(ctx context.Context, conn *websocket.Conn, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(payload))
}
