package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omega-championship/overlays/internal/fanout"
)

// resyncKind tells a client it missed events and should reload its state.
const resyncKind = "resync"

func handleSSE(logger *slog.Logger, events Subscriber, keepAlive time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := fanout.ParseKind(r.URL.Query().Get("event"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter := fanout.Filter{Channel: r.URL.Query().Get("channel"), Kind: kind}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		sub := events.Subscribe(filter)
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(keepAlive)
		defer ping.Stop()

		logger.Debug("sse subscriber connected", "channel", filter.Channel, "event", filter.Kind)

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				writeResync(w, sub)
				writeSSE(w, string(ev.Kind), ev.Payload)
				flusher.Flush()
			case <-ping.C:
				writeResync(w, sub)
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func writeResync(w io.Writer, sub *fanout.Subscription) {
	if missed := sub.TakeMissed(); missed > 0 {
		writeSSE(w, resyncKind, strconv.FormatUint(missed, 10))
	}
}

// writeSSE writes one frame; every payload line gets its own data field.
func writeSSE(w io.Writer, event, payload string) {
	fmt.Fprintf(w, "event: %s\n", event)
	payload = strings.ReplaceAll(payload, "\r\n", "\n")
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func handleSendSSE(logger *slog.Logger, pub fanout.Publisher) http.HandlerFunc {
	type response struct {
		Delivered int `json:"delivered"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		to := fanout.Broadcast
		if ch := r.URL.Query().Get("channel"); ch != "" {
			to = fanout.ToChannel(ch)
		}
		n, err := pub.Publish(fanout.Event{To: to, Kind: fanout.KindTest, Payload: "data"})
		if err != nil {
			fail(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Delivered: n})
	}
}
