package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/omega-championship/overlays/internal/fanout"
)

// readFrame returns the lines of the next SSE frame, skipping keep-alive
// comments.
func readFrame(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimSuffix(line, "\n")
		switch {
		case line == "" && len(lines) > 0:
			return lines
		case line == "", strings.HasPrefix(line, ":"):
			continue
		default:
			lines = append(lines, line)
		}
	}
}

func TestSSEUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, request{method: http.MethodGet, path: "/sse?event=bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSSEStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?channel=overlay_o1", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Another overlay's event must not arrive; the next one must.
	env.hub.Publish(fanout.Event{To: fanout.ToOverlay("o2"), Kind: fanout.KindIngameOverlayUpdate, Payload: "other"})
	n, err := env.hub.Publish(fanout.Event{
		To:      fanout.ToOverlay("o1"),
		Kind:    fanout.KindIngameOverlayUpdate,
		Payload: "<p>a</p>\r\n<p>b</p>",
	})
	if err != nil || n != 1 {
		t.Fatalf("Publish = %d, %v; want 1 receiver", n, err)
	}

	got := readFrame(t, bufio.NewReader(resp.Body))
	want := []string{"event: ingame_overlay_update", "data: <p>a</p>", "data: <p>b</p>"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestWriteResync(t *testing.T) {
	hub := fanout.NewHub(1)
	defer hub.Close()
	sub := hub.Subscribe(fanout.Filter{Channel: "c"})

	for range 3 {
		hub.Publish(fanout.Event{To: fanout.ToChannel("c"), Kind: fanout.KindTest, Payload: "x"})
	}

	var buf bytes.Buffer
	writeResync(&buf, sub)
	if got, want := buf.String(), "event: resync\ndata: 2\n\n"; got != want {
		t.Errorf("first resync = %q, want %q", got, want)
	}

	buf.Reset()
	writeResync(&buf, sub)
	if buf.Len() != 0 {
		t.Errorf("second resync wrote %q, want nothing", buf.String())
	}
}

func TestWriteSSE(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"single line", "data", "event: test\ndata: data\n\n"},
		{"empty", "", "event: test\ndata: \n\n"},
		{"lf", "a\nb", "event: test\ndata: a\ndata: b\n\n"},
		{"crlf", "a\r\nb\r\n", "event: test\ndata: a\ndata: b\ndata: \n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeSSE(&buf, "test", tt.payload)
			if buf.String() != tt.want {
				t.Errorf("writeSSE(%q) = %q, want %q", tt.payload, buf.String(), tt.want)
			}
		})
	}
}

func TestSendSSE(t *testing.T) {
	env := newTestEnv(t)
	broadcast := env.hub.Subscribe(fanout.Filter{})
	defer broadcast.Close()
	channel := env.hub.Subscribe(fanout.Filter{Channel: "c1"})
	defer channel.Close()

	tests := []struct {
		name string
		path string
		want int
	}{
		{"broadcast", "/send-sse", 2},
		{"channel", "/send-sse?channel=c1", 1},
		{"nobody listening", "/send-sse?channel=c2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{method: http.MethodGet, path: tt.path, cookies: env.session(t)})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var resp struct {
				Delivered int `json:"delivered"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if resp.Delivered != tt.want {
				t.Errorf("delivered = %d, want %d", resp.Delivered, tt.want)
			}
		})
	}

	if w := env.do(t, request{method: http.MethodGet, path: "/send-sse"}); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous send-sse = %d, want 401", w.Code)
	}
}

func TestOverlayWebsocket(t *testing.T) {
	env := newTestEnv(t)
	ov := env.createOverlay(t, testSlug)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/stream_overlay/" + ov.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for env.hub.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("websocket never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	env.hub.Publish(fanout.Event{To: fanout.Broadcast, Kind: fanout.KindTest, Payload: "ignored"})
	env.hub.Publish(fanout.Event{To: fanout.ToOverlay(ov.ID), Kind: fanout.KindIngameOverlayUpdate, Payload: "<div></div>"})
	want := `{"overlay_id":"` + ov.ID + `","team_a":"t1","team_b":"t2"}`
	env.hub.Publish(fanout.Event{To: fanout.ToOverlay(ov.ID), Kind: fanout.KindWebsocketEvent, Payload: want})

	typ, got, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Errorf("message type = %v, want text", typ)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func TestOverlayWebsocketOrigin(t *testing.T) {
	env := newTestEnv(t)
	ov := env.createOverlay(t, testSlug)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	wsURL := "ws" + srv.URL[len("http"):] + "/stream_overlay/" + ov.ID + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same origin", srv.URL, true},
		{"allowed pattern", "https://obs.example", true},
		{"foreign origin", "https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
			if tt.origin != "" {
				opts.HTTPHeader.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.Dial(ctx, wsURL, opts)
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
			if err == nil {
				conn.CloseNow()
				t.Fatal("dial succeeded from a foreign origin")
			}
			if resp != nil && resp.StatusCode != http.StatusForbidden {
				t.Errorf("status = %d, want 403", resp.StatusCode)
			}
		})
	}
}

func TestOverlayWebsocketUnknownOverlay(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, request{method: http.MethodGet, path: "/stream_overlay/missing/ws"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
