package fanout

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, s *Subscription) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-s.Events():
		return e, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func expectNothing(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case e := <-s.Events():
		t.Fatalf("unexpected event: %+v", e)
	default:
	}
}

func TestFilterMatches(t *testing.T) {
	x := OverlayChannel("x")
	y := OverlayChannel("y")

	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"broadcast to empty filter", Filter{}, Event{To: Broadcast, Kind: KindTest}, true},
		{"broadcast to channel filter", Filter{Channel: x}, Event{To: Broadcast, Kind: KindTest}, true},
		{"broadcast to kind filter", Filter{Kind: KindWaitInfoUpdate}, Event{To: Broadcast, Kind: KindTest}, true},
		{"channel to empty filter", Filter{}, Event{To: ToChannel(x), Kind: KindTest}, false},
		{"same channel", Filter{Channel: x}, Event{To: ToChannel(x), Kind: KindTest}, true},
		{"other channel", Filter{Channel: y}, Event{To: ToChannel(x), Kind: KindTest}, false},
		{"same channel same kind", Filter{Channel: x, Kind: KindTest}, Event{To: ToChannel(x), Kind: KindTest}, true},
		{"same channel other kind", Filter{Channel: x, Kind: KindTodaysMatchesUpdate}, Event{To: ToChannel(x), Kind: KindCasterOverlayUpdate}, false},
		{"kind only matching", Filter{Kind: KindTest}, Event{To: ToChannel(y), Kind: KindTest}, true},
		{"kind only other", Filter{Kind: KindTest}, Event{To: ToChannel(y), Kind: KindWebsocketEvent}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	h := NewHub(4)
	n, err := h.Publish(Event{To: Broadcast, Kind: KindTest, Payload: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}

func TestChannelRouting(t *testing.T) {
	h := NewHub(4)
	mine := h.Subscribe(Filter{Channel: OverlayChannel("x")})
	defer mine.Close()
	other := h.Subscribe(Filter{Channel: OverlayChannel("y")})
	defer other.Close()

	n, err := h.Publish(Event{To: ToOverlay("x"), Kind: KindIngameOverlayUpdate, Payload: "score"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	e, _ := receive(t, mine)
	if e.Payload != "score" || e.Kind != KindIngameOverlayUpdate {
		t.Fatalf("unexpected event %+v", e)
	}
	expectNothing(t, other)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	h := NewHub(4)
	subs := []*Subscription{
		h.Subscribe(Filter{}),
		h.Subscribe(Filter{Channel: OverlayChannel("x")}),
		h.Subscribe(Filter{Kind: KindWaitInfoUpdate}),
		h.Subscribe(Filter{Channel: OverlayChannel("y"), Kind: KindTest}),
	}

	n, _ := h.Publish(Event{To: Broadcast, Kind: KindCasterOverlayUpdate, Payload: "all"})
	if n != len(subs) {
		t.Fatalf("delivered = %d, want %d", n, len(subs))
	}
	for _, s := range subs {
		if e, _ := receive(t, s); e.Payload != "all" {
			t.Fatalf("payload = %q", e.Payload)
		}
	}
}

func TestKindMismatchOnSameChannel(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe(Filter{Channel: OverlayChannel("x"), Kind: KindTodaysMatchesUpdate})
	defer s.Close()

	h.Publish(Event{To: ToOverlay("x"), Kind: KindCasterOverlayUpdate, Payload: "casters"})
	expectNothing(t, s)
}

func TestNoReplay(t *testing.T) {
	h := NewHub(4)
	h.Publish(Event{To: Broadcast, Kind: KindTest, Payload: "before"})

	s := h.Subscribe(Filter{})
	defer s.Close()
	expectNothing(t, s)

	h.Publish(Event{To: Broadcast, Kind: KindTest, Payload: "after"})
	if e, _ := receive(t, s); e.Payload != "after" {
		t.Fatalf("payload = %q, want after", e.Payload)
	}
}

func TestFIFOPerSubscriber(t *testing.T) {
	h := NewHub(16)
	s := h.Subscribe(Filter{Channel: "c"})
	defer s.Close()

	for i := range 10 {
		h.Publish(Event{To: ToChannel("c"), Kind: KindTest, Payload: string(rune('a' + i))})
	}
	for i := range 10 {
		e, _ := receive(t, s)
		if want := string(rune('a' + i)); e.Payload != want {
			t.Fatalf("event %d = %q, want %q", i, e.Payload, want)
		}
	}
}

func TestLaggingSubscriberDropsAndCounts(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe(Filter{})
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Publish(Event{To: Broadcast, Kind: KindTest, Payload: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if got := slow.TakeMissed(); got != 3 {
		t.Fatalf("missed = %d, want 3", got)
	}
	if got := slow.TakeMissed(); got != 0 {
		t.Fatalf("missed after take = %d, want 0", got)
	}
	receive(t, slow)
	receive(t, slow)
	expectNothing(t, slow)
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe(Filter{})
	s.Close()
	s.Close()

	if _, ok := <-s.Events(); ok {
		t.Fatal("expected closed channel")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", h.Subscribers())
	}
	if n, err := h.Publish(Event{To: Broadcast}); n != 0 || err != nil {
		t.Fatalf("Publish = %d, %v", n, err)
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub(4)
	s := h.Subscribe(Filter{})
	h.Close()

	if _, ok := receive(t, s); ok {
		t.Fatal("expected closed channel after hub close")
	}
	if _, err := h.Publish(Event{To: Broadcast}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	late := h.Subscribe(Filter{})
	if _, ok := <-late.Events(); ok {
		t.Fatal("subscription after close should be closed")
	}
	s.Close()
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	h := NewHub(8)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := h.Subscribe(Filter{Channel: "c"})
			for range 10 {
				select {
				case <-s.Events():
				default:
				}
			}
			s.Close()
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				h.Publish(Event{To: ToChannel("c"), Kind: KindTest})
			}
		}()
	}
	wg.Wait()
	h.Close()
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if k, err := ParseKind(""); err != nil || k != KindAny {
		t.Errorf("ParseKind(\"\") = %q, %v", k, err)
	}
	if _, err := ParseKind("bogus"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
