package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/omega-championship/overlays/internal/gameapi"
	"github.com/omega-championship/overlays/internal/overlay"
)

func player(id, discordID string, full bool) gameapi.Player {
	p := gameapi.Player{Username: "user-" + id, PlayerID: id}
	if discordID != "" {
		p.PlatformIDs.Discord = &gameapi.DiscordLink{DiscordID: discordID, HasFullAccount: full}
	}
	return p
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		player gameapi.Player
		want   Ownership
	}{
		{"no discord link", player("p", "", false), Maybe},
		{"partial account same id", player("p", "42", false), Maybe},
		{"partial account other id", player("p", "7", false), Maybe},
		{"full account same id", player("p", "42", true), Yes},
		{"full account other id", player("p", "7", true), No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.player, "42"); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeSearcher struct {
	players []gameapi.Player
	err     error
}

func (f fakeSearcher) SearchPlayers(context.Context, string) ([]gameapi.Player, error) {
	return f.players, f.err
}

type fakeUsers struct {
	mu    sync.Mutex
	saved []overlay.User
}

func (f *fakeUsers) UpsertUser(_ context.Context, u overlay.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, u)
	return nil
}

func newHandler(s PlayerSearcher, users *fakeUsers) *Handler {
	return NewHandler(s, users, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var caller = &discordgo.User{ID: "42", Username: "kiwi"}

func buttonIDs(data *discordgo.InteractionResponseData) []string {
	var ids []string
	for _, row := range data.Components {
		for _, c := range row.(discordgo.ActionsRow).Components {
			ids = append(ids, c.(discordgo.Button).CustomID)
		}
	}
	return ids
}

func TestRegisterCertainMatchLinks(t *testing.T) {
	users := &fakeUsers{}
	h := newHandler(fakeSearcher{players: []gameapi.Player{
		player("maybe", "", false),
		player("mine", "42", true),
	}}, users)

	data := h.Register(context.Background(), caller, "kiwi")

	if len(users.saved) != 1 {
		t.Fatalf("saved %d users, want 1", len(users.saved))
	}
	u := users.saved[0]
	if u.Username != "kiwi" || u.Discord != "42" || u.OmegaStrikersID == nil || *u.OmegaStrikersID != "mine" {
		t.Fatalf("unexpected user %+v", u)
	}
	if len(data.Components) != 0 || len(data.Embeds) != 1 {
		t.Fatalf("expected a single profile embed, got %+v", data)
	}
}

func TestRegisterOffersCandidates(t *testing.T) {
	users := &fakeUsers{}
	h := newHandler(fakeSearcher{players: []gameapi.Player{
		player("a", "", false),
		player("taken", "7", true),
		player("b", "42", false),
	}}, users)

	data := h.Register(context.Background(), caller, "kiwi")

	if len(users.saved) != 0 {
		t.Fatalf("nothing should be saved before confirmation, got %+v", users.saved)
	}
	got := buttonIDs(data)
	want := []string{ConfirmPrefix + "a", ConfirmPrefix + "b", CancelID}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("buttons = %v, want %v", got, want)
	}
}

func TestRegisterSplitsButtonRows(t *testing.T) {
	var players []gameapi.Player
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		players = append(players, player(id, "", false))
	}
	h := newHandler(fakeSearcher{players: players}, &fakeUsers{})

	data := h.Register(context.Background(), caller, "kiwi")
	if len(data.Components) != 2 {
		t.Fatalf("rows = %d, want 2", len(data.Components))
	}
	if n := len(buttonIDs(data)); n != 6 {
		t.Fatalf("buttons = %d, want 6", n)
	}
}

func TestRegisterNoCandidates(t *testing.T) {
	tests := []struct {
		name    string
		players []gameapi.Player
		want    string
	}{
		{"nothing found", nil, "No player found"},
		{"all linked elsewhere", []gameapi.Player{player("x", "7", true)}, "linked to another Discord"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := newHandler(fakeSearcher{players: tt.players}, &fakeUsers{}).Register(context.Background(), caller, "kiwi")
			if !strings.Contains(data.Content, tt.want) {
				t.Fatalf("content = %q, want it to mention %q", data.Content, tt.want)
			}
			if len(data.Components) != 0 {
				t.Fatalf("expected no buttons")
			}
		})
	}
}

func TestRegisterSearchError(t *testing.T) {
	data := newHandler(fakeSearcher{err: errors.New("api down")}, &fakeUsers{}).Register(context.Background(), caller, "kiwi")
	if !strings.Contains(data.Content, "api down") {
		t.Fatalf("content = %q", data.Content)
	}
}

func TestComponent(t *testing.T) {
	users := &fakeUsers{}
	h := newHandler(fakeSearcher{}, users)

	if _, ok := h.Component(context.Background(), caller, ConfirmPrefix+"p-9"); !ok {
		t.Fatal("confirm not handled")
	}
	if _, ok := h.Component(context.Background(), caller, CancelID); !ok {
		t.Fatal("cancel not handled")
	}
	if _, ok := h.Component(context.Background(), caller, "something_else"); ok {
		t.Fatal("foreign component handled")
	}

	if len(users.saved) != 2 {
		t.Fatalf("saved %d users, want 2", len(users.saved))
	}
	if id := users.saved[0].OmegaStrikersID; id == nil || *id != "p-9" {
		t.Fatalf("confirm saved %v", id)
	}
	if users.saved[1].OmegaStrikersID != nil {
		t.Fatalf("cancel should store no game id, got %v", *users.saved[1].OmegaStrikersID)
	}
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	if len(cmds) != 1 || cmds[0].Name != RegisterCommand {
		t.Fatalf("unexpected commands %+v", cmds)
	}
	if opt := cmds[0].Options[0]; !opt.Required || opt.Name != playerNameOption {
		t.Fatalf("unexpected option %+v", opt)
	}
}
