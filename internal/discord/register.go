package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/omega-championship/overlays/internal/gameapi"
	"github.com/omega-championship/overlays/internal/overlay"
)

const (
	RegisterCommand = "register"
	ConfirmPrefix   = "register_confirm_omega_account_"
	CancelID        = "register_cancel"

	playerNameOption = "omegastrikers_player_name"
	maxButtonsPerRow = 5
)

type PlayerSearcher interface {
	SearchPlayers(ctx context.Context, name string) ([]gameapi.Player, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, u overlay.User) error
}

// Commands are registered in every guild the bot joins.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{{
		Name:        RegisterCommand,
		Description: "Register with the bot and link an Omega Strikers account",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        playerNameOption,
			Description: "Your player name in Omega Strikers",
			Required:    true,
		}},
	}}
}

// Handler answers the account-link interactions.
type Handler struct {
	players PlayerSearcher
	users   UserStore
	logger  *slog.Logger
}

func NewHandler(players PlayerSearcher, users UserStore, logger *slog.Logger) *Handler {
	return &Handler{players: players, users: users, logger: logger}
}

func playerEmbed(p gameapi.Player) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{URL: p.ProfileURL(), Title: p.Username}
}

func (h *Handler) link(ctx context.Context, user *discordgo.User, playerID *string) {
	u := overlay.User{Username: user.Username, Discord: user.ID, OmegaStrikersID: playerID}
	if err := h.users.UpsertUser(ctx, u); err != nil {
		h.logger.Error("failed to upsert user", "username", u.Username, "discord", u.Discord, "error", err)
	}
}

// Register searches playerName and either links the one account that is
// certainly the caller's, or offers the plausible candidates as buttons.
func (h *Handler) Register(ctx context.Context, user *discordgo.User, playerName string) *discordgo.InteractionResponseData {
	players, err := h.players.SearchPlayers(ctx, playerName)
	if err != nil {
		h.logger.Error("player search failed", "query", playerName, "error", err)
		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Failed to look up %q in Omega Strikers: %v", playerName, err),
		}
	}

	for _, p := range players {
		if Classify(p, user.ID) == Yes {
			id := p.PlayerID
			h.link(ctx, user, &id)
			return &discordgo.InteractionResponseData{
				Content: fmt.Sprintf("Account linked with %s:", p.Username),
				Embeds:  []*discordgo.MessageEmbed{playerEmbed(p)},
			}
		}
	}

	var (
		buttons []discordgo.MessageComponent
		embeds  []*discordgo.MessageEmbed
	)
	for _, p := range players {
		if Classify(p, user.ID) == No {
			continue
		}
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("I am '%s'", p.Username),
			Style:    discordgo.PrimaryButton,
			CustomID: ConfirmPrefix + p.PlayerID,
		})
		embeds = append(embeds, playerEmbed(p))
	}

	data := &discordgo.InteractionResponseData{}
	switch {
	case len(buttons) == 0 && len(players) > 0:
		data.Content = "Found players for this search, but their Omega Strikers accounts are linked to another Discord."
		return data
	case len(buttons) == 0:
		data.Content = "No player found for this name."
		return data
	case len(buttons) == 1:
		data.Content = "Found this option, but I am not sure it is you:"
	default:
		data.Content = "Found these options, but I am not sure which one is you:"
	}

	buttons = append(buttons, discordgo.Button{
		Label:    "None of these",
		Style:    discordgo.DangerButton,
		CustomID: CancelID,
	})
	embeds = append(embeds, &discordgo.MessageEmbed{
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Linking an account that is not yours may lead to penalties and affect your tournament eligibility.",
		},
	})
	data.Embeds = embeds
	data.Components = actionRows(buttons)
	return data
}

func actionRows(buttons []discordgo.MessageComponent) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for len(buttons) > 0 {
		n := min(len(buttons), maxButtonsPerRow)
		rows = append(rows, discordgo.ActionsRow{Components: buttons[:n]})
		buttons = buttons[n:]
	}
	return rows
}

// Component handles the buttons offered by Register. It reports false for
// component ids it does not own.
func (h *Handler) Component(ctx context.Context, user *discordgo.User, customID string) (*discordgo.InteractionResponseData, bool) {
	if customID == CancelID {
		h.link(ctx, user, nil)
		return &discordgo.InteractionResponseData{
			Content: "Registered without an Omega Strikers account.",
			Flags:   discordgo.MessageFlagsEphemeral,
		}, true
	}
	if id, ok := strings.CutPrefix(customID, ConfirmPrefix); ok && id != "" {
		h.link(ctx, user, &id)
		return &discordgo.InteractionResponseData{
			Content: "Linked",
			Flags:   discordgo.MessageFlagsEphemeral,
		}, true
	}
	return nil, false
}
