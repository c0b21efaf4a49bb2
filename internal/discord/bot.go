// Package discord runs the account-link bot: members link their Discord
// identity to an Omega Strikers account with /register.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	session *discordgo.Session
	handler *Handler
	logger  *slog.Logger
}

func NewBot(token string, handler *Handler, logger *slog.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{session: s, handler: handler, logger: logger}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessage)
	s.AddHandler(b.onInteraction)
	return b, nil
}

// Run connects to the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	<-ctx.Done()
	b.logger.Info("closing discord gateway")
	return b.session.Close()
}

// Check reports whether the gateway session has completed its handshake.
func (b *Bot) Check(context.Context) error {
	b.session.RLock()
	defer b.session.RUnlock()
	if !b.session.DataReady {
		return errors.New("discord gateway not ready")
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("discord bot is ready", "user", r.User.Username, "guilds", len(r.Guilds))
	for _, g := range r.Guilds {
		if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, g.ID, Commands()); err != nil {
			b.logger.Error("failed to register commands", "guild", g.ID, "error", err)
		}
	}
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content != "!ping" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, "Pong"); err != nil {
		b.logger.Error("failed to send pong", "channel", m.ChannelID, "error", err)
	}
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var data *discordgo.InteractionResponseData
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		cmd := i.ApplicationCommandData()
		if cmd.Name != RegisterCommand {
			data = &discordgo.InteractionResponseData{Content: "not implemented", Flags: discordgo.MessageFlagsEphemeral}
			break
		}
		var name string
		for _, opt := range cmd.Options {
			if opt.Name == playerNameOption {
				name = opt.StringValue()
			}
		}
		if name == "" {
			data = &discordgo.InteractionResponseData{Content: "A player name is required.", Flags: discordgo.MessageFlagsEphemeral}
			break
		}
		data = b.handler.Register(ctx, user, name)
	case discordgo.InteractionMessageComponent:
		var ok bool
		data, ok = b.handler.Component(ctx, user, i.MessageComponentData().CustomID)
		if !ok {
			return
		}
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", "type", int(i.Type), "error", err)
	}
}
