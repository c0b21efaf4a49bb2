package discord

import "github.com/omega-championship/overlays/internal/gameapi"

// Ownership is how sure we are that a game account belongs to a Discord user.
type Ownership int

const (
	Maybe Ownership = iota
	Yes
	No
)

func (o Ownership) String() string {
	switch o {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "maybe"
	}
}

// Classify decides whether player belongs to the Discord user discordUserID.
// Only a fully linked Discord account is conclusive:
//
//	discord link   full account   same id   result
//	absent         -              -         Maybe
//	present        false          -         Maybe
//	present        true           true      Yes
//	present        true           false     No
func Classify(player gameapi.Player, discordUserID string) Ownership {
	link := player.PlatformIDs.Discord
	switch {
	case link == nil || !link.HasFullAccount:
		return Maybe
	case link.DiscordID == discordUserID:
		return Yes
	default:
		return No
	}
}
