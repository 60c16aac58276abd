package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/json"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/services"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/utils"
)

var Character = discord.SlashCommandCreate{
	Name:        "character",
	Description: "Manage your characters in the active game",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Create a character in your active game",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Character name",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "bio",
					Description: "A short backstory",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "avatar_url",
					Description: "Image URL for the character's portrait",
					Required:    false,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "private",
					Description: "Hide the sheet from other players",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List the characters in your active game",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "view",
			Description: "View a character sheet",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "name",
					Description:  "Character name (fuzzy matched)",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "switch",
			Description: "Switch which of your characters is active",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "name",
					Description:  "Name of your character to switch to",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
	},
}

func CharacterHandler(b *tavernkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if e.GuildID() == nil {
			return replyError(e, "This command only works in a server.")
		}

		gameID, err := activeGameID(ctx, b, e)
		if err != nil {
			return replyError(e, "Failed to load your player profile.")
		}
		if gameID == 0 {
			return replyError(e, "You have not joined a game yet. Use `/game join` first.")
		}

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "create":
			return handleCharacterCreate(ctx, b, e, gameID)
		case "list":
			return handleCharacterList(ctx, b, e, gameID)
		case "view":
			return handleCharacterView(ctx, b, e, gameID)
		case "switch":
			return handleCharacterSwitch(ctx, b, e, gameID)
		}
		return nil
	}
}

func activeGameID(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) (int64, error) {
	return activeGameFor(ctx, b, e.User().ID.String(), e.GuildID().String())
}

func activeGameFor(ctx context.Context, b *tavernkeeper.Bot, userID, guildID string) (int64, error) {
	player, err := b.PlayerRepository.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	state, err := b.PlayerRepository.GuildState(ctx, player.ID, guildID)
	if err != nil {
		return 0, err
	}
	if state == nil || state.ActiveGameID == nil {
		return 0, nil
	}
	return *state.ActiveGameID, nil
}

func handleCharacterCreate(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent, gameID int64) error {
	data := e.SlashCommandInteractionData()
	name := strings.TrimSpace(data.String("name"))
	if name == "" {
		return replyError(e, "The character needs a name.")
	}

	visibility := models.CharacterVisibilityPublic
	if data.Bool("private") {
		visibility = models.CharacterVisibilityPrivate
	}

	character := &models.Character{
		GameID:     gameID,
		UserID:     e.User().ID.String(),
		Name:       name,
		Bio:        data.String("bio"),
		AvatarURL:  data.String("avatar_url"),
		Visibility: visibility,
	}
	if err := b.CharacterRepository.Create(ctx, character); err != nil {
		return replyError(e, "Failed to create the character.")
	}

	// The freshly created character becomes the active one.
	if player, err := b.PlayerRepository.GetOrCreate(ctx, e.User().ID.String()); err == nil {
		_ = b.PlayerRepository.SetActiveCharacter(ctx, player.ID, e.GuildID().String(), character.ID)
	}

	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("🧙 **%s** joins the adventure.", character.Name),
	})
}

func handleCharacterList(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent, gameID int64) error {
	characters, err := b.CharacterRepository.ListByGame(ctx, gameID)
	if err != nil {
		return replyError(e, "Failed to load characters.")
	}

	viewerID := e.User().ID.String()
	var sb strings.Builder
	visible := 0
	for _, ch := range characters {
		if !ch.VisibleTo(viewerID) {
			continue
		}
		visible++
		sb.WriteString(fmt.Sprintf("**%s** — <@%s>, created %s\n", ch.Name, ch.UserID, utils.TimeAgo(ch.CreatedAt)))
	}
	if visible == 0 {
		return e.CreateMessage(discord.MessageCreate{
			Content: "No characters in this game yet. Create one with `/character create`.",
		})
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🧙 Characters").
		SetDescription(sb.String()).
		SetFooter(fmt.Sprintf("%d character(s)", visible), "").
		SetColor(0x2b2d31).
		Build()

	return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
}

func handleCharacterView(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent, gameID int64) error {
	name := e.SlashCommandInteractionData().String("name")

	characters, err := b.CharacterRepository.ListByGame(ctx, gameID)
	if err != nil {
		return replyError(e, "Failed to load characters.")
	}

	character := services.FindCharacter(characters, name)
	if character == nil || !character.VisibleTo(e.User().ID.String()) {
		return replyError(e, fmt.Sprintf("No character matching **%s** found.", name))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(character.Name).
		SetColor(0x2b2d31)
	if character.Bio != "" {
		embed.SetDescription(character.Bio)
	}
	if character.AvatarURL != "" {
		embed.SetThumbnail(character.AvatarURL)
	}
	embed.AddField("Player", fmt.Sprintf("<@%s>", character.UserID), true)
	for stat, value := range character.Stats {
		embed.AddField(stat, value, true)
	}

	return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed.Build()}})
}

func handleCharacterSwitch(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent, gameID int64) error {
	name := e.SlashCommandInteractionData().String("name")
	userID := e.User().ID.String()

	owned, err := b.CharacterRepository.ListByOwner(ctx, gameID, userID)
	if err != nil {
		return replyError(e, "Failed to load your characters.")
	}
	character := services.FindCharacter(owned, name)
	if character == nil {
		return replyError(e, fmt.Sprintf("You have no character matching **%s** in this game.", name))
	}

	player, err := b.PlayerRepository.GetOrCreate(ctx, userID)
	if err != nil {
		return replyError(e, "Failed to load your player profile.")
	}
	if err := b.PlayerRepository.SetActiveCharacter(ctx, player.ID, e.GuildID().String(), character.ID); err != nil {
		return replyError(e, "Failed to switch characters.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("✅ You are now playing **%s**.", character.Name),
	})
}

const maxAutocompleteChoices = 25

// CharacterAutocompleteHandler suggests character names for /character
// view and switch as the user types.
func CharacterAutocompleteHandler(b *tavernkeeper.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "name" {
			return nil
		}

		input := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err == nil {
				input = strings.TrimSpace(s)
			}
		}

		if e.GuildID() == nil {
			return e.AutocompleteResult(nil)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		userID := e.User().ID.String()
		gameID, err := activeGameFor(ctx, b, userID, e.GuildID().String())
		if err != nil || gameID == 0 {
			return e.AutocompleteResult(nil)
		}

		var characters []*models.Character
		if e.Data.SubCommandName != nil && *e.Data.SubCommandName == "switch" {
			characters, err = b.CharacterRepository.ListByOwner(ctx, gameID, userID)
		} else {
			characters, err = b.CharacterRepository.ListByGame(ctx, gameID)
		}
		if err != nil {
			return e.AutocompleteResult(nil)
		}

		return e.AutocompleteResult(characterChoices(characters, input, userID))
	}
}

// characterChoices ranks the viewer-visible characters against the typed
// input, capped at the platform's choice limit.
func characterChoices(characters []*models.Character, input, viewerID string) []discord.AutocompleteChoice {
	visible := make([]*models.Character, 0, len(characters))
	for _, ch := range characters {
		if ch.VisibleTo(viewerID) {
			visible = append(visible, ch)
		}
	}

	matches := visible
	if input != "" {
		matches = services.SuggestCharacters(visible, input, maxAutocompleteChoices)
	}

	choices := make([]discord.AutocompleteChoice, 0, min(len(matches), maxAutocompleteChoices))
	for _, ch := range matches {
		if len(choices) == maxAutocompleteChoices {
			break
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  ch.Name,
			Value: ch.Name,
		})
	}
	return choices
}
