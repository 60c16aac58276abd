package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

var Game = discord.SlashCommandCreate{
	Name:        "game",
	Description: "Manage the server's tabletop games",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "create",
			Description: "Create a new game in this server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Name of the game",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "What the game is about",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List the games in this server",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "join",
			Description: "Join a game as your active game",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Name of the game to join",
					Required:    true,
				},
			},
		},
	},
}

func GameHandler(b *tavernkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if e.GuildID() == nil {
			return replyError(e, "This command only works in a server.")
		}

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "create":
			return handleGameCreate(ctx, b, e)
		case "list":
			return handleGameList(ctx, b, e)
		case "join":
			return handleGameJoin(ctx, b, e)
		}
		return nil
	}
}

func handleGameCreate(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	guildID := e.GuildID().String()
	data := e.SlashCommandInteractionData()
	name := strings.TrimSpace(data.String("name"))
	if name == "" {
		return replyError(e, "The game needs a name.")
	}

	existing, err := b.GameRepository.GetByName(ctx, guildID, name)
	if err != nil {
		return replyError(e, "Failed to check existing games.")
	}
	if existing != nil {
		return replyError(e, fmt.Sprintf("A game named **%s** already exists here.", existing.Name))
	}

	count, err := b.GameRepository.CountByGuild(ctx, guildID)
	if err != nil {
		return replyError(e, "Failed to check existing games.")
	}
	if !b.Entitlements.CanCreateGame(ctx, guildID, count) {
		return replyError(e, "This server has reached its game limit. Upgrade to premium to create more.")
	}

	game := &models.Game{
		GuildID:     guildID,
		Name:        name,
		Description: data.String("description"),
		CreatedBy:   e.User().ID.String(),
		IsPublic:    true,
	}
	if err := b.GameRepository.Create(ctx, game); err != nil {
		return replyError(e, "Failed to create the game.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("🎲 Game **%s** created. Players can join it with `/game join`.", game.Name),
	})
}

func handleGameList(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	games, err := b.GameRepository.ListByGuild(ctx, e.GuildID().String())
	if err != nil {
		return replyError(e, "Failed to load games.")
	}
	if len(games) == 0 {
		return e.CreateMessage(discord.MessageCreate{
			Content: "No games exist in this server yet. Create one with `/game create`.",
		})
	}

	var sb strings.Builder
	for _, game := range games {
		sb.WriteString(fmt.Sprintf("**%s**", game.Name))
		if game.Description != "" {
			sb.WriteString(" — " + game.Description)
		}
		sb.WriteString("\n")
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("🎲 Games").
		SetDescription(sb.String()).
		SetFooter(fmt.Sprintf("%d game(s)", len(games)), "").
		SetColor(0x2b2d31).
		Build()

	return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed}})
}

func handleGameJoin(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	guildID := e.GuildID().String()
	name := e.SlashCommandInteractionData().String("name")

	game, err := b.GameRepository.GetByName(ctx, guildID, name)
	if err != nil {
		return replyError(e, "Failed to look up the game.")
	}
	if game == nil {
		return replyError(e, fmt.Sprintf("No game named **%s** exists here.", name))
	}

	player, err := b.PlayerRepository.GetOrCreate(ctx, e.User().ID.String())
	if err != nil {
		return replyError(e, "Failed to load your player profile.")
	}
	if err := b.PlayerRepository.SetActiveGame(ctx, player.ID, guildID, game.ID); err != nil {
		return replyError(e, "Failed to join the game.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("✅ You joined **%s**. Create a character with `/character create`.", game.Name),
	})
}
