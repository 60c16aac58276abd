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
	"github.com/tavernkeep/tavern-bot/tavernkeeper/utils"
)

var Gift = discord.SlashCommandCreate{
	Name:                     "gift",
	Description:              "Manage gifted premium access",
	DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionAdministrator),
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Gift premium access to a server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "guild_id",
					Description: "Target server id",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "note",
					Description: "Optional note",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "days",
					Description: "Expiry in days (omit for no expiry)",
					Required:    false,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "revoke",
			Description: "Revoke gifted access for a server",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "guild_id",
					Description: "Target server id",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List gifted servers, most recent first",
		},
	},
}

func GiftHandler(b *tavernkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if owner := b.Cfg.Bot.OwnerID; owner != "" && e.User().ID.String() != owner {
			return replyError(e, "Not authorized.")
		}

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "add":
			return handleGiftAdd(ctx, b, e)
		case "revoke":
			return handleGiftRevoke(ctx, b, e)
		case "list":
			return handleGiftList(ctx, b, e)
		}
		return nil
	}
}

func handleGiftAdd(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	guildID := strings.TrimSpace(data.String("guild_id"))
	if guildID == "" {
		return replyError(e, "A server id is required.")
	}

	var expiresAt *time.Time
	if days, ok := data.OptInt("days"); ok {
		exp := time.Now().AddDate(0, 0, days)
		expiresAt = &exp
	}

	gift := &models.GiftedGuild{
		GuildID:   guildID,
		GrantedBy: e.User().ID.String(),
		Note:      data.String("note"),
		ExpiresAt: expiresAt,
	}
	if err := b.EntitlementRepository.GiftGuild(ctx, gift); err != nil {
		return replyError(e, "Failed to save the gift.")
	}
	b.Entitlements.Invalidate(guildID)

	content := fmt.Sprintf("✅ Gifted **%s**", guildID)
	if expiresAt != nil {
		content += fmt.Sprintf(", expires %s.", utils.DiscordRelative(*expiresAt))
	} else {
		content += " (no expiry)."
	}
	return e.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func handleGiftRevoke(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	guildID := strings.TrimSpace(e.SlashCommandInteractionData().String("guild_id"))

	revoked, err := b.EntitlementRepository.RevokeGift(ctx, guildID)
	if err != nil {
		return replyError(e, "Failed to revoke the gift.")
	}
	b.Entitlements.Invalidate(guildID)

	content := fmt.Sprintf("ℹ️ No gift existed for **%s**.", guildID)
	if revoked {
		content = fmt.Sprintf("🗑️ Revoked gift for **%s**.", guildID)
	}
	return e.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func handleGiftList(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	gifts, err := b.EntitlementRepository.ListGifted(ctx, 25)
	if err != nil {
		return replyError(e, "Failed to load gifted servers.")
	}
	if len(gifts) == 0 {
		return e.CreateMessage(discord.MessageCreate{
			Content: "No gifted servers.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	var sb strings.Builder
	for _, gift := range gifts {
		sb.WriteString(fmt.Sprintf("• **%s** — granted by <@%s>", gift.GuildID, gift.GrantedBy))
		if gift.ExpiresAt != nil {
			sb.WriteString(fmt.Sprintf(", expires %s", utils.DiscordRelative(*gift.ExpiresAt)))
		}
		if gift.Note != "" {
			sb.WriteString(fmt.Sprintf(" — _%s_", gift.Note))
		}
		sb.WriteString("\n")
	}
	return e.CreateMessage(discord.MessageCreate{
		Content: sb.String(),
		Flags:   discord.MessageFlagEphemeral,
	})
}
