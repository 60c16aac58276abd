package commands

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
)

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the bot version",
}

func VersionHandler(b *tavernkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Tavernkeeper `%s` (commit `%s`)\nBump timers active: %d",
				b.Version, b.Commit, b.BumpManager.ActiveTimers()),
			Flags: discord.MessageFlagEphemeral,
		})
	}
}
