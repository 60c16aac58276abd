package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	BumpThread,
	Game,
	Character,
	Gift,
	Version,
}
