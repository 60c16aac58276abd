package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	DiscordID string    `bun:"discord_id,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// PlayerGuildState tracks a player's per-guild selections: which game they
// joined and which character they are currently playing.
type PlayerGuildState struct {
	bun.BaseModel `bun:"table:player_guild_states,alias:pgs"`

	PlayerID          int64     `bun:"player_id,pk"`
	GuildID           string    `bun:"guild_id,pk"`
	ActiveGameID      *int64    `bun:"active_game_id,nullzero"`
	ActiveCharacterID *int64    `bun:"active_character_id,nullzero"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
