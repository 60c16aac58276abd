package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/uptrace/bun"
)

type PlayerRepository interface {
	// GetOrCreate returns the player row for a Discord user, creating it on
	// first contact.
	GetOrCreate(ctx context.Context, discordID string) (*models.Player, error)
	GuildState(ctx context.Context, playerID int64, guildID string) (*models.PlayerGuildState, error)
	SetActiveGame(ctx context.Context, playerID int64, guildID string, gameID int64) error
	SetActiveCharacter(ctx context.Context, playerID int64, guildID string, characterID int64) error
}

type playerRepository struct {
	db *bun.DB
}

func NewPlayerRepository(db *bun.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetOrCreate(ctx context.Context, discordID string) (*models.Player, error) {
	player := new(models.Player)
	err := r.db.NewSelect().
		Model(player).
		Where("discord_id = ?", discordID).
		Scan(ctx)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now()
	player = &models.Player{
		DiscordID: discordID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.db.NewInsert().
		Model(player).
		On("CONFLICT (discord_id) DO UPDATE SET updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	return player, err
}

func (r *playerRepository) GuildState(ctx context.Context, playerID int64, guildID string) (*models.PlayerGuildState, error) {
	state := new(models.PlayerGuildState)
	err := r.db.NewSelect().
		Model(state).
		Where("player_id = ?", playerID).
		Where("guild_id = ?", guildID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *playerRepository) SetActiveGame(ctx context.Context, playerID int64, guildID string, gameID int64) error {
	state := &models.PlayerGuildState{
		PlayerID:     playerID,
		GuildID:      guildID,
		ActiveGameID: &gameID,
		UpdatedAt:    time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(state).
		On("CONFLICT (player_id, guild_id) DO UPDATE").
		Set("active_game_id = EXCLUDED.active_game_id").
		// Switching games drops the character selection from the old game.
		Set("active_character_id = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *playerRepository) SetActiveCharacter(ctx context.Context, playerID int64, guildID string, characterID int64) error {
	state := &models.PlayerGuildState{
		PlayerID:          playerID,
		GuildID:           guildID,
		ActiveCharacterID: &characterID,
		UpdatedAt:         time.Now(),
	}
	_, err := r.db.NewInsert().
		Model(state).
		On("CONFLICT (player_id, guild_id) DO UPDATE").
		Set("active_character_id = EXCLUDED.active_character_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
