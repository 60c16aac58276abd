package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/uptrace/bun"
)

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id int64) (*models.Game, error)
	GetByName(ctx context.Context, guildID, name string) (*models.Game, error)
	ListByGuild(ctx context.Context, guildID string) ([]*models.Game, error)
	CountByGuild(ctx context.Context, guildID string) (int, error)
	Delete(ctx context.Context, id int64) error
}

type gameRepository struct {
	db *bun.DB
}

func NewGameRepository(db *bun.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) Create(ctx context.Context, game *models.Game) error {
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now
	_, err := r.db.NewInsert().Model(game).Exec(ctx)
	return err
}

func (r *gameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	game := new(models.Game)
	err := r.db.NewSelect().
		Model(game).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (r *gameRepository) GetByName(ctx context.Context, guildID, name string) (*models.Game, error) {
	game := new(models.Game)
	err := r.db.NewSelect().
		Model(game).
		Where("guild_id = ?", guildID).
		Where("LOWER(name) = LOWER(?)", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (r *gameRepository) ListByGuild(ctx context.Context, guildID string) ([]*models.Game, error) {
	var games []*models.Game
	err := r.db.NewSelect().
		Model(&games).
		Where("guild_id = ?", guildID).
		Order("name ASC").
		Scan(ctx)
	return games, err
}

func (r *gameRepository) CountByGuild(ctx context.Context, guildID string) (int, error) {
	return r.db.NewSelect().
		Model((*models.Game)(nil)).
		Where("guild_id = ?", guildID).
		Count(ctx)
}

func (r *gameRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*models.Game)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
