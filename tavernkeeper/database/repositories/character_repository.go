package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/uptrace/bun"
)

type CharacterRepository interface {
	Create(ctx context.Context, character *models.Character) error
	GetByID(ctx context.Context, id int64) (*models.Character, error)
	ListByGame(ctx context.Context, gameID int64) ([]*models.Character, error)
	ListByOwner(ctx context.Context, gameID int64, userID string) ([]*models.Character, error)
	Update(ctx context.Context, character *models.Character) error
	Delete(ctx context.Context, id int64) error
}

type characterRepository struct {
	db *bun.DB
}

func NewCharacterRepository(db *bun.DB) CharacterRepository {
	return &characterRepository{db: db}
}

func (r *characterRepository) Create(ctx context.Context, character *models.Character) error {
	now := time.Now()
	character.CreatedAt = now
	character.UpdatedAt = now
	_, err := r.db.NewInsert().Model(character).Exec(ctx)
	return err
}

func (r *characterRepository) GetByID(ctx context.Context, id int64) (*models.Character, error) {
	character := new(models.Character)
	err := r.db.NewSelect().
		Model(character).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return character, nil
}

func (r *characterRepository) ListByGame(ctx context.Context, gameID int64) ([]*models.Character, error) {
	var characters []*models.Character
	err := r.db.NewSelect().
		Model(&characters).
		Where("game_id = ?", gameID).
		Order("name ASC").
		Scan(ctx)
	return characters, err
}

func (r *characterRepository) ListByOwner(ctx context.Context, gameID int64, userID string) ([]*models.Character, error) {
	var characters []*models.Character
	err := r.db.NewSelect().
		Model(&characters).
		Where("game_id = ?", gameID).
		Where("user_id = ?", userID).
		Order("name ASC").
		Scan(ctx)
	return characters, err
}

func (r *characterRepository) Update(ctx context.Context, character *models.Character) error {
	character.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(character).
		WherePK().
		Exec(ctx)
	return err
}

func (r *characterRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().
		Model((*models.Character)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
