package repositories

import (
	"context"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/uptrace/bun"
)

type EntitlementRepository interface {
	UpsertEntitlement(ctx context.Context, ent *models.EntitlementCache) error
	ActiveForGuild(ctx context.Context, guildID string) ([]*models.EntitlementCache, error)
	DeactivateEntitlement(ctx context.Context, entitlementID string) error
	IsGifted(ctx context.Context, guildID string) (bool, error)
	GiftGuild(ctx context.Context, gift *models.GiftedGuild) error
	RevokeGift(ctx context.Context, guildID string) (bool, error)
	ListGifted(ctx context.Context, limit int) ([]*models.GiftedGuild, error)
}

type entitlementRepository struct {
	db *bun.DB
}

func NewEntitlementRepository(db *bun.DB) EntitlementRepository {
	return &entitlementRepository{db: db}
}

func (r *entitlementRepository) UpsertEntitlement(ctx context.Context, ent *models.EntitlementCache) error {
	ent.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(ent).
		On("CONFLICT (entitlement_id) DO UPDATE").
		Set("active = EXCLUDED.active").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *entitlementRepository) ActiveForGuild(ctx context.Context, guildID string) ([]*models.EntitlementCache, error) {
	var ents []*models.EntitlementCache
	err := r.db.NewSelect().
		Model(&ents).
		Where("guild_id = ?", guildID).
		Where("active = true").
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Scan(ctx)
	return ents, err
}

func (r *entitlementRepository) DeactivateEntitlement(ctx context.Context, entitlementID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.EntitlementCache)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("entitlement_id = ?", entitlementID).
		Exec(ctx)
	return err
}

func (r *entitlementRepository) IsGifted(ctx context.Context, guildID string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.GiftedGuild)(nil)).
		Where("guild_id = ?", guildID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Exists(ctx)
}

func (r *entitlementRepository) GiftGuild(ctx context.Context, gift *models.GiftedGuild) error {
	now := time.Now()
	gift.CreatedAt = now
	gift.UpdatedAt = now
	_, err := r.db.NewInsert().
		Model(gift).
		On("CONFLICT (guild_id) DO UPDATE").
		Set("granted_by = EXCLUDED.granted_by").
		Set("note = EXCLUDED.note").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *entitlementRepository) RevokeGift(ctx context.Context, guildID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.GiftedGuild)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *entitlementRepository) ListGifted(ctx context.Context, limit int) ([]*models.GiftedGuild, error) {
	var gifts []*models.GiftedGuild
	err := r.db.NewSelect().
		Model(&gifts).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	return gifts, err
}
