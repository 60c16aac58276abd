package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

type fakeEntitlementRepo struct {
	gifted   map[string]bool
	active   map[string][]*models.EntitlementCache
	fail     bool
	resolves int
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{
		gifted: make(map[string]bool),
		active: make(map[string][]*models.EntitlementCache),
	}
}

func (r *fakeEntitlementRepo) UpsertEntitlement(_ context.Context, ent *models.EntitlementCache) error {
	r.active[ent.GuildID] = append(r.active[ent.GuildID], ent)
	return nil
}

func (r *fakeEntitlementRepo) ActiveForGuild(_ context.Context, guildID string) ([]*models.EntitlementCache, error) {
	if r.fail {
		return nil, errors.New("store down")
	}
	return r.active[guildID], nil
}

func (r *fakeEntitlementRepo) DeactivateEntitlement(_ context.Context, entitlementID string) error {
	return nil
}

func (r *fakeEntitlementRepo) IsGifted(_ context.Context, guildID string) (bool, error) {
	if r.fail {
		return false, errors.New("store down")
	}
	r.resolves++
	return r.gifted[guildID], nil
}

func (r *fakeEntitlementRepo) GiftGuild(_ context.Context, gift *models.GiftedGuild) error {
	r.gifted[gift.GuildID] = true
	return nil
}

func (r *fakeEntitlementRepo) RevokeGift(_ context.Context, guildID string) (bool, error) {
	existed := r.gifted[guildID]
	delete(r.gifted, guildID)
	return existed, nil
}

func (r *fakeEntitlementRepo) ListGifted(_ context.Context, limit int) ([]*models.GiftedGuild, error) {
	gifts := make([]*models.GiftedGuild, 0, len(r.gifted))
	for guildID := range r.gifted {
		gifts = append(gifts, &models.GiftedGuild{GuildID: guildID})
	}
	if len(gifts) > limit {
		gifts = gifts[:limit]
	}
	return gifts, nil
}

func TestPlanFor_DefaultsToFree(t *testing.T) {
	svc := NewEntitlementsService(newFakeEntitlementRepo())

	assert.Equal(t, PlanFree, svc.PlanFor(context.Background(), "g1"))
}

func TestPlanFor_GiftedGuildIsPremium(t *testing.T) {
	repo := newFakeEntitlementRepo()
	repo.gifted["g1"] = true
	svc := NewEntitlementsService(repo)

	assert.Equal(t, PlanPremium, svc.PlanFor(context.Background(), "g1"))
}

func TestPlanFor_ActiveEntitlementIsPremium(t *testing.T) {
	repo := newFakeEntitlementRepo()
	repo.active["g1"] = []*models.EntitlementCache{{EntitlementID: "e1", GuildID: "g1"}}
	svc := NewEntitlementsService(repo)

	assert.Equal(t, PlanPremium, svc.PlanFor(context.Background(), "g1"))
}

func TestPlanFor_CachesUntilInvalidated(t *testing.T) {
	repo := newFakeEntitlementRepo()
	svc := NewEntitlementsService(repo)
	ctx := context.Background()

	svc.PlanFor(ctx, "g1")
	svc.PlanFor(ctx, "g1")
	assert.Equal(t, 1, repo.resolves, "second lookup must be served from cache")

	repo.gifted["g1"] = true
	assert.Equal(t, PlanFree, svc.PlanFor(ctx, "g1"), "stale cache entry still answers")

	svc.Invalidate("g1")
	assert.Equal(t, PlanPremium, svc.PlanFor(ctx, "g1"))
}

func TestPlanFor_StoreErrorFallsBackToFree(t *testing.T) {
	repo := newFakeEntitlementRepo()
	repo.gifted["g1"] = true
	repo.fail = true
	svc := NewEntitlementsService(repo)

	assert.Equal(t, PlanFree, svc.PlanFor(context.Background(), "g1"))
}

func TestFreeTierLimits(t *testing.T) {
	repo := newFakeEntitlementRepo()
	svc := NewEntitlementsService(repo)
	ctx := context.Background()

	assert.True(t, svc.CanRegisterBumpThread(ctx, "g1", FreeMaxBumpThreads-1))
	assert.False(t, svc.CanRegisterBumpThread(ctx, "g1", FreeMaxBumpThreads))
	assert.True(t, svc.CanCreateGame(ctx, "g1", FreeMaxGames-1))
	assert.False(t, svc.CanCreateGame(ctx, "g1", FreeMaxGames))

	repo.gifted["g2"] = true
	assert.True(t, svc.CanRegisterBumpThread(ctx, "g2", 1000))
	assert.True(t, svc.CanCreateGame(ctx, "g2", 1000))
}
