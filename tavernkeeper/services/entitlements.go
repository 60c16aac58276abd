package services

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/repositories"
)

// Plan is the feature tier a guild resolves to.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Free-tier ceilings. Premium and gifted guilds are unlimited.
const (
	FreeMaxBumpThreads = 5
	FreeMaxGames       = 2
)

const planCacheTTL = 5 * time.Minute

type cachedPlan struct {
	plan      Plan
	expiresAt time.Time
}

// EntitlementsService resolves a guild's plan from the entitlement cache
// table, with a small in-memory LRU in front so command handlers do not hit
// the database on every interaction.
type EntitlementsService struct {
	repo  repositories.EntitlementRepository
	cache *lru.Cache
}

func NewEntitlementsService(repo repositories.EntitlementRepository) *EntitlementsService {
	cache, _ := lru.New(512)
	return &EntitlementsService{
		repo:  repo,
		cache: cache,
	}
}

// PlanFor resolves the plan for a guild. Gifted guilds count as premium.
// On store errors it falls back to the free plan rather than failing the
// calling command.
func (s *EntitlementsService) PlanFor(ctx context.Context, guildID string) Plan {
	if v, ok := s.cache.Get(guildID); ok {
		entry := v.(cachedPlan)
		if time.Now().Before(entry.expiresAt) {
			return entry.plan
		}
		s.cache.Remove(guildID)
	}

	plan := s.resolve(ctx, guildID)
	s.cache.Add(guildID, cachedPlan{plan: plan, expiresAt: time.Now().Add(planCacheTTL)})
	return plan
}

func (s *EntitlementsService) resolve(ctx context.Context, guildID string) Plan {
	gifted, err := s.repo.IsGifted(ctx, guildID)
	if err != nil {
		slog.Warn("Failed to check gifted status, assuming free plan",
			slog.String("type", "db"),
			slog.String("guild_id", guildID),
			slog.Any("error", err))
		return PlanFree
	}
	if gifted {
		return PlanPremium
	}

	ents, err := s.repo.ActiveForGuild(ctx, guildID)
	if err != nil {
		slog.Warn("Failed to load entitlements, assuming free plan",
			slog.String("type", "db"),
			slog.String("guild_id", guildID),
			slog.Any("error", err))
		return PlanFree
	}
	if len(ents) > 0 {
		return PlanPremium
	}
	return PlanFree
}

// Invalidate drops the cached plan for a guild, used when an entitlement
// event arrives from the gateway.
func (s *EntitlementsService) Invalidate(guildID string) {
	s.cache.Remove(guildID)
}

// CanRegisterBumpThread reports whether the guild may register another bump
// thread under its plan, given its current count.
func (s *EntitlementsService) CanRegisterBumpThread(ctx context.Context, guildID string, current int) bool {
	if s.PlanFor(ctx, guildID) == PlanPremium {
		return true
	}
	return current < FreeMaxBumpThreads
}

// CanCreateGame reports whether the guild may create another game under its
// plan, given its current count.
func (s *EntitlementsService) CanCreateGame(ctx context.Context, guildID string, current int) bool {
	if s.PlanFor(ctx, guildID) == PlanPremium {
		return true
	}
	return current < FreeMaxGames
}
