package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

const entitlementWriteTimeout = 10 * time.Second

// EntitlementListeners keeps the entitlement cache table in step with the
// gateway, so plan checks reflect purchases, renewals and cancellations
// without a restart.
func EntitlementListeners(b *tavernkeeper.Bot) []bot.EventListener {
	return []bot.EventListener{
		bot.NewListenerFunc(func(e *events.EntitlementCreate) { recordEntitlement(b, e.Entitlement) }),
		bot.NewListenerFunc(func(e *events.EntitlementUpdate) { recordEntitlement(b, e.Entitlement) }),
		bot.NewListenerFunc(func(e *events.EntitlementDelete) { dropEntitlement(b, e.Entitlement) }),
	}
}

func recordEntitlement(b *tavernkeeper.Bot, ent discord.Entitlement) {
	// User-scoped entitlements carry no guild and don't affect guild plans.
	if ent.GuildID == nil {
		return
	}
	guildID := ent.GuildID.String()

	ctx, cancel := context.WithTimeout(context.Background(), entitlementWriteTimeout)
	defer cancel()

	row := &models.EntitlementCache{
		EntitlementID: ent.ID.String(),
		GuildID:       guildID,
		SkuID:         ent.SkuID.String(),
		Active:        !ent.Deleted,
		ExpiresAt:     ent.EndsAt,
	}
	if err := b.EntitlementRepository.UpsertEntitlement(ctx, row); err != nil {
		slog.Error("Failed to record entitlement",
			slog.String("type", "db"),
			slog.String("guild_id", guildID),
			slog.String("entitlement_id", row.EntitlementID),
			slog.Any("error", err))
		return
	}
	b.Entitlements.Invalidate(guildID)

	slog.Info("Entitlement recorded",
		slog.String("type", "sys"),
		slog.String("guild_id", guildID),
		slog.String("entitlement_id", row.EntitlementID),
		slog.Bool("active", row.Active))
}

func dropEntitlement(b *tavernkeeper.Bot, ent discord.Entitlement) {
	ctx, cancel := context.WithTimeout(context.Background(), entitlementWriteTimeout)
	defer cancel()

	if err := b.EntitlementRepository.DeactivateEntitlement(ctx, ent.ID.String()); err != nil {
		slog.Error("Failed to deactivate entitlement",
			slog.String("type", "db"),
			slog.String("entitlement_id", ent.ID.String()),
			slog.Any("error", err))
		return
	}
	if ent.GuildID != nil {
		b.Entitlements.Invalidate(ent.GuildID.String())
	}

	slog.Info("Entitlement removed",
		slog.String("type", "sys"),
		slog.String("entitlement_id", ent.ID.String()))
}
