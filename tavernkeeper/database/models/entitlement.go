package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EntitlementCache mirrors the platform's premium entitlement state so plan
// checks do not hit the gateway on every command.
type EntitlementCache struct {
	bun.BaseModel `bun:"table:entitlement_cache,alias:ec"`

	EntitlementID string     `bun:"entitlement_id,pk"`
	GuildID       string     `bun:"guild_id,notnull"`
	SkuID         string     `bun:"sku_id,notnull"`
	Active        bool       `bun:"active,notnull,default:true"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// GiftedGuild marks a guild granted premium features without a purchase.
// A nil ExpiresAt means the gift never expires.
type GiftedGuild struct {
	bun.BaseModel `bun:"table:gifted_guilds,alias:gg"`

	GuildID   string     `bun:"guild_id,pk"`
	GrantedBy string     `bun:"granted_by,notnull"`
	Note      string     `bun:"note,nullzero"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
