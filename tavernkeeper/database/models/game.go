package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID          int64     `bun:"id,pk,autoincrement"`
	GuildID     string    `bun:"guild_id,notnull"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,nullzero"`
	CreatedBy   string    `bun:"created_by,notnull"`
	IsPublic    bool      `bun:"is_public,notnull,default:true"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
