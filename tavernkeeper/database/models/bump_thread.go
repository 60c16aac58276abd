package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BumpThread is a per-thread auto-bump registration. Exactly one row exists
// per thread_id; registering the same thread again upserts note/interval.
type BumpThread struct {
	bun.BaseModel `bun:"table:bump_threads,alias:bt"`

	ThreadID        string     `bun:"thread_id,pk"`
	GuildID         string     `bun:"guild_id,notnull"`
	AddedBy         string     `bun:"added_by,notnull"`
	Note            string     `bun:"note,nullzero"`
	IntervalMinutes int        `bun:"interval_minutes,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastBumpedAt    *time.Time `bun:"last_bumped_at,nullzero"`
}
