package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	CharacterVisibilityPublic  = "public"
	CharacterVisibilityPrivate = "private"
)

type Character struct {
	bun.BaseModel `bun:"table:characters,alias:ch"`

	ID         int64             `bun:"id,pk,autoincrement"`
	GameID     int64             `bun:"game_id,notnull"`
	UserID     string            `bun:"user_id,notnull"`
	Name       string            `bun:"name,notnull"`
	AvatarURL  string            `bun:"avatar_url,nullzero"`
	Bio        string            `bun:"bio,nullzero"`
	Visibility string            `bun:"visibility,notnull,default:'public'"`
	Stats      map[string]string `bun:"stats,type:jsonb"`
	CreatedAt  time.Time         `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull,default:current_timestamp"`
}

// VisibleTo reports whether viewerID may see this character sheet.
func (c *Character) VisibleTo(viewerID string) bool {
	return c.Visibility != CharacterVisibilityPrivate || c.UserID == viewerID
}
