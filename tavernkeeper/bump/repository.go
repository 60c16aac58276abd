package bump

import (
	"context"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

// Repository is the narrow slice of bump-thread storage the engine consumes.
// The command layer uses the full repository; the engine only ever loads,
// drops and timestamps registrations.
type Repository interface {
	FindAll(ctx context.Context) ([]*models.BumpThread, error)
	// Get returns (nil, nil) when no registration exists for threadID, so
	// callers can tell "gone" apart from a store error.
	Get(ctx context.Context, threadID string) (*models.BumpThread, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, threadID string) (bool, error)
	TouchLastBumped(ctx context.Context, threadID string, when time.Time) error
}
