package bump

import (
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

// IntervalDue computes the interval-only due time: the last confirmed bump
// (or the registration time, or now as a last resort) plus the configured
// cadence. Always computable without touching the platform.
func IntervalDue(cfg Config, row *models.BumpThread, now time.Time) time.Time {
	base := now
	switch {
	case row.LastBumpedAt != nil && !row.LastBumpedAt.IsZero():
		base = *row.LastBumpedAt
	case !row.CreatedAt.IsZero():
		base = row.CreatedAt
	}

	minutes := row.IntervalMinutes
	if minutes <= 0 {
		minutes = cfg.DefaultIntervalMinutes
	}
	return base.Add(time.Duration(minutes) * time.Minute)
}

// NextDue computes the next bump instant. With thread metadata available it
// takes the earlier of the interval due time and the archive deadline
// (freshest activity + auto-archive window − guard), so a bump always lands
// before the platform archives the thread. The repository's own bump record
// wins over platform-observed activity when newer, because a deleted bump
// message can make the platform's last-activity appear to roll backward.
// Without metadata (fetch failed, thread unreachable) it falls back to the
// interval due time alone.
func NextDue(cfg Config, row *models.BumpThread, meta *ThreadMeta, now time.Time) time.Time {
	due := IntervalDue(cfg, row, now)
	if meta == nil || meta.AutoArchiveMinutes <= 0 {
		return due
	}

	freshest := meta.LastActivityAt
	if row.LastBumpedAt != nil && row.LastBumpedAt.After(freshest) {
		freshest = *row.LastBumpedAt
	}
	if freshest.IsZero() {
		return due
	}

	margin := meta.AutoArchiveMinutes - cfg.GuardMinutes
	if margin < 1 {
		margin = 1
	}
	archiveDue := freshest.Add(time.Duration(margin) * time.Minute)
	if archiveDue.Before(due) {
		return archiveDue
	}
	return due
}
