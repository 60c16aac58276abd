package bump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalDue(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("last bump is the base when present", func(t *testing.T) {
		row := registration("t1", "g1", 60, now.Add(-3*time.Hour))
		bumped := now.Add(-30 * time.Minute)
		row.LastBumpedAt = &bumped

		due := IntervalDue(cfg, row, now)
		assert.Equal(t, bumped.Add(60*time.Minute), due)
	})

	t.Run("falls back to created_at when never bumped", func(t *testing.T) {
		created := now.Add(-10 * time.Minute)
		row := registration("t1", "g1", 60, created)

		due := IntervalDue(cfg, row, now)
		assert.Equal(t, created.Add(60*time.Minute), due)
	})

	t.Run("falls back to now without any timestamps", func(t *testing.T) {
		row := registration("t1", "g1", 60, time.Time{})

		due := IntervalDue(cfg, row, now)
		assert.Equal(t, now.Add(60*time.Minute), due)
	})

	t.Run("zero interval uses the configured default", func(t *testing.T) {
		row := registration("t1", "g1", 0, now)

		due := IntervalDue(cfg, row, now)
		assert.Equal(t, now.Add(time.Duration(cfg.DefaultIntervalMinutes)*time.Minute), due)
	})
}

func TestNextDue(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("archive deadline bounds a huge interval", func(t *testing.T) {
		lastActivity := now.Add(-2 * time.Hour)
		row := registration("t1", "g1", 10000, now.Add(-24*time.Hour))
		meta := &ThreadMeta{AutoArchiveMinutes: 1440, LastActivityAt: lastActivity}

		due := NextDue(cfg, row, meta, now)
		// 1440 - 30 guard = 1410 minutes past the freshest activity.
		require.Equal(t, lastActivity.Add(1410*time.Minute), due)
	})

	t.Run("no metadata means interval-only", func(t *testing.T) {
		row := registration("t1", "g1", 120, now.Add(-time.Hour))
		bumped := now.Add(-30 * time.Minute)
		row.LastBumpedAt = &bumped

		due := NextDue(cfg, row, nil, now)
		assert.Equal(t, IntervalDue(cfg, row, now), due)
	})

	t.Run("repository bump record wins over stale platform activity", func(t *testing.T) {
		// Deleting the bump message rolls the platform's last-activity back;
		// the stored bump timestamp must still anchor the archive deadline.
		platformActivity := now.Add(-3 * time.Hour)
		bumped := now.Add(-time.Hour)
		row := registration("t1", "g1", 10000, now.Add(-48*time.Hour))
		row.LastBumpedAt = &bumped
		meta := &ThreadMeta{AutoArchiveMinutes: 1440, LastActivityAt: platformActivity}

		due := NextDue(cfg, row, meta, now)
		assert.Equal(t, bumped.Add(1410*time.Minute), due)
	})

	t.Run("interval wins when earlier than the archive deadline", func(t *testing.T) {
		bumped := now.Add(-10 * time.Minute)
		row := registration("t1", "g1", 60, now.Add(-time.Hour))
		row.LastBumpedAt = &bumped
		meta := &ThreadMeta{AutoArchiveMinutes: 10080, LastActivityAt: bumped}

		due := NextDue(cfg, row, meta, now)
		assert.Equal(t, bumped.Add(60*time.Minute), due)
	})

	t.Run("guard larger than window still leaves a positive margin", func(t *testing.T) {
		bumped := now.Add(-5 * time.Minute)
		row := registration("t1", "g1", 10000, now.Add(-time.Hour))
		row.LastBumpedAt = &bumped
		meta := &ThreadMeta{AutoArchiveMinutes: 20, LastActivityAt: bumped}

		due := NextDue(cfg, row, meta, now)
		assert.Equal(t, bumped.Add(time.Minute), due)
	})

	t.Run("metadata without activity timestamps is ignored", func(t *testing.T) {
		row := registration("t1", "g1", 60, now.Add(-10*time.Minute))
		meta := &ThreadMeta{AutoArchiveMinutes: 1440}

		due := NextDue(cfg, row, meta, now)
		assert.Equal(t, IntervalDue(cfg, row, now), due)
	})
}
