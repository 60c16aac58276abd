package bump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Bump(t *testing.T) {
	ctx := context.Background()

	t.Run("sends, records and cleans up", func(t *testing.T) {
		repo := newFakeRepo(registration("t1", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		thread := gw.addThread("t1", &fakeThread{})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t1"))

		sent := thread.sentMessages()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "auto-bumped")
		assert.NotNil(t, repo.lastBumped("t1"))
		assert.Equal(t, 1, thread.deletedCount())
	})

	t.Run("includes the note verbatim", func(t *testing.T) {
		row := registration("t2", "g1", 60, time.Now().Add(-time.Hour))
		row.Note = "weekly check-in"
		repo := newFakeRepo(row)
		gw := newFakeGateway()
		thread := gw.addThread("t2", &fakeThread{})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t2"))

		sent := thread.sentMessages()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "weekly check-in")
	})

	t.Run("missing registration bumps without a note", func(t *testing.T) {
		repo := newFakeRepo()
		gw := newFakeGateway()
		thread := gw.addThread("t3", &fakeThread{})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t3"))
		require.Len(t, thread.sentMessages(), 1)
		assert.NotContains(t, thread.sentMessages()[0], "💬")
	})

	t.Run("unarchives an archived thread before sending", func(t *testing.T) {
		repo := newFakeRepo(registration("t4", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		thread := gw.addThread("t4", &fakeThread{archived: true})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t4"))
		assert.Equal(t, 1, thread.unarchives)
		assert.Len(t, thread.sentMessages(), 1)
	})

	t.Run("unarchive permission failure is terminal", func(t *testing.T) {
		repo := newFakeRepo(registration("t5", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		gw.addThread("t5", &fakeThread{
			archived:     true,
			unarchiveErr: &GatewayError{Kind: KindPermission, Op: "unarchive thread"},
		})
		exec := NewExecutor(testConfig(), repo, gw)

		err := exec.Bump(ctx, "t5")
		require.Error(t, err)
		assert.True(t, IsTerminal(err))
	})

	t.Run("unlock failure is non-fatal", func(t *testing.T) {
		repo := newFakeRepo(registration("t6", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		thread := gw.addThread("t6", &fakeThread{
			locked:    true,
			unlockErr: &GatewayError{Kind: KindPermission, Op: "unlock thread"},
		})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t6"))
		assert.Len(t, thread.sentMessages(), 1)
	})

	t.Run("delete failure does not fail the bump", func(t *testing.T) {
		repo := newFakeRepo(registration("t7", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		thread := gw.addThread("t7", &fakeThread{deleteErr: errors.New("already gone")})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t7"))
		assert.NotNil(t, repo.lastBumped("t7"))
		assert.Equal(t, 0, thread.deletedCount())
	})

	t.Run("missing thread surfaces as terminal", func(t *testing.T) {
		repo := newFakeRepo(registration("t8", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		exec := NewExecutor(testConfig(), repo, gw)

		err := exec.Bump(ctx, "t8")
		require.Error(t, err)
		assert.True(t, IsTerminal(err))
	})

	t.Run("fetch blocked by a permission wall is terminal", func(t *testing.T) {
		repo := newFakeRepo(registration("t10", "g1", 60, time.Now().Add(-time.Hour)))
		gw := newFakeGateway()
		gw.fetchErrs["t10"] = &GatewayError{Kind: KindPermission, Op: "fetch thread"}
		exec := NewExecutor(testConfig(), repo, gw)

		err := exec.Bump(ctx, "t10")
		require.Error(t, err)
		assert.True(t, IsTerminal(err))
	})

	t.Run("recorded bump moves strictly forward", func(t *testing.T) {
		row := registration("t9", "g1", 60, time.Now().Add(-2*time.Hour))
		prior := time.Now().Add(-time.Hour)
		row.LastBumpedAt = &prior
		repo := newFakeRepo(row)
		gw := newFakeGateway()
		gw.addThread("t9", &fakeThread{})
		exec := NewExecutor(testConfig(), repo, gw)

		require.NoError(t, exec.Bump(ctx, "t9"))
		bumped := repo.lastBumped("t9")
		require.NotNil(t, bumped)
		assert.True(t, bumped.After(prior))
	})
}

func TestExecutor_BumpVisible(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 60, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()
	thread := gw.addThread("t1", &fakeThread{})
	exec := NewExecutor(testConfig(), repo, gw)

	require.NoError(t, exec.BumpVisible(context.Background(), "t1"))
	assert.Len(t, thread.sentMessages(), 1)
	assert.Equal(t, 0, thread.deletedCount(), "manual bumps stay visible")
}
