package bump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendQueue_CeilingRespected(t *testing.T) {
	const limit = 3
	const tasks = 12

	q := NewSendQueue(limit)

	var running, peak, completed int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				atomic.AddInt32(&completed, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit), "in-flight sends exceeded the ceiling")
	assert.Equal(t, int32(tasks), atomic.LoadInt32(&completed), "every enqueued task must run")
	assert.Equal(t, 0, q.InFlight())
	assert.Equal(t, 0, q.Pending())
}

func TestSendQueue_PropagatesTaskError(t *testing.T) {
	q := NewSendQueue(1)

	boom := errors.New("boom")
	err := q.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	err = q.Do(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestSendQueue_RunsQueuedTaskAfterCancel(t *testing.T) {
	// Cancelling a waiting caller's context must not drop the task: it still
	// runs exactly once.
	q := NewSendQueue(1)

	release := make(chan struct{})
	go q.Do(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	// Give the blocker time to occupy the only slot.
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int32
	done := make(chan error, 1)
	go func() {
		done <- q.Do(ctx, func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}()

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}
