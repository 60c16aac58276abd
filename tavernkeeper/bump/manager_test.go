package bump

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(cfg Config, repo Repository, gw ThreadGateway) (*Manager, *Executor, *SendQueue) {
	queue := NewSendQueue(cfg.SendConcurrency)
	exec := NewExecutor(cfg, repo, gw)
	return NewManager(cfg, repo, gw, exec, queue), exec, queue
}

func TestManager_InitializeArmsAndFires(t *testing.T) {
	// Overdue registration: created an hour ago with a 10 minute cadence.
	// The armed delay clamps to the floor, so the bump lands almost at once.
	repo := newFakeRepo(registration("t1", "g1", 10, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()
	thread := gw.addThread("t1", &fakeThread{})

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, 1, m.ActiveTimers())

	require.Eventually(t, func() bool {
		return len(thread.sentMessages()) == 1 && repo.lastBumped("t1") != nil
	}, time.Second, 5*time.Millisecond)

	// Success re-arms for the next cycle, now ~10 minutes out.
	require.Eventually(t, func() bool { return m.HasTimer("t1") }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, thread.sentMessages(), 1, "freshly bumped thread must not fire again")
}

func TestManager_AtMostOneTimerPerThread(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 60, time.Now()))
	gw := newFakeGateway()
	gw.addThread("t1", &fakeThread{})

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.OnRegisteredOrUpdated(ctx, "t1")
	}
	assert.Equal(t, 1, m.ActiveTimers())
	assert.True(t, m.HasTimer("t1"))

	m.OnUnregistered("t1")
	assert.Equal(t, 0, m.ActiveTimers())
	assert.False(t, m.HasTimer("t1"))
}

func TestManager_RescheduleForMissingRowDoesNothing(t *testing.T) {
	repo := newFakeRepo()
	gw := newFakeGateway()

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	m.OnRegisteredOrUpdated(context.Background(), "ghost")
	assert.Equal(t, 0, m.ActiveTimers())
}

func TestManager_TerminalFailureRemovesRegistration(t *testing.T) {
	// The gateway has no such thread at all: fetch fails with not-found,
	// which is terminal.
	repo := newFakeRepo(registration("t1", "g1", 10, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	require.NoError(t, m.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		return !repo.exists("t1") && !m.HasTimer("t1")
	}, time.Second, 5*time.Millisecond)
}

func TestManager_TransientFailuresBackOffThenRecover(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 10, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()
	thread := gw.addThread("t1", &fakeThread{
		sendErrs: []error{transientErr(), transientErr(), nil},
	})

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	require.NoError(t, m.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		return len(thread.sentMessages()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, repo.exists("t1"), "transient failures must not delete the registration")
	assert.NotNil(t, repo.lastBumped("t1"))

	m.mu.Lock()
	attempts := m.attempts["t1"]
	m.mu.Unlock()
	assert.Zero(t, attempts, "success resets the failure counter")
}

func TestManager_RetryDelayGrowsUntilCap(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.MaxRetryDelay = time.Hour
	m := NewManager(cfg, newFakeRepo(), newFakeGateway(), nil, nil)

	prev := m.retryDelay(1)
	for attempt := 2; attempt <= 5; attempt++ {
		d := m.retryDelay(attempt)
		assert.GreaterOrEqual(t, d, prev, "backoff must be monotonic below the cap")
		prev = d
	}

	cfg.MaxRetryDelay = 8 * time.Millisecond
	m = NewManager(cfg, newFakeRepo(), newFakeGateway(), nil, nil)
	assert.LessOrEqual(t, m.retryDelay(40), cfg.MaxRetryDelay+cfg.BackoffBase)
}

func TestManager_JitterStaysBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Jitter = 15 * time.Second
	m := NewManager(cfg, newFakeRepo(), newFakeGateway(), nil, nil)

	base := 10 * time.Minute
	for i := 0; i < 100; i++ {
		d := m.jittered(base)
		assert.GreaterOrEqual(t, d, base-cfg.Jitter)
		assert.LessOrEqual(t, d, base+cfg.Jitter)
	}
}

func TestManager_UnregisterCancelsPendingFire(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 10, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()
	cfg := testConfig()
	cfg.MinDelay = 50 * time.Millisecond
	thread := gw.addThread("t1", &fakeThread{})

	m, _, _ := newTestEngine(cfg, repo, gw)
	defer m.Stop()

	require.NoError(t, m.Initialize(context.Background()))
	m.OnUnregistered("t1")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, thread.sentMessages(), "cancelled timer must not fire")
}

// gatedThread blocks Send until released so a test can interleave manager
// calls with an in-flight bump.
type gatedThread struct {
	fakeThread
	sendStarted chan struct{}
	release     chan struct{}
}

func (t *gatedThread) Send(ctx context.Context, content string) (Message, error) {
	t.sendStarted <- struct{}{}
	<-t.release
	return t.fakeThread.Send(ctx, content)
}

func TestManager_UnregisterDuringInFlightBumpLeavesNoTimer(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 10, time.Now().Add(-time.Hour)))
	gw := newFakeGateway()
	thread := &gatedThread{
		sendStarted: make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	gw.setThread("t1", thread)

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	defer m.Stop()

	require.NoError(t, m.Initialize(context.Background()))

	select {
	case <-thread.sendStarted:
	case <-time.After(time.Second):
		t.Fatal("bump never started")
	}

	// Unregister while the send is still in flight, then let it finish. The
	// success path re-reads the row, but must not resurrect the timer.
	m.OnUnregistered("t1")
	close(thread.release)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, m.HasTimer("t1"), "unregistered thread must not be re-armed by an in-flight bump")
	assert.Equal(t, 0, m.ActiveTimers())
}

func TestManager_StopIsIdempotent(t *testing.T) {
	repo := newFakeRepo(registration("t1", "g1", 60, time.Now()))
	gw := newFakeGateway()
	gw.addThread("t1", &fakeThread{})

	m, _, _ := newTestEngine(testConfig(), repo, gw)
	require.NoError(t, m.Initialize(context.Background()))

	m.Stop()
	m.Stop()
	assert.Equal(t, 0, m.ActiveTimers())

	// Notifications after shutdown must not arm anything.
	m.OnRegisteredOrUpdated(context.Background(), "t1")
	assert.Equal(t, 0, m.ActiveTimers())
}
