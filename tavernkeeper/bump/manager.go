package bump

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"golang.org/x/sync/errgroup"
)

const initConcurrency = 8

// Manager owns one logical one-shot timer per registered thread. It is the
// primary scheduling driver: timers fire into the send queue, successes
// re-arm for the next due time, transient failures back off exponentially,
// terminal failures drop the registration entirely. All timer state lives
// here; other components only talk to it through the notification methods.
type Manager struct {
	cfg     Config
	repo    Repository
	gateway ThreadGateway
	exec    *Executor
	queue   *SendQueue

	mu       sync.Mutex
	timers   map[string]*time.Timer
	attempts map[string]int
	epochs   map[string]uint64
	stopped  bool
}

func NewManager(cfg Config, repo Repository, gateway ThreadGateway, exec *Executor, queue *SendQueue) *Manager {
	return &Manager{
		cfg:      cfg,
		repo:     repo,
		gateway:  gateway,
		exec:     exec,
		queue:    queue,
		timers:   make(map[string]*time.Timer),
		attempts: make(map[string]int),
		epochs:   make(map[string]uint64),
	}
}

// Initialize loads every registration and arms one timer per thread. Called
// once at process start; timer state is never persisted, so a restart always
// rebuilds the full schedule from the repository.
func (m *Manager) Initialize(ctx context.Context) error {
	rows, err := m.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load bump registrations: %w", err)
	}

	slog.Info("Scheduling registered bump threads",
		slog.String("type", "bump"),
		slog.Int("count", len(rows)))

	var g errgroup.Group
	g.SetLimit(initConcurrency)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			m.scheduleRow(ctx, row)
			return nil
		})
	}
	return g.Wait()
}

// OnRegisteredOrUpdated re-syncs a thread's timer from a freshly read row.
// Always cancels first so edits take effect on the very next cycle and at
// most one timer exists per thread.
func (m *Manager) OnRegisteredOrUpdated(ctx context.Context, threadID string) {
	m.clearTimer(threadID)
	m.clearAttempts(threadID)

	row, err := m.repo.Get(ctx, threadID)
	if err != nil {
		slog.Error("Failed to reload bump registration",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID),
			slog.Any("error", err))
		return
	}
	if row == nil {
		slog.Debug("Reschedule skipped, registration missing",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID))
		return
	}
	m.scheduleRow(ctx, row)
}

// OnUnregistered cancels the thread's pending timer immediately. Tasks
// already sitting in the send queue still run; the executor copes with the
// missing row.
func (m *Manager) OnUnregistered(threadID string) {
	m.clearTimer(threadID)
	m.clearAttempts(threadID)
	slog.Info("Unscheduled bump thread",
		slog.String("type", "bump"),
		slog.String("thread_id", threadID))
}

// Stop cancels all pending timers. In-flight sends finish on their own.
// Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	slog.Info("Bump manager stopped, timers cleared", slog.String("type", "bump"))
}

// Gateway exposes the platform gateway for callers that already hold a
// Manager, such as command handlers resolving the invoking thread.
func (m *Manager) Gateway() ThreadGateway {
	return m.gateway
}

// ActiveTimers returns how many threads currently have a pending timer.
func (m *Manager) ActiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// HasTimer reports whether a timer is pending for the thread.
func (m *Manager) HasTimer(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[threadID]
	return ok
}

// scheduleRow arms a timer for the row's next due time, archive-aware when
// the thread's metadata is reachable.
func (m *Manager) scheduleRow(ctx context.Context, row *models.BumpThread) {
	m.scheduleRowEpoch(ctx, row, m.epochOf(row.ThreadID))
}

func (m *Manager) scheduleRowEpoch(ctx context.Context, row *models.BumpThread, epoch uint64) {
	due := NextDue(m.cfg, row, m.fetchMeta(ctx, row.ThreadID), time.Now())
	m.arm(row.ThreadID, time.Until(due), epoch)
}

func (m *Manager) fetchMeta(ctx context.Context, threadID string) *ThreadMeta {
	if m.gateway == nil {
		return nil
	}
	thread, err := m.gateway.FetchThread(ctx, threadID)
	if err != nil {
		slog.Debug("Thread metadata unavailable, falling back to interval scheduling",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID),
			slog.Any("error", err))
		return nil
	}
	meta := thread.Meta()
	return &meta
}

// arm clamps the delay to the floor, jitters it and swaps in a fresh
// one-shot, cancelling any previous timer for the thread. The epoch is the
// value observed when the scheduling decision was made; clearTimer bumps it,
// so a concurrent unregister drops the arm instead of resurrecting the timer.
func (m *Manager) arm(threadID string, delay time.Duration, epoch uint64) {
	if delay < m.cfg.MinDelay {
		delay = m.cfg.MinDelay
	}
	delay = m.jittered(delay)

	m.mu.Lock()
	if m.stopped || m.epochs[threadID] != epoch {
		m.mu.Unlock()
		return
	}
	if t, ok := m.timers[threadID]; ok {
		t.Stop()
	}
	m.timers[threadID] = time.AfterFunc(delay, func() { m.fire(threadID) })
	m.mu.Unlock()

	slog.Debug("Armed bump timer",
		slog.String("type", "bump"),
		slog.String("thread_id", threadID),
		slog.Duration("delay", delay))
}

func (m *Manager) epochOf(threadID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs[threadID]
}

func (m *Manager) jittered(d time.Duration) time.Duration {
	if m.cfg.Jitter <= 0 {
		return d
	}
	j := time.Duration(rand.Int63n(int64(2*m.cfg.Jitter)+1)) - m.cfg.Jitter
	if d+j < 0 {
		return 0
	}
	return d + j
}

func (m *Manager) fire(threadID string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	epoch := m.epochs[threadID]
	m.mu.Unlock()

	slog.Debug("Bump timer fired",
		slog.String("type", "bump"),
		slog.String("thread_id", threadID))

	ctx := context.Background()
	err := m.queue.Do(ctx, func(ctx context.Context) error {
		return m.exec.Bump(ctx, threadID)
	})

	switch {
	case err == nil:
		m.clearAttempts(threadID)
		// Re-read: note/interval may have changed during the send.
		fresh, gerr := m.repo.Get(ctx, threadID)
		if gerr != nil || fresh == nil {
			m.clearTimer(threadID)
			return
		}
		m.scheduleRowEpoch(ctx, fresh, epoch)

	case IsTerminal(err):
		slog.Warn("Bump failed terminally, dropping registration",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID),
			slog.Any("error", err))
		if _, derr := m.repo.Delete(ctx, threadID); derr != nil {
			slog.Error("Failed to delete dead bump registration",
				slog.String("type", "bump"),
				slog.String("thread_id", threadID),
				slog.Any("error", derr))
		}
		m.clearTimer(threadID)
		m.clearAttempts(threadID)

	default:
		m.mu.Lock()
		m.attempts[threadID]++
		attempt := m.attempts[threadID]
		m.mu.Unlock()

		backoff := m.retryDelay(attempt)
		slog.Warn("Bump failed, retrying with backoff",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))
		m.arm(threadID, backoff, epoch)
	}
}

// retryDelay doubles per consecutive failure up to the cap, plus a small
// random offset so retrying threads don't line up. There is no cap on the
// retry count, only on the delay.
func (m *Manager) retryDelay(attempt int) time.Duration {
	d := m.cfg.BackoffBase << uint(attempt)
	if attempt > 30 || d <= 0 || d > m.cfg.MaxRetryDelay {
		d = m.cfg.MaxRetryDelay
	}
	if m.cfg.BackoffBase > 0 {
		d += time.Duration(rand.Int63n(int64(m.cfg.BackoffBase)))
	}
	return d
}

// clearTimer cancels the pending timer and bumps the thread's epoch so any
// in-flight fire cannot re-arm from stale state.
func (m *Manager) clearTimer(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs[threadID]++
	if t, ok := m.timers[threadID]; ok {
		t.Stop()
		delete(m.timers, threadID)
	}
}

func (m *Manager) clearAttempts(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, threadID)
}
