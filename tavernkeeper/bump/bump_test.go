package bump

import (
	"context"
	"sync"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

// testConfig shrinks every delay so scheduler behavior is observable within a
// test run. Jitter is zero to keep assertions deterministic.
func testConfig() Config {
	return Config{
		DefaultIntervalMinutes: 10080,
		MinIntervalMinutes:     10,
		GuardMinutes:           30,
		MinDelay:               5 * time.Millisecond,
		MaxRetryDelay:          30 * time.Millisecond,
		BackoffBase:            time.Millisecond,
		Jitter:                 0,
		PollPeriod:             time.Second,
		PollCooldown:           time.Minute,
		SendConcurrency:        3,
	}
}

type fakeRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.BumpThread
	findErr error
	getErr  error
}

func newFakeRepo(rows ...*models.BumpThread) *fakeRepo {
	r := &fakeRepo{rows: make(map[string]*models.BumpThread)}
	for _, row := range rows {
		r.rows[row.ThreadID] = row
	}
	return r
}

func (r *fakeRepo) FindAll(_ context.Context) ([]*models.BumpThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]*models.BumpThread, 0, len(r.rows))
	for _, row := range r.rows {
		clone := *row
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeRepo) Get(_ context.Context, threadID string) (*models.BumpThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	row, ok := r.rows[threadID]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *fakeRepo) Delete(_ context.Context, threadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[threadID]; !ok {
		return false, nil
	}
	delete(r.rows, threadID)
	return true, nil
}

func (r *fakeRepo) TouchLastBumped(_ context.Context, threadID string, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[threadID]; ok {
		row.LastBumpedAt = &when
		row.UpdatedAt = when
	}
	return nil
}

func (r *fakeRepo) lastBumped(threadID string) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[threadID]; ok {
		return row.LastBumpedAt
	}
	return nil
}

func (r *fakeRepo) exists(threadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[threadID]
	return ok
}

type fakeThread struct {
	mu           sync.Mutex
	meta         ThreadMeta
	archived     bool
	locked       bool
	unarchiveErr error
	unlockErr    error
	sendErrs     []error // popped per send; nil entry = success
	deleteErr    error

	sent       []string
	deleted    int
	unarchives int
}

func (t *fakeThread) Meta() ThreadMeta { return t.meta }

func (t *fakeThread) Archived() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.archived
}

func (t *fakeThread) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locked
}

func (t *fakeThread) Unarchive(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unarchiveErr != nil {
		return t.unarchiveErr
	}
	t.archived = false
	t.unarchives++
	return nil
}

func (t *fakeThread) Unlock(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unlockErr != nil {
		return t.unlockErr
	}
	t.locked = false
	return nil
}

func (t *fakeThread) Send(_ context.Context, content string) (Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sendErrs) > 0 {
		err := t.sendErrs[0]
		t.sendErrs = t.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	t.sent = append(t.sent, content)
	return &fakeMessage{thread: t}, nil
}

func (t *fakeThread) sentMessages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *fakeThread) deletedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted
}

type fakeMessage struct {
	thread *fakeThread
}

func (m *fakeMessage) Delete(context.Context) error {
	m.thread.mu.Lock()
	defer m.thread.mu.Unlock()
	if m.thread.deleteErr != nil {
		return m.thread.deleteErr
	}
	m.thread.deleted++
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	threads   map[string]Thread
	fetchErrs map[string]error
	fetches   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		threads:   make(map[string]Thread),
		fetchErrs: make(map[string]error),
	}
}

func (g *fakeGateway) FetchThread(_ context.Context, threadID string) (Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if err, ok := g.fetchErrs[threadID]; ok {
		return nil, err
	}
	if t, ok := g.threads[threadID]; ok {
		return t, nil
	}
	return nil, &GatewayError{Kind: KindNotFound, Op: "fetch thread"}
}

func (g *fakeGateway) addThread(threadID string, t *fakeThread) *fakeThread {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threads[threadID] = t
	return t
}

func (g *fakeGateway) setThread(threadID string, t Thread) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threads[threadID] = t
}

func transientErr() error {
	return &GatewayError{Kind: KindRateLimited, Op: "send bump"}
}

func registration(threadID, guildID string, intervalMinutes int, createdAt time.Time) *models.BumpThread {
	return &models.BumpThread{
		ThreadID:        threadID,
		GuildID:         guildID,
		AddedBy:         "tester",
		IntervalMinutes: intervalMinutes,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}
