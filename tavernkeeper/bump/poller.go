package bump

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"golang.org/x/sync/errgroup"
)

const sweepConcurrency = 4

// Poller is the reconciliation backstop behind the timer manager: a fixed
// sweep that re-derives due threads straight from the repository and bumps
// anything the timer layer missed (lost timer, drifted clock, dropped
// reschedule signal). It is a safety net, not the primary path; the due-time
// check keeps it from duplicating work when the timers are healthy.
type Poller struct {
	cfg     Config
	repo    Repository
	gateway ThreadGateway
	exec    *Executor
	queue   *SendQueue
	manager *Manager

	cron *cron.Cron

	mu       sync.Mutex
	cooldown map[string]time.Time
}

func NewPoller(cfg Config, repo Repository, gateway ThreadGateway, exec *Executor, queue *SendQueue, manager *Manager) *Poller {
	return &Poller{
		cfg:      cfg,
		repo:     repo,
		gateway:  gateway,
		exec:     exec,
		queue:    queue,
		manager:  manager,
		cooldown: make(map[string]time.Time),
	}
}

// Start begins the periodic sweep. A sweep still running when the next tick
// arrives is skipped rather than stacked.
func (p *Poller) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.cfg.PollPeriod), p.sweep); err != nil {
		return fmt.Errorf("schedule bump sweep: %w", err)
	}
	c.Start()
	p.cron = c

	slog.Info("Bump reconciliation poller started",
		slog.String("type", "bump"),
		slog.Duration("period", p.cfg.PollPeriod))
	return nil
}

func (p *Poller) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

func (p *Poller) sweep() {
	ctx := context.Background()
	rows, err := p.repo.FindAll(ctx)
	if err != nil {
		slog.Error("Bump sweep failed to load registrations",
			slog.String("type", "bump"),
			slog.Any("error", err))
		return
	}

	now := time.Now()
	var g errgroup.Group
	g.SetLimit(sweepConcurrency)
	for _, row := range rows {
		if p.onCooldown(row.ThreadID, now) {
			continue
		}
		row := row
		g.Go(func() error {
			p.checkRow(ctx, row, now)
			return nil
		})
	}
	g.Wait()
}

func (p *Poller) checkRow(ctx context.Context, row *models.BumpThread, now time.Time) {
	var meta *ThreadMeta
	if p.gateway != nil {
		if thread, err := p.gateway.FetchThread(ctx, row.ThreadID); err == nil {
			mv := thread.Meta()
			meta = &mv
		}
	}

	if NextDue(p.cfg, row, meta, now).After(now) {
		return
	}

	slog.Info("Sweep caught overdue thread",
		slog.String("type", "bump"),
		slog.String("thread_id", row.ThreadID))

	err := p.queue.Do(ctx, func(ctx context.Context) error {
		return p.exec.Bump(ctx, row.ThreadID)
	})

	switch {
	case err == nil:
		p.clearCooldown(row.ThreadID)
		// Hand the thread back to the timer layer so both drivers agree on
		// the next due time.
		if p.manager != nil {
			p.manager.OnRegisteredOrUpdated(ctx, row.ThreadID)
		}

	case IsTerminal(err):
		slog.Warn("Sweep bump failed terminally, dropping registration",
			slog.String("type", "bump"),
			slog.String("thread_id", row.ThreadID),
			slog.Any("error", err))
		if _, derr := p.repo.Delete(ctx, row.ThreadID); derr != nil {
			slog.Error("Failed to delete dead bump registration",
				slog.String("type", "bump"),
				slog.String("thread_id", row.ThreadID),
				slog.Any("error", derr))
		}
		if p.manager != nil {
			p.manager.OnUnregistered(row.ThreadID)
		}

	default:
		slog.Warn("Sweep bump failed, cooling thread down",
			slog.String("type", "bump"),
			slog.String("thread_id", row.ThreadID),
			slog.Duration("cooldown", p.cfg.PollCooldown),
			slog.Any("error", err))
		p.setCooldown(row.ThreadID, now.Add(p.cfg.PollCooldown))
	}
}

func (p *Poller) onCooldown(threadID string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	until, ok := p.cooldown[threadID]
	return ok && now.Before(until)
}

func (p *Poller) setCooldown(threadID string, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldown[threadID] = until
}

func (p *Poller) clearCooldown(threadID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cooldown, threadID)
}
