package bump

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Executor performs exactly one bump attempt for a thread: make the thread
// writable, send the keep-alive message, record the bump, optionally clean
// the message up again. Retry policy is the caller's job; the executor only
// surfaces classified failures.
type Executor struct {
	cfg     Config
	repo    Repository
	gateway ThreadGateway
}

func NewExecutor(cfg Config, repo Repository, gateway ThreadGateway) *Executor {
	return &Executor{cfg: cfg, repo: repo, gateway: gateway}
}

// Bump runs the scheduled bump path, honoring the configured delete-after
// cleanup.
func (x *Executor) Bump(ctx context.Context, threadID string) error {
	return x.bump(ctx, threadID, x.cfg.KeepBumpMessage)
}

// BumpVisible bumps but always leaves the message up. Used by the manual
// bump-now command so users can see something happened.
func (x *Executor) BumpVisible(ctx context.Context, threadID string) error {
	return x.bump(ctx, threadID, true)
}

func (x *Executor) bump(ctx context.Context, threadID string, keep bool) error {
	thread, err := x.gateway.FetchThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("fetch thread: %w", err)
	}

	if thread.Archived() {
		if err := thread.Unarchive(ctx); err != nil {
			return fmt.Errorf("unarchive thread: %w", err)
		}
	}
	if thread.Locked() {
		if err := thread.Unlock(ctx); err != nil {
			slog.Warn("Failed to unlock thread before bump",
				slog.String("type", "bump"),
				slog.String("thread_id", threadID),
				slog.Any("error", err))
		}
	}

	// The registration may have been edited or removed while this task sat
	// in the queue; a missing row just means a bump with no note.
	var note string
	if row, err := x.repo.Get(ctx, threadID); err == nil && row != nil {
		note = row.Note
	}

	msg, err := thread.Send(ctx, BumpMessage(note))
	if err != nil {
		return fmt.Errorf("send bump: %w", err)
	}

	// Persist before any cleanup: deletion is best-effort and must never
	// roll back the recorded bump.
	if err := x.repo.TouchLastBumped(ctx, threadID, time.Now()); err != nil {
		return fmt.Errorf("record bump: %w", err)
	}

	if keep {
		return nil
	}
	if d := x.cfg.DeleteDelay; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil
		}
	}
	if err := msg.Delete(ctx); err != nil {
		slog.Warn("Failed to delete bump message",
			slog.String("type", "bump"),
			slog.String("thread_id", threadID),
			slog.Any("error", err))
	}
	return nil
}

// BumpMessage builds the keep-alive message content. Mentions are suppressed
// at the gateway layer, not here.
func BumpMessage(note string) string {
	content := "🔄 **Thread auto-bumped to keep it active.**"
	if note != "" {
		content += "\n💬 _" + note + "_"
	}
	return content
}
