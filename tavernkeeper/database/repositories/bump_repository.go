package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/uptrace/bun"
)

// BumpThreadRepository is the full bump-thread store used by the command
// layer. It is a superset of the engine's bump.Repository interface.
type BumpThreadRepository interface {
	Upsert(ctx context.Context, row *models.BumpThread) error
	Get(ctx context.Context, threadID string) (*models.BumpThread, error)
	Exists(ctx context.Context, threadID string) (bool, error)
	FindAll(ctx context.Context) ([]*models.BumpThread, error)
	ListByGuild(ctx context.Context, guildID string) ([]*models.BumpThread, error)
	CountByGuild(ctx context.Context, guildID string) (int, error)
	Delete(ctx context.Context, threadID string) (bool, error)
	UpdateNote(ctx context.Context, threadID string, note string) (bool, error)
	UpdateInterval(ctx context.Context, threadID string, minutes int) (bool, error)
	TouchLastBumped(ctx context.Context, threadID string, when time.Time) error
}

type bumpThreadRepository struct {
	db *bun.DB
}

func NewBumpThreadRepository(db *bun.DB) BumpThreadRepository {
	return &bumpThreadRepository{db: db}
}

// Upsert registers a thread, or refreshes note/interval/added_by on the
// existing row. created_at and last_bumped_at survive re-registration.
func (r *bumpThreadRepository) Upsert(ctx context.Context, row *models.BumpThread) error {
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (thread_id) DO UPDATE").
		Set("note = EXCLUDED.note").
		Set("interval_minutes = EXCLUDED.interval_minutes").
		Set("added_by = EXCLUDED.added_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		slog.Error("Failed to upsert bump thread",
			slog.String("type", "db"),
			slog.String("operation", "Upsert"),
			slog.String("thread_id", row.ThreadID),
			slog.Any("error", err))
	}
	return err
}

func (r *bumpThreadRepository) Get(ctx context.Context, threadID string) (*models.BumpThread, error) {
	row := new(models.BumpThread)
	err := r.db.NewSelect().
		Model(row).
		Where("thread_id = ?", threadID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load bump thread",
			slog.String("type", "db"),
			slog.String("operation", "Get"),
			slog.String("thread_id", threadID),
			slog.Any("error", err))
		return nil, err
	}
	return row, nil
}

func (r *bumpThreadRepository) Exists(ctx context.Context, threadID string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.BumpThread)(nil)).
		Where("thread_id = ?", threadID).
		Exists(ctx)
}

func (r *bumpThreadRepository) FindAll(ctx context.Context) ([]*models.BumpThread, error) {
	var rows []*models.BumpThread
	err := r.db.NewSelect().
		Model(&rows).
		Order("created_at ASC").
		Scan(ctx)
	return rows, err
}

func (r *bumpThreadRepository) ListByGuild(ctx context.Context, guildID string) ([]*models.BumpThread, error) {
	var rows []*models.BumpThread
	err := r.db.NewSelect().
		Model(&rows).
		Where("guild_id = ?", guildID).
		Order("created_at ASC").
		Scan(ctx)
	return rows, err
}

func (r *bumpThreadRepository) CountByGuild(ctx context.Context, guildID string) (int, error) {
	return r.db.NewSelect().
		Model((*models.BumpThread)(nil)).
		Where("guild_id = ?", guildID).
		Count(ctx)
}

func (r *bumpThreadRepository) Delete(ctx context.Context, threadID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.BumpThread)(nil)).
		Where("thread_id = ?", threadID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *bumpThreadRepository) UpdateNote(ctx context.Context, threadID string, note string) (bool, error) {
	return r.updateField(ctx, threadID, "note", note)
}

func (r *bumpThreadRepository) UpdateInterval(ctx context.Context, threadID string, minutes int) (bool, error) {
	return r.updateField(ctx, threadID, "interval_minutes", minutes)
}

func (r *bumpThreadRepository) updateField(ctx context.Context, threadID, column string, value interface{}) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.BumpThread)(nil)).
		Set("? = ?", bun.Ident(column), value).
		Set("updated_at = ?", time.Now()).
		Where("thread_id = ?", threadID).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TouchLastBumped records a successful bump. last_bumped_at only moves
// forward, so a slow retry never rewinds a fresher timestamp.
func (r *bumpThreadRepository) TouchLastBumped(ctx context.Context, threadID string, when time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.BumpThread)(nil)).
		Set("last_bumped_at = ?", when).
		Set("updated_at = ?", time.Now()).
		Where("thread_id = ?", threadID).
		Where("last_bumped_at IS NULL OR last_bumped_at < ?", when).
		Exec(ctx)
	return err
}
