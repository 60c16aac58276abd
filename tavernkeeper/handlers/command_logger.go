package handlers

import (
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/handler"
)

// WrapWithLogging wraps a command handler with start/completion logging.
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		start := time.Now()

		slog.Info("Command started",
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.String("user_name", e.User().Username),
			slog.String("channel_id", e.ChannelID().String()),
		)

		err := h(e)
		duration := time.Since(start)

		attrs := []any{
			slog.String("type", "cmd"),
			slog.String("name", name),
			slog.String("user_id", e.User().ID.String()),
			slog.Duration("took", duration),
		}

		switch {
		case err != nil:
			slog.Error("Command failed", append(attrs,
				slog.Any("error", err),
				slog.String("status", "failed"),
			)...)
		case duration > 2*time.Second:
			slog.Warn("Command executed slowly", append(attrs,
				slog.String("status", "slow"),
			)...)
		default:
			slog.Info("Command completed", append(attrs,
				slog.String("status", "success"),
			)...)
		}
		return err
	}
}
