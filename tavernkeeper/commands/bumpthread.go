package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/json"
	"github.com/disgoorg/paginator"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/bump"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/utils"
)

const bumpThreadsPerPage = 10

var BumpThread = discord.SlashCommandCreate{
	Name:                     "bump-thread",
	Description:              "Keep threads alive by bumping them before they auto-archive",
	DefaultMemberPermissions: json.NewNullablePtr(discord.PermissionManageThreads),
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Register a thread for automatic bumping",
			Options: []discord.ApplicationCommandOption{
				threadOption("Thread to register (defaults to the current one)"),
				discord.ApplicationCommandOptionString{
					Name:        "note",
					Description: "Short note included in each bump message",
					Required:    false,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "interval",
					Description: "Minutes between bumps (default follows the thread's auto-archive window)",
					Required:    false,
					MinValue:    intPtr(10),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "Stop bumping a thread",
			Options: []discord.ApplicationCommandOption{
				threadOption("Thread to unregister (defaults to the current one)"),
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set-note",
			Description: "Change the note included in bump messages",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "note",
					Description: "New note, or empty to clear it",
					Required:    false,
				},
				threadOption("Target thread (defaults to the current one)"),
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set-interval",
			Description: "Change how often a thread is bumped",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "interval",
					Description: "Minutes between bumps",
					Required:    true,
					MinValue:    intPtr(10),
				},
				threadOption("Target thread (defaults to the current one)"),
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List all bumped threads in this server",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bump-now",
			Description: "Bump a thread immediately",
			Options: []discord.ApplicationCommandOption{
				threadOption("Thread to bump now (defaults to the current one)"),
			},
		},
	},
}

func BumpThreadHandler(b *tavernkeeper.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "add":
			return handleBumpAdd(ctx, b, e)
		case "remove":
			return handleBumpRemove(ctx, b, e)
		case "set-note":
			return handleBumpSetNote(ctx, b, e)
		case "set-interval":
			return handleBumpSetInterval(ctx, b, e)
		case "list":
			return handleBumpList(ctx, b, e)
		case "bump-now":
			return handleBumpNow(ctx, b, e)
		}
		return nil
	}
}

// threadOption lets a subcommand target a thread other than the invoking
// channel.
func threadOption(description string) discord.ApplicationCommandOptionChannel {
	return discord.ApplicationCommandOptionChannel{
		Name:        "thread",
		Description: description,
		Required:    false,
		ChannelTypes: []discord.ChannelType{
			discord.ChannelTypeGuildPublicThread,
			discord.ChannelTypeGuildPrivateThread,
			discord.ChannelTypeGuildNewsThread,
		},
	}
}

// targetThreadID prefers the explicit thread option, falling back to the
// invoking channel.
func targetThreadID(e *handler.CommandEvent) string {
	if ch, ok := e.SlashCommandInteractionData().OptChannel("thread"); ok {
		return ch.ID.String()
	}
	return e.ChannelID().String()
}

// threadContext resolves the targeted channel as a thread, or replies with an
// ephemeral error and returns ok=false.
func threadContext(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) (threadID string, meta *bump.ThreadMeta, ok bool, err error) {
	threadID = targetThreadID(e)
	thread, ferr := b.BumpManager.Gateway().FetchThread(ctx, threadID)
	if ferr != nil {
		return "", nil, false, e.CreateMessage(discord.MessageCreate{
			Content: "❌ Run this inside a thread or pass one with the `thread` option.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	m := thread.Meta()
	return threadID, &m, true, nil
}

func handleBumpAdd(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	threadID, meta, ok, err := threadContext(ctx, b, e)
	if !ok {
		return err
	}

	guildID := ""
	if e.GuildID() != nil {
		guildID = e.GuildID().String()
	}

	count, err := b.BumpRepository.CountByGuild(ctx, guildID)
	if err != nil {
		return replyError(e, "Failed to check existing registrations.")
	}
	exists, err := b.BumpRepository.Exists(ctx, threadID)
	if err != nil {
		return replyError(e, "Failed to check existing registrations.")
	}
	if !exists && !b.Entitlements.CanRegisterBumpThread(ctx, guildID, count) {
		return e.CreateMessage(discord.MessageCreate{
			Content: "❌ This server has reached its bumped-thread limit. Upgrade to premium to register more.",
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	cfg := b.Cfg.Bump.Engine()
	data := e.SlashCommandInteractionData()
	note := data.String("note")
	interval, hasInterval := data.OptInt("interval")
	if !hasInterval {
		interval = defaultIntervalFor(cfg, meta)
	}
	if interval < cfg.MinIntervalMinutes {
		interval = cfg.MinIntervalMinutes
	}

	row := &models.BumpThread{
		ThreadID:        threadID,
		GuildID:         guildID,
		AddedBy:         e.User().ID.String(),
		Note:            note,
		IntervalMinutes: interval,
	}
	if err := b.BumpRepository.Upsert(ctx, row); err != nil {
		return replyError(e, "Failed to save the registration.")
	}
	b.BumpManager.OnRegisteredOrUpdated(ctx, threadID)

	content := fmt.Sprintf("✅ <#%s> will be bumped every **%s**.", threadID, utils.FormatMinutes(interval))
	if warning := riskyIntervalWarning(interval, meta); warning != "" {
		content += "\n" + warning
	}
	return e.CreateMessage(discord.MessageCreate{Content: content})
}

func handleBumpRemove(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	threadID := targetThreadID(e)

	removed, err := b.BumpRepository.Delete(ctx, threadID)
	if err != nil {
		return replyError(e, "Failed to remove the registration.")
	}
	if !removed {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("❌ <#%s> is not registered for bumping.", threadID),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	b.BumpManager.OnUnregistered(threadID)

	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("✅ <#%s> will no longer be bumped.", threadID),
	})
}

func handleBumpSetNote(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	threadID := targetThreadID(e)
	note := e.SlashCommandInteractionData().String("note")

	updated, err := b.BumpRepository.UpdateNote(ctx, threadID, note)
	if err != nil {
		return replyError(e, "Failed to update the note.")
	}
	if !updated {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("❌ <#%s> is not registered for bumping.", threadID),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	b.BumpManager.OnRegisteredOrUpdated(ctx, threadID)

	if note == "" {
		return e.CreateMessage(discord.MessageCreate{Content: "✅ Bump note cleared."})
	}
	return e.CreateMessage(discord.MessageCreate{
		Content: fmt.Sprintf("✅ Bump note set to: _%s_", note),
	})
}

func handleBumpSetInterval(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	threadID, meta, ok, err := threadContext(ctx, b, e)
	if !ok {
		return err
	}
	interval := e.SlashCommandInteractionData().Int("interval")
	if floor := b.Cfg.Bump.Engine().MinIntervalMinutes; interval < floor {
		interval = floor
	}

	updated, err := b.BumpRepository.UpdateInterval(ctx, threadID, interval)
	if err != nil {
		return replyError(e, "Failed to update the interval.")
	}
	if !updated {
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("❌ <#%s> is not registered for bumping.", threadID),
			Flags:   discord.MessageFlagEphemeral,
		})
	}
	b.BumpManager.OnRegisteredOrUpdated(ctx, threadID)

	content := fmt.Sprintf("✅ Bump interval set to **%s**.", utils.FormatMinutes(interval))
	if warning := riskyIntervalWarning(interval, meta); warning != "" {
		content += "\n" + warning
	}
	return e.CreateMessage(discord.MessageCreate{Content: content})
}

func handleBumpList(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	if e.GuildID() == nil {
		return replyError(e, "This command only works in a server.")
	}

	rows, err := b.BumpRepository.ListByGuild(ctx, e.GuildID().String())
	if err != nil {
		return replyError(e, "Failed to load bumped threads.")
	}
	if len(rows) == 0 {
		return e.CreateMessage(discord.MessageCreate{
			Content: "No threads are registered for bumping in this server.",
		})
	}

	cfg := b.Cfg.Bump.Engine()
	now := time.Now()

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		Pages:   (len(rows) + bumpThreadsPerPage - 1) / bumpThreadsPerPage,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * bumpThreadsPerPage
			end := min(start+bumpThreadsPerPage, len(rows))

			var sb strings.Builder
			for _, row := range rows[start:end] {
				due := bump.IntervalDue(cfg, row, now)
				sb.WriteString(fmt.Sprintf("<#%s> — every %s, next bump %s",
					row.ThreadID,
					utils.FormatMinutes(row.IntervalMinutes),
					utils.DiscordRelative(due)))
				if row.Note != "" {
					sb.WriteString(fmt.Sprintf("\n  💬 _%s_", row.Note))
				}
				sb.WriteString("\n")
			}

			embed.SetTitle("🔄 Bumped Threads").
				SetDescription(sb.String()).
				SetFooter(fmt.Sprintf("%d thread(s) registered", len(rows)), "").
				SetColor(0x2b2d31)
		},
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func handleBumpNow(ctx context.Context, b *tavernkeeper.Bot, e *handler.CommandEvent) error {
	threadID := targetThreadID(e)

	if err := e.DeferCreateMessage(true); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	if err := b.BumpExecutor.BumpVisible(ctx, threadID); err != nil {
		_, uerr := e.UpdateInteractionResponse(discord.MessageUpdate{
			Content: json.Ptr(fmt.Sprintf("❌ Bump failed: %s", err)),
		})
		return uerr
	}
	b.BumpManager.OnRegisteredOrUpdated(ctx, threadID)

	_, err := e.UpdateInteractionResponse(discord.MessageUpdate{
		Content: json.Ptr(fmt.Sprintf("✅ <#%s> bumped.", threadID)),
	})
	return err
}

// defaultIntervalFor derives the registration cadence from the thread's
// auto-archive window so the default always beats the archive deadline.
func defaultIntervalFor(cfg bump.Config, meta *bump.ThreadMeta) int {
	if meta == nil || meta.AutoArchiveMinutes <= 0 {
		return cfg.DefaultIntervalMinutes
	}
	interval := meta.AutoArchiveMinutes - cfg.GuardMinutes
	if interval < cfg.MinIntervalMinutes {
		interval = cfg.MinIntervalMinutes
	}
	return interval
}

// riskyIntervalWarning flags an interval that is not shorter than the thread's
// auto-archive window; the poller will still rescue the thread, but bumps will
// routinely have to unarchive it first.
func riskyIntervalWarning(interval int, meta *bump.ThreadMeta) string {
	if meta == nil || meta.AutoArchiveMinutes <= 0 || interval < meta.AutoArchiveMinutes {
		return ""
	}
	return fmt.Sprintf("⚠️ The interval (%s) is not shorter than this thread's auto-archive window (%s), so the thread may archive between bumps.",
		utils.FormatMinutes(interval), utils.FormatMinutes(meta.AutoArchiveMinutes))
}

func replyError(e *handler.CommandEvent, msg string) error {
	return e.CreateMessage(discord.MessageCreate{
		Content: "❌ " + msg,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func intPtr(v int) *int {
	return &v
}
