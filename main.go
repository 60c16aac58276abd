package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/tavernkeep/tavern-bot/tavernkeeper"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/bump"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/commands"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/repositories"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/handlers"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/logger"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := tavernkeeper.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting Tavernkeeper Discord Bot",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := tavernkeeper.New(*cfg, version, commit)
	b.DB = db

	b.BumpRepository = repositories.NewBumpThreadRepository(db.BunDB())
	b.GameRepository = repositories.NewGameRepository(db.BunDB())
	b.CharacterRepository = repositories.NewCharacterRepository(db.BunDB())
	b.PlayerRepository = repositories.NewPlayerRepository(db.BunDB())
	b.EntitlementRepository = repositories.NewEntitlementRepository(db.BunDB())
	b.Entitlements = services.NewEntitlementsService(b.EntitlementRepository)

	h := handler.New()
	h.Command("/version", commands.VersionHandler(b))
	h.Command("/bump-thread", handlers.WrapWithLogging("bump-thread", commands.BumpThreadHandler(b)))
	h.Command("/game", handlers.WrapWithLogging("game", commands.GameHandler(b)))
	h.Command("/character", handlers.WrapWithLogging("character", commands.CharacterHandler(b)))
	h.Command("/gift", handlers.WrapWithLogging("gift", commands.GiftHandler(b)))
	h.Autocomplete("/character", commands.CharacterAutocompleteHandler(b))

	listeners := []bot.EventListener{h, bot.NewListenerFunc(b.OnReady)}
	listeners = append(listeners, handlers.EntitlementListeners(b)...)
	if err = b.SetupBot(listeners...); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	// The bump engine needs the gateway client, so it is wired after SetupBot
	// and before any command can fire.
	engineCfg := cfg.Bump.Engine()
	gateway := bump.NewDiscordGateway(b.Client)
	queue := bump.NewSendQueue(engineCfg.SendConcurrency)
	b.BumpExecutor = bump.NewExecutor(engineCfg, b.BumpRepository, gateway)
	b.BumpManager = bump.NewManager(engineCfg, b.BumpRepository, gateway, b.BumpExecutor, queue)
	b.BumpPoller = bump.NewPoller(engineCfg, b.BumpRepository, gateway, b.BumpExecutor, queue, b.BumpManager)

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gwCtx, gwCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gwCancel()
	if err = b.Client.OpenGateway(gwCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := b.BumpManager.Initialize(initCtx); err != nil {
		slog.Error("Failed to schedule bump threads", slog.Any("error", err))
	}
	initCancel()
	if err := b.BumpPoller.Start(); err != nil {
		slog.Error("Failed to start bump poller", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s

	slog.Info("Shutting down bot...")
	b.BumpPoller.Stop()
	b.BumpManager.Stop()
}
