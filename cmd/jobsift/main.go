// Package main contains the entrypoint for jobsift.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/jobsift/internal/bot"
	"github.com/edgard/jobsift/internal/bot/handlers"
	"github.com/edgard/jobsift/internal/bot/tasks"
	"github.com/edgard/jobsift/internal/classifier"
	"github.com/edgard/jobsift/internal/config"
	"github.com/edgard/jobsift/internal/database"
	"github.com/edgard/jobsift/internal/ingest"
	"github.com/edgard/jobsift/internal/logger"
	"github.com/edgard/jobsift/internal/mtproto"
	"github.com/edgard/jobsift/internal/pipeline"
	"github.com/edgard/jobsift/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	cls, err := classifier.New(ctx, cfg.Classifier, log)
	if err != nil {
		log.Error("Failed to initialize classifier", "backend", cfg.Classifier.Backend, "error", err)
		return 1
	}

	events := make(chan ingest.Event, cfg.Ingest.QueueSize)
	session := mtproto.New(cfg.Telegram, cfg.Backfill.FolderID, events, log)
	scanner := ingest.NewScanner(session, store, time.Duration(cfg.Backfill.LookbackHours)*time.Hour, log)
	live := ingest.NewLiveIngestor(store, log)
	runner := pipeline.NewRunner(store, cls, cfg.Classifier, cfg.Messages, log)

	tg, err := telegram.NewTelegramBot(cfg.Bot.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cmdHandlers := handlers.RegisterAllCommands(handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Store:   store,
		Runner:  runner,
		Scanner: scanner,
	})
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, cmdHandlers); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}

	sender := telegram.NewSender(tg, cfg.Bot.MaxMessageLength, log)
	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Config:  cfg,
		Store:   store,
		Scanner: scanner,
		Runner:  runner,
		Notify:  sender.ReplyTo(cfg.Bot.AdminUserID),
	})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, bot.Components{
		Listener:  tg,
		Session:   session,
		Scanner:   scanner,
		Live:      live,
		Events:    events,
		Runner:    runner,
		Scheduler: sched,
	})

	log.Info("Starting jobsift")
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("jobsift stopped due to error", "error", err)
		return 1
	}

	log.Info("jobsift stopped gracefully")
	return 0
}
