package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"content_bot/internal/bot"
	"content_bot/internal/config"
	"content_bot/internal/fetcher"
	"content_bot/internal/processor"
	"content_bot/internal/scheduler"
	"content_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	b, err := bot.New(cfg.BotToken, store, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	var channelFetcher fetcher.ChannelFetcher
	switch cfg.Fetcher {
	case config.FetcherStatic:
		channelFetcher = fetcher.NewStatic()
	default:
		channelFetcher = fetcher.NewRSS(http.DefaultClient, cfg.RSSBridgeURL)
	}

	notifier := b.NewNotifier(cfg.AdminChatID)
	proc := processor.New(store, channelFetcher, b.NewPublisher(cfg.OutputChannel), notifier, processor.Config{
		Channels:          cfg.TargetChannels,
		Taxonomy:          cfg.Taxonomy,
		Lookback:          time.Duration(cfg.CheckIntervalHours) * time.Hour,
		FetchLimit:        cfg.FetchLimit,
		DailyCap:          cfg.MaxDailyItems,
		InterChannelDelay: cfg.RateLimitDelay,
	}, log)

	sched := scheduler.New(proc, scheduler.NewHTTPProbe(cfg.ProbeURL), notifier, cfg.Schedule, log)
	sched.SetAfterRun(func(ctx context.Context) {
		if err := store.Prune(ctx, cfg.RetentionDays, cfg.StatsRetentionDays); err != nil {
			log.Error("prune after run", "error", err)
		}
	})
	b.SetScheduler(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Prune(ctx, cfg.RetentionDays, cfg.StatsRetentionDays); err != nil {
		log.Error("prune at startup", "error", err)
	}

	log.Info("starting content bot", "channels", len(cfg.TargetChannels), "fetcher", cfg.Fetcher)

	if cfg.Schedule.Enabled {
		if err := sched.Start(); err != nil {
			log.Error("start scheduler", "error", err)
		}
	}

	b.Run(ctx)

	_ = sched.Stop()
	log.Info("content bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
