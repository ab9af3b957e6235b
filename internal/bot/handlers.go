package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"content_bot/internal/scheduler"
	"content_bot/internal/storage"
)

const helpText = `Commands:
/status - scheduler state and today's counters
/stats [YYYY-MM-DD] - daily statistics
/run - trigger a processing pass now
/enable - enable and start the schedule
/disable - stop and disable the schedule
/schedule - show the schedule configuration
/tags - show the interest taxonomy
/channels - show the monitored channels
/recent [n] - recently processed items
/prune <days> - delete items older than <days>`

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, helpText)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	snap := b.sched.Status()
	today := time.Now().Format(storage.DateLayout)

	// A failed stats read degrades to zero counters.
	stats, err := b.store.GetDailyStats(ctx, today)
	if err != nil {
		b.log.Error("get daily stats", "date", today, "error", err)
		stats = nil
	}
	b.reply(chatID, FormatStatus(snap, stats))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, args string) {
	date := time.Now().Format(storage.DateLayout)
	if args != "" {
		if _, err := time.Parse(storage.DateLayout, args); err != nil {
			b.reply(chatID, "Usage: /stats [YYYY-MM-DD]")
			return
		}
		date = args
	}

	stats, err := b.store.GetDailyStats(ctx, date)
	if err != nil {
		b.log.Error("get daily stats", "date", date, "error", err)
		b.reply(chatID, "Could not read statistics.")
		return
	}
	b.reply(chatID, FormatStats(stats))
}

func (b *Bot) handleRun(ctx context.Context, chatID int64) {
	go func() {
		err := b.sched.ExecuteNow(ctx)
		switch {
		case errors.Is(err, scheduler.ErrAlreadyRunning):
			b.reply(chatID, "A run is already in progress.")
		case err != nil:
			b.reply(chatID, fmt.Sprintf("Run failed: %v", err))
		default:
			b.reply(chatID, "Run finished. Use /stats for results.")
		}
	}()
	b.reply(chatID, "Run triggered.")
}

func (b *Bot) handleEnable(chatID int64) {
	cfg := b.sched.Config()
	cfg.Enabled = true
	if err := b.sched.SaveConfig(cfg); err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid schedule: %v", err))
		return
	}

	err := b.sched.Start()
	switch {
	case errors.Is(err, scheduler.ErrAlreadyStarted):
		b.reply(chatID, "Schedule is already running.")
	case err != nil:
		b.reply(chatID, fmt.Sprintf("Could not start: %v", err))
	default:
		b.reply(chatID, "Schedule enabled.\n"+FormatSchedule(b.sched.Config(), b.sched.Status()))
	}
}

func (b *Bot) handleDisable(chatID int64) {
	if err := b.sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotStarted) {
		b.reply(chatID, fmt.Sprintf("Could not stop: %v", err))
		return
	}
	cfg := b.sched.Config()
	cfg.Enabled = false
	if err := b.sched.SaveConfig(cfg); err != nil {
		b.reply(chatID, fmt.Sprintf("Could not save: %v", err))
		return
	}
	b.reply(chatID, "Schedule disabled.")
}

func (b *Bot) handleSchedule(chatID int64) {
	b.reply(chatID, FormatSchedule(b.sched.Config(), b.sched.Status()))
}

func (b *Bot) handleTags(chatID int64) {
	b.reply(chatID, FormatTaxonomy(b.cfg.Taxonomy))
}

func (b *Bot) handleChannels(chatID int64) {
	b.reply(chatID, FormatChannels(b.cfg.TargetChannels))
}

func (b *Bot) handleRecent(ctx context.Context, chatID int64, args string) {
	limit := 10
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > 50 {
			b.reply(chatID, "Usage: /recent [1-50]")
			return
		}
		limit = n
	}

	items, err := b.store.ListRecent(ctx, limit)
	if err != nil {
		b.log.Error("list recent", "error", err)
		b.reply(chatID, "Could not read recent items.")
		return
	}
	b.reply(chatID, FormatRecent(items))
}

func (b *Bot) handlePrune(ctx context.Context, chatID int64, args string) {
	days, err := strconv.Atoi(args)
	if err != nil || days < 1 {
		b.reply(chatID, "Usage: /prune <days>")
		return
	}

	if err := b.store.Prune(ctx, days, b.cfg.StatsRetentionDays); err != nil {
		b.log.Error("prune", "days", days, "error", err)
		b.reply(chatID, fmt.Sprintf("Prune failed: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Deleted items older than %d days.", days))
}
