// Package bot provides the Telegram control surface and the live republisher
// and notifier over the Bot API.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"content_bot/internal/config"
	"content_bot/internal/scheduler"
	"content_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot handles operator commands and exposes the scheduler and store upward.
type Bot struct {
	api   telegramAPI
	store storage.Storage
	sched *scheduler.Scheduler
	cfg   *config.Config
	log   *slog.Logger
}

// New creates a Bot with the given Telegram token. The scheduler is attached
// later with SetScheduler, since its processor publishes through this bot.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		store: store,
		cfg:   cfg,
		log:   log,
	}, nil
}

// SetScheduler attaches the scheduler the command handlers control.
// Must be called before Run.
func (b *Bot) SetScheduler(sched *scheduler.Scheduler) {
	b.sched = sched
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			// Channel posts and anonymous admins carry no sender.
			if update.Message.From == nil {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start", "help":
		b.handleHelp(chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "stats":
		b.handleStats(ctx, chatID, args)
	case "run":
		b.handleRun(ctx, chatID)
	case "enable":
		b.handleEnable(chatID)
	case "disable":
		b.handleDisable(chatID)
	case "schedule":
		b.handleSchedule(chatID)
	case "tags":
		b.handleTags(chatID)
	case "channels":
		b.handleChannels(chatID)
	case "recent":
		b.handleRecent(ctx, chatID, args)
	case "prune":
		b.handlePrune(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
