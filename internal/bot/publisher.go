package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"content_bot/internal/model"
)

// Publisher republishes matched items to the output channel over the Bot API.
// The target is either a @channelname or a numeric chat id.
type Publisher struct {
	api    telegramAPI
	target string
	log    *slog.Logger
}

// NewPublisher creates a Publisher writing to the given channel.
func (b *Bot) NewPublisher(target string) *Publisher {
	return &Publisher{api: b.api, target: target, log: b.log}
}

// Publish sends one formatted item to the output channel.
func (p *Publisher) Publish(_ context.Context, item *model.ProcessedItem) error {
	if p.target == "" {
		return fmt.Errorf("no output channel configured")
	}

	text := FormatItem(item)
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(p.target, "@") {
		msg = tgbotapi.NewMessageToChannel(p.target, text)
	} else {
		chatID, err := strconv.ParseInt(p.target, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid output channel %q: %w", p.target, err)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.DisableWebPagePreview = true

	if _, err := p.api.Send(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.target, err)
	}
	return nil
}

// Notifier sends run summaries and error reports to the admin chat.
// A zero admin chat id disables notifications.
type Notifier struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewNotifier creates a Notifier for the given admin chat.
func (b *Bot) NewNotifier(chatID int64) *Notifier {
	return &Notifier{api: b.api, chatID: chatID, log: b.log}
}

// NotifyNewItems reports a batch of newly republished items.
func (n *Notifier) NotifyNewItems(_ context.Context, items []model.ProcessedItem) error {
	if n.chatID == 0 || len(items) == 0 {
		return nil
	}
	return n.send(FormatNewItemsNotice(items, time.Now()))
}

// NotifyError reports a run failure.
func (n *Notifier) NotifyError(_ context.Context, message, details string) error {
	if n.chatID == 0 {
		return nil
	}
	return n.send(fmt.Sprintf("Error: %s\n%s", message, details))
}

func (n *Notifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("notify chat %d: %w", n.chatID, err)
	}
	return nil
}
