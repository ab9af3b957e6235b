// Package processor orchestrates the per-channel ingestion pipeline:
// fetch, tag-match, dedup, republish, stats.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"content_bot/internal/fetcher"
	"content_bot/internal/model"
	"content_bot/internal/storage"
	"content_bot/internal/tagmatch"
)

// Configuration errors short-circuit a run with zero side effects.
var (
	ErrNoChannels = errors.New("no channels configured")
	ErrNoTaxonomy = errors.New("interest taxonomy is empty")
)

// Republisher publishes a matched item to the output channel.
type Republisher interface {
	Publish(ctx context.Context, item *model.ProcessedItem) error
}

// Notifier receives the batch of newly republished items after a run.
type Notifier interface {
	NotifyNewItems(ctx context.Context, items []model.ProcessedItem) error
}

// Config holds the per-run settings of the processor.
type Config struct {
	Channels          []model.Channel
	Taxonomy          model.Taxonomy
	Lookback          time.Duration
	FetchLimit        int
	DailyCap          int
	InterChannelDelay time.Duration
}

// Result is the aggregate outcome of one processing pass.
type Result struct {
	Processed       int
	Republished     int
	Errors          int
	ChannelsChecked int
}

// Processor runs the ingestion pipeline over all configured channels.
type Processor struct {
	store     storage.Storage
	fetcher   fetcher.ChannelFetcher
	publisher Republisher
	notifier  Notifier
	log       *slog.Logger
	cfg       Config

	now func() time.Time
}

// New creates a Processor. notifier may be nil.
func New(store storage.Storage, f fetcher.ChannelFetcher, pub Republisher, notifier Notifier, cfg Config, log *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		fetcher:   f,
		publisher: pub,
		notifier:  notifier,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run processes all configured channels in order. A single channel's failure
// never aborts the run; failures are counted and the next channel proceeds.
// The daily cap is a hard ceiling across channels. One DailyStats update with
// the aggregate deltas is written at the end.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	var res Result

	if len(p.cfg.Channels) == 0 {
		return res, ErrNoChannels
	}
	if len(p.cfg.Taxonomy.Tags) == 0 {
		return res, ErrNoTaxonomy
	}

	var republished []model.ProcessedItem
	capReached := false

	for i, ch := range p.cfg.Channels {
		if ctx.Err() != nil {
			break
		}
		if capReached {
			break
		}

		capReached = p.processChannel(ctx, ch, &res, &republished)

		if err := p.store.UpdateChannelChecked(ctx, ch); err != nil {
			p.log.Error("update channel checked", "channel", ch.Name, "error", err)
		}
		res.ChannelsChecked++

		if !capReached && i < len(p.cfg.Channels)-1 {
			if !sleepCtx(ctx, p.cfg.InterChannelDelay) {
				break
			}
		}
	}

	today := p.now().Format(storage.DateLayout)
	if err := p.store.UpdateDailyStats(ctx, today, storage.StatsDelta{
		Processed:       res.Processed,
		Republished:     res.Republished,
		Errors:          res.Errors,
		ChannelsChecked: res.ChannelsChecked,
	}); err != nil {
		p.log.Error("update daily stats", "date", today, "error", err)
	}

	if p.notifier != nil && len(republished) > 0 {
		if err := p.notifier.NotifyNewItems(ctx, republished); err != nil {
			p.log.Error("notify new items", "count", len(republished), "error", err)
		}
	}

	p.log.Info("processing pass finished",
		"processed", res.Processed,
		"republished", res.Republished,
		"errors", res.Errors,
		"channels_checked", res.ChannelsChecked,
	)
	return res, nil
}

// processChannel handles one channel and reports whether the daily cap was hit.
func (p *Processor) processChannel(ctx context.Context, ch model.Channel, res *Result, republished *[]model.ProcessedItem) bool {
	p.log.Debug("checking channel", "channel", ch.Name)

	items, err := p.fetcher.Fetch(ctx, ch, p.cfg.Lookback, p.cfg.FetchLimit)
	if err != nil {
		var rl *fetcher.RateLimitError
		if errors.As(err, &rl) {
			p.log.Warn("rate limited", "channel", ch.Name, "retry_after", rl.RetryAfter)
			res.Errors++
			sleepCtx(ctx, rl.RetryAfter)
			return false
		}
		p.log.Error("fetch channel", "channel", ch.Name, "error", err)
		res.Errors++
		return false
	}

	for _, raw := range items {
		if ctx.Err() != nil {
			return false
		}

		content := raw.Text
		if content == "" && raw.MediaKind != model.KindText {
			content = raw.MediaKind.Placeholder()
		}

		tags := tagmatch.Match(content, p.cfg.Taxonomy)
		if len(tags) == 0 {
			continue
		}

		// Read failures degrade to "not yet processed"; losing dedup
		// precision beats halting ingestion.
		seen, err := p.store.IsProcessed(ctx, raw.ID, raw.ChannelID)
		if err != nil {
			p.log.Error("check processed", "channel", ch.Name, "item", raw.ID, "error", err)
		}
		if seen {
			continue
		}

		item := model.ProcessedItem{
			ItemID:      raw.ID,
			ChannelID:   raw.ChannelID,
			ChannelName: raw.ChannelName,
			Content:     content,
			Kind:        raw.MediaKind,
			Tags:        tags,
			ProcessedAt: p.now().UTC(),
		}

		created, err := p.store.Record(ctx, &item)
		if err != nil {
			p.log.Error("record item", "channel", ch.Name, "item", raw.ID, "error", err)
			res.Errors++
			continue
		}
		if !created {
			continue
		}
		res.Processed++

		if err := p.publisher.Publish(ctx, &item); err != nil {
			p.log.Error("republish item", "channel", ch.Name, "item", raw.ID, "error", err)
			res.Errors++
		} else {
			if _, err := p.store.MarkRepublished(ctx, item.ItemID, item.ChannelID); err != nil {
				p.log.Error("mark republished", "channel", ch.Name, "item", raw.ID, "error", err)
			}
			res.Republished++
			*republished = append(*republished, item)
		}

		if res.Processed >= p.cfg.DailyCap {
			p.log.Info("daily cap reached", "cap", p.cfg.DailyCap)
			return true
		}
	}
	return false
}

// sleepCtx waits d or until ctx is done; reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
