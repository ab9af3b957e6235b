package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"content_bot/internal/fetcher"
	"content_bot/internal/model"
	"content_bot/internal/storage"
)

type fakePublisher struct {
	published []model.ProcessedItem
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, item *model.ProcessedItem) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, *item)
	return nil
}

type fakeNotifier struct {
	batches [][]model.ProcessedItem
}

func (f *fakeNotifier) NotifyNewItems(_ context.Context, items []model.ProcessedItem) error {
	f.batches = append(f.batches, items)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rawItem(id, channelID int64, channel, text string) model.RawItem {
	return model.RawItem{
		ID:          id,
		ChannelID:   channelID,
		ChannelName: channel,
		Text:        text,
		MediaKind:   model.KindText,
		PostedAt:    time.Now().UTC(),
	}
}

func defaultConfig(channels ...model.Channel) Config {
	return Config{
		Channels: channels,
		Taxonomy: model.Taxonomy{
			Tags:         []string{"AI", "python"},
			ExactMatch:   true,
			PartialMatch: true,
		},
		Lookback:   24 * time.Hour,
		FetchLimit: 50,
		DailyCap:   100,
	}
}

func TestRunConfigErrors(t *testing.T) {
	store := newTestStore(t)
	pub := &fakePublisher{}

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "no channels",
			cfg:  defaultConfig(),
			want: ErrNoChannels,
		},
		{
			name: "no taxonomy",
			cfg: Config{
				Channels: []model.Channel{{ID: 1, Name: "technews"}},
			},
			want: ErrNoTaxonomy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(store, fetcher.NewStatic(), pub, nil, tt.cfg, discardLogger())
			res, err := p.Run(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if diff := cmp.Diff(Result{}, res); diff != "" {
				t.Errorf("expected zero result (-want +got):\n%s", diff)
			}

			// Config errors must leave the store untouched.
			stats, err := store.GetDailyStats(context.Background(), time.Now().Format(storage.DateLayout))
			if err != nil {
				t.Fatalf("get stats: %v", err)
			}
			if stats.ChannelsChecked != 0 {
				t.Errorf("expected no side effects, got %+v", stats)
			}
		})
	}
}

func TestRunRepublishesMatches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}
	notifier := &fakeNotifier{}

	ch := model.Channel{ID: 1, Name: "technews"}
	f := fetcher.NewStatic()
	f.Add("technews",
		rawItem(101, 1, "technews", "big AI release today"),
		rawItem(102, 1, "technews", "weather report"),
	)

	p := New(store, f, pub, notifier, defaultConfig(ch), discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Result{Processed: 1, Republished: 1, ChannelsChecked: 1}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	if len(pub.published) != 1 || pub.published[0].ItemID != 101 {
		t.Fatalf("expected item 101 to be published, got %+v", pub.published)
	}
	if diff := cmp.Diff([]string{"AI"}, pub.published[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	// Non-matching items are never persisted.
	seen, err := store.IsProcessed(ctx, 102, 1)
	if err != nil {
		t.Fatalf("is processed: %v", err)
	}
	if seen {
		t.Error("expected non-matching item to stay unrecorded")
	}

	seen, err = store.IsProcessed(ctx, 101, 1)
	if err != nil {
		t.Fatalf("is processed: %v", err)
	}
	if !seen {
		t.Error("expected matching item to be recorded")
	}

	if len(notifier.batches) != 1 || len(notifier.batches[0]) != 1 {
		t.Errorf("expected one notification batch with one item, got %+v", notifier.batches)
	}
}

func TestRunSkipsAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	if _, err := store.Record(ctx, &model.ProcessedItem{
		ItemID:    101,
		ChannelID: 1,
		Content:   "big AI release today",
		Kind:      model.KindText,
		Tags:      []string{"AI"},
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	ch := model.Channel{ID: 1, Name: "technews"}
	f := fetcher.NewStatic()
	f.Add("technews", rawItem(101, 1, "technews", "big AI release today"))

	p := New(store, f, pub, nil, defaultConfig(ch), discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Processed != 0 || res.Republished != 0 {
		t.Errorf("expected duplicate to be skipped, got %+v", res)
	}
	if len(pub.published) != 0 {
		t.Errorf("expected nothing published, got %+v", pub.published)
	}
}

func TestRunDailyCapAcrossChannels(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	ch1 := model.Channel{ID: 1, Name: "technews"}
	ch2 := model.Channel{ID: 2, Name: "ai_digest"}
	f := fetcher.NewStatic()
	f.Add("technews", rawItem(101, 1, "technews", "AI update one"))
	f.Add("ai_digest",
		rawItem(201, 2, "ai_digest", "AI update two"),
		rawItem(202, 2, "ai_digest", "AI update three"),
	)

	cfg := defaultConfig(ch1, ch2)
	cfg.DailyCap = 2

	p := New(store, f, pub, nil, cfg, discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Result{Processed: 2, Republished: 2, ChannelsChecked: 2}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	// Item beyond the cap stays untouched for the next run.
	seen, err := store.IsProcessed(ctx, 202, 2)
	if err != nil {
		t.Fatalf("is processed: %v", err)
	}
	if seen {
		t.Error("expected item beyond the cap to stay unrecorded")
	}
}

func TestRunChannelFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	ch1 := model.Channel{ID: 1, Name: "broken"}
	ch2 := model.Channel{ID: 2, Name: "technews"}
	f := fetcher.NewStatic()
	f.Errs["broken"] = errors.New("connection refused")
	f.Add("technews", rawItem(201, 2, "technews", "AI news"))

	p := New(store, f, pub, nil, defaultConfig(ch1, ch2), discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Result{Processed: 1, Republished: 1, Errors: 1, ChannelsChecked: 2}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRateLimitedChannel(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	ch1 := model.Channel{ID: 1, Name: "limited"}
	ch2 := model.Channel{ID: 2, Name: "technews"}
	f := fetcher.NewStatic()
	f.Errs["limited"] = &fetcher.RateLimitError{RetryAfter: 20 * time.Millisecond}
	f.Add("technews", rawItem(201, 2, "technews", "AI news"))

	p := New(store, f, pub, nil, defaultConfig(ch1, ch2), discardLogger())

	start := time.Now()
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected the run to honor the rate-limit wait")
	}

	// The limited channel counts as an error and the run moves on.
	want := Result{Processed: 1, Republished: 1, Errors: 1, ChannelsChecked: 2}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPublishFailureCountsError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{err: errors.New("chat not found")}
	notifier := &fakeNotifier{}

	ch := model.Channel{ID: 1, Name: "technews"}
	f := fetcher.NewStatic()
	f.Add("technews", rawItem(101, 1, "technews", "AI news"))

	p := New(store, f, pub, notifier, defaultConfig(ch), discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Result{Processed: 1, Errors: 1, ChannelsChecked: 1}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	// Recorded but not republished; no notification without republished items.
	items, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(items) != 1 || items[0].Republished {
		t.Errorf("expected one unrepublished item, got %+v", items)
	}
	if len(notifier.batches) != 0 {
		t.Errorf("expected no notifications, got %+v", notifier.batches)
	}
}

func TestRunMediaPlaceholder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	ch := model.Channel{ID: 1, Name: "technews"}
	f := fetcher.NewStatic()
	f.Add("technews", model.RawItem{
		ID:          101,
		ChannelID:   1,
		ChannelName: "technews",
		MediaKind:   model.KindPhoto,
		PostedAt:    time.Now().UTC(),
	})

	cfg := defaultConfig(ch)
	cfg.Taxonomy.Tags = []string{"photo"}

	p := New(store, f, pub, nil, cfg, discardLogger())
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Processed != 1 {
		t.Fatalf("expected placeholder content to be matchable, got %+v", res)
	}
	if pub.published[0].Content != "[photo]" {
		t.Errorf("expected placeholder content, got %q", pub.published[0].Content)
	}
}

func TestRunWritesDailyStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	pub := &fakePublisher{}

	ch := model.Channel{ID: 1, Name: "technews"}
	f := fetcher.NewStatic()
	f.Add("technews", rawItem(101, 1, "technews", "AI news"))

	fixed := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	p := New(store, f, pub, nil, defaultConfig(ch), discardLogger())
	p.now = func() time.Time { return fixed }

	if _, err := p.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	stats, err := store.GetDailyStats(ctx, "2026-08-24")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	want := &model.DailyStats{
		Date:             "2026-08-24",
		ProcessedCount:   1,
		RepublishedCount: 1,
		ChannelsChecked:  1,
		LastUpdated:      stats.LastUpdated,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
