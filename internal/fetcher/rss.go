package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"content_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RSS fetches channel posts through an RSS bridge. The bridge URL template
// receives the channel name, e.g. "https://rsshub.app/telegram/channel/%s".
type RSS struct {
	client      HTTPClient
	urlTemplate string
}

// NewRSS creates an RSS fetcher with the given HTTP client and bridge URL template.
func NewRSS(client HTTPClient, urlTemplate string) *RSS {
	return &RSS{client: client, urlTemplate: urlTemplate}
}

// Fetch downloads the channel's bridge feed and maps entries within the
// lookback window to raw items, newest first, capped at limit.
func (f *RSS) Fetch(ctx context.Context, ch model.Channel, lookback time.Duration, limit int) ([]model.RawItem, error) {
	url := fmt.Sprintf(f.urlTemplate, ch.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ContentBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	cutoff := time.Now().Add(-lookback)
	channelName := ch.Name
	if feed.Title != "" {
		channelName = feed.Title
	}

	var items []model.RawItem
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		posted := entryTime(entry)
		if !posted.IsZero() && posted.Before(cutoff) {
			continue
		}
		items = append(items, model.RawItem{
			ID:          ItemID(entryGUID(entry)),
			ChannelID:   ch.ID,
			ChannelName: channelName,
			Text:        entryText(entry),
			MediaKind:   entryKind(entry),
			PostedAt:    posted,
		})
	}
	return items, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

func entryGUID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Title + "|" + entry.Link
}

func entryTime(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

func entryText(entry *gofeed.Item) string {
	title := strings.TrimSpace(entry.Title)
	desc := strings.TrimSpace(entry.Description)
	switch {
	case title == "":
		return desc
	case desc == "" || desc == title:
		return title
	case strings.HasPrefix(desc, title):
		return desc
	default:
		return title + "\n" + desc
	}
}

func entryKind(entry *gofeed.Item) model.ContentKind {
	for _, enc := range entry.Enclosures {
		switch {
		case strings.HasPrefix(enc.Type, "image/"):
			return model.KindPhoto
		case strings.HasPrefix(enc.Type, "video/"):
			return model.KindVideo
		case strings.HasPrefix(enc.Type, "audio/"):
			return model.KindAudio
		case enc.Type != "":
			return model.KindDocument
		}
	}
	return model.KindText
}
