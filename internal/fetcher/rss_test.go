package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"content_bot/internal/model"
)

type stubClient struct {
	lastReq *http.Request
	status  int
	header  http.Header
	body    string
	err     error
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	header := c.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: c.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

func feedXML(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Tech News</title>` +
		strings.Join(items, "") + `</channel></rss>`
}

func feedItem(guid, title string, published time.Time) string {
	return fmt.Sprintf(
		`<item><guid>%s</guid><title>%s</title><pubDate>%s</pubDate></item>`,
		guid, title, published.Format(time.RFC1123Z))
}

func TestRSSFetch(t *testing.T) {
	now := time.Now()
	client := &stubClient{
		status: http.StatusOK,
		body: feedXML(
			feedItem("post-1", "big AI release", now.Add(-time.Hour)),
			feedItem("post-2", "ancient news", now.Add(-48*time.Hour)),
		),
	}

	f := NewRSS(client, "https://bridge.example/feed/%s")
	ch := model.Channel{ID: 7, Name: "technews"}

	items, err := f.Fetch(context.Background(), ch, 24*time.Hour, 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if got := client.lastReq.URL.String(); got != "https://bridge.example/feed/technews" {
		t.Errorf("unexpected url %q", got)
	}
	if got := client.lastReq.Header.Get("User-Agent"); got != "ContentBot/1.0" {
		t.Errorf("unexpected user agent %q", got)
	}

	// Entries older than the lookback window are dropped.
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.ID != ItemID("post-1") {
		t.Errorf("expected id derived from guid, got %d", item.ID)
	}
	if item.ChannelID != 7 {
		t.Errorf("unexpected channel id %d", item.ChannelID)
	}
	if item.ChannelName != "Tech News" {
		t.Errorf("expected feed title as channel name, got %q", item.ChannelName)
	}
	if item.Text != "big AI release" {
		t.Errorf("unexpected text %q", item.Text)
	}
	if item.MediaKind != model.KindText {
		t.Errorf("unexpected kind %q", item.MediaKind)
	}
}

func TestRSSFetchLimit(t *testing.T) {
	now := time.Now()
	client := &stubClient{
		status: http.StatusOK,
		body: feedXML(
			feedItem("post-1", "one", now),
			feedItem("post-2", "two", now),
			feedItem("post-3", "three", now),
		),
	}

	f := NewRSS(client, "https://bridge.example/feed/%s")
	items, err := f.Fetch(context.Background(), model.Channel{Name: "technews"}, 24*time.Hour, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected limit of 2, got %d items", len(items))
	}
}

func TestRSSFetchRateLimited(t *testing.T) {
	client := &stubClient{
		status: http.StatusTooManyRequests,
		header: http.Header{"Retry-After": []string{"120"}},
	}

	f := NewRSS(client, "https://bridge.example/feed/%s")
	_, err := f.Fetch(context.Background(), model.Channel{Name: "technews"}, 24*time.Hour, 50)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 2*time.Minute {
		t.Errorf("expected retry after 2m, got %s", rl.RetryAfter)
	}
}

func TestRSSFetchRateLimitedWithoutHeader(t *testing.T) {
	client := &stubClient{status: http.StatusTooManyRequests}

	f := NewRSS(client, "https://bridge.example/feed/%s")
	_, err := f.Fetch(context.Background(), model.Channel{Name: "technews"}, 24*time.Hour, 50)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != time.Minute {
		t.Errorf("expected default retry after 1m, got %s", rl.RetryAfter)
	}
}

func TestRSSFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
	}{
		{name: "transport error", client: &stubClient{err: errors.New("connection refused")}},
		{name: "server error", client: &stubClient{status: http.StatusBadGateway}},
		{name: "invalid feed", client: &stubClient{status: http.StatusOK, body: "not xml at all"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewRSS(tt.client, "https://bridge.example/feed/%s")
			if _, err := f.Fetch(context.Background(), model.Channel{Name: "technews"}, 24*time.Hour, 50); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRSSFetchMediaKind(t *testing.T) {
	now := time.Now().Format(time.RFC1123Z)
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Tech News</title>
<item><guid>p1</guid><title>a photo</title><pubDate>` + now + `</pubDate>
<enclosure url="https://cdn.example/a.jpg" type="image/jpeg" length="1"/></item>
<item><guid>p2</guid><title>a clip</title><pubDate>` + now + `</pubDate>
<enclosure url="https://cdn.example/b.mp4" type="video/mp4" length="1"/></item>
</channel></rss>`

	client := &stubClient{status: http.StatusOK, body: body}
	f := NewRSS(client, "https://bridge.example/feed/%s")

	items, err := f.Fetch(context.Background(), model.Channel{Name: "technews"}, 24*time.Hour, 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].MediaKind != model.KindPhoto {
		t.Errorf("expected photo kind, got %q", items[0].MediaKind)
	}
	if items[1].MediaKind != model.KindVideo {
		t.Errorf("expected video kind, got %q", items[1].MediaKind)
	}
}

func TestItemIDStable(t *testing.T) {
	if ItemID("post-1") != ItemID("post-1") {
		t.Error("expected stable ids for the same guid")
	}
	if ItemID("post-1") == ItemID("post-2") {
		t.Error("expected different guids to produce different ids")
	}
	if ItemID("post-1") < 0 {
		t.Error("expected non-negative id")
	}
}

// Both implementations satisfy the fetching boundary.
var (
	_ ChannelFetcher = (*RSS)(nil)
	_ ChannelFetcher = (*Static)(nil)
)
