// Package fetcher defines the channel fetching boundary and its implementations.
package fetcher

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"content_bot/internal/model"
)

// ChannelFetcher pulls recent posts from one monitored channel. Implementations
// may return a RateLimitError, which callers must honor before further calls.
type ChannelFetcher interface {
	Fetch(ctx context.Context, ch model.Channel, lookback time.Duration, limit int) ([]model.RawItem, error)
}

// RateLimitError signals that the upstream asked for a pause before the next
// request.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ItemID derives a stable numeric item id from an upstream identifier. The
// RSS bridge exposes string GUIDs while the dedup key is numeric.
func ItemID(guid string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(guid))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
