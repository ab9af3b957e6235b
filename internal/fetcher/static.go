package fetcher

import (
	"context"
	"time"

	"content_bot/internal/model"
)

// Static serves canned items from memory. It backs the FETCHER=static
// configuration for dry runs and is the test double for the processor.
type Static struct {
	Items map[string][]model.RawItem
	Errs  map[string]error
}

// NewStatic creates an empty static fetcher.
func NewStatic() *Static {
	return &Static{
		Items: make(map[string][]model.RawItem),
		Errs:  make(map[string]error),
	}
}

// Add appends canned items for a channel name.
func (f *Static) Add(channel string, items ...model.RawItem) {
	f.Items[channel] = append(f.Items[channel], items...)
}

// Fetch returns the canned items for the channel, capped at limit.
func (f *Static) Fetch(_ context.Context, ch model.Channel, _ time.Duration, limit int) ([]model.RawItem, error) {
	if err := f.Errs[ch.Name]; err != nil {
		return nil, err
	}
	items := f.Items[ch.Name]
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]model.RawItem, len(items))
	copy(out, items)
	return out, nil
}
