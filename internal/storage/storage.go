// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"content_bot/internal/model"
)

// StatsDelta is an additive increment applied to one day's counters.
type StatsDelta struct {
	Processed       int
	Republished     int
	Errors          int
	ChannelsChecked int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	IsProcessed(ctx context.Context, itemID, channelID int64) (bool, error)
	Record(ctx context.Context, item *model.ProcessedItem) (created bool, err error)
	MarkRepublished(ctx context.Context, itemID, channelID int64) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]model.ProcessedItem, error)

	UpdateDailyStats(ctx context.Context, date string, delta StatsDelta) error
	GetDailyStats(ctx context.Context, date string) (*model.DailyStats, error)

	UpdateChannelChecked(ctx context.Context, ch model.Channel) error

	Prune(ctx context.Context, itemsOlderThanDays, statsOlderThanDays int) error

	Close() error
}
