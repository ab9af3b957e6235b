package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"content_bot/internal/model"
	"content_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// DateLayout is the calendar-date key format of daily_stats rows.
const DateLayout = "2006-01-02"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// IsProcessed checks whether an item has already been recorded.
func (s *SQLite) IsProcessed(ctx context.Context, itemID, channelID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_items WHERE item_id = ? AND channel_id = ?`,
		itemID, channelID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}

// Record inserts a processed item keyed by (item_id, channel_id). The insert
// is idempotent; the returned bool reports whether a new row was created, so
// callers can avoid double-counting statistics on a repeat call.
func (s *SQLite) Record(ctx context.Context, item *model.ProcessedItem) (bool, error) {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	if item.ProcessedAt.IsZero() {
		item.ProcessedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_items
		   (item_id, channel_id, channel_name, content, content_kind, tags, processed_at, republished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(item_id, channel_id) DO NOTHING`,
		item.ItemID, item.ChannelID, item.ChannelName, item.Content,
		string(item.Kind), string(tags), item.ProcessedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert processed item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkRepublished sets republished and republished_at on an existing row.
// Returns false without error if the row does not exist.
func (s *SQLite) MarkRepublished(ctx context.Context, itemID, channelID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_items SET republished = 1, republished_at = ?
		 WHERE item_id = ? AND channel_id = ?`,
		time.Now().UTC().Format(timeLayout), itemID, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("mark republished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListRecent returns the most recently processed items, newest first.
func (s *SQLite) ListRecent(ctx context.Context, limit int) ([]model.ProcessedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, channel_id, channel_name, content, content_kind, tags,
		        processed_at, republished, republished_at
		 FROM processed_items ORDER BY processed_at DESC, item_id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ProcessedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateDailyStats additively increments the counters for one date, creating
// the row on first write.
func (s *SQLite) UpdateDailyStats(ctx context.Context, date string, delta StatsDelta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_stats
		   (date, processed_count, republished_count, error_count, channels_checked, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		   processed_count   = processed_count + excluded.processed_count,
		   republished_count = republished_count + excluded.republished_count,
		   error_count       = error_count + excluded.error_count,
		   channels_checked  = channels_checked + excluded.channels_checked,
		   last_updated      = excluded.last_updated`,
		date, delta.Processed, delta.Republished, delta.Errors, delta.ChannelsChecked,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("update daily stats: %w", err)
	}
	return nil
}

// GetDailyStats returns the counters for one date. A date with no row yields
// zero counters, not an error.
func (s *SQLite) GetDailyStats(ctx context.Context, date string) (*model.DailyStats, error) {
	stats := &model.DailyStats{Date: date}
	var updated sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT processed_count, republished_count, error_count, channels_checked, last_updated
		 FROM daily_stats WHERE date = ?`, date,
	).Scan(&stats.ProcessedCount, &stats.RepublishedCount, &stats.ErrorCount,
		&stats.ChannelsChecked, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	if updated.Valid {
		stats.LastUpdated, _ = time.Parse(timeLayout, updated.String)
	}
	return stats, nil
}

// UpdateChannelChecked records when a channel was last scanned.
func (s *SQLite) UpdateChannelChecked(ctx context.Context, ch model.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_checks (channel_id, channel_name, last_checked)
		 VALUES (?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   channel_name = excluded.channel_name,
		   last_checked = excluded.last_checked`,
		ch.ID, ch.Name, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("update channel checked: %w", err)
	}
	return nil
}

// Prune deletes processed items older than itemsOlderThanDays and daily stats
// older than statsOlderThanDays. The deletions are independent; a failure of
// one does not roll back the other.
func (s *SQLite) Prune(ctx context.Context, itemsOlderThanDays, statsOlderThanDays int) error {
	now := time.Now().UTC()

	var errs []error
	itemCutoff := now.AddDate(0, 0, -itemsOlderThanDays).Format(timeLayout)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_items WHERE processed_at < ?`, itemCutoff,
	); err != nil {
		errs = append(errs, fmt.Errorf("prune processed items: %w", err))
	}

	statsCutoff := now.AddDate(0, 0, -statsOlderThanDays).Format(DateLayout)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_stats WHERE date < ?`, statsCutoff,
	); err != nil {
		errs = append(errs, fmt.Errorf("prune daily stats: %w", err))
	}
	return errors.Join(errs...)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (model.ProcessedItem, error) {
	var item model.ProcessedItem
	var kind, tagsRaw, processed string
	var republished int
	var republishedAt sql.NullString

	err := row.Scan(&item.ItemID, &item.ChannelID, &item.ChannelName, &item.Content,
		&kind, &tagsRaw, &processed, &republished, &republishedAt)
	if err != nil {
		return item, fmt.Errorf("scan processed item: %w", err)
	}

	item.Kind = model.ContentKind(kind)
	if err := json.Unmarshal([]byte(tagsRaw), &item.Tags); err != nil {
		return item, fmt.Errorf("unmarshal tags: %w", err)
	}
	item.ProcessedAt, _ = time.Parse(timeLayout, processed)
	item.Republished = republished == 1
	if republishedAt.Valid {
		t, _ := time.Parse(timeLayout, republishedAt.String)
		item.RepublishedAt = &t
	}
	return item, nil
}
