// Package model defines the domain types used across the application.
package model

import "time"

// ContentKind classifies the media payload of a channel post.
type ContentKind string

// Supported content kinds.
const (
	KindText      ContentKind = "text"
	KindPhoto     ContentKind = "photo"
	KindVideo     ContentKind = "video"
	KindAudio     ContentKind = "audio"
	KindDocument  ContentKind = "document"
	KindVoice     ContentKind = "voice"
	KindAnimation ContentKind = "animation"
	KindOther     ContentKind = "other"
)

// Placeholder returns the bracketed stand-in used as content when a post
// carries media but no caption text.
func (k ContentKind) Placeholder() string {
	return "[" + string(k) + "]"
}

// Channel identifies a monitored message channel.
type Channel struct {
	ID   int64
	Name string
}

// RawItem is a single post fetched from a monitored channel, before filtering.
type RawItem struct {
	ID          int64
	ChannelID   int64
	ChannelName string
	Text        string
	MediaKind   ContentKind
	PostedAt    time.Time
}

// ProcessedItem is a post that matched the interest taxonomy and was recorded.
// Identity is the (ItemID, ChannelID) composite key.
type ProcessedItem struct {
	ItemID        int64
	ChannelID     int64
	ChannelName   string
	Content       string
	Kind          ContentKind
	Tags          []string
	ProcessedAt   time.Time
	Republished   bool
	RepublishedAt *time.Time
}

// DailyStats holds aggregate counters for one local calendar date.
type DailyStats struct {
	Date             string
	ProcessedCount   int
	RepublishedCount int
	ErrorCount       int
	ChannelsChecked  int
	LastUpdated      time.Time
}

// SuccessRate returns republished/processed as a percentage rounded to one
// decimal place, or 0 when nothing was processed.
func (d DailyStats) SuccessRate() float64 {
	if d.ProcessedCount == 0 {
		return 0
	}
	rate := float64(d.RepublishedCount) / float64(d.ProcessedCount) * 100
	return float64(int(rate*10+0.5)) / 10
}

// Taxonomy is the user-defined interest taxonomy supplied to the tag matcher.
type Taxonomy struct {
	Tags            []string
	ExactMatch      bool
	CaseSensitive   bool
	PartialMatch    bool
	IncludeSynonyms bool
	Synonyms        map[string][]string
}

// ScheduleMode selects how the next run time is computed.
type ScheduleMode string

// Supported schedule modes.
const (
	ModeInterval   ScheduleMode = "interval"
	ModeFixedTimes ScheduleMode = "fixed_times"
)

// ClockTime is an (hour, minute) pair for fixed-times scheduling.
type ClockTime struct {
	Hour   int
	Minute int
}

// ScheduleConfig holds the configurable fields of the scheduler.
type ScheduleConfig struct {
	Enabled              bool
	Mode                 ScheduleMode
	IntervalHours        int
	FixedTimes           []ClockTime
	AutoRetry            bool
	RetryCount           int
	RetryIntervalMinutes int
}
