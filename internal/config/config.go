// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"content_bot/internal/model"
)

// Fetcher implementation names selectable via the FETCHER variable.
const (
	FetcherRSS    = "rss"
	FetcherStatic = "static"
)

// Config holds the application configuration.
type Config struct {
	BotToken     string
	DatabasePath string
	LogLevel     string
	AllowedUsers []int64

	OutputChannel string
	AdminChatID   int64

	TargetChannels []model.Channel
	Taxonomy       model.Taxonomy

	CheckIntervalHours int
	FetchLimit         int
	MaxDailyItems      int
	RateLimitDelay     time.Duration
	RetentionDays      int
	StatsRetentionDays int

	Schedule model.ScheduleConfig

	Fetcher      string
	RSSBridgeURL string
	ProbeURL     string
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	cfg := &Config{
		BotToken:      token,
		DatabasePath:  envOrDefault("DATABASE_PATH", "./data/content_bot.db"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		OutputChannel: os.Getenv("OUTPUT_CHANNEL"),
		Fetcher:       envOrDefault("FETCHER", FetcherRSS),
		RSSBridgeURL:  envOrDefault("RSS_BRIDGE_URL", "https://rsshub.app/telegram/channel/%s"),
		ProbeURL:      envOrDefault("PROBE_URL", "https://api.telegram.org"),
	}

	var err error
	if cfg.AllowedUsers, err = parseInt64List(os.Getenv("ALLOWED_USERS")); err != nil {
		return nil, fmt.Errorf("ALLOWED_USERS: %w", err)
	}
	if raw := os.Getenv("ADMIN_CHAT_ID"); raw != "" {
		if cfg.AdminChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID %q: %w", raw, err)
		}
	}

	for _, name := range splitList(os.Getenv("TARGET_CHANNELS")) {
		cfg.TargetChannels = append(cfg.TargetChannels, model.Channel{
			ID:   ChannelID(name),
			Name: name,
		})
	}

	cfg.Taxonomy = model.Taxonomy{
		Tags:            splitList(os.Getenv("INTEREST_TAGS")),
		ExactMatch:      envBool("TAG_EXACT_MATCH", true),
		CaseSensitive:   envBool("TAG_CASE_SENSITIVE", false),
		PartialMatch:    envBool("TAG_PARTIAL_MATCH", true),
		IncludeSynonyms: envBool("TAG_SYNONYM_MATCH", true),
	}
	if cfg.Taxonomy.Synonyms, err = parseSynonyms(os.Getenv("TAG_SYNONYMS")); err != nil {
		return nil, fmt.Errorf("TAG_SYNONYMS: %w", err)
	}

	if cfg.CheckIntervalHours, err = envInt("CHECK_INTERVAL_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.FetchLimit, err = envInt("FETCH_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.MaxDailyItems, err = envInt("MAX_DAILY_ITEMS", 100); err != nil {
		return nil, err
	}
	delaySec, err := envInt("RATE_LIMIT_DELAY_MS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitDelay = time.Duration(delaySec) * time.Millisecond
	if cfg.RetentionDays, err = envInt("RETENTION_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.StatsRetentionDays, err = envInt("STATS_RETENTION_DAYS", 90); err != nil {
		return nil, err
	}

	if cfg.Schedule, err = loadSchedule(cfg.CheckIntervalHours); err != nil {
		return nil, err
	}

	if cfg.Fetcher != FetcherRSS && cfg.Fetcher != FetcherStatic {
		return nil, fmt.Errorf("unknown FETCHER %q", cfg.Fetcher)
	}

	return cfg, nil
}

func loadSchedule(intervalHours int) (model.ScheduleConfig, error) {
	sc := model.ScheduleConfig{
		Enabled:       envBool("ENABLE_SCHEDULE", false),
		Mode:          model.ModeInterval,
		IntervalHours: intervalHours,
		AutoRetry:     envBool("AUTO_RETRY", true),
	}

	var err error
	if sc.RetryCount, err = envInt("RETRY_COUNT", 3); err != nil {
		return sc, err
	}
	if sc.RetryIntervalMinutes, err = envInt("RETRY_INTERVAL_MINUTES", 30); err != nil {
		return sc, err
	}
	if sc.RetryIntervalMinutes == 0 {
		return sc, fmt.Errorf("invalid RETRY_INTERVAL_MINUTES: must be positive")
	}

	if sc.FixedTimes, err = ParseClockTimes(os.Getenv("SCHEDULE_TIMES")); err != nil {
		return sc, fmt.Errorf("SCHEDULE_TIMES: %w", err)
	}
	if len(sc.FixedTimes) > 0 {
		sc.Mode = model.ModeFixedTimes
	}
	return sc, nil
}

// ParseClockTimes parses a comma-separated list of HH:MM entries.
func ParseClockTimes(raw string) ([]model.ClockTime, error) {
	var times []model.ClockTime
	for _, s := range splitList(raw) {
		hh, mm, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("invalid time %q, want HH:MM", s)
		}
		hour, err := strconv.Atoi(hh)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in %q", s)
		}
		minute, err := strconv.Atoi(mm)
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in %q", s)
		}
		times = append(times, model.ClockTime{Hour: hour, Minute: minute})
	}
	return times, nil
}

// ChannelID derives a stable numeric channel id from a channel name. Sources
// reached through the RSS bridge expose no native numeric id, so the dedup
// key uses this hash instead.
func ChannelID(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// parseSynonyms parses "tag=syn|syn;tag=syn" into a synonym map.
func parseSynonyms(raw string) (map[string][]string, error) {
	if raw == "" {
		return nil, nil
	}
	out := make(map[string][]string)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tag, syns, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid entry %q, want tag=syn|syn", pair)
		}
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, fmt.Errorf("empty tag in %q", pair)
		}
		for _, syn := range strings.Split(syns, "|") {
			syn = strings.TrimSpace(syn)
			if syn != "" {
				out[tag] = append(out[tag], syn)
			}
		}
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseInt64List(raw string) ([]int64, error) {
	var out []int64
	for _, s := range splitList(raw) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", key, raw)
	}
	return v, nil
}
