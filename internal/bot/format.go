package bot

import (
	"fmt"
	"strings"
	"time"

	"content_bot/internal/model"
	"content_bot/internal/scheduler"
)

const displayTime = "2006-01-02 15:04 UTC"

// FormatItem formats a processed item for republishing to the output channel.
func FormatItem(item *model.ProcessedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", item.ChannelName, string(item.Kind))
	fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(item.Tags, ", "))
	b.WriteString(item.Content)
	return b.String()
}

// FormatStatus formats the scheduler snapshot and today's counters.
func FormatStatus(snap scheduler.Snapshot, stats *model.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", snap.State)
	fmt.Fprintf(&b, "Schedule: %s", onOff(snap.Enabled))
	if snap.Enabled {
		fmt.Fprintf(&b, " (%s)", snap.Mode)
	}
	b.WriteString("\n")
	if snap.LastRunAt != nil {
		fmt.Fprintf(&b, "Last run: %s\n", snap.LastRunAt.UTC().Format(displayTime))
	}
	if snap.NextRunAt != nil {
		fmt.Fprintf(&b, "Next run: %s\n", snap.NextRunAt.UTC().Format(displayTime))
	}
	if stats != nil {
		b.WriteString("\n")
		b.WriteString(FormatStats(stats))
	}
	return b.String()
}

// FormatStats formats one day's counters.
func FormatStats(stats *model.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stats for %s:\n", stats.Date)
	fmt.Fprintf(&b, "  processed: %d\n", stats.ProcessedCount)
	fmt.Fprintf(&b, "  republished: %d\n", stats.RepublishedCount)
	fmt.Fprintf(&b, "  errors: %d\n", stats.ErrorCount)
	fmt.Fprintf(&b, "  channels checked: %d\n", stats.ChannelsChecked)
	fmt.Fprintf(&b, "  success rate: %.1f%%", stats.SuccessRate())
	return b.String()
}

// FormatSchedule formats the schedule configuration.
func FormatSchedule(cfg model.ScheduleConfig, snap scheduler.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule: %s\n", onOff(cfg.Enabled))
	switch cfg.Mode {
	case model.ModeFixedTimes:
		times := make([]string, 0, len(cfg.FixedTimes))
		for _, ct := range cfg.FixedTimes {
			times = append(times, fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute))
		}
		fmt.Fprintf(&b, "Mode: fixed times (%s)\n", strings.Join(times, ", "))
	default:
		fmt.Fprintf(&b, "Mode: every %d h\n", cfg.IntervalHours)
	}
	if cfg.AutoRetry {
		fmt.Fprintf(&b, "Retry: up to %d times, every %d min\n", cfg.RetryCount, cfg.RetryIntervalMinutes)
	} else {
		b.WriteString("Retry: off\n")
	}
	if snap.NextRunAt != nil {
		fmt.Fprintf(&b, "Next run: %s", snap.NextRunAt.UTC().Format(displayTime))
	} else {
		b.WriteString("Next run: none")
	}
	return b.String()
}

// FormatTaxonomy formats the interest taxonomy.
func FormatTaxonomy(tax model.Taxonomy) string {
	if len(tax.Tags) == 0 {
		return "No interest tags configured."
	}
	var b strings.Builder
	b.WriteString("Interest tags:\n")
	for _, tag := range tax.Tags {
		fmt.Fprintf(&b, "  %s", tag)
		if syns := tax.Synonyms[tag]; len(syns) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(syns, ", "))
		}
		b.WriteString("\n")
	}
	var flags []string
	if tax.ExactMatch {
		flags = append(flags, "exact")
	}
	if tax.PartialMatch {
		flags = append(flags, "partial")
	}
	if tax.IncludeSynonyms {
		flags = append(flags, "synonyms")
	}
	if tax.CaseSensitive {
		flags = append(flags, "case-sensitive")
	}
	fmt.Fprintf(&b, "Matching: %s", strings.Join(flags, ", "))
	return b.String()
}

// FormatChannels formats the monitored channel list.
func FormatChannels(channels []model.Channel) string {
	if len(channels) == 0 {
		return "No channels configured."
	}
	var b strings.Builder
	b.WriteString("Monitored channels:\n")
	for _, ch := range channels {
		fmt.Fprintf(&b, "  %s\n", ch.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRecent formats recently processed items.
func FormatRecent(items []model.ProcessedItem) string {
	if len(items) == 0 {
		return "No processed items yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d items:\n", len(items))
	for _, item := range items {
		marker := " "
		if item.Republished {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s [%s] %s: %s\n", marker, item.ChannelName,
			strings.Join(item.Tags, ","), truncate(item.Content, 80))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatNewItemsNotice formats the batch notification sent after a run.
func FormatNewItemsNotice(items []model.ProcessedItem, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new item(s) republished at %s:\n", len(items), at.UTC().Format(displayTime))
	for _, item := range items {
		fmt.Fprintf(&b, "- [%s] %s\n", item.ChannelName, truncate(item.Content, 80))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
