package feed

import (
	"time"

	"calrss/internal/model"
)

// Aggregate flattens per-source event lists into a single sequence,
// preserving source order and, within a source, the order the reader
// returned. No deduplication happens across sources.
func Aggregate(perSource [][]model.CalendarEvent) []model.CalendarEvent {
	total := 0
	for _, events := range perSource {
		total += len(events)
	}

	out := make([]model.CalendarEvent, 0, total)
	for _, events := range perSource {
		out = append(out, events...)
	}
	return out
}

// FilterWindow retains only events starting within [now, now+lookAheadDays],
// inclusive at both ends. Relative order is preserved.
func FilterWindow(events []model.CalendarEvent, now time.Time, lookAheadDays int) []model.CalendarEvent {
	windowEnd := now.AddDate(0, 0, lookAheadDays)

	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Start.Before(now) {
			continue
		}
		if ev.Start.After(windowEnd) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
