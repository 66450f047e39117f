package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrss/internal/config"
	"calrss/internal/model"
)

func sampleEvent() model.CalendarEvent {
	return model.CalendarEvent{
		SourceID:    "work",
		UID:         "evt-1@example.com",
		Summary:     "Team Standup",
		Description: "Daily sync",
		Location:    "Room 4",
		Organizer:   "mailto:boss@example.com",
		Attendees:   []string{"mailto:a@example.com", "mailto:b@example.com"},
		SourceURL:   "https://calendar.example.com/evt-1",
		Start:       time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestPlainPolicyCopiesPresentFields(t *testing.T) {
	n := NewNormalizer(config.PolicyPlain, time.UTC)
	item := n.Item(sampleEvent())

	assert.Equal(t, "Team Standup", item.Title)
	assert.Equal(t, "Daily sync", item.Description)
	assert.Equal(t, "Tue, 10 Mar 2026 09:00:00 GMT", item.PubDate)
	assert.Equal(t, "https://calendar.example.com/evt-1", item.Link)
	assert.Equal(t, "evt-1@example.com", item.GUID)
	assert.Equal(t, "Room 4", item.Location)
	assert.Equal(t, "mailto:boss@example.com", item.Organizer)
	assert.Equal(t, []string{"mailto:a@example.com", "mailto:b@example.com"}, item.Attendees)
}

func TestPlainPolicyOmitsAbsentFields(t *testing.T) {
	ev := model.CalendarEvent{
		UID:     "evt-2",
		Summary: "Quiet Meeting",
		Start:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	n := NewNormalizer(config.PolicyPlain, time.UTC)
	item := n.Item(ev)

	assert.Equal(t, "", item.Description)
	assert.Empty(t, item.Link)
	assert.Empty(t, item.Location)
	assert.Empty(t, item.Organizer)
	assert.Nil(t, item.Attendees)
}

func TestRichPolicyEmbedsDetails(t *testing.T) {
	n := NewNormalizer(config.PolicyRich, time.UTC)
	item := n.Item(sampleEvent())

	assert.Contains(t, item.Description, "<p>Daily sync</p>")
	assert.Contains(t, item.Description, "<b>Start:</b> Tue, 10 Mar 2026 09:00 UTC")
	assert.Contains(t, item.Description, "<b>Location:</b> Room 4")
	assert.Contains(t, item.Description, "mailto:a@example.com, mailto:b@example.com")
	// Everything is embedded; the standalone optional elements stay empty.
	assert.Empty(t, item.Location)
	assert.Empty(t, item.Organizer)
	assert.Nil(t, item.Attendees)
}

func TestRichPolicyFallbacks(t *testing.T) {
	ev := model.CalendarEvent{
		UID:     "evt-3",
		Summary: "Bare Event",
		Start:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	n := NewNormalizer(config.PolicyRich, time.UTC)
	item := n.Item(ev)

	assert.Contains(t, item.Description, fallbackDescription)
	assert.Contains(t, item.Description, fallbackEnd)
	assert.Contains(t, item.Description, fallbackLocation)
	assert.Contains(t, item.Description, fallbackOrganizer)
	assert.Contains(t, item.Description, fallbackAttendees)
}

func TestItemGUIDFallback(t *testing.T) {
	ev := model.CalendarEvent{
		Summary: "No UID",
		Start:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	n := NewNormalizer(config.PolicyPlain, time.UTC)
	item := n.Item(ev)
	require.NotEmpty(t, item.GUID)
}
