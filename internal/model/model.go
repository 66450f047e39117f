package model

import "time"

// CalendarEvent is the normalized representation of a single VEVENT as
// produced by the ICS reader. Optional fields use their zero value to mean
// "absent": a nil Attendees slice, an empty string, or a zero End time.
// Start is always set; events without a usable DTSTART are dropped at parse
// time.
type CalendarEvent struct {
	SourceID string // calendar source ID (config source ID or URL)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string
	Organizer   string   // rendered identity, usually the "mailto:" form
	Attendees   []string // in document order
	SourceURL   string   // X-GOOGLE-CALENDAR-CONTENT-URL, when present

	AllDay bool

	// Start / End in the event's own timezone.
	Start time.Time
	End   time.Time

	// Recurrence metadata; expansion is done in internal/ics/expand.go.
	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time
	IsOverride   bool
}

// FeedItem is one rendering-ready entry of the output RSS document.
// Under the plain policy, optional fields left as zero values are omitted
// from the rendered item entirely.
type FeedItem struct {
	Title       string
	Description string
	PubDate     string // RFC 1123 / GMT

	Link      string
	GUID      string
	Location  string
	Organizer string
	Attendees []string
}
