package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"calrss/internal/config"
	"calrss/internal/model"
)

// Fallback phrases used by the rich policy when an optional field is absent.
// The plain policy omits the field instead; the two behaviors are observably
// different contracts and must not be merged.
const (
	fallbackDescription = "No description available"
	fallbackLocation    = "No location specified"
	fallbackOrganizer   = "No organizer specified"
	fallbackAttendees   = "No attendees listed"
	fallbackEnd         = "No end time specified"
)

// pubDateLayout matches JavaScript's Date.toUTCString(), which the feed's
// original consumers were built against.
const pubDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Normalizer converts calendar events into feed items under a single,
// consistently applied rendering policy.
type Normalizer struct {
	policy string
	loc    *time.Location
}

// NewNormalizer returns a Normalizer for the given policy
// (config.PolicyPlain or config.PolicyRich). loc is the display timezone
// for human-readable times under the rich policy; nil means UTC.
func NewNormalizer(policy string, loc *time.Location) *Normalizer {
	if policy != config.PolicyRich {
		policy = config.PolicyPlain
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{policy: policy, loc: loc}
}

// Item converts one calendar event into a rendering-ready feed item.
// Pure and deterministic apart from the GUID fallback for events that
// carry no UID.
func (n *Normalizer) Item(ev model.CalendarEvent) model.FeedItem {
	item := model.FeedItem{
		Title:   ev.Summary,
		PubDate: ev.Start.UTC().Format(pubDateLayout),
		Link:    ev.SourceURL,
	}

	if ev.UID != "" {
		item.GUID = ev.UID
	} else {
		item.GUID = uuid.NewString()
	}

	if n.policy == config.PolicyRich {
		item.Description = n.richDescription(ev)
		return item
	}

	// Plain policy: description defaults to the empty string, every other
	// optional field is copied through only when present.
	item.Description = ev.Description
	item.Location = ev.Location
	item.Organizer = ev.Organizer
	if len(ev.Attendees) > 0 {
		item.Attendees = append([]string(nil), ev.Attendees...)
	}
	return item
}

// richDescription composes an HTML block embedding every detail of the
// event, substituting a fixed fallback phrase per missing field.
func (n *Normalizer) richDescription(ev model.CalendarEvent) string {
	desc := ev.Description
	if desc == "" {
		desc = fallbackDescription
	}

	end := fallbackEnd
	if !ev.End.IsZero() {
		end = n.formatTime(ev.End)
	}

	location := ev.Location
	if location == "" {
		location = fallbackLocation
	}

	organizer := ev.Organizer
	if organizer == "" {
		organizer = fallbackOrganizer
	}

	attendees := fallbackAttendees
	if len(ev.Attendees) > 0 {
		attendees = strings.Join(ev.Attendees, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>", desc)
	fmt.Fprintf(&b, "<p><b>Start:</b> %s</p>", n.formatTime(ev.Start))
	fmt.Fprintf(&b, "<p><b>End:</b> %s</p>", end)
	fmt.Fprintf(&b, "<p><b>Location:</b> %s</p>", location)
	fmt.Fprintf(&b, "<p><b>Organizer:</b> %s</p>", organizer)
	fmt.Fprintf(&b, "<p><b>Attendees:</b> %s</p>", attendees)
	return b.String()
}

func (n *Normalizer) formatTime(t time.Time) string {
	return t.In(n.loc).Format("Mon, 02 Jan 2006 15:04 MST")
}
