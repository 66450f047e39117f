package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrss/internal/config"
	"calrss/internal/ics"
)

func serveICS(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	body := []byte(strings.Join(lines, "\r\n") + "\r\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func vevent(uid, dtstart, summary string) []string {
	return []string{
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTART:" + dtstart,
		"SUMMARY:" + summary,
		"END:VEVENT",
	}
}

func calendarOf(events ...[]string) []string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//calrss//test//EN"}
	for _, ev := range events {
		lines = append(lines, ev...)
	}
	return append(lines, "END:VCALENDAR")
}

func itemTitles(t *testing.T, xml string) []string {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	items := doc.Root().SelectElement("channel").SelectElements("item")
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.SelectElement("title").Text())
	}
	return titles
}

func TestGenerateUnfilteredPreservesOrder(t *testing.T) {
	s1 := serveICS(t, calendarOf(
		vevent("e1", "20260310T090000Z", "e1"),
		vevent("e2", "20260311T090000Z", "e2"),
	)...)
	s2 := serveICS(t, calendarOf(
		vevent("e3", "20260301T090000Z", "e3"),
	)...)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.Sources = []config.SourceConfig{{URL: s1.URL, ID: "s1"}, {URL: s2.URL, ID: "s2"}}
	cfg.Normalize()

	gen := NewGenerator(cfg, ics.NewFetcher())
	xml, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"e1", "e2", "e3"}, itemTitles(t, xml))
}

func TestGenerateWindowFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	src := serveICS(t, calendarOf(
		vevent("past", "20260309T090000Z", "past"),
		vevent("soon", "20260311T090000Z", "soon"),
		vevent("far", "20260320T090000Z", "far"),
	)...)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.Sources = []config.SourceConfig{{URL: src.URL}}
	cfg.WindowFilter = true
	cfg.LookAheadDays = 3
	cfg.Normalize()

	gen := NewGenerator(cfg, ics.NewFetcher())
	gen.SetNow(func() time.Time { return now })

	xml, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"soon"}, itemTitles(t, xml))
}

func TestGenerateExpandsRecurrences(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	src := serveICS(t, calendarOf([]string{
		"BEGIN:VEVENT",
		"UID:daily@example.com",
		"DTSTART:20260501T100000Z",
		"DTEND:20260501T110000Z",
		"SUMMARY:Daily",
		"RRULE:FREQ=DAILY;COUNT=30",
		"END:VEVENT",
	})...)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.Sources = []config.SourceConfig{{URL: src.URL}}
	cfg.WindowFilter = true
	cfg.LookAheadDays = 3
	cfg.ExpandRecurring = true
	cfg.Normalize()

	gen := NewGenerator(cfg, ics.NewFetcher())
	gen.SetNow(func() time.Time { return now })

	xml, err := gen.Generate(context.Background())
	require.NoError(t, err)

	// Window is [May 1 08:00, May 4 08:00]: the 10:00 occurrences on
	// May 1..3 fall inside, May 4 10:00 falls outside.
	assert.Equal(t, []string{"Daily", "Daily", "Daily"}, itemTitles(t, xml))
}

func TestGenerateFailsWhenAnySourceFails(t *testing.T) {
	good := serveICS(t, calendarOf(vevent("e1", "20260310T090000Z", "e1"))...)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	t.Cleanup(bad.Close)

	cfg := config.DefaultConfig()
	cfg.APIKey = "k"
	cfg.Sources = []config.SourceConfig{{URL: good.URL}, {URL: bad.URL}}
	cfg.Normalize()

	gen := NewGenerator(cfg, ics.NewFetcher())
	_, err := gen.Generate(context.Background())
	assert.Error(t, err)
}
