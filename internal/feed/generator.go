package feed

import (
	"context"
	"time"

	"calrss/internal/config"
	"calrss/internal/ics"
	appLog "calrss/internal/log"
	"calrss/internal/model"
)

// Generator runs the full fetch → expand → aggregate → filter → normalize →
// render pipeline for a fixed set of sources. It is shared by the HTTP
// handler (cache miss path) and the cron pre-warmer.
type Generator struct {
	fetcher    *ics.Fetcher
	sources    []ics.Source
	normalizer *Normalizer

	channelTitle       string
	channelDescription string
	channelLink        string

	windowFilter    bool
	lookAheadDays   int
	expandRecurring bool

	// now is swappable for tests.
	now func() time.Time
}

// NewGenerator builds a Generator from the application config.
func NewGenerator(cfg *config.Config, fetcher *ics.Fetcher) *Generator {
	if fetcher == nil {
		fetcher = ics.NewFetcher()
	}

	sources := make([]ics.Source, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.URL == "" {
			continue
		}
		id := src.ID
		if id == "" {
			if src.Name != "" {
				id = src.Name
			} else {
				id = src.URL
			}
		}
		sources = append(sources, ics.Source{ID: id, URL: src.URL})
	}

	return &Generator{
		fetcher:            fetcher,
		sources:            sources,
		normalizer:         NewNormalizer(cfg.Policy, cfg.Location()),
		channelTitle:       cfg.ChannelTitle,
		channelDescription: cfg.ChannelDescription,
		channelLink:        cfg.ChannelLink,
		windowFilter:       cfg.WindowFilter,
		lookAheadDays:      cfg.LookAheadDays,
		expandRecurring:    cfg.ExpandRecurring,
		now:                time.Now,
	}
}

// SetNow overrides the clock. Test hook.
func (g *Generator) SetNow(now func() time.Time) {
	g.now = now
}

// Generate fetches every configured source, applies the configured policies
// and returns the rendered RSS document. Any source failure fails the whole
// generation; no partial feed is produced.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	now := g.now()

	perSource, err := g.fetcher.FetchAll(ctx, g.sources)
	if err != nil {
		return "", err
	}

	if g.expandRecurring {
		expandCfg := ics.ExpandConfig{
			RangeStart: now,
			RangeEnd:   now.AddDate(0, 0, g.lookAheadDays),
		}
		for i, events := range perSource {
			result, eerr := ics.ExpandOccurrences(events, expandCfg)
			if eerr != nil {
				return "", eerr
			}
			perSource[i] = result.Events
		}
	}

	events := Aggregate(perSource)
	if g.windowFilter {
		events = FilterWindow(events, now, g.lookAheadDays)
	}

	items := make([]model.FeedItem, 0, len(events))
	for _, ev := range events {
		items = append(items, g.normalizer.Item(ev))
	}

	xml, err := Render(items, g.channelTitle, g.channelDescription, g.channelLink)
	if err != nil {
		return "", err
	}

	appLog.Info("feed generated",
		"sources", len(g.sources),
		"events", len(events),
		"window_filter", g.windowFilter,
		"bytes", len(xml),
	)
	return xml, nil
}
