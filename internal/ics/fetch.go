package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	appLog "calrss/internal/log"
	"calrss/internal/model"
)

// Source represents a single ICS subscription source.
type Source struct {
	// ID is an internal identifier (e.g., config source ID).
	ID string
	// URL is the ICS endpoint.
	URL string
}

// Fetcher retrieves remote ICS documents and parses them into events.
// It performs no caching of its own; result caching happens a layer up,
// on the rendered feed.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a new ICS Fetcher with a default 15s timeout client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewFetcherWithClient creates a Fetcher using the given HTTP client.
// Used by tests to point at an httptest server.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		return NewFetcher()
	}
	return &Fetcher{client: client}
}

// FetchAll fetches and parses all given sources concurrently and waits for
// every fetch to settle. The outer slice preserves source order.
//
// The batch is all-or-nothing: if any source fails, FetchAll returns the
// first failure in source order and no partial results. In-flight sibling
// fetches are not cancelled; their results are discarded.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([][]model.CalendarEvent, error) {
	results := make([][]model.CalendarEvent, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			events, err := f.FetchOne(ctx, src)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = events
		}(i, src)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", sources[i].ID, "url", redactURL(sources[i].URL))
			return nil, err
		}
	}

	return results, nil
}

// FetchOne fetches a single ICS source and parses its body into events.
// A non-2xx response, a transport error, or an unparseable body all fail
// the source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) ([]model.CalendarEvent, error) {
	if src.URL == "" {
		return nil, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ics fetch: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	events, err := ParseICS(src, body)
	if err != nil {
		return nil, err
	}

	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Private Google/iCloud ICS URLs embed secrets in the path.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	host := u[:j]
	return host + redactedSuffix
}
