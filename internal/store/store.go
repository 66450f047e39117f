// Package store persists the last rendered feed document so that requests
// inside the TTL window are served without touching any calendar source.
package store

import (
	"context"
	"time"
)

// FeedKey is the singleton cache key. The service maintains exactly one
// cached feed, not one per source set; distinct configurations sharing one
// database must use separate databases.
const FeedKey = "calendar-rss"

// CachedFeed is the stored last-rendered document. Staleness is decided by
// the caller by comparing StoredAt against the TTL; stale rows are left in
// place and overwritten by the next successful generation.
type CachedFeed struct {
	Key      string    `gorm:"column:key;primary_key"`
	XML      string    `gorm:"column:xml;type:text"`
	StoredAt time.Time `gorm:"column:stored_at"`
}

// TableName fixes the gorm table name.
func (CachedFeed) TableName() string {
	return "cached_feeds"
}

// Fresh reports whether the row is within ttl of now.
func (c *CachedFeed) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.StoredAt) < ttl
}

// Store is the minimal get/upsert surface over the durable backend. Get
// returns (nil, nil) when no row exists; it returns the row even when
// stale, freshness is the caller's call. Put overwrites unconditionally.
type Store interface {
	Get(ctx context.Context) (*CachedFeed, error)
	Put(ctx context.Context, xml string) error
}
