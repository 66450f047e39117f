package store

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
)

// Postgres persists the cached feed as a single row in a postgres table.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects to the given postgres URL and migrates the
// cached_feeds table.
func OpenPostgres(url string) (*Postgres, error) {
	db, err := gorm.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CachedFeed{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Get returns the cached feed row, or (nil, nil) when none exists.
func (p *Postgres) Get(_ context.Context) (*CachedFeed, error) {
	var row CachedFeed
	err := p.db.Where("key = ?", FeedKey).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Put upserts the singleton row with the given document and the current
// time.
func (p *Postgres) Put(_ context.Context, xml string) error {
	now := time.Now().UTC()

	var existing CachedFeed
	err := p.db.Where("key = ?", FeedKey).First(&existing).Error
	if gorm.IsRecordNotFoundError(err) {
		return p.db.Create(&CachedFeed{
			Key:      FeedKey,
			XML:      xml,
			StoredAt: now,
		}).Error
	}
	if err != nil {
		return err
	}

	return p.db.Model(&CachedFeed{}).
		Where("key = ?", FeedKey).
		Updates(map[string]interface{}{
			"xml":       xml,
			"stored_at": now,
		}).Error
}
