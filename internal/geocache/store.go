package geocache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one persisted geocode resolution. Key is the normalized address
// text used by the in-memory cache.
type Entry struct {
	Key       string    `gorm:"primaryKey"`
	Label     string    `gorm:"not null"`
	Postcode  string    `gorm:"index"`
	Latitude  float64   `gorm:"not null"`
	Longitude float64   `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Entry) TableName() string {
	return "geocode_entries"
}

// Store persists geocode cache entries across restarts. Warm-starting the
// in-memory cache from it only saves lookups; estimation output is unchanged.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %v", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying gorm handle for the batch writer.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// LoadAll returns every persisted entry, used to warm the in-memory cache at
// startup.
func (s *Store) LoadAll() ([]Entry, error) {
	var entries []Entry
	if err := s.db.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load geocode entries: %v", err)
	}
	return entries, nil
}

// UpsertEntries writes a batch of entries inside the given transaction,
// replacing previous resolutions for the same key.
func UpsertEntries(tx *gorm.DB, batch []*Entry) error {
	if len(batch) == 0 {
		return nil
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(batch).Error
}
