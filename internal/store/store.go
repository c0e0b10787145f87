// Package store implements the device key-value storage used for session
// persistence and in-progress patrol state. The backing database is a local
// sqlite file by default; shared kiosk installs can point at a MySQL server
// instead.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Fixed storage keys. All device state lives under these identifiers.
const (
	KeySession       = "user_session"
	KeyOngoingPatrol = "ongoing_patrol"
	KeyDarkMode      = "dark_mode"
)

// ErrNotFound is returned by Get when no value exists for a key.
var ErrNotFound = errors.New("store: key not found")

// Entry is a single key-value row in device storage.
type Entry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     []byte `gorm:"type:blob"`
	UpdatedAt time.Time
}

// Store is the device key-value storage.
type Store struct {
	db *gorm.DB
}

// Open connects to the storage backend and runs migrations. Driver is
// "sqlite" (path is a file path) or "mysql" (path is a DSN).
func Open(driver, path string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(path)
	case "mysql":
		dialector = mysql.Open(path)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s storage: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing GORM connection and runs migrations. Used by tests
// to supply an in-memory database.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Put writes value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("store: put %s: %w", key, result.Error)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	var entry Entry
	err := s.db.First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}
	return entry.Value, nil
}

// Delete removes the value stored under key. Deleting a missing key is a
// no-op.
func (s *Store) Delete(key string) error {
	if err := s.db.Delete(&Entry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}
