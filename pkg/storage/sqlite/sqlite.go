// Package sqlite opens the bar archive on a local SQLite file.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spreadboard/pkg/storage"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// driverName is the pure-Go driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// Open creates the file (and its directory) if needed and migrates the schema.
// path may be ":memory:".
func Open(path string, loc *time.Location) (*storage.GormStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: driverName, DSN: path}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// sqlite serialises writers; one connection also keeps :memory: a single database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store := storage.NewGormStore(db, loc)
	if err := store.AutoMigrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
