package datastore

import (
	"fmt"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pirdfy/pirdfy-go/internal/conf"
)

// SQLiteStore implements the catalog store for SQLite, the default backend.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(store.Settings.GetBasePath("."), path)
	}

	// WAL and busy_timeout keep concurrent camera writers from tripping over
	// each other; foreign_keys makes the detection-event cascade effective.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close releases the underlying connection pool.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("getting SQLite connection for close: %w", err)
	}
	return sqlDB.Close()
}
