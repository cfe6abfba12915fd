// Package database opens the gorm connections used by the SQL trajectory store.
package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the SQLite DSN of a shared in-memory database.
const MemoryDSN = "file::memory:?cache=shared"

func gormConfig(batchSize int) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        batchSize,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenSQLite returns a connection to the SQLite database at path.
// If path is empty, uses an in-memory database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(2000))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// OpenPostgres returns a connection to the Postgres database described by dsn and
// verifies it with a ping.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig(10000))
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	return db, nil
}
