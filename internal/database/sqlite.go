package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConnectSQLite opens a file-backed (or in-memory) database for
// single-instance and test deployments. Schema and constraints match the
// postgres setup; sqlite supports the same partial unique index.
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// An in-memory database lives and dies with its connection; pin the
	// pool to one so the schema survives.
	if strings.Contains(path, ":memory:") {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	log.WithField("path", path).Info("Connected to SQLite")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}
