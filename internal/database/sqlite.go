package database

import (
	"fmt"

	"github.com/TidewaterClub/sitecms/backend/internal/assets"
	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	"github.com/TidewaterClub/sitecms/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := dedupePageKeys(db); err != nil && logger != nil {
		logger.Warn("page key dedupe failed", zap.Error(err))
	}

	if err := db.AutoMigrate(&pages.Record{}, &assets.Object{}, &users.Account{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// dedupePageKeys collapses legacy duplicate rows per page key, keeping the
// most recently updated one, so the unique index on page_key can be built.
// Duplicates could only exist in databases written before the index existed.
func dedupePageKeys(db *gorm.DB) error {
	if !db.Migrator().HasTable("pages") {
		return nil
	}
	const statement = `
		DELETE FROM pages WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, MAX(updated_at) FROM pages GROUP BY page_key
			)
		);`
	return db.Exec(statement).Error
}
