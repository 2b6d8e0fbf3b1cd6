package database

import (
	"errors"
	"time"

	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDisplayOrder = "2026-06-14_backfill_page_display_order"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillDisplayOrder, apply: backfillPageDisplayOrder},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillPageDisplayOrder assigns catalog positions to rows saved before
// the display_order column carried meaning, so FetchAll ordering is stable.
func backfillPageDisplayOrder(db *gorm.DB) error {
	for index, entry := range pages.Catalog() {
		err := db.Model(&pages.Record{}).
			Where("page_key = ? AND display_order = 0", entry.Key.String()).
			Update("display_order", index+1).Error
		if err != nil {
			return err
		}
	}
	return nil
}
