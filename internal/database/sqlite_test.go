package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestOpenSQLiteInitializesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitecms.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	for _, table := range []string{"pages", "objects", "staff_accounts", "db_migrations"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}

func TestOpenSQLiteCollapsesLegacyDuplicatePageKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitecms.db")

	// Seed a schema without the unique index, the shape of databases written
	// before the index existed.
	seed, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := seed.Exec(`CREATE TABLE pages (
		id TEXT PRIMARY KEY,
		page_key TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		images_json TEXT NOT NULL DEFAULT '[]',
		menu_items_json TEXT NOT NULL DEFAULT '[]',
		display_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("seed schema failed: %v", err)
	}

	older := pages.Record{ID: "r-old", PageKey: "events", Title: "stale", ImagesJSON: "[]", MenuItemsJSON: "[]", UpdatedAt: time.Unix(1600000000, 0).UTC()}
	newer := pages.Record{ID: "r-new", PageKey: "events", Title: "fresh", ImagesJSON: "[]", MenuItemsJSON: "[]", UpdatedAt: time.Unix(1700000000, 0).UTC()}
	for _, record := range []pages.Record{older, newer} {
		if err := seed.Create(&record).Error; err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
	seedDB, err := seed.DB()
	if err != nil {
		t.Fatalf("seed handle failed: %v", err)
	}
	if err := seedDB.Close(); err != nil {
		t.Fatalf("seed close failed: %v", err)
	}

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	var records []pages.Record
	if err := db.Where("page_key = ?", "events").Find(&records).Error; err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected duplicates collapsed to one row, got %d", len(records))
	}
	if records[0].ID != "r-new" {
		t.Fatalf("expected most recently updated row kept, got %q", records[0].ID)
	}
}

func TestMigrationBackfillsDisplayOrderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitecms.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	record := pages.Record{ID: "r-1", PageKey: "events", ImagesJSON: "[]", MenuItemsJSON: "[]", UpdatedAt: time.Unix(1700000000, 0).UTC()}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	// Force a rerun. The recorded migration must not fire twice.
	if err := backfillPageDisplayOrder(db); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	var stored pages.Record
	if err := db.Where("id = ?", "r-1").Take(&stored).Error; err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.DisplayOrder != 5 {
		t.Fatalf("expected catalog position 5 for events, got %d", stored.DisplayOrder)
	}

	var count int64
	if err := db.Model(&migrationRecord{}).Where("name = ?", migrationBackfillDisplayOrder).Count(&count).Error; err != nil {
		t.Fatalf("migration count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single migration record, got %d", count)
	}
	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("reapply failed: %v", err)
	}
}
