package pages

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func mustPageKey(t *testing.T, value string) PageKey {
	t.Helper()
	key, err := NewPageKey(value)
	if err != nil {
		t.Fatalf("unexpected page key error: %v", err)
	}
	return key
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T, ids []string) (*Store, *gorm.DB) {
	t.Helper()
	db := openTestDatabase(t)
	store, err := NewStore(StoreConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Unix(1750000000, 0).UTC() },
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store, db
}
