package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxPageKeyLength = 64

var (
	// ErrInvalidPageKey indicates that a page key is empty or exceeds storage bounds.
	ErrInvalidPageKey = errors.New("pages: invalid page key")
	// ErrPageNotFound indicates that no record has been saved for a page key.
	// Catalog entries that were never saved are expected to hit this.
	ErrPageNotFound = errors.New("pages: page not found")
)

// PageKey represents a validated logical page identifier such as "home" or
// "events". The key, not the storage id, is the true identity of a page.
type PageKey string

// NewPageKey validates raw input and returns a PageKey.
func NewPageKey(rawInput string) (PageKey, error) {
	trimmed := strings.ToLower(strings.TrimSpace(rawInput))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPageKey)
	}
	if len(trimmed) > maxPageKeyLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidPageKey, maxPageKeyLength)
	}
	for _, character := range trimmed {
		if (character < 'a' || character > 'z') && (character < '0' || character > '9') && character != '-' {
			return "", fmt.Errorf("%w: unsupported character %q", ErrInvalidPageKey, character)
		}
	}
	return PageKey(trimmed), nil
}

// String returns the underlying key.
func (k PageKey) String() string {
	return string(k)
}

// MenuItem is one entry of a page's navigation list.
type MenuItem struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

// Record models the persisted content for one logical page. The id is a
// storage artifact assigned on first insert; lookups go through PageKey.
type Record struct {
	ID            string    `gorm:"column:id;primaryKey;size:64;not null"`
	PageKey       string    `gorm:"column:page_key;uniqueIndex;size:64;not null"`
	Title         string    `gorm:"column:title;type:text;not null;default:''"`
	Content       string    `gorm:"column:content;type:text;not null;default:''"`
	ImagesJSON    string    `gorm:"column:images_json;type:text;not null;default:'[]'"`
	MenuItemsJSON string    `gorm:"column:menu_items_json;type:text;not null;default:'[]'"`
	DisplayOrder  int       `gorm:"column:display_order;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "pages"
}

// Images decodes the ordered image layout list. Render order follows list
// order.
func (r Record) Images() []ImageLayout {
	return DecodeImageLayouts(r.ImagesJSON)
}

// MenuItems decodes the page's navigation entries.
func (r Record) MenuItems() []MenuItem {
	trimmed := strings.TrimSpace(r.MenuItemsJSON)
	if trimmed == "" {
		return []MenuItem{}
	}
	var items []MenuItem
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil || items == nil {
		return []MenuItem{}
	}
	return items
}

// Draft captures the editor's working copy of a page. It stays disconnected
// from the authoritative store until Save reconciles it.
type Draft struct {
	Title     string
	Content   string
	Images    []ImageLayout
	MenuItems []MenuItem
}

// CatalogEntry names a page the site knows about even before any content
// has been saved for it.
type CatalogEntry struct {
	Key  PageKey
	Name string
}

// Catalog lists the fixed set of site pages offered in the editor.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{Key: "home", Name: "Home"},
		{Key: "about", Name: "About Us"},
		{Key: "apparel", Name: "Apparel"},
		{Key: "cycle", Name: "Cycle"},
		{Key: "events", Name: "Events"},
		{Key: "login", Name: "Login"},
		{Key: "schedule", Name: "Schedule"},
		{Key: "teams", Name: "Teams"},
	}
}
