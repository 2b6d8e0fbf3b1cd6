package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidObjectKey indicates an empty or malformed object key.
	ErrInvalidObjectKey = errors.New("assets: invalid object key")
	// ErrObjectNotFound indicates no object exists under the requested key.
	ErrObjectNotFound = errors.New("assets: object not found")
)

// ObjectInfo describes one stored object without its bytes.
type ObjectInfo struct {
	Key         string
	FileName    string
	ContentType string
	SizeBytes   int64
	UpdatedAt   time.Time
}

// ObjectStore abstracts binary storage of uploaded site images. Put
// overwrites in place, List reflects ground truth for existence, and
// PublicURL is a pure derivation with no network call.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Remove(ctx context.Context, keys []string) error
	PublicURL(key string) string
}

// Object models one stored blob. Keeping bytes in the relational store
// mirrors the rest of the persistence layer and keeps deployment to a
// single file database.
type Object struct {
	Key         string    `gorm:"column:key;primaryKey;size:512;not null"`
	Data        []byte    `gorm:"column:data;not null"`
	ContentType string    `gorm:"column:content_type;size:128;not null;default:''"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Object) TableName() string {
	return "objects"
}

// BlobStoreConfig configures the database-backed object store.
type BlobStoreConfig struct {
	Database      *gorm.DB
	PublicBaseURL string
	Clock         func() time.Time
}

// BlobStore implements ObjectStore over GORM.
type BlobStore struct {
	db      *gorm.DB
	baseURL string
	clock   func() time.Time
}

// NewBlobStore constructs a BlobStore with the provided configuration.
func NewBlobStore(cfg BlobStoreConfig) (*BlobStore, error) {
	if cfg.Database == nil {
		return nil, errors.New("assets: database handle is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BlobStore{
		db:      cfg.Database,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		clock:   clock,
	}, nil
}

// Put stores bytes under the key, replacing any existing object in place.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidObjectKey)
	}
	object := Object{
		Key:         trimmed,
		Data:        data,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		UpdatedAt:   s.clock().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "content_type", "size_bytes", "updated_at"}),
		}).
		Create(&object).Error
}

// Get returns the stored bytes and content type for a key.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var object Object
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&object).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrObjectNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return object.Data, object.ContentType, nil
}

// List returns descriptors for every object stored under the prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []Object
	if err := s.db.WithContext(ctx).
		Select("key", "content_type", "size_bytes", "updated_at").
		Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("key ASC").
		Find(&objects).Error; err != nil {
		return nil, err
	}

	infos := make([]ObjectInfo, 0, len(objects))
	for _, object := range objects {
		infos = append(infos, ObjectInfo{
			Key:         object.Key,
			FileName:    fileNameFromKey(object.Key),
			ContentType: object.ContentType,
			SizeBytes:   object.SizeBytes,
			UpdatedAt:   object.UpdatedAt,
		})
	}
	return infos, nil
}

// Remove deletes the listed keys. Missing keys are not an error.
func (s *BlobStore) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&Object{}).Error
}

// PublicURL derives the public address for a key without touching storage.
func (s *BlobStore) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func fileNameFromKey(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
