package pages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ErrRequestSuperseded indicates that a later request for the same page key
// cancelled this one. The caller discards the response; the newer request
// owns the outcome.
var ErrRequestSuperseded = errors.New("pages: request superseded")

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew    = "pages.store.new"
	opFetchAll    = "pages.fetch_all"
	opFetchByKey  = "pages.fetch_by_key"
	opSave        = "pages.save"
	opCreateBlank = "pages.create_blank"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for newly inserted records.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig describes the dependencies required by the page store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store owns the authoritative in-memory copy of page records once fetched
// and decides create-versus-update on save. Requests are serialized per page
// key: a later request for the same key cancels an outstanding one.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger

	mu            sync.RWMutex
	authoritative map[string]Record

	requestMu sync.Mutex
	inflight  map[string]*inflightRequest
}

type inflightRequest struct {
	cancel context.CancelFunc
}

// NewStore constructs a Store with the provided configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:            cfg.Database,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		logger:        logger,
		authoritative: make(map[string]Record),
		inflight:      make(map[string]*inflightRequest),
	}, nil
}

// FetchAll loads every known record ordered by display order, ties broken by
// insertion order. Callers treat a failure as an empty page set.
func (s *Store) FetchAll(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.db.WithContext(ctx).
		Order("display_order ASC, created_at ASC").
		Find(&records).Error; err != nil {
		s.logError(opFetchAll, "query_failed", err)
		return nil, newServiceError(opFetchAll, "query_failed", err)
	}

	s.mu.Lock()
	s.authoritative = make(map[string]Record, len(records))
	for _, record := range records {
		s.authoritative[record.PageKey] = record
	}
	s.mu.Unlock()

	return records, nil
}

// FetchByKey returns the record saved for a page key. ErrPageNotFound is the
// expected state for a catalog entry that was never saved.
func (s *Store) FetchByKey(ctx context.Context, key PageKey) (Record, error) {
	requestCtx, release := s.beginRequest(ctx, key.String())
	defer release()

	var record Record
	err := s.db.WithContext(requestCtx).
		Where("page_key = ?", key.String()).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrPageNotFound
	}
	if err != nil {
		if requestCtx.Err() != nil && ctx.Err() == nil {
			return Record{}, ErrRequestSuperseded
		}
		s.logError(opFetchByKey, "query_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opFetchByKey, "query_failed", err)
	}

	s.mu.Lock()
	s.authoritative[record.PageKey] = record
	s.mu.Unlock()

	return record, nil
}

// Save reconciles an editor draft into persistence. A record whose id is
// already bound to the key is updated in place; otherwise a new row is
// inserted and its id adopted. Losing an insert race on the page key unique
// index downgrades to fetching the existing row and updating it, so two
// racing first saves still yield exactly one persisted row. Repeated image
// file names in the draft collapse to their first entry. The in-memory
// authoritative copy is replaced only after the write succeeds.
func (s *Store) Save(ctx context.Context, key PageKey, draft Draft) (Record, error) {
	requestCtx, release := s.beginRequest(ctx, key.String())
	defer release()

	imagesJSON, err := EncodeImageLayouts(DedupeImageLayouts(draft.Images))
	if err != nil {
		s.logError(opSave, "encode_images_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "encode_images_failed", err)
	}
	menuItemsJSON, err := encodeMenuItems(draft.MenuItems)
	if err != nil {
		s.logError(opSave, "encode_menu_items_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "encode_menu_items_failed", err)
	}

	existingID, displayOrder, err := s.resolveExisting(requestCtx, key)
	if err != nil {
		if requestCtx.Err() != nil && ctx.Err() == nil {
			return Record{}, ErrRequestSuperseded
		}
		s.logError(opSave, "lookup_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "lookup_failed", err)
	}

	savedAt := s.clock().UTC()

	var record Record
	if existingID != "" {
		record, err = s.updateExisting(requestCtx, existingID, key, draft, imagesJSON, menuItemsJSON, savedAt)
	} else {
		record, err = s.insertNew(requestCtx, key, draft, imagesJSON, menuItemsJSON, displayOrder, savedAt)
	}
	if err != nil {
		if requestCtx.Err() != nil && ctx.Err() == nil {
			return Record{}, ErrRequestSuperseded
		}
		return Record{}, err
	}

	s.mu.Lock()
	s.authoritative[record.PageKey] = record
	s.mu.Unlock()

	return record, nil
}

// CreateBlank inserts a fresh record with empty title and content at the
// given display order. Used by the free-form page creation flow only; the
// generated key is derived from the new id.
func (s *Store) CreateBlank(ctx context.Context, displayOrder int) (Record, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateBlank, "id_generation_failed", err)
		return Record{}, newServiceError(opCreateBlank, "id_generation_failed", err)
	}

	record := Record{
		ID:            id,
		PageKey:       "page-" + id,
		Title:         "",
		Content:       "",
		ImagesJSON:    "[]",
		MenuItemsJSON: "[]",
		DisplayOrder:  displayOrder,
		UpdatedAt:     s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opCreateBlank, "insert_failed", err)
		return Record{}, newServiceError(opCreateBlank, "insert_failed", err)
	}

	s.mu.Lock()
	s.authoritative[record.PageKey] = record
	s.mu.Unlock()

	return record, nil
}

// Cached returns the authoritative in-memory copy for a key, when present.
func (s *Store) Cached(key PageKey) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.authoritative[key.String()]
	return record, ok
}

func (s *Store) resolveExisting(ctx context.Context, key PageKey) (string, int, error) {
	s.mu.RLock()
	cached, ok := s.authoritative[key.String()]
	s.mu.RUnlock()
	if ok && cached.ID != "" {
		return cached.ID, cached.DisplayOrder, nil
	}

	var existing Record
	err := s.db.WithContext(ctx).
		Where("page_key = ?", key.String()).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return existing.ID, existing.DisplayOrder, nil
}

func (s *Store) updateExisting(ctx context.Context, id string, key PageKey, draft Draft, imagesJSON, menuItemsJSON string, savedAt time.Time) (Record, error) {
	updates := map[string]interface{}{
		"title":           draft.Title,
		"content":         draft.Content,
		"images_json":     imagesJSON,
		"menu_items_json": menuItemsJSON,
		"updated_at":      savedAt,
	}
	if err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		s.logError(opSave, "update_failed", err, zap.String("page_key", key.String()), zap.String("id", id))
		return Record{}, newServiceError(opSave, "update_failed", err)
	}

	var record Record
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		s.logError(opSave, "reload_failed", err, zap.String("page_key", key.String()), zap.String("id", id))
		return Record{}, newServiceError(opSave, "reload_failed", err)
	}
	return record, nil
}

func (s *Store) insertNew(ctx context.Context, key PageKey, draft Draft, imagesJSON, menuItemsJSON string, displayOrder int, savedAt time.Time) (Record, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSave, "id_generation_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "id_generation_failed", err)
	}

	record := Record{
		ID:            id,
		PageKey:       key.String(),
		Title:         draft.Title,
		Content:       draft.Content,
		ImagesJSON:    imagesJSON,
		MenuItemsJSON: menuItemsJSON,
		DisplayOrder:  displayOrder,
		UpdatedAt:     savedAt,
	}
	err = s.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return record, nil
	}
	if !isDuplicateKey(err) {
		s.logError(opSave, "insert_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "insert_failed", err)
	}

	// Lost the first-save race on the page key unique index. Adopt the row
	// that won and retry as an update.
	var existing Record
	if err := s.db.WithContext(ctx).
		Where("page_key = ?", key.String()).
		Take(&existing).Error; err != nil {
		s.logError(opSave, "conflict_lookup_failed", err, zap.String("page_key", key.String()))
		return Record{}, newServiceError(opSave, "conflict_lookup_failed", err)
	}
	return s.updateExisting(ctx, existing.ID, key, draft, imagesJSON, menuItemsJSON, savedAt)
}

func (s *Store) beginRequest(ctx context.Context, key string) (context.Context, func()) {
	requestCtx, cancel := context.WithCancel(ctx)
	request := &inflightRequest{cancel: cancel}

	s.requestMu.Lock()
	if prior, ok := s.inflight[key]; ok {
		prior.cancel()
	}
	s.inflight[key] = request
	s.requestMu.Unlock()

	release := func() {
		s.requestMu.Lock()
		if current, ok := s.inflight[key]; ok && current == request {
			delete(s.inflight, key)
		}
		s.requestMu.Unlock()
		cancel()
	}
	return requestCtx, release
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func encodeMenuItems(items []MenuItem) (string, error) {
	if items == nil {
		items = []MenuItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("page store error", attrs...)
}
