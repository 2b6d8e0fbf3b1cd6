package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	"go.uber.org/zap"
)

const maxFileNameLength = 255

var (
	errMissingObjectStore = errors.New("object store is required")
	// ErrInvalidFileName indicates an empty or unsafe upload file name.
	ErrInvalidFileName = errors.New("assets: invalid file name")
	noOpLogger         = zap.NewNop()
)

const (
	opLibraryNew    = "assets.library.new"
	opListUploaded  = "assets.list_uploaded"
	opUpload        = "assets.upload"
	opRemove        = "assets.remove"
	opReconcile     = "assets.reconcile"
	objectKeyPrefix = "pages"
)

// LibraryError carries an operation code alongside the cause.
type LibraryError struct {
	code string
	err  error
}

func (e *LibraryError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *LibraryError) Unwrap() error {
	return e.err
}

func (e *LibraryError) Code() string {
	return e.code
}

func newLibraryError(operation, reason string, cause error) error {
	return &LibraryError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// LibraryConfig describes the dependencies of the asset library.
type LibraryConfig struct {
	Objects ObjectStore
	Logger  *zap.Logger
}

// Library manages the uploaded images attached to a page key and keeps a
// page's image list consistent with what storage actually contains. Storage
// is the source of truth for existence; the page record's layout list is the
// source of truth for placement metadata.
type Library struct {
	objects ObjectStore
	logger  *zap.Logger
}

// NewLibrary constructs a Library with the provided configuration.
func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.Objects == nil {
		return nil, newLibraryError(opLibraryNew, "missing_object_store", errMissingObjectStore)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Library{objects: cfg.Objects, logger: logger}, nil
}

// ObjectKey derives the storage key for a file on a page.
func ObjectKey(pageKey pages.PageKey, fileName string) string {
	return fmt.Sprintf("%s/%s/%s", objectKeyPrefix, pageKey.String(), fileName)
}

// PagePrefix derives the storage prefix holding all of a page's files.
func PagePrefix(pageKey pages.PageKey) string {
	return fmt.Sprintf("%s/%s/", objectKeyPrefix, pageKey.String())
}

// ListUploaded reflects what storage actually contains for the page. Called
// after every mutating operation to resynchronize the editor's view.
func (l *Library) ListUploaded(ctx context.Context, pageKey pages.PageKey) ([]ObjectInfo, error) {
	infos, err := l.objects.List(ctx, PagePrefix(pageKey))
	if err != nil {
		l.logError(opListUploaded, "list_failed", err, zap.String("page_key", pageKey.String()))
		return nil, newLibraryError(opListUploaded, "list_failed", err)
	}
	return infos, nil
}

// Upload writes bytes under the page's prefix with overwrite-on-conflict
// semantics and returns the updated layout list. A new file name appends the
// default layout; a matching existing entry keeps its width and position and
// only the underlying bytes change.
func (l *Library) Upload(ctx context.Context, pageKey pages.PageKey, fileName string, data []byte, contentType string, layouts []pages.ImageLayout) ([]pages.ImageLayout, pages.ImageLayout, error) {
	cleanName, err := sanitizeFileName(fileName)
	if err != nil {
		return nil, pages.ImageLayout{}, newLibraryError(opUpload, "invalid_file_name", err)
	}

	if err := l.objects.Put(ctx, ObjectKey(pageKey, cleanName), data, contentType); err != nil {
		l.logError(opUpload, "put_failed", err,
			zap.String("page_key", pageKey.String()),
			zap.String("file_name", cleanName))
		return nil, pages.ImageLayout{}, newLibraryError(opUpload, "put_failed", err)
	}

	for _, layout := range layouts {
		if layout.FileName == cleanName {
			// Bytes replaced in place; placement metadata survives.
			return copyLayouts(layouts), layout, nil
		}
	}

	layout := pages.DefaultImageLayout(cleanName)
	updated := append(copyLayouts(layouts), layout)
	return updated, layout, nil
}

// Remove deletes the object and drops the matching entry from the layout
// list. Both effects belong together: an entry with no backing object only
// survives transiently and is hidden at render time, never an error.
func (l *Library) Remove(ctx context.Context, pageKey pages.PageKey, fileName string, layouts []pages.ImageLayout) ([]pages.ImageLayout, error) {
	cleanName, err := sanitizeFileName(fileName)
	if err != nil {
		return nil, newLibraryError(opRemove, "invalid_file_name", err)
	}

	if err := l.objects.Remove(ctx, []string{ObjectKey(pageKey, cleanName)}); err != nil {
		l.logError(opRemove, "remove_failed", err,
			zap.String("page_key", pageKey.String()),
			zap.String("file_name", cleanName))
		return nil, newLibraryError(opRemove, "remove_failed", err)
	}

	updated := make([]pages.ImageLayout, 0, len(layouts))
	for _, layout := range layouts {
		if layout.FileName == cleanName {
			continue
		}
		updated = append(updated, layout)
	}
	return updated, nil
}

// Reconcile drops layout entries whose backing object no longer exists,
// preserving order. Run before a save so the persisted record never
// diverges from storage.
func (l *Library) Reconcile(ctx context.Context, pageKey pages.PageKey, layouts []pages.ImageLayout) ([]pages.ImageLayout, error) {
	infos, err := l.objects.List(ctx, PagePrefix(pageKey))
	if err != nil {
		l.logError(opReconcile, "list_failed", err, zap.String("page_key", pageKey.String()))
		return nil, newLibraryError(opReconcile, "list_failed", err)
	}

	present := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		present[info.FileName] = struct{}{}
	}

	reconciled := make([]pages.ImageLayout, 0, len(layouts))
	for _, layout := range layouts {
		if _, ok := present[layout.FileName]; !ok {
			continue
		}
		reconciled = append(reconciled, layout)
	}
	return reconciled, nil
}

// PublicURL derives the public address of a page file. Pure; no storage call.
func (l *Library) PublicURL(pageKey pages.PageKey, fileName string) string {
	return l.objects.PublicURL(ObjectKey(pageKey, fileName))
}

func sanitizeFileName(fileName string) (string, error) {
	trimmed := strings.TrimSpace(fileName)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidFileName)
	}
	if len(trimmed) > maxFileNameLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidFileName, maxFileNameLength)
	}
	if strings.ContainsAny(trimmed, "/\\") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, trimmed)
	}
	return trimmed, nil
}

func copyLayouts(layouts []pages.ImageLayout) []pages.ImageLayout {
	copied := make([]pages.ImageLayout, len(layouts))
	copy(copied, layouts)
	return copied
}

func (l *Library) loggerOrDefault() *zap.Logger {
	if l == nil || l.logger == nil {
		return noOpLogger
	}
	return l.logger
}

func (l *Library) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	l.loggerOrDefault().Error("asset library error", attrs...)
}
