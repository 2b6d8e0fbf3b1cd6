package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/TidewaterClub/sitecms/backend/internal/assets"
	"github.com/TidewaterClub/sitecms/backend/internal/auth"
	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	"github.com/TidewaterClub/sitecms/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const subjectContextKey = "sitecms_subject"

var (
	errMissingPageStore     = errors.New("page store dependency required")
	errMissingAssetLibrary  = errors.New("asset library dependency required")
	errMissingObjectStore   = errors.New("object store dependency required")
	errMissingAccounts      = errors.New("accounts dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingGate          = errors.New("session gate dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates staff session tokens.
type TokenManager interface {
	IssueSessionToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies collects the collaborators the HTTP surface is built from.
type Dependencies struct {
	PageStore    *pages.Store
	AssetLibrary *assets.Library
	Objects      assets.ObjectStore
	Accounts     *users.Service
	Tokens       TokenManager
	Gate         *auth.Gate
	Logger       *zap.Logger
}

// NewHTTPHandler wires the public site endpoints, the staff auth endpoints,
// and the authenticated editor endpoints onto one router. The public page
// view and the editor preview run through the same render pipeline.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.PageStore == nil {
		return nil, errMissingPageStore
	}
	if deps.AssetLibrary == nil {
		return nil, errMissingAssetLibrary
	}
	if deps.Objects == nil {
		return nil, errMissingObjectStore
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}
	if deps.Gate == nil {
		return nil, errMissingGate
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		pageStore: deps.PageStore,
		library:   deps.AssetLibrary,
		objects:   deps.Objects,
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		gate:      deps.Gate,
		logger:    logger,
	}

	router.GET("/pages", handler.handleListPages)
	router.GET("/pages/:key", handler.handleRenderPage)
	router.GET("/media/*objectKey", handler.handleServeObject)

	router.POST("/auth/signup", handler.handleSignUp)
	router.POST("/auth/confirm", handler.handleConfirm)
	router.POST("/auth/signin", handler.handleSignIn)
	router.GET("/auth/session", handler.handleSessionInfo)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/auth/signout", handler.handleSignOut)
	protected.GET("/editor/pages", handler.handleEditorListPages)
	protected.POST("/editor/pages", handler.handleCreatePage)
	protected.GET("/editor/pages/:key", handler.handleEditorGetPage)
	protected.PUT("/editor/pages/:key", handler.handleSavePage)
	protected.POST("/editor/pages/:key/preview", handler.handlePreviewPage)
	protected.GET("/editor/pages/:key/images", handler.handleListImages)
	protected.POST("/editor/pages/:key/images", handler.handleUploadImage)
	protected.DELETE("/editor/pages/:key/images/:name", handler.handleRemoveImage)

	return router, nil
}

type httpHandler struct {
	pageStore *pages.Store
	library   *assets.Library
	objects   assets.ObjectStore
	accounts  *users.Service
	tokens    TokenManager
	gate      *auth.Gate
	logger    *zap.Logger
}

type imagePayload struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Position string `json:"position"`
}

type menuItemPayload struct {
	Label string `json:"label"`
	Link  string `json:"link"`
}

type pagePayload struct {
	ID           string            `json:"id"`
	PageKey      string            `json:"page_key"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Images       []imagePayload    `json:"images"`
	MenuItems    []menuItemPayload `json:"menu_items"`
	DisplayOrder int               `json:"display_order"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type draftPayload struct {
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Images    []imagePayload    `json:"images"`
	MenuItems []menuItemPayload `json:"menu_items"`
}

type uploadInfoPayload struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

func pageToPayload(record pages.Record) pagePayload {
	images := record.Images()
	imagePayloads := make([]imagePayload, 0, len(images))
	for _, layout := range images {
		imagePayloads = append(imagePayloads, imagePayload{
			Name:     layout.FileName,
			Width:    layout.Width,
			Position: layout.Position,
		})
	}
	menuItems := record.MenuItems()
	menuPayloads := make([]menuItemPayload, 0, len(menuItems))
	for _, item := range menuItems {
		menuPayloads = append(menuPayloads, menuItemPayload{Label: item.Label, Link: item.Link})
	}
	return pagePayload{
		ID:           record.ID,
		PageKey:      record.PageKey,
		Title:        record.Title,
		Content:      record.Content,
		Images:       imagePayloads,
		MenuItems:    menuPayloads,
		DisplayOrder: record.DisplayOrder,
		UpdatedAt:    record.UpdatedAt,
	}
}

func draftFromPayload(payload draftPayload) pages.Draft {
	layouts := make([]pages.ImageLayout, 0, len(payload.Images))
	for _, image := range payload.Images {
		layouts = append(layouts, pages.ImageLayout{
			FileName: image.Name,
			Width:    image.Width,
			Position: image.Position,
		})
	}
	menuItems := make([]pages.MenuItem, 0, len(payload.MenuItems))
	for _, item := range payload.MenuItems {
		menuItems = append(menuItems, pages.MenuItem{Label: item.Label, Link: item.Link})
	}
	return pages.Draft{
		Title:     payload.Title,
		Content:   payload.Content,
		Images:    layouts,
		MenuItems: menuItems,
	}
}

func (h *httpHandler) urlResolver(key pages.PageKey) pages.URLResolver {
	return func(fileName string) string {
		return h.library.PublicURL(key, fileName)
	}
}

// --- public site ---

type catalogEntryPayload struct {
	PageKey      string `json:"page_key"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Saved        bool   `json:"saved"`
	DisplayOrder int    `json:"display_order"`
}

func (h *httpHandler) handleListPages(c *gin.Context) {
	records, err := h.pageStore.FetchAll(c.Request.Context())
	if err != nil {
		// The public site renders an empty catalog rather than failing.
		h.logger.Warn("page catalog fetch failed", zap.Error(err))
		records = nil
	}

	byKey := make(map[string]pages.Record, len(records))
	for _, record := range records {
		byKey[record.PageKey] = record
	}

	entries := make([]catalogEntryPayload, 0, len(pages.Catalog()))
	for index, entry := range pages.Catalog() {
		payload := catalogEntryPayload{
			PageKey:      entry.Key.String(),
			Name:         entry.Name,
			DisplayOrder: index + 1,
		}
		if record, ok := byKey[entry.Key.String()]; ok {
			payload.Title = record.Title
			payload.Saved = true
			payload.DisplayOrder = record.DisplayOrder
		}
		entries = append(entries, payload)
	}

	c.JSON(http.StatusOK, gin.H{"pages": entries})
}

func (h *httpHandler) handleRenderPage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	record, err := h.pageStore.FetchByKey(c.Request.Context(), key)
	if errors.Is(err, pages.ErrPageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "page_not_found"})
		return
	}
	if errors.Is(err, pages.ErrRequestSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
		return
	}
	if err != nil {
		h.logger.Error("page fetch failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, pages.Render(record, h.urlResolver(key)))
}

func (h *httpHandler) handleServeObject(c *gin.Context) {
	objectKey := strings.TrimPrefix(c.Param("objectKey"), "/")
	data, contentType, err := h.objects.Get(c.Request.Context(), objectKey)
	if errors.Is(err, assets.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("object fetch failed", zap.Error(err), zap.String("key", objectKey))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// --- staff auth ---

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.SignUp(c.Request.Context(), request.Email, request.Password)
	switch {
	case errors.Is(err, users.ErrInvalidEmail), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("sign up failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup_failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account_id":            account.ID,
		"confirmation_required": true,
	})
}

type confirmPayload struct {
	Token string `json:"token"`
}

func (h *httpHandler) handleConfirm(c *gin.Context) {
	var request confirmPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.accounts.Confirm(c.Request.Context(), request.Token); err != nil {
		if errors.Is(err, users.ErrInvalidConfirmation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("confirmation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSignIn(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	account, err := h.accounts.SignInWithPassword(c.Request.Context(), request.Email, request.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrAccountNotConfirmed):
		// Auth failures reach the login form verbatim.
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("sign in failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signin_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   expiresIn,
		"token_type":   "Bearer",
	})
}

func (h *httpHandler) handleSignOut(c *gin.Context) {
	subject := c.GetString(subjectContextKey)
	h.accounts.SignOut(c.Request.Context(), subject)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSessionInfo(c *gin.Context) {
	state := h.gate.Current()

	view := auth.ViewKind(strings.TrimSpace(c.Query("view")))
	if view != auth.ViewEditor {
		view = auth.ViewLogin
	}
	target, redirect := auth.RedirectTarget(state, view)

	response := gin.H{
		"authenticated": state.Authenticated,
		"redirect":      redirect,
		"view":          string(target),
	}
	if state.Authenticated {
		response["subject"] = state.Subject
	}
	c.JSON(http.StatusOK, response)
}

// --- editor ---

func (h *httpHandler) handleEditorListPages(c *gin.Context) {
	records, err := h.pageStore.FetchAll(c.Request.Context())
	if err != nil {
		h.logger.Error("editor page list failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	payloads := make([]pagePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, pageToPayload(record))
	}
	c.JSON(http.StatusOK, gin.H{"pages": payloads})
}

type createPagePayload struct {
	DisplayOrder int `json:"display_order"`
}

func (h *httpHandler) handleCreatePage(c *gin.Context) {
	var request createPagePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.pageStore.CreateBlank(c.Request.Context(), request.DisplayOrder)
	if err != nil {
		h.logger.Error("page creation failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}
	c.JSON(http.StatusCreated, pageToPayload(record))
}

func (h *httpHandler) handleEditorGetPage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	response := gin.H{"page": nil}
	record, err := h.pageStore.FetchByKey(c.Request.Context(), key)
	switch {
	case errors.Is(err, pages.ErrPageNotFound):
		// Expected for a catalog entry never saved; the editor starts blank.
	case errors.Is(err, pages.ErrRequestSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
		return
	case err != nil:
		h.logger.Error("editor page fetch failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	default:
		response["page"] = pageToPayload(record)
	}

	uploads, err := h.library.ListUploaded(c.Request.Context(), key)
	if err != nil {
		h.logger.Warn("upload listing failed", zap.Error(err), zap.String("page_key", key.String()))
		uploads = nil
	}
	response["uploads"] = h.uploadsToPayload(key, uploads)

	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleSavePage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	var request draftPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	draft := draftFromPayload(request)

	// A persisted record must never reference objects that are gone.
	reconciled, err := h.library.Reconcile(c.Request.Context(), key, draft.Images)
	if err != nil {
		h.logger.Error("image reconciliation failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}
	draft.Images = reconciled

	record, err := h.pageStore.Save(c.Request.Context(), key, draft)
	if errors.Is(err, pages.ErrRequestSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
		return
	}
	if err != nil {
		h.logger.Error("page save failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save_failed"})
		return
	}

	c.JSON(http.StatusOK, pageToPayload(record))
}

func (h *httpHandler) handlePreviewPage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	var request draftPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	draft := draftFromPayload(request)

	imagesJSON, err := pages.EncodeImageLayouts(draft.Images)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	// Same pipeline as the public view, fed by the unsaved draft.
	transient := pages.Record{
		PageKey:    key.String(),
		Title:      draft.Title,
		Content:    draft.Content,
		ImagesJSON: imagesJSON,
	}
	c.JSON(http.StatusOK, pages.Render(transient, h.urlResolver(key)))
}

func (h *httpHandler) handleListImages(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	uploads, err := h.library.ListUploaded(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("upload listing failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": h.uploadsToPayload(key, uploads)})
}

type uploadImagePayload struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	DataBase64  string `json:"data_b64"`
}

func (h *httpHandler) handleUploadImage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}

	var request uploadImagePayload
	if err := c.ShouldBindJSON(&request); err != nil || request.FileName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(request.DataBase64)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_image_data"})
		return
	}

	record, layouts, persisted, err := h.currentLayouts(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("page fetch failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	updated, layout, err := h.library.Upload(c.Request.Context(), key, request.FileName, data, request.ContentType, layouts)
	if err != nil {
		if errors.Is(err, assets.ErrInvalidFileName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file_name"})
			return
		}
		h.logger.Error("image upload failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload_failed"})
		return
	}

	if persisted {
		if _, err := h.persistLayouts(c.Request.Context(), key, record, updated); err != nil {
			h.logger.Error("layout persist failed", zap.Error(err), zap.String("page_key", key.String()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save_failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"layout": imagePayload{Name: layout.FileName, Width: layout.Width, Position: layout.Position},
		"images": layoutsToPayload(updated),
		"url":    h.library.PublicURL(key, layout.FileName),
	})
}

func (h *httpHandler) handleRemoveImage(c *gin.Context) {
	key, err := pages.NewPageKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_page_key"})
		return
	}
	fileName := c.Param("name")

	record, layouts, persisted, err := h.currentLayouts(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("page fetch failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	updated, err := h.library.Remove(c.Request.Context(), key, fileName, layouts)
	if err != nil {
		if errors.Is(err, assets.ErrInvalidFileName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file_name"})
			return
		}
		h.logger.Error("image removal failed", zap.Error(err), zap.String("page_key", key.String()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remove_failed"})
		return
	}

	if persisted {
		if _, err := h.persistLayouts(c.Request.Context(), key, record, updated); err != nil {
			h.logger.Error("layout persist failed", zap.Error(err), zap.String("page_key", key.String()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save_failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"images": layoutsToPayload(updated)})
}

func (h *httpHandler) currentLayouts(ctx context.Context, key pages.PageKey) (pages.Record, []pages.ImageLayout, bool, error) {
	record, err := h.pageStore.FetchByKey(ctx, key)
	if errors.Is(err, pages.ErrPageNotFound) {
		return pages.Record{}, nil, false, nil
	}
	if err != nil {
		return pages.Record{}, nil, false, err
	}
	return record, record.Images(), true, nil
}

func (h *httpHandler) persistLayouts(ctx context.Context, key pages.PageKey, record pages.Record, layouts []pages.ImageLayout) (pages.Record, error) {
	return h.pageStore.Save(ctx, key, pages.Draft{
		Title:     record.Title,
		Content:   record.Content,
		Images:    layouts,
		MenuItems: record.MenuItems(),
	})
}

func (h *httpHandler) uploadsToPayload(key pages.PageKey, uploads []assets.ObjectInfo) []uploadInfoPayload {
	payloads := make([]uploadInfoPayload, 0, len(uploads))
	for _, info := range uploads {
		payloads = append(payloads, uploadInfoPayload{
			Name:      info.FileName,
			SizeBytes: info.SizeBytes,
			URL:       h.library.PublicURL(key, info.FileName),
			UpdatedAt: info.UpdatedAt,
		})
	}
	return payloads
}

func layoutsToPayload(layouts []pages.ImageLayout) []imagePayload {
	payloads := make([]imagePayload, 0, len(layouts))
	for _, layout := range layouts {
		payloads = append(payloads, imagePayload{
			Name:     layout.FileName,
			Width:    layout.Width,
			Position: layout.Position,
		})
	}
	return payloads
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}
