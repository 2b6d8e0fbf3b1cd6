package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TidewaterClub/sitecms/backend/internal/assets"
	"github.com/TidewaterClub/sitecms/backend/internal/auth"
	"github.com/TidewaterClub/sitecms/backend/internal/pages"
	"github.com/TidewaterClub/sitecms/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testEnvironment struct {
	handler  http.Handler
	accounts *users.Service
	store    *pages.Store
	library  *assets.Library
	gate     *auth.Gate
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&pages.Record{}, &assets.Object{}, &users.Account{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := func() time.Time { return time.Unix(1750000000, 0).UTC() }

	objects, err := assets.NewBlobStore(assets.BlobStoreConfig{
		Database:      db,
		PublicBaseURL: "/media",
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to build blob store: %v", err)
	}
	library, err := assets.NewLibrary(assets.LibraryConfig{Objects: objects})
	if err != nil {
		t.Fatalf("failed to build library: %v", err)
	}
	store, err := pages.NewStore(pages.StoreConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: pages.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to build page store: %v", err)
	}
	accounts, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "sitecms-auth",
		Audience:      "sitecms-api",
		TokenTTL:      time.Hour,
	})
	gate := auth.NewGate()
	accounts.OnSessionChange(func(event users.SessionEvent) {
		gate.Apply(auth.SessionState{Authenticated: event.Authenticated, Subject: event.Subject})
	})

	handler, err := NewHTTPHandler(Dependencies{
		PageStore:    store,
		AssetLibrary: library,
		Objects:      objects,
		Accounts:     accounts,
		Tokens:       issuer,
		Gate:         gate,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testEnvironment{
		handler:  handler,
		accounts: accounts,
		store:    store,
		library:  library,
		gate:     gate,
	}
}

func (env *testEnvironment) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

// signInStaff provisions a confirmed account and returns a live bearer token.
func signInStaff(t *testing.T, env *testEnvironment) string {
	t.Helper()

	account, err := env.accounts.SignUp(context.Background(), "editor@club.example", "hunter2hunter2")
	if err != nil {
		t.Fatalf("unexpected sign-up error: %v", err)
	}
	if err := env.accounts.Confirm(context.Background(), account.ConfirmationToken); err != nil {
		t.Fatalf("unexpected confirm error: %v", err)
	}

	recorder := env.request(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "editor@club.example",
		"password": "hunter2hunter2",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("sign-in failed with status %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, recorder, &response)
	if response.AccessToken == "" {
		t.Fatalf("expected access token in response")
	}
	return response.AccessToken
}
