package server

import (
	"encoding/base64"
	"net/http"
	"testing"
)

type blockResponse struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Placeholder bool   `json:"placeholder"`
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Alignment   string `json:"alignment"`
	HideOnError bool   `json:"hide_on_error"`
}

type layoutResponse struct {
	PageKey string          `json:"page_key"`
	Blocks  []blockResponse `json:"blocks"`
}

func TestPublicCatalogListsEveryFixedPage(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.request(t, http.MethodGet, "/pages", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var response struct {
		Pages []struct {
			PageKey string `json:"page_key"`
			Saved   bool   `json:"saved"`
		} `json:"pages"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Pages) != 8 {
		t.Fatalf("expected the 8 catalog pages, got %d", len(response.Pages))
	}
	for _, page := range response.Pages {
		if page.Saved {
			t.Fatalf("expected no page marked saved on an empty database, got %q", page.PageKey)
		}
	}
}

func TestRenderUnsavedPageReturnsNotFound(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.request(t, http.MethodGet, "/pages/events", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestSaveThenPublicRenderFlow(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	draft := map[string]interface{}{
		"title":   "Events",
		"content": "Upcoming races.",
	}
	recorder := env.request(t, http.MethodPut, "/editor/pages/events", token, draft)
	if recorder.Code != http.StatusOK {
		t.Fatalf("save failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.request(t, http.MethodGet, "/pages/events", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("render failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var tree layoutResponse
	decodeBody(t, recorder, &tree)
	if tree.PageKey != "events" || len(tree.Blocks) != 2 {
		t.Fatalf("unexpected layout: %+v", tree)
	}
	if tree.Blocks[0].Text != "Events" || tree.Blocks[0].Placeholder {
		t.Fatalf("unexpected title block: %+v", tree.Blocks[0])
	}
	if tree.Blocks[1].Text != "Upcoming races." {
		t.Fatalf("unexpected text block: %+v", tree.Blocks[1])
	}
}

func TestSecondSaveUpdatesInsteadOfDuplicating(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	first := env.request(t, http.MethodPut, "/editor/pages/events", token, map[string]interface{}{"title": "Events"})
	if first.Code != http.StatusOK {
		t.Fatalf("first save failed with %d", first.Code)
	}
	second := env.request(t, http.MethodPut, "/editor/pages/events", token, map[string]interface{}{"title": "Events v2"})
	if second.Code != http.StatusOK {
		t.Fatalf("second save failed with %d", second.Code)
	}

	var firstPage, secondPage struct {
		ID string `json:"id"`
	}
	decodeBody(t, first, &firstPage)
	decodeBody(t, second, &secondPage)
	if firstPage.ID == "" || firstPage.ID != secondPage.ID {
		t.Fatalf("expected one record across saves, got %q and %q", firstPage.ID, secondPage.ID)
	}
}

func TestPreviewRendersUnsavedDraft(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	draft := map[string]interface{}{
		"title": "Draft Title",
		"images": []map[string]interface{}{
			{"name": "banner.png", "width": 9999, "position": "center"},
		},
	}
	recorder := env.request(t, http.MethodPost, "/editor/pages/events/preview", token, draft)
	if recorder.Code != http.StatusOK {
		t.Fatalf("preview failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var tree layoutResponse
	decodeBody(t, recorder, &tree)
	if len(tree.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(tree.Blocks))
	}
	image := tree.Blocks[2]
	if image.Width != 600 || image.Alignment != "center" {
		t.Fatalf("unexpected image block: %+v", image)
	}
	if image.URL != "/media/pages/events/banner.png" {
		t.Fatalf("unexpected image url: %q", image.URL)
	}

	// Nothing was persisted by the preview.
	public := env.request(t, http.MethodGet, "/pages/events", "", nil)
	if public.Code != http.StatusNotFound {
		t.Fatalf("preview must not persist, got %d", public.Code)
	}
}

func TestUploadAttachesDefaultLayoutAndServesObject(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	if recorder := env.request(t, http.MethodPut, "/editor/pages/events", token, map[string]interface{}{"title": "Events"}); recorder.Code != http.StatusOK {
		t.Fatalf("save failed with %d", recorder.Code)
	}

	upload := map[string]string{
		"file_name":    "banner.png",
		"content_type": "image/png",
		"data_b64":     base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	}
	recorder := env.request(t, http.MethodPost, "/editor/pages/events/images", token, upload)
	if recorder.Code != http.StatusOK {
		t.Fatalf("upload failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Layout struct {
			Name     string `json:"name"`
			Width    int    `json:"width"`
			Position string `json:"position"`
		} `json:"layout"`
		URL string `json:"url"`
	}
	decodeBody(t, recorder, &response)
	if response.Layout.Width != 300 || response.Layout.Position != "center" {
		t.Fatalf("expected centered 300px default layout, got %+v", response.Layout)
	}

	served := env.request(t, http.MethodGet, response.URL, "", nil)
	if served.Code != http.StatusOK {
		t.Fatalf("object fetch failed with %d", served.Code)
	}
	if served.Body.String() != "png-bytes" {
		t.Fatalf("unexpected object bytes: %q", served.Body.String())
	}
	if contentType := served.Header().Get("Content-Type"); contentType != "image/png" {
		t.Fatalf("unexpected content type: %q", contentType)
	}

	// The saved page now renders the uploaded image.
	public := env.request(t, http.MethodGet, "/pages/events", "", nil)
	var tree layoutResponse
	decodeBody(t, public, &tree)
	if len(tree.Blocks) != 3 || tree.Blocks[2].FileName != "banner.png" {
		t.Fatalf("expected rendered image block, got %+v", tree.Blocks)
	}
}

func TestRemoveImageDropsRenderedBlock(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	if recorder := env.request(t, http.MethodPut, "/editor/pages/events", token, map[string]interface{}{"title": "Events"}); recorder.Code != http.StatusOK {
		t.Fatalf("save failed with %d", recorder.Code)
	}
	upload := map[string]string{
		"file_name":    "banner.png",
		"content_type": "image/png",
		"data_b64":     base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	}
	if recorder := env.request(t, http.MethodPost, "/editor/pages/events/images", token, upload); recorder.Code != http.StatusOK {
		t.Fatalf("upload failed with %d", recorder.Code)
	}

	recorder := env.request(t, http.MethodDelete, "/editor/pages/events/images/banner.png", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("remove failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	public := env.request(t, http.MethodGet, "/pages/events", "", nil)
	var tree layoutResponse
	decodeBody(t, public, &tree)
	if len(tree.Blocks) != 2 {
		t.Fatalf("expected image block gone, got %+v", tree.Blocks)
	}

	served := env.request(t, http.MethodGet, "/media/pages/events/banner.png", "", nil)
	if served.Code != http.StatusNotFound {
		t.Fatalf("expected object gone, got %d", served.Code)
	}
}

func TestSaveDropsImageEntriesWithoutBackingObject(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	draft := map[string]interface{}{
		"title": "Events",
		"images": []map[string]interface{}{
			{"name": "ghost.png", "width": 300, "position": "center"},
		},
	}
	recorder := env.request(t, http.MethodPut, "/editor/pages/events", token, draft)
	if recorder.Code != http.StatusOK {
		t.Fatalf("save failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var page struct {
		Images []struct {
			Name string `json:"name"`
		} `json:"images"`
	}
	decodeBody(t, recorder, &page)
	if len(page.Images) != 0 {
		t.Fatalf("expected ghost image dropped on save, got %+v", page.Images)
	}
}

func TestCreatePageReturnsBlankRecord(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	recorder := env.request(t, http.MethodPost, "/editor/pages", token, map[string]interface{}{"display_order": 9})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	var page struct {
		ID           string `json:"id"`
		PageKey      string `json:"page_key"`
		Title        string `json:"title"`
		DisplayOrder int    `json:"display_order"`
	}
	decodeBody(t, recorder, &page)
	if page.ID == "" || page.PageKey == "" {
		t.Fatalf("expected identifiers assigned, got %+v", page)
	}
	if page.Title != "" || page.DisplayOrder != 9 {
		t.Fatalf("unexpected blank record: %+v", page)
	}
}

func TestEditorGetUnsavedPageReturnsNullPage(t *testing.T) {
	env := newTestEnvironment(t)
	token := signInStaff(t, env)

	recorder := env.request(t, http.MethodGet, "/editor/pages/schedule", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for unsaved catalog entry, got %d", recorder.Code)
	}

	var response struct {
		Page    *struct{}  `json:"page"`
		Uploads []struct{} `json:"uploads"`
	}
	decodeBody(t, recorder, &response)
	if response.Page != nil {
		t.Fatalf("expected null page for unsaved entry")
	}
}

func TestInvalidPageKeyIsRejected(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.request(t, http.MethodGet, "/pages/bad%20key!", "", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
