package app

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulseboard/api/internal/repo"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	return NewHTTPServer(svc, "*").Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !out["ok"] {
		t.Error("expected ok=true")
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", repo.Task{Title: "Write docs"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created repo.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	if created.ID == "" || created.Status != repo.TaskPending {
		t.Errorf("unexpected created task: %+v", created)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/tasks", nil)
	var listed []repo.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Errorf("list = %+v", listed)
	}

	// Completing without an image must fail validation.
	rec = doJSON(t, h, http.MethodPost, "/api/tasks/"+created.ID+"/complete", completionBody{Title: "Done"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("complete without image: status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/tasks/"+created.ID+"/complete", completionBody{
		Title:       "Done",
		Image:       base64.StdEncoding.EncodeToString([]byte("png")),
		ContentType: "image/png",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d: %s", rec.Code, rec.Body)
	}
	var completed repo.Task
	json.Unmarshal(rec.Body.Bytes(), &completed)
	if completed.Status != repo.TaskCompleted {
		t.Errorf("status after complete = %q", completed.Status)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d", rec.Code)
	}
}

func TestValidationMapped(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/tasks", repo.Task{Title: ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad error body: %v", err)
	}
	if out.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %q", out.Error.Code)
	}
}

func TestGalleryUndoOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/gallery", repo.GalleryEntry{Title: "Sketch", Image: "data:image/png;base64,AAAA"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var entry repo.GalleryEntry
	json.Unmarshal(rec.Body.Bytes(), &entry)

	rec = doJSON(t, h, http.MethodDelete, "/api/gallery/"+entry.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/gallery/undo", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo status = %d: %s", rec.Code, rec.Body)
	}
	var restored repo.GalleryEntry
	json.Unmarshal(rec.Body.Bytes(), &restored)
	if restored.ID != entry.ID {
		t.Errorf("restored %q, want %q", restored.ID, entry.ID)
	}

	// Nothing pending anymore.
	rec = doJSON(t, h, http.MethodPost, "/api/gallery/undo", nil)
	if rec.Code != http.StatusGone {
		t.Errorf("second undo status = %d", rec.Code)
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "Ada@Example.com", "password": "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/session", nil)
	var sess struct {
		Authenticated bool   `json:"authenticated"`
		ActiveUser    string `json:"activeUser"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if !sess.Authenticated || sess.ActiveUser == "" {
		t.Errorf("session = %+v", sess)
	}
}

func TestPreflightHasNoBody(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodOptions, "/api/tasks", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("204 response carries a body: %q", rec.Body)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS header on preflight")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}
