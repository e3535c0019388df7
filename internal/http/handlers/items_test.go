package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/ingest"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/scheduler"
)

type stubIngestService struct{}

func (stubIngestService) Submit(_ context.Context, _ domain.Payload, progress ingest.ProgressFunc) (string, error) {
	if progress != nil {
		progress(100)
	}
	return "ext-1", nil
}

func (stubIngestService) Status(context.Context, string) (ingest.StatusReport, error) {
	return ingest.StatusReport{Terminal: true, Success: true}, nil
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	s := scheduler.New(
		stubIngestService{},
		nil,
		scheduler.Config{MaxConcurrent: 3, PollInterval: 5 * time.Millisecond, PollTimeout: time.Second},
		scheduler.Callbacks{},
		nil,
	)
	t.Cleanup(s.Close)
	return NewAPI(s, t.TempDir())
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response (%d): %s", recorder.Code, recorder.Body.String())
	}
	return decoded
}

func TestCreateItemFromReference(t *testing.T) {
	api := newTestAPI(t)

	body := bytes.NewBufferString(`{"url":"https://example.com/essay"}`)
	request := httptest.NewRequest(http.MethodPost, "/v1/items", body)
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	api.Items(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	decoded := decodeBody(t, recorder)
	id, _ := decoded["item_id"].(string)
	if id == "" {
		t.Fatalf("expected item_id in response, got %v", decoded)
	}

	item, ok := api.scheduler.Get(id)
	if !ok {
		t.Fatalf("item not found in scheduler")
	}
	if item.Payload.RemoteURL != "https://example.com/essay" {
		t.Fatalf("unexpected payload: %+v", item.Payload)
	}
}

func TestCreateItemRequiresURL(t *testing.T) {
	api := newTestAPI(t)

	request := httptest.NewRequest(http.MethodPost, "/v1/items", bytes.NewBufferString(`{}`))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	api.Items(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCreateItemFromUpload(t *testing.T) {
	api := newTestAPI(t)

	var buffer bytes.Buffer
	form := multipart.NewWriter(&buffer)
	part, err := form.CreateFormFile("file", "paper.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, "%PDF-1.4 fake body"); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, "/v1/items", &buffer)
	request.Header.Set("Content-Type", form.FormDataContentType())
	recorder := httptest.NewRecorder()

	api.Items(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	decoded := decodeBody(t, recorder)
	id, _ := decoded["item_id"].(string)

	item, ok := api.scheduler.Get(id)
	if !ok {
		t.Fatalf("item not found in scheduler")
	}
	if item.Payload.LocalPath == "" {
		t.Fatalf("expected spooled local path, got %+v", item.Payload)
	}
}

func TestListItemsReturnsSnapshot(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 3; i++ {
		api.scheduler.AddReference(fmt.Sprintf("https://example.com/%d", i))
	}

	request := httptest.NewRequest(http.MethodGet, "/v1/items", nil)
	recorder := httptest.NewRecorder()
	api.Items(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	decoded := decodeBody(t, recorder)
	if total, _ := decoded["total"].(float64); int(total) != 3 {
		t.Fatalf("expected total 3, got %v", decoded["total"])
	}
}

func TestGetUnknownItemReturns404(t *testing.T) {
	api := newTestAPI(t)

	request := httptest.NewRequest(http.MethodGet, "/v1/items/missing", nil)
	recorder := httptest.NewRecorder()
	api.ItemOps(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestRetryRejectsNonFailedItem(t *testing.T) {
	api := newTestAPI(t)
	id := api.scheduler.AddReference("https://example.com/fine")

	waitForStatus(t, api, id, domain.StatusCompleted)

	request := httptest.NewRequest(http.MethodPost, "/v1/items/"+id+"/retry", nil)
	recorder := httptest.NewRecorder()
	api.ItemOps(recorder, request)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for retry of completed item, got %d", recorder.Code)
	}
}

func TestCancelRemovesItem(t *testing.T) {
	api := newTestAPI(t)
	id := api.scheduler.AddReference("https://example.com/cancel-me")

	request := httptest.NewRequest(http.MethodDelete, "/v1/items/"+id, nil)
	recorder := httptest.NewRecorder()
	api.ItemOps(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if _, ok := api.scheduler.Get(id); ok {
		t.Fatalf("cancelled item still present")
	}

	recorder = httptest.NewRecorder()
	api.ItemOps(recorder, httptest.NewRequest(http.MethodDelete, "/v1/items/"+id, nil))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for already-removed item, got %d", recorder.Code)
	}
}

func TestClearCompletedViaQuery(t *testing.T) {
	api := newTestAPI(t)
	id := api.scheduler.AddReference("https://example.com/done")
	waitForStatus(t, api, id, domain.StatusCompleted)

	request := httptest.NewRequest(http.MethodDelete, "/v1/items?status=completed", nil)
	recorder := httptest.NewRecorder()
	api.Items(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	decoded := decodeBody(t, recorder)
	if removed, _ := decoded["removed"].(float64); int(removed) != 1 {
		t.Fatalf("expected 1 removed, got %v", decoded["removed"])
	}
}

func waitForStatus(t *testing.T, api *API, id string, status domain.ItemStatus) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if item, ok := api.scheduler.Get(id); ok && item.Status == status {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("item %s never reached %s", id, status)
}
