package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub020/internal/scheduler"
)

const maxUploadBytes = 256 << 20

// Items serves the collection: enqueue (POST), snapshot (GET), clear (DELETE).
func (api *API) Items(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.createItem(w, r)
	case http.MethodGet:
		api.listItems(w, r)
	case http.MethodDelete:
		api.clearItems(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// ItemOps serves /v1/items/{id} and /v1/items/{id}/retry.
func (api *API) ItemOps(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/items/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		switch r.Method {
		case http.MethodGet:
			api.getItem(w, r, parts[0])
		case http.MethodDelete:
			api.cancelItem(w, r, parts[0])
		default:
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case len(parts) == 2 && parts[1] == "retry":
		if r.Method != http.MethodPost {
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		api.retryItem(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown item operation")
	}
}

func (api *API) createItem(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		api.createFromUpload(w, r)
		return
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "body must be JSON with a url field")
		return
	}
	url := strings.TrimSpace(body.URL)
	if url == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	id := api.scheduler.AddReference(url)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"item_id": id,
		"status":  domain.StatusPending,
	})
}

func (api *API) createFromUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(api.uploadDir, 0o755); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to prepare upload dir")
		return
	}

	// Spool under a fresh name; the original filename is untrusted input.
	path := filepath.Join(api.uploadDir, uuid.NewString()+filepath.Ext(header.Filename))
	destination, err := os.Create(path)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}
	if _, err := io.Copy(destination, file); err != nil {
		destination.Close()
		_ = os.Remove(path)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(path)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store upload")
		return
	}

	id := api.scheduler.AddPayload(path)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"item_id": id,
		"status":  domain.StatusPending,
	})
}

func (api *API) listItems(w http.ResponseWriter, _ *http.Request) {
	items := api.scheduler.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (api *API) clearItems(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("status") {
	case "":
		api.scheduler.ClearAll()
		writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
	case string(domain.StatusCompleted):
		removed := api.scheduler.ClearCompleted()
		writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "status filter must be 'completed'")
	}
}

func (api *API) getItem(w http.ResponseWriter, r *http.Request, id string) {
	item, ok := api.scheduler.Get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (api *API) cancelItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := api.scheduler.Cancel(id); err != nil {
		if errors.Is(err, scheduler.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "item not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to cancel item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (api *API) retryItem(w http.ResponseWriter, r *http.Request, id string) {
	if err := api.scheduler.Retry(id); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "item not found")
		case errors.Is(err, scheduler.ErrNotRetryable):
			writeError(w, r, http.StatusConflict, "not_retryable", "only failed items can be retried")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to retry item")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "retrying"})
}
