package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iago/ai-webhook-back/internal/domain"
	"github.com/iago/ai-webhook-back/internal/repository"
)

type createWebhookRequest struct {
	Name    string `json:"name"`
	AIModel string `json:"aiModel,omitempty"`
}

// Webhooks serves the management collection: list and create.
func (api *API) Webhooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.listWebhooks(w, r)
	case http.MethodPost:
		api.createWebhook(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// WebhookByID serves deletes on a single configuration.
func (api *API) WebhookByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/webhooks/"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "webhook id is required")
		return
	}

	if err := api.configs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "webhook not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) listWebhooks(w http.ResponseWriter, r *http.Request) {
	configs, err := api.configs.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list webhooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": configs})
}

func (api *API) createWebhook(w http.ResponseWriter, r *http.Request) {
	var request createWebhookRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	name := strings.TrimSpace(request.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	model := strings.TrimSpace(request.AIModel)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	config := &domain.WebhookConfig{
		ID:        "wh_" + uuid.NewString(),
		Name:      name,
		AIModel:   model,
		CreatedAt: time.Now().UTC(),
	}
	if err := api.configs.Create(r.Context(), config); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to store webhook")
		return
	}
	writeJSON(w, http.StatusCreated, config)
}
