package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
)

func TestCreateWebhookRequiresName(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	request := httptest.NewRequest(
		http.MethodPost,
		"/api/webhooks",
		bytes.NewReader([]byte(`{"name":"  "}`)),
	)
	recorder := httptest.NewRecorder()
	api.Webhooks(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestCreateWebhookAppliesModelDefault(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	request := httptest.NewRequest(
		http.MethodPost,
		"/api/webhooks",
		bytes.NewReader([]byte(`{"name":"Research Feed"}`)),
	)
	recorder := httptest.NewRecorder()
	api.Webhooks(recorder, request)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var created domain.WebhookConfig
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created webhook: %v", err)
	}
	if !strings.HasPrefix(created.ID, "wh_") {
		t.Fatalf("expected generated wh_ id, got %q", created.ID)
	}
	if created.Name != "Research Feed" {
		t.Fatalf("unexpected name: %q", created.Name)
	}
	if created.AIModel != "gemini-2.5-flash" {
		t.Fatalf("expected default model, got %q", created.AIModel)
	}
}

func TestListWebhooksReturnsStoredConfigs(t *testing.T) {
	api, _, configs := newTestAPI(t, &stubGenerator{text: "unused"})

	err := configs.Create(context.Background(), &domain.WebhookConfig{
		ID:        "wh_news",
		Name:      "News Digest",
		AIModel:   "gemini-2.5-pro",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/api/webhooks", nil)
	recorder := httptest.NewRecorder()
	api.Webhooks(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var body struct {
		Webhooks []domain.WebhookConfig `json:"webhooks"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(body.Webhooks) != 1 || body.Webhooks[0].ID != "wh_news" {
		t.Fatalf("unexpected list payload: %#v", body.Webhooks)
	}
}

func TestDeleteWebhookRemovesConfig(t *testing.T) {
	api, _, configs := newTestAPI(t, &stubGenerator{text: "unused"})

	err := configs.Create(context.Background(), &domain.WebhookConfig{
		ID:        "wh_news",
		Name:      "News Digest",
		AIModel:   "gemini-2.5-flash",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	request := httptest.NewRequest(http.MethodDelete, "/api/webhooks/wh_news", nil)
	recorder := httptest.NewRecorder()
	api.WebhookByID(recorder, request)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}

	if _, err := configs.Get(context.Background(), "wh_news"); err == nil {
		t.Fatalf("expected config to be gone after delete")
	}
}

func TestDeleteWebhookReturnsNotFoundForUnknownID(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	request := httptest.NewRequest(http.MethodDelete, "/api/webhooks/wh_missing", nil)
	recorder := httptest.NewRecorder()
	api.WebhookByID(recorder, request)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
