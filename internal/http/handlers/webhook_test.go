package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iago/ai-webhook-back/internal/ai"
	"github.com/iago/ai-webhook-back/internal/broadcast"
	"github.com/iago/ai-webhook-back/internal/domain"
	"github.com/iago/ai-webhook-back/internal/repository"
	"github.com/iago/ai-webhook-back/internal/service"
)

// stubGenerator returns a canned result. An optional gate channel delays
// completion so tests can assert the trigger response never waits on it.
type stubGenerator struct {
	calls  atomic.Int32
	gate   chan struct{}
	text   string
	chunks []ai.GroundingChunk
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, _ ai.GenerateRequest) (ai.GenerateResult, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ai.GenerateResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return ai.GenerateResult{}, s.err
	}
	return ai.GenerateResult{Text: s.text, GroundingChunks: s.chunks, ModelID: "stub"}, nil
}

func newTestAPI(t *testing.T, generator ai.TextGenerator) (*API, *broadcast.Broadcaster, repository.ConfigsRepository) {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	broadcaster := broadcast.New(broadcast.Config{Logger: logger})
	configs := repository.NewMemoryConfigsRepository()
	executor := service.NewSummarizeService(service.SummarizeDependencies{
		Client: generator,
		Logger: logger,
	})
	api := NewAPI(APIDependencies{
		Configs:           configs,
		Executor:          executor,
		Broadcaster:       broadcaster,
		Logger:            logger,
		KeepaliveInterval: time.Minute,
	})
	return api, broadcaster, configs
}

func triggerWebhook(t *testing.T, api *API, webhookID string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/api/webhook/"+webhookID, bytes.NewReader(encoded))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	api.WebhookTrigger(recorder, request)
	return recorder
}

func decodeMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %s", recorder.Body.String())
	}
	return body["message"]
}

func waitForEvent(t *testing.T, subscriber *broadcast.Subscriber) domain.ResultEvent {
	t.Helper()

	select {
	case event, open := <-subscriber.C:
		if !open {
			t.Fatalf("subscriber channel closed before event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for published event")
	}
	return domain.ResultEvent{}
}

func TestWebhookTriggerRequiresURL(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	recorder := triggerWebhook(t, api, "wh_default_123", map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if message := decodeMessage(t, recorder); !strings.Contains(message, "URL") {
		t.Fatalf("expected message to mention URL, got %q", message)
	}
}

func TestWebhookTriggerRejectsMalformedURL(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	recorder := triggerWebhook(t, api, "wh_default_123", map[string]string{"url": "not-a-url"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if message := decodeMessage(t, recorder); message != "Invalid URL format provided." {
		t.Fatalf("unexpected message: %q", message)
	}
}

func TestWebhookTriggerRejectsMissingWebhookID(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	recorder := triggerWebhook(t, api, "", map[string]string{"url": "https://example.com"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty webhook id, got %d", recorder.Code)
	}
}

func TestWebhookTriggerAcknowledgesBeforeJobCompletes(t *testing.T) {
	generator := &stubGenerator{text: "summary", gate: make(chan struct{})}
	api, broadcaster, _ := newTestAPI(t, generator)

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	start := time.Now()
	recorder := triggerWebhook(t, api, "wh_default_123", map[string]string{
		"url":           "https://example.com/article",
		"correlationId": "tmp_1",
	})
	elapsed := time.Since(start)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if message := decodeMessage(t, recorder); message != "Accepted: summarization started." {
		t.Fatalf("unexpected ack message: %q", message)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("trigger response blocked on job execution: %v", elapsed)
	}
	if broadcaster.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", broadcaster.SubscriberCount())
	}

	// Only now let the job finish.
	close(generator.gate)
	event := waitForEvent(t, subscriber)
	if event.Status != domain.EventStatusSuccess {
		t.Fatalf("expected success event, got %s", event.Status)
	}
	if event.CorrelationID != "tmp_1" {
		t.Fatalf("expected correlation id tmp_1, got %q", event.CorrelationID)
	}
	if event.Summary != "summary" {
		t.Fatalf("unexpected summary: %q", event.Summary)
	}
}

func TestWebhookTriggerUsesStoredConfigLabelAndModel(t *testing.T) {
	generator := &stubGenerator{text: "summary"}
	api, broadcaster, configs := newTestAPI(t, generator)

	err := configs.Create(context.Background(), &domain.WebhookConfig{
		ID:        "wh_news",
		Name:      "News Digest",
		AIModel:   "gemini-2.5-pro",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	recorder := triggerWebhook(t, api, "wh_news", map[string]string{"url": "https://example.com"})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", recorder.Code)
	}

	event := waitForEvent(t, subscriber)
	if event.SourceLabel != "News Digest" {
		t.Fatalf("expected stored config name as label, got %q", event.SourceLabel)
	}
}

func TestWebhookTriggerFallsBackToRawIDForUnknownWebhook(t *testing.T) {
	generator := &stubGenerator{text: "summary"}
	api, broadcaster, _ := newTestAPI(t, generator)

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	recorder := triggerWebhook(t, api, "wh_unknown", map[string]string{"url": "https://example.com"})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for unknown webhook, got %d", recorder.Code)
	}

	event := waitForEvent(t, subscriber)
	if event.SourceLabel != "wh_unknown" {
		t.Fatalf("expected raw webhook id as label, got %q", event.SourceLabel)
	}
}

func TestWebhookTriggerPublishesErrorEventOnFailure(t *testing.T) {
	generator := &stubGenerator{err: io.ErrUnexpectedEOF}
	api, broadcaster, _ := newTestAPI(t, generator)

	subscriber := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(subscriber)

	recorder := triggerWebhook(t, api, "wh_default_123", map[string]string{"url": "https://example.com"})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202 even when job will fail, got %d", recorder.Code)
	}

	event := waitForEvent(t, subscriber)
	if event.Status != domain.EventStatusError {
		t.Fatalf("expected error event, got %s", event.Status)
	}
	if !strings.HasPrefix(event.Summary, "Failed to generate summary: ") {
		t.Fatalf("unexpected error summary: %q", event.Summary)
	}
	if event.Sources == nil || len(event.Sources) != 0 {
		t.Fatalf("expected empty sources on error event, got %#v", event.Sources)
	}
}

func TestWebhookTriggerRejectsNonPost(t *testing.T) {
	api, _, _ := newTestAPI(t, &stubGenerator{text: "unused"})

	request := httptest.NewRequest(http.MethodGet, "/api/webhook/wh_default_123", nil)
	recorder := httptest.NewRecorder()
	api.WebhookTrigger(recorder, request)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}
