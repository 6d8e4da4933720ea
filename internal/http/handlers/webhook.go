package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iago/ai-webhook-back/internal/domain"
	"github.com/iago/ai-webhook-back/internal/repository"
)

type webhookTriggerRequest struct {
	URL           string `json:"url"`
	SourceLabel   string `json:"sourceLabel,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Model         string `json:"model,omitempty"`
}

// WebhookTrigger accepts a summarization trigger for a named webhook. The
// response only acknowledges acceptance; the eventual outcome reaches
// clients through the event stream.
func (api *API) WebhookTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	webhookID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/webhook/"))
	if webhookID == "" || strings.Contains(webhookID, "/") {
		writeMessage(w, http.StatusNotFound, "unknown webhook path")
		return
	}

	var request webhookTriggerRequest
	if err := decodeJSON(r, &request); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	targetURL := strings.TrimSpace(request.URL)
	if targetURL == "" {
		writeMessage(w, http.StatusBadRequest, "URL is required.")
		return
	}
	if !isValidHTTPURL(targetURL) {
		writeMessage(w, http.StatusBadRequest, "Invalid URL format provided.")
		return
	}

	sourceLabel, model := api.resolveWebhook(r.Context(), webhookID, request.SourceLabel, request.Model)

	job := domain.JobRequest{
		InputType:     domain.InputTypeURL,
		URL:           targetURL,
		Model:         model,
		CorrelationID: strings.TrimSpace(request.CorrelationID),
		SourceLabel:   sourceLabel,
	}
	go api.runJob(job)

	writeMessage(w, http.StatusAccepted, "Accepted: summarization started.")
}

// resolveWebhook picks the display label and model for a trigger. An
// explicit label in the body wins, then the stored config, then the raw
// webhook id.
func (api *API) resolveWebhook(ctx context.Context, webhookID, bodyLabel, bodyModel string) (string, string) {
	label := strings.TrimSpace(bodyLabel)
	model := strings.TrimSpace(bodyModel)

	if api.configs != nil && (label == "" || model == "") {
		config, err := api.configs.Get(ctx, webhookID)
		switch {
		case err == nil:
			if label == "" {
				label = config.Name
			}
			if model == "" {
				model = config.AIModel
			}
		case !errors.Is(err, repository.ErrNotFound):
			api.logf("webhook config lookup failed id=%s err=%v", webhookID, err)
		}
	}

	if label == "" {
		label = webhookID
	}
	return label, model
}

// runJob executes the summarization detached from the request that
// submitted it and publishes the terminal event. A panic inside the
// executor is converted into an error event instead of crashing the
// process.
func (api *API) runJob(job domain.JobRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			api.logf("job execution panicked source=%s: %v", job.SourceLabel, rec)
			api.publishOutcome(job, "", nil, fmt.Errorf("internal failure: %v", rec))
		}
	}()

	outcome, err := api.executor.Execute(context.Background(), job)
	api.publishOutcome(job, outcome.Summary, outcome.Sources, err)
}

func (api *API) publishOutcome(job domain.JobRequest, summary string, sources []domain.Source, err error) {
	event := domain.ResultEvent{
		ID:            domain.NewEventID(),
		CorrelationID: job.CorrelationID,
		SourceLabel:   job.SourceLabel,
		InputType:     job.InputType,
		URL:           job.URL,
		FileName:      job.FileName,
		Status:        domain.EventStatusSuccess,
		Summary:       summary,
		Sources:       sources,
		Timestamp:     time.Now().UnixMilli(),
	}
	if event.Sources == nil {
		event.Sources = []domain.Source{}
	}
	if err != nil {
		event.Status = domain.EventStatusError
		event.Summary = "Failed to generate summary: " + err.Error()
		event.Sources = []domain.Source{}
	}

	api.broadcaster.Publish(event)
	api.logf("published event id=%s status=%s source=%q", event.ID, event.Status, event.SourceLabel)
}

func isValidHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}
