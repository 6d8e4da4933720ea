package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/iago/ai-webhook-back/internal/domain"
)

type analyzeFileRequest struct {
	FileData      string `json:"fileData"`
	MimeType      string `json:"mimeType"`
	FileName      string `json:"fileName"`
	Prompt        string `json:"prompt"`
	SourceLabel   string `json:"sourceLabel,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Model         string `json:"model,omitempty"`
}

// AnalyzeFile accepts an ad-hoc file analysis job. Like the webhook
// trigger, it acknowledges immediately and publishes the outcome through
// the event stream.
func (api *API) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var request analyzeFileRequest
	if err := decodeJSON(r, &request); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if strings.TrimSpace(request.FileData) == "" {
		writeMessage(w, http.StatusBadRequest, "fileData is required.")
		return
	}
	if strings.TrimSpace(request.MimeType) == "" {
		writeMessage(w, http.StatusBadRequest, "mimeType is required.")
		return
	}
	if strings.TrimSpace(request.Prompt) == "" {
		writeMessage(w, http.StatusBadRequest, "prompt is required.")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(request.FileData)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "fileData must be valid base64.")
		return
	}
	if len(decoded) > api.maxFileBytes {
		writeMessage(w, http.StatusBadRequest, "file exceeds the maximum allowed size.")
		return
	}

	sourceLabel := strings.TrimSpace(request.SourceLabel)
	if sourceLabel == "" {
		sourceLabel = fileAnalysisLabel
	}

	job := domain.JobRequest{
		InputType:     domain.InputTypeFile,
		FileData:      decoded,
		MimeType:      strings.TrimSpace(request.MimeType),
		FileName:      strings.TrimSpace(request.FileName),
		Prompt:        request.Prompt,
		Model:         strings.TrimSpace(request.Model),
		CorrelationID: strings.TrimSpace(request.CorrelationID),
		SourceLabel:   sourceLabel,
	}
	go api.runJob(job)

	writeMessage(w, http.StatusAccepted, "Accepted: file analysis started.")
}
