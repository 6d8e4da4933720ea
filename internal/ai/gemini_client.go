package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrGeminiUnavailable = errors.New("gemini api key is not configured")

// TextGenerator abstracts the external AI capability so services and tests
// can swap in fakes.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error)
}

type GenerateRequest struct {
	Model      string
	Prompt     string
	InlineData []byte
	MimeType   string
	Grounding  bool
}

type GroundingWeb struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type GroundingChunk struct {
	Web *GroundingWeb `json:"web,omitempty"`
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateResult struct {
	Text            string
	GroundingChunks []GroundingChunk
	ModelID         string
	Usage           TokenUsage
}

type GeminiClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// GeminiClient calls the generateContent endpoint over plain HTTP. It never
// retries beyond transient transport and quota failures.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewGeminiClient(config GeminiClientConfig) *GeminiClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &GeminiClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (c *GeminiClient) Available() bool {
	return c.apiKey != ""
}

func (c *GeminiClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrGeminiUnavailable
	}
	if strings.TrimSpace(request.Model) == "" {
		return GenerateResult{}, errors.New("model is required")
	}
	if strings.TrimSpace(request.Prompt) == "" {
		return GenerateResult{}, errors.New("prompt is required")
	}

	parts := make([]map[string]any, 0, 2)
	parts = append(parts, map[string]any{"text": request.Prompt})
	if len(request.InlineData) > 0 {
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": request.MimeType,
				"data":      base64.StdEncoding.EncodeToString(request.InlineData),
			},
		})
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": parts},
		},
	}
	if request.Grounding {
		payload["tools"] = []map[string]any{
			{"google_search": map[string]any{}},
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal gemini payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, callErr := c.callGenerateContentAPI(ctx, request.Model, encoded)
		if callErr == nil {
			return result, nil
		}
		lastErr = callErr

		if !isRetryableProviderError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(500*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return GenerateResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown gemini error")
	}
	return GenerateResult{}, lastErr
}

func (c *GeminiClient) callGenerateContentAPI(
	ctx context.Context,
	model string,
	payload []byte,
) (GenerateResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		endpoint,
		bytes.NewReader(payload),
	)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("create gemini request: %w", err)
	}
	httpRequest.Header.Set("x-goog-api-key", c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return GenerateResult{}, fmt.Errorf("gemini timeout: %w", err)
		}
		return GenerateResult{}, fmt.Errorf("gemini transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("read gemini body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return GenerateResult{}, &providerHTTPError{
			Provider:   "gemini",
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	var raw geminiGenerateContentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return GenerateResult{}, fmt.Errorf("decode gemini response: %w", err)
	}

	text := extractGeminiText(raw)
	if strings.TrimSpace(text) == "" {
		return GenerateResult{}, errors.New("gemini response without text output")
	}

	result := GenerateResult{
		Text:    text,
		ModelID: providerFirstNonEmpty(raw.ModelVersion, model),
		Usage: TokenUsage{
			InputTokens:  raw.UsageMetadata.PromptTokenCount,
			OutputTokens: raw.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  raw.UsageMetadata.TotalTokenCount,
		},
	}
	if len(raw.Candidates) > 0 {
		result.GroundingChunks = raw.Candidates[0].GroundingMetadata.GroundingChunks
	}
	return result, nil
}

type geminiGenerateContentResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []GroundingChunk `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func extractGeminiText(response geminiGenerateContentResponse) string {
	if len(response.Candidates) == 0 {
		return ""
	}
	fragments := make([]string, 0, len(response.Candidates[0].Content.Parts))
	for _, part := range response.Candidates[0].Content.Parts {
		if strings.TrimSpace(part.Text) == "" {
			continue
		}
		fragments = append(fragments, strings.TrimSpace(part.Text))
	}
	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

func providerFirstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}
