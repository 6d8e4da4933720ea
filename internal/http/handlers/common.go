package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/iago/ai-webhook-back/internal/broadcast"
	"github.com/iago/ai-webhook-back/internal/http/middleware"
	"github.com/iago/ai-webhook-back/internal/repository"
	"github.com/iago/ai-webhook-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

const (
	defaultMaxFileBytes      = 10 << 20
	defaultKeepaliveInterval = 30 * time.Second

	// Label attached to ad-hoc file analysis events, which have no webhook
	// configuration behind them.
	fileAnalysisLabel = "File Analysis"
)

type APIDependencies struct {
	Configs           repository.ConfigsRepository
	Executor          *service.SummarizeService
	Broadcaster       *broadcast.Broadcaster
	Logger            *log.Logger
	MaxFileBytes      int
	KeepaliveInterval time.Duration
}

type API struct {
	configs           repository.ConfigsRepository
	executor          *service.SummarizeService
	broadcaster       *broadcast.Broadcaster
	logger            *log.Logger
	maxFileBytes      int
	keepaliveInterval time.Duration
}

func NewAPI(deps APIDependencies) *API {
	if deps.MaxFileBytes <= 0 {
		deps.MaxFileBytes = defaultMaxFileBytes
	}
	if deps.KeepaliveInterval <= 0 {
		deps.KeepaliveInterval = defaultKeepaliveInterval
	}
	return &API{
		configs:           deps.Configs,
		executor:          deps.Executor,
		broadcaster:       deps.Broadcaster,
		logger:            deps.Logger,
		maxFileBytes:      deps.MaxFileBytes,
		keepaliveInterval: deps.KeepaliveInterval,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

// writeMessage emits the flat {message} payload used by the public trigger
// endpoints, matching what the extension and webhook callers expect.
func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"message": message})
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// writeError emits the structured error payload used by the management
// endpoints.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

func (api *API) logf(format string, args ...any) {
	if api.logger != nil {
		api.logger.Printf(format, args...)
	}
}
