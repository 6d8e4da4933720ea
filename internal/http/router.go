package httpserver

import (
	"log"
	"net/http"

	"github.com/iago/ai-webhook-back/internal/http/handlers"
	"github.com/iago/ai-webhook-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/api/webhook/", deps.API.WebhookTrigger)
	mux.HandleFunc("/api/analyze-file", deps.API.AnalyzeFile)
	mux.HandleFunc("/api/events", deps.API.Events)
	mux.HandleFunc("/api/webhooks", deps.API.Webhooks)
	mux.HandleFunc("/api/webhooks/", deps.API.WebhookByID)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
