// Command load drives the trigger endpoints against an in-process server
// and reports latency percentiles plus event delivery counts.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iago/ai-webhook-back/internal/ai"
	"github.com/iago/ai-webhook-back/internal/broadcast"
	"github.com/iago/ai-webhook-back/internal/cache"
	httpserver "github.com/iago/ai-webhook-back/internal/http"
	"github.com/iago/ai-webhook-back/internal/http/handlers"
	"github.com/iago/ai-webhook-back/internal/repository"
	"github.com/iago/ai-webhook-back/internal/service"
)

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type deliveryResult struct {
	EventsPublished int64 `json:"events_published"`
	EventsReceived  int64 `json:"events_received"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	StreamDelivery deliveryResult   `json:"stream_delivery"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server      *httptest.Server
	broadcaster *broadcast.Broadcaster
	aiCalls     *atomic.Int64
}

// fixedGenerator answers immediately so the benchmark exercises the HTTP
// and broadcast layers, not an external provider.
type fixedGenerator struct {
	calls *atomic.Int64
}

func (g *fixedGenerator) Generate(_ context.Context, _ ai.GenerateRequest) (ai.GenerateResult, error) {
	g.calls.Add(1)
	return ai.GenerateResult{
		Text: "Benchmark summary output.",
		GroundingChunks: []ai.GroundingChunk{
			{Web: &ai.GroundingWeb{URI: "https://example.com/source", Title: "Example"}},
		},
		ModelID: "benchmark",
	}, nil
}

func main() {
	triggersTotal := flag.Int("triggers-total", 300, "total webhook trigger requests")
	triggersConcurrency := flag.Int("triggers-concurrency", 24, "concurrency for webhook triggers")
	filesTotal := flag.Int("files-total", 120, "total file analysis requests")
	filesConcurrency := flag.Int("files-concurrency", 16, "concurrency for file analysis requests")
	listTotal := flag.Int("list-total", 120, "total webhook list requests")
	listConcurrency := flag.Int("list-concurrency", 20, "concurrency for webhook list requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env := startBenchmarkEnvironment()
	defer env.server.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	// One stream client stays connected for the whole run and counts what
	// it receives.
	var eventsReceived atomic.Int64
	streamCtx, stopStream := context.WithCancel(context.Background())
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		countStreamEvents(streamCtx, env.server.URL+"/api/events", &eventsReceived)
	}()

	triggerScenario := runScenario("webhook_trigger", *triggersTotal, *triggersConcurrency, func(index int) error {
		payload := map[string]any{
			"url":           fmt.Sprintf("https://example.com/articles/%d", index),
			"correlationId": fmt.Sprintf("load-%d", index),
		}
		return postJSON(client, env.server.URL+"/api/webhook/wh_bench", payload, http.StatusAccepted)
	})

	fileData := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("benchmark "), 64))
	filesScenario := runScenario("analyze_file", *filesTotal, *filesConcurrency, func(index int) error {
		payload := map[string]any{
			"fileData": fileData,
			"mimeType": "text/plain",
			"fileName": fmt.Sprintf("doc-%d.txt", index),
			"prompt":   "Summarize this document",
		}
		return postJSON(client, env.server.URL+"/api/analyze-file", payload, http.StatusAccepted)
	})

	listScenario := runScenario("webhooks_list", *listTotal, *listConcurrency, func(_ int) error {
		return getJSON(client, env.server.URL+"/api/webhooks", http.StatusOK)
	})

	// Give detached jobs a moment to publish, then detach the stream.
	waitForJobCompletion(env, int64(*triggersTotal+*filesTotal), 10*time.Second)
	time.Sleep(200 * time.Millisecond)
	stopStream()
	<-streamDone

	results := []scenarioResult{triggerScenario, filesScenario, listScenario}
	slo := map[string]bool{
		"trigger_ack_p95_le_250ms":      triggerScenario.P95MS <= 250,
		"analyze_file_ack_p95_le_250ms": filesScenario.P95MS <= 250,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		StreamDelivery: deliveryResult{
			EventsPublished: env.aiCalls.Load(),
			EventsReceived:  eventsReceived.Load(),
		},
		SLOEvaluation: slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}
	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}
	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() *benchmarkEnv {
	logger := log.New(io.Discard, "", 0)

	var aiCalls atomic.Int64
	configs := repository.NewMemoryConfigsRepository()
	broadcaster := broadcast.New(broadcast.Config{
		HistoryCap:       20,
		SubscriberBuffer: 4096,
		Logger:           logger,
	})
	executor := service.NewSummarizeService(service.SummarizeDependencies{
		Client: &fixedGenerator{calls: &aiCalls},
		Cache:  cache.NewSummaryCache(cache.Config{MaxEntries: 1}),
		Logger: logger,
	})
	api := handlers.NewAPI(handlers.APIDependencies{
		Configs:           configs,
		Executor:          executor,
		Broadcaster:       broadcaster,
		Logger:            logger,
		KeepaliveInterval: time.Minute,
	})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	return &benchmarkEnv{
		server:      httptest.NewServer(router),
		broadcaster: broadcaster,
		aiCalls:     &aiCalls,
	}
}

func waitForJobCompletion(env *benchmarkEnv, expected int64, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if env.aiCalls.Load() >= expected {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func countStreamEvents(ctx context.Context, url string, counter *atomic.Int64) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return
	}
	defer response.Body.Close()

	reader := bufio.NewReader(response.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		if strings.HasPrefix(line, "data: ") {
			counter.Add(1)
		}
	}
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(client *http.Client, url string, payload any, expectedStatus int) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
