package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/iago/ai-webhook-back/internal/ai"
	"github.com/iago/ai-webhook-back/internal/cache"
	"github.com/iago/ai-webhook-back/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

type SummarizeDependencies struct {
	Client       ai.TextGenerator
	Cache        *cache.SummaryCache
	DefaultModel string
	Logger       *log.Logger
}

// JobOutcome is the normalized successful result of an executor run.
type JobOutcome struct {
	Summary string
	Sources []domain.Source
}

// SummarizeService invokes the external AI capability for URL and file jobs.
// It is stateless apart from the read-through summary cache and safe for
// concurrent use; retry policy lives in the client, never here.
type SummarizeService struct {
	client       ai.TextGenerator
	cache        *cache.SummaryCache
	defaultModel string
	logger       *log.Logger
}

func NewSummarizeService(deps SummarizeDependencies) *SummarizeService {
	if deps.Cache == nil {
		deps.Cache = cache.NewSummaryCache(cache.Config{})
	}
	if strings.TrimSpace(deps.DefaultModel) == "" {
		deps.DefaultModel = defaultModel
	}
	return &SummarizeService{
		client:       deps.Client,
		cache:        deps.Cache,
		defaultModel: deps.DefaultModel,
		logger:       deps.Logger,
	}
}

// Execute dispatches a job to the URL or file path based on its input type.
func (s *SummarizeService) Execute(ctx context.Context, job domain.JobRequest) (JobOutcome, error) {
	if job.InputType == domain.InputTypeFile {
		return s.AnalyzeFile(ctx, job)
	}
	return s.SummarizeURL(ctx, job)
}

// SummarizeURL summarizes the content behind a URL with web grounding
// enabled. Grounding citations are filtered to non-empty URIs and
// deduplicated by URI, keeping the first-seen title.
func (s *SummarizeService) SummarizeURL(ctx context.Context, job domain.JobRequest) (JobOutcome, error) {
	model := s.resolveModel(job.Model)

	signature := s.cache.BuildSignature("url", model, job.URL)
	if entry, ok := s.cache.Get(signature); ok {
		s.logf("summary cache hit url=%s model=%s", job.URL, model)
		return JobOutcome{Summary: entry.Summary, Sources: entry.Sources}, nil
	}

	prompt := fmt.Sprintf("Please provide a concise summary of the content found at this URL: %s", job.URL)
	result, err := s.client.Generate(ctx, ai.GenerateRequest{
		Model:     model,
		Prompt:    prompt,
		Grounding: true,
	})
	if err != nil {
		return JobOutcome{}, err
	}

	sources := NormalizeSources(result.GroundingChunks)
	s.cache.Set(signature, cache.Entry{
		Summary: result.Text,
		Sources: sources,
		ModelID: result.ModelID,
	})

	return JobOutcome{Summary: result.Text, Sources: sources}, nil
}

// AnalyzeFile sends the decoded file payload together with the caller's
// instruction prompt. File analysis never produces grounding citations.
func (s *SummarizeService) AnalyzeFile(ctx context.Context, job domain.JobRequest) (JobOutcome, error) {
	result, err := s.client.Generate(ctx, ai.GenerateRequest{
		Model:      s.resolveModel(job.Model),
		Prompt:     job.Prompt,
		InlineData: job.FileData,
		MimeType:   job.MimeType,
	})
	if err != nil {
		return JobOutcome{}, err
	}
	return JobOutcome{Summary: result.Text, Sources: []domain.Source{}}, nil
}

// NormalizeSources maps grounding chunks to the flat source shape: entries
// without a URI are dropped, the title defaults to the URI, and duplicates
// keep the first occurrence.
func NormalizeSources(chunks []ai.GroundingChunk) []domain.Source {
	sources := make([]domain.Source, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		if chunk.Web == nil {
			continue
		}
		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" {
			continue
		}
		if _, exists := seen[uri]; exists {
			continue
		}
		seen[uri] = struct{}{}

		title := strings.TrimSpace(chunk.Web.Title)
		if title == "" {
			title = uri
		}
		sources = append(sources, domain.Source{URI: uri, Title: title})
	}
	return sources
}

func (s *SummarizeService) resolveModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return s.defaultModel
	}
	return strings.TrimSpace(model)
}

func (s *SummarizeService) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
