package nlphttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/infrastructure/resilience"
)

const (
	pathWordFrequency    = "/api/analyze/word-frequency"
	pathTimeline         = "/api/analyze/timeline"
	pathGeographic       = "/api/analyze/geographic"
	pathSummary          = "/api/analyze/summary"
	pathMultidimensional = "/api/analyze/multidimensional"
	pathHealth           = "/api/health"
)

// Client talks to the NLP engine over its JSON HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	// Timeout bounds one HTTP exchange. The analysis deadline is carried by ctx.
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type analyzeRequest struct {
	Text         string `json:"text"`
	TopN         int    `json:"top_n,omitempty"`
	MinLength    int    `json:"min_length,omitempty"`
	Type         string `json:"type,omitempty"`
	MaxSentences int    `json:"max_sentences,omitempty"`
}

func (c *Client) AnalyzeWordFrequency(ctx context.Context, text string, maxResults, minLength int) (json.RawMessage, error) {
	if maxResults <= 0 {
		maxResults = domain.DefaultMaxResults
	}
	if minLength <= 0 {
		minLength = domain.DefaultMinWordLength
	}
	return c.analyze(ctx, "word_frequency", pathWordFrequency, analyzeRequest{Text: text, TopN: maxResults, MinLength: minLength})
}

func (c *Client) AnalyzeTimeline(ctx context.Context, text string) (json.RawMessage, error) {
	return c.analyze(ctx, "timeline", pathTimeline, analyzeRequest{Text: text})
}

func (c *Client) AnalyzeGeographic(ctx context.Context, text string) (json.RawMessage, error) {
	return c.analyze(ctx, "geographic", pathGeographic, analyzeRequest{Text: text})
}

func (c *Client) AnalyzeSummary(ctx context.Context, text, summaryType string, maxSentences int) (json.RawMessage, error) {
	if strings.TrimSpace(summaryType) == "" {
		summaryType = domain.DefaultSummaryType
	}
	if maxSentences <= 0 {
		maxSentences = domain.DefaultSummarySentences
	}
	return c.analyze(ctx, "summary", pathSummary, analyzeRequest{Text: text, Type: summaryType, MaxSentences: maxSentences})
}

func (c *Client) AnalyzeMultidimensional(ctx context.Context, text string) (json.RawMessage, error) {
	return c.analyze(ctx, "multidimensional", pathMultidimensional, analyzeRequest{Text: text})
}

// Health succeeds when the engine answers its health endpoint with 2xx.
func (c *Client) Health(ctx context.Context) error {
	err := c.getStatus(ctx, pathHealth, "health")
	if err != nil {
		return domain.WrapError(domain.ErrExternalService, "nlp health", wrapTemporaryIfNeeded("nlp health", err))
	}
	return nil
}

func (c *Client) analyze(ctx context.Context, operation, path string, request analyzeRequest) (json.RawMessage, error) {
	data, err := resilience.Call(ctx, c.executor, "nlp."+operation, func(callCtx context.Context) (json.RawMessage, error) {
		return c.postEnvelope(callCtx, path, request, operation)
	}, classifyNLPError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("nlp "+operation, err)
	}
	return data, nil
}
