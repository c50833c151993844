// Package analyzer runs the LLM over prepared files and returns
// schema-validated review findings. Calls are admission-gated by the
// circuit breaker and retried with capped exponential backoff.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/breaker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/retry"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// OverloadSkippedSummary is the sentinel summary returned when the breaker
// is open or the provider stayed overloaded through all retries.
const OverloadSkippedSummary = "analysis skipped: provider overloaded"

// Client generates schema-constrained JSON for a prompt. Implementations
// wrap a concrete LLM API.
type Client interface {
	GenerateReview(ctx context.Context, prompt string) (string, error)
}

// Analyzer drives LLM analysis of processed files.
type Analyzer struct {
	client      Client
	breaker     *breaker.Breaker
	policy      retry.Policy
	callTimeout time.Duration
}

// New wires an Analyzer.
func New(client Client, brk *breaker.Breaker, cfg config.LLMConfig) *Analyzer {
	return &Analyzer{
		client:  client,
		breaker: brk,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Jitter:      cfg.Jitter,
		},
		callTimeout: cfg.CallTimeout,
	}
}

// AnalyzeFile reviews one file with its retrieved context. When the breaker
// is open, or the provider stays overloaded through all attempts, the
// result carries the overload sentinel and no issues; the caller continues
// with partial coverage.
func (a *Analyzer) AnalyzeFile(ctx context.Context, f *diffanalyzer.ProcessedFile, contexts []types.CodeContext) (*types.AnalysisResult, error) {
	timer := logging.StartTimer(logging.CategoryAnalyzer, "AnalyzeFile")
	defer timer.Stop()

	if !a.breaker.CanExecute() {
		logging.Analyzer("breaker open, skipping analysis of %s", f.Path)
		return &types.AnalysisResult{Summary: OverloadSkippedSummary}, nil
	}

	prompt := BuildPrompt(f, contexts)
	logging.AnalyzerDebug("analyzing %s (prompt %d bytes, %d contexts)", f.Path, len(prompt), len(contexts))

	raw, err := retry.DoValue(ctx, a.policy, func(ctx context.Context) (string, error) {
		callCtx := ctx
		if a.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.callTimeout)
			defer cancel()
		}
		return a.client.GenerateReview(callCtx, prompt)
	})
	if err != nil {
		overload := breaker.IsOverloadError(err)
		a.breaker.RecordFailure(overload)
		if overload {
			logging.Get(logging.CategoryAnalyzer).Warn("overload analyzing %s: %v", f.Path, err)
			return &types.AnalysisResult{Summary: OverloadSkippedSummary}, nil
		}
		return nil, fmt.Errorf("analyze %s: %w", f.Path, err)
	}
	a.breaker.RecordSuccess()

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("analyze %s: malformed model output: %w", f.Path, err)
	}
	logging.Analyzer("%s: %d issues", f.Path, len(result.Issues))
	return &result, nil
}

// =============================================================================
// GEMINI CLIENT
// =============================================================================

// GeminiClient implements Client over Google's GenAI API with a response
// schema, so the model output is JSON by construction.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates the production client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// GenerateReview runs one schema-constrained generation call.
func (c *GeminiClient) GenerateReview(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   reviewSchema(),
		})
	latency := time.Since(start)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("GenerateContent failed after %v: %v", latency, err)
		return "", fmt.Errorf("generate content: %w", err)
	}
	logging.APIDebug("GenerateContent completed in %v", latency)

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("generate content: empty response")
	}
	return text, nil
}
