// Package embedding generates vector embeddings for code chunks. It applies
// a skip policy for non-embeddable content, splits oversized text into
// overlapping windows, and retries transient provider failures with
// exponential backoff.
package embedding

import (
	"context"
	"fmt"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/retry"
)

// Provider generates a single embedding vector. Implementations wrap a
// concrete embeddings API.
type Provider interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
	Name() string
}

// Result is one embedded window of an input text. ChunkIndex and Total are
// zero when the input fit in a single window.
type Result struct {
	Vector     []float32
	ChunkIndex int
	Total      int
	Text       string
}

// Service applies the skip policy and window chunking around a Provider.
type Service struct {
	provider Provider
	model    string
	maxChars int
	overlap  int
	policy   retry.Policy
	skip     *SkipPolicy
}

// NewService wires a Service from configuration.
func NewService(provider Provider, cfg config.EmbeddingConfig) *Service {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 24000 // ~8000 tokens at ~3 chars/token
	}
	overlap := cfg.ChunkOverlap
	if overlap <= 0 {
		overlap = 500
	}
	return &Service{
		provider: provider,
		model:    cfg.Model,
		maxChars: maxChars,
		overlap:  overlap,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.BaseDelay,
		},
		skip: NewSkipPolicy(),
	}
}

// Generate embeds a text. Returns (nil, nil) when the skip policy rejects
// the input; otherwise a non-empty ordered result list. A failure on the
// final retry attempt propagates.
func (s *Service) Generate(ctx context.Context, filename, text string) ([]Result, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Generate")
	defer timer.Stop()

	if reason := s.skip.Check(filename, text); reason != "" {
		logging.EmbeddingDebug("skipping %s: %s", filename, reason)
		return nil, nil
	}

	windows := SplitWindows(text, s.maxChars, s.overlap)
	results := make([]Result, 0, len(windows))

	for i, window := range windows {
		vector, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) ([]float32, error) {
			return s.provider.Embed(ctx, s.model, window)
		})
		if err != nil {
			return nil, fmt.Errorf("embed %s window %d/%d: %w", filename, i+1, len(windows), err)
		}
		r := Result{Vector: vector, Text: window}
		if len(windows) > 1 {
			r.ChunkIndex = i
			r.Total = len(windows)
		}
		results = append(results, r)
	}

	logging.EmbeddingDebug("embedded %s: %d windows via %s", filename, len(results), s.provider.Name())
	return results, nil
}

// Probe checks provider availability with a trivial embed call. Used by the
// review orchestrator as an informational health check.
func (s *Service) Probe(ctx context.Context) error {
	_, err := s.provider.Embed(ctx, s.model, "ping")
	return err
}

// SplitWindows slices text into maxChars-sized sliding windows with the
// given overlap. The final window extends to the end of the text.
func SplitWindows(text string, maxChars, overlap int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	step := maxChars - overlap
	if step <= 0 {
		step = maxChars
	}
	var windows []string
	for start := 0; start < len(text); start += step {
		end := start + maxChars
		if end >= len(text) {
			windows = append(windows, text[start:])
			break
		}
		windows = append(windows, text[start:end])
	}
	return windows
}
