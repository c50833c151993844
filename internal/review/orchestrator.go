// Package review drives the pull-request review pipeline: fetch the PR's
// files, analyze each changed file with retrieved context, validate findings
// against the diff, and post the surviving comments.
package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/analyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/chunker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/comments"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/embedding"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/gitrepo"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/provider"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/retrieval"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/store"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// analysisConcurrency bounds concurrent file analyses within one job.
const analysisConcurrency = 4

// Deps collects the orchestrator's collaborators. Explicit dependencies
// keep the pipeline testable with fakes; there are no package-level
// singletons.
type Deps struct {
	Store     store.Store
	Host      provider.Host
	Git       *gitrepo.Adapter
	Retriever *retrieval.Retriever
	Analyzer  *analyzer.Analyzer
	Comments  *comments.Manager
	Embedder  *embedding.Service
}

// Orchestrator runs pr_review jobs.
type Orchestrator struct {
	deps  Deps
	cfg   config.ReviewConfig
	cache *JobCache
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(deps Deps, cfg config.ReviewConfig) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		cfg:   cfg,
		cache: NewJobCache(cfg.JobCacheTTL),
	}
}

// Process runs one pr_review job end to end. Identical jobs within the
// cache TTL return the cached result without touching the LLM.
func (o *Orchestrator) Process(ctx context.Context, job types.Job) (*types.ReviewResult, error) {
	timer := logging.StartTimer(logging.CategoryReview, "Process")
	defer timer.Stop()

	key := Key(job.RepoID, job.PRNumber, job.CommitSHA)
	if cached, ok := o.cache.Get(key); ok {
		logging.Review("job %s served from cache", key)
		return cached, nil
	}

	result, err := o.run(ctx, job)
	if err != nil {
		return nil, err
	}
	o.cache.Put(key, result)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, job types.Job) (*types.ReviewResult, error) {
	repo, err := o.deps.Store.GetRepositoryWithStringID(ctx, job.RepoID)
	if err != nil {
		return nil, err
	}

	// Informational probe; a dead embedding service degrades retrieval but
	// does not block the review.
	if o.deps.Embedder != nil {
		if probeErr := o.deps.Embedder.Probe(ctx); probeErr != nil {
			logging.Get(logging.CategoryReview).Warn("embedding probe failed: %v", probeErr)
		}
	}

	if err := o.deps.Store.CreatePullRequestReview(ctx, store.ReviewRecord{
		ID:           uuid.NewString(),
		RepositoryID: job.RepoID,
		PRNumber:     job.PRNumber,
		CommitSHA:    job.CommitSHA,
		PRTitle:      job.PRTitle,
		PRURL:        job.PRURL,
		UserID:       job.UserID,
	}); err != nil {
		return nil, fmt.Errorf("create review record: %w", err)
	}

	gitRepo, cloneDir, release, err := o.deps.Git.Clone(ctx, repo.CloneURL, false)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := o.deps.Git.Checkout(gitRepo, job.CommitSHA); err != nil {
		return nil, err
	}

	if job.BaseSHA != "" {
		if summary, diffErr := o.deps.Git.ChangedFiles(gitRepo, job.BaseSHA, job.CommitSHA); diffErr == nil {
			logging.Review("PR #%d: %d files changed, +%d -%d",
				job.PRNumber, len(summary.Files), summary.Additions, summary.Deletions)
		}
	}

	prFiles, err := o.deps.Host.ListPullRequestFiles(ctx, job.Owner, job.Repo, job.PRNumber)
	if err != nil {
		return nil, err
	}
	if len(prFiles) == 0 {
		logging.Review("PR #%d has no files, nothing to review", job.PRNumber)
		return &types.ReviewResult{CommitSHA: job.CommitSHA}, nil
	}

	files := o.buildProcessedFiles(ctx, job, prFiles)
	if len(files) == 0 {
		return &types.ReviewResult{CommitSHA: job.CommitSHA}, nil
	}

	allComments := o.analyzeFiles(ctx, job, cloneDir, files)

	deduped, err := o.deps.Comments.Dedup(ctx, job.Owner, job.Repo, job.PRNumber, allComments)
	if err != nil {
		logging.Get(logging.CategoryReview).Warn("dedup failed, posting unfiltered: %v", err)
		deduped = allComments
	}
	validated := o.deps.Comments.Validate(deduped, files)

	summary := o.deps.Comments.Summary(validated, len(files))
	posted, err := o.deps.Comments.Post(ctx, job.Owner, job.Repo, job.PRNumber, job.CommitSHA, validated, summary)
	if err != nil {
		return nil, fmt.Errorf("post review: %w", err)
	}

	return &types.ReviewResult{
		CommentsPosted: posted,
		FilesReviewed:  len(files),
		Summary:        summary,
		CommitSHA:      job.CommitSHA,
	}, nil
}

// buildProcessedFiles converts the provider file listing into analyzable
// ProcessedFiles, applying skip patterns and rejecting files without valid
// diff positions.
func (o *Orchestrator) buildProcessedFiles(ctx context.Context, job types.Job, prFiles []provider.PullRequestFile) map[string]*diffanalyzer.ProcessedFile {
	files := make(map[string]*diffanalyzer.ProcessedFile)
	for _, pf := range prFiles {
		if o.shouldSkip(pf.Filename) {
			logging.ReviewDebug("skipping %s: matches skip pattern", pf.Filename)
			continue
		}
		if pf.Status == "removed" {
			continue // deletions are not commentable
		}

		content, err := o.deps.Host.GetFileContent(ctx, job.Owner, job.Repo, pf.Filename, job.CommitSHA)
		if err != nil {
			logging.Get(logging.CategoryReview).Warn("content of %s: %v", pf.Filename, err)
			continue
		}
		var original string
		if job.BaseSHA != "" && pf.Status != "added" {
			original, _ = o.deps.Host.GetFileContent(ctx, job.Owner, job.Repo, pf.Filename, job.BaseSHA)
		}

		language, _ := chunker.LanguageForFile(pf.Filename)
		processed := diffanalyzer.BuildProcessedFile(
			pf.Filename, content, original, pf.Patch, language,
			pf.Status == "added", pf.Status == "removed")
		if processed == nil {
			continue
		}
		files[pf.Filename] = processed
	}
	return files
}

// analyzeFiles runs retrieval + LLM analysis per file with bounded
// concurrency. A failure in one file logs and continues; it never cancels
// siblings.
func (o *Orchestrator) analyzeFiles(ctx context.Context, job types.Job, cloneDir string, files map[string]*diffanalyzer.ProcessedFile) []types.ReviewComment {
	var (
		mu          sync.Mutex
		allComments []types.ReviewComment
	)

	g := &errgroup.Group{}
	g.SetLimit(analysisConcurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			contexts, err := o.deps.Retriever.RetrieveForFile(ctx, job.RepoID, cloneDir, f)
			if err != nil {
				logging.Get(logging.CategoryReview).Warn("retrieval for %s: %v", f.Path, err)
			}

			result, err := o.deps.Analyzer.AnalyzeFile(ctx, f, contexts)
			if err != nil {
				logging.Get(logging.CategoryReview).Warn("analysis of %s: %v", f.Path, err)
				return nil
			}

			corrected := o.correctFindings(f, result.Issues)
			fileComments := o.deps.Comments.Convert(f, corrected)
			if len(fileComments) > o.cfg.MaxCommentsPerFile {
				fileComments = fileComments[:o.cfg.MaxCommentsPerFile]
			}

			mu.Lock()
			allComments = append(allComments, fileComments...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return allComments
}

// correctFindings applies the line-correction policy, dropping findings
// that cannot be mapped onto the diff.
func (o *Orchestrator) correctFindings(f *diffanalyzer.ProcessedFile, findings []types.ReviewFinding) []types.ReviewFinding {
	cfg := diffanalyzer.CorrectionConfig{
		MaxCorrectionDistance: o.cfg.MaxCorrectionDistance,
		PreferChangedLines:    o.cfg.PreferChangedLines,
	}
	var kept []types.ReviewFinding
	for _, finding := range findings {
		line, ok := f.CorrectLine(finding.Line, cfg)
		if !ok {
			continue
		}
		finding.Line = line
		kept = append(kept, finding)
	}
	return kept
}

// shouldSkip matches a path against the configured glob skip patterns.
func (o *Orchestrator) shouldSkip(path string) bool {
	for _, pattern := range o.cfg.SkipPatterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
