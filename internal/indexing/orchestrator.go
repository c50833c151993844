// Package indexing drives the repository indexing pipeline: clone, chunk,
// extract relationships, enhance, embed, persist. Initial jobs index the
// whole tree; incremental jobs index only the files changed since the
// previous commit, falling back to a full pass when history is unavailable.
package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/chunker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/embedding"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/gitrepo"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/graph"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/metrics"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/store"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// Deps collects the indexing orchestrator's collaborators.
type Deps struct {
	Store    store.Store
	Git      *gitrepo.Adapter
	Chunker  *chunker.Chunker
	Embedder *embedding.Service
	Graphs   *graph.Cache
}

// Orchestrator runs indexing jobs.
type Orchestrator struct {
	deps Deps
	cfg  config.IndexingConfig
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(deps Deps, cfg config.IndexingConfig) *Orchestrator {
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Process runs one indexing job. The repository record's status always
// reaches a terminal state, and the clone directory is removed on every
// exit path.
func (o *Orchestrator) Process(ctx context.Context, job types.Job) (result *types.IndexingResult, err error) {
	timer := logging.StartTimer(logging.CategoryIndexing, "Process")
	defer timer.Stop()

	defer func() {
		if err != nil {
			if statusErr := o.deps.Store.UpdateIndexingStatus(ctx, job.RepoID, types.StatusFailed, err.Error()); statusErr != nil {
				logging.Get(logging.CategoryIndexing).Error("status update failed: %v", statusErr)
			}
		}
	}()

	repo, err := o.deps.Store.GetRepositoryWithStringID(ctx, job.RepoID)
	if err != nil {
		return nil, err
	}
	if err = o.deps.Store.UpdateIndexingStatus(ctx, job.RepoID, types.StatusPending, ""); err != nil {
		return nil, err
	}

	mode := job.IndexMode
	shallow := mode == types.IndexInitial

	gitRepo, cloneDir, release, err := o.deps.Git.Clone(ctx, repo.CloneURL, shallow)
	if err != nil {
		return nil, err
	}
	defer release()

	headCommit, err := o.deps.Git.HeadCommit(gitRepo)
	if err != nil {
		return nil, err
	}
	logging.Indexing("indexing %s at %s (mode=%s)", job.RepoID, headCommit, mode)

	var filesToProcess []string
	var filesToDelete []string

	if mode == types.IndexIncremental {
		beforeSHA, parentErr := o.deps.Git.ParentCommit(gitRepo, headCommit)
		if parentErr != nil {
			logging.Get(logging.CategoryIndexing).Warn(
				"previous commit unavailable (%v), falling back to full index", parentErr)
			mode = types.IndexInitial
		} else {
			summary, diffErr := o.deps.Git.ChangedFiles(gitRepo, beforeSHA, headCommit)
			if diffErr != nil {
				logging.Get(logging.CategoryIndexing).Warn(
					"diff %s..%s failed (%v), falling back to full index", beforeSHA, headCommit, diffErr)
				mode = types.IndexInitial
			} else {
				for _, change := range summary.Files {
					switch change.Status {
					case gitrepo.ChangeDeleted:
						filesToDelete = append(filesToDelete, change.Path)
					case gitrepo.ChangeRenamed:
						filesToDelete = append(filesToDelete, change.OldPath)
						if ShouldProcessFile(change.Path) {
							filesToProcess = append(filesToProcess, change.Path)
						}
					default:
						if ShouldProcessFile(change.Path) {
							filesToProcess = append(filesToProcess, change.Path)
						}
					}
				}
			}
		}
	}

	if mode == types.IndexInitial {
		filesToProcess, err = WalkRepository(cloneDir)
		if err != nil {
			return nil, fmt.Errorf("walk repository: %w", err)
		}
		filesToDelete = nil
	}

	for _, path := range filesToDelete {
		if delErr := o.deps.Store.DeleteEmbeddingsForFile(ctx, job.RepoID, path); delErr != nil {
			logging.Get(logging.CategoryIndexing).Warn("delete embeddings for %s: %v", path, delErr)
		}
	}

	processed := o.processFiles(ctx, job, cloneDir, headCommit, mode, filesToProcess)

	if err = o.deps.Store.UpdateLastIndexedCommit(ctx, job.RepoID, headCommit); err != nil {
		return nil, err
	}
	if err = o.deps.Store.UpdateIndexingStatus(ctx, job.RepoID, types.StatusIndexed, ""); err != nil {
		return nil, err
	}

	o.deps.Graphs.Clear(job.RepoID)
	logging.Indexing("indexed %s: %d files processed, %d deleted", job.RepoID, processed, len(filesToDelete))
	return &types.IndexingResult{
		FilesProcessed: processed,
		FilesDeleted:   len(filesToDelete),
		CommitSHA:      headCommit,
	}, nil
}

// processFiles runs the per-file pipeline over batches with bounded
// parallelism. A failure in one file logs and continues; it never cancels
// siblings. Returns the number of files fully processed.
func (o *Orchestrator) processFiles(ctx context.Context, job types.Job, cloneDir, commitSHA string, mode types.IndexingMode, files []string) int {
	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	var (
		mu        sync.Mutex
		processed int
	)

	for start := 0; start < len(files); start += batchSize {
		end := start + batchSize
		if end > len(files) {
			end = len(files)
		}

		g := &errgroup.Group{}
		g.SetLimit(batchSize)
		for _, path := range files[start:end] {
			path := path
			g.Go(func() error {
				if fileErr := o.processFile(ctx, job, cloneDir, commitSHA, mode, path); fileErr != nil {
					logging.Get(logging.CategoryIndexing).Warn("file %s: %v", path, fileErr)
					return nil // swallow; siblings continue
				}
				mu.Lock()
				processed++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return processed
}

// processFile runs one file through parse -> relationships -> enhance ->
// embed -> persist.
func (o *Orchestrator) processFile(ctx context.Context, job types.Job, cloneDir, commitSHA string, mode types.IndexingMode, path string) error {
	fullPath := filepath.Join(cloneDir, filepath.FromSlash(path))
	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if info.Size() > o.maxFileSize() {
		logging.IndexingDebug("skipping %s: %d bytes exceeds cap", path, info.Size())
		return fmt.Errorf("file exceeds size cap (%d bytes)", info.Size())
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	if mode == types.IndexIncremental {
		if err := o.deps.Store.DeleteEmbeddingsForFile(ctx, job.RepoID, path); err != nil {
			return fmt.Errorf("delete stale embeddings: %w", err)
		}
	}

	chunks, err := o.deps.Chunker.ParseFile(ctx, path, content)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}

	rels, err := o.deps.Chunker.ExtractRelationships(ctx, path, content)
	if err != nil {
		return fmt.Errorf("relationships: %w", err)
	}
	for _, rel := range rels {
		if err := o.deps.Store.StoreCodeRelationship(ctx, job.RepoID, commitSHA, rel); err != nil {
			return fmt.Errorf("store relationship: %w", err)
		}
	}

	// Per-file dependency view, built from this file's relationships only.
	fileGraph := graph.New()
	for _, rel := range rels {
		fileGraph.AddRelationship(rel)
	}

	for _, chunk := range chunks {
		var deps, dependents []string
		if chunk.SymbolName != "" {
			for _, n := range fileGraph.FindDependencies(path, chunk.SymbolName, 1) {
				if n.SymbolName != "" {
					deps = append(deps, n.SymbolName)
				}
			}
			for _, n := range fileGraph.FindDependents(path, chunk.SymbolName, 1) {
				if n.SymbolName != "" {
					dependents = append(dependents, n.SymbolName)
				}
			}
		}
		enhanced := metrics.Enhance(chunk, path, commitSHA, deps, dependents)

		results, err := o.deps.Embedder.Generate(ctx, path, chunk.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s:%d: %w", path, chunk.StartLine, err)
		}
		if results == nil {
			continue // skip-policy rejection
		}

		for _, r := range results {
			if err := o.deps.Store.StoreEmbedding(ctx, store.ChunkRecord{
				RepositoryID: job.RepoID,
				CommitSHA:    commitSHA,
				FilePath:     path,
				Chunk:        enhanced,
				Embedding:    r.Vector,
				ChunkIndex:   r.ChunkIndex,
				TotalChunks:  r.Total,
			}); err != nil {
				return fmt.Errorf("store embedding: %w", err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) maxFileSize() int64 {
	if o.cfg.MaxFileSize > 0 {
		return o.cfg.MaxFileSize
	}
	return 1 << 20
}
