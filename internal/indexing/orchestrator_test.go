package indexing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/chunker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/embedding"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/gitrepo"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/graph"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/store"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// memStore records persisted chunks and relationships.
type memStore struct {
	mu       sync.Mutex
	chunks   []store.ChunkRecord
	rels     []types.CodeRelationship
	deleted  []string
	statuses []types.IndexingStatus
}

func (m *memStore) StoreEmbedding(ctx context.Context, rec store.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, rec)
	return nil
}
func (m *memStore) StoreCodeRelationship(ctx context.Context, repoID, sha string, rel types.CodeRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels = append(m.rels, rel)
	return nil
}
func (m *memStore) DeleteEmbeddingsForFile(ctx context.Context, repoID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}
func (m *memStore) SearchSimilarCode(ctx context.Context, q store.SearchQuery) ([]types.SearchResult, error) {
	return nil, nil
}
func (m *memStore) SearchSemanticSimilarity(ctx context.Context, q store.SearchQuery) ([]types.SearchResult, error) {
	return nil, nil
}
func (m *memStore) GetEnhancedChunkMetadataForFile(ctx context.Context, repoID, path string) ([]types.EnhancedChunk, error) {
	return nil, nil
}
func (m *memStore) GetSymbolMetadata(ctx context.Context, repoID, symbol string) (*types.EnhancedChunk, error) {
	return nil, nil
}
func (m *memStore) GetRelationshipsForRepository(ctx context.Context, repoID string) ([]types.CodeRelationship, error) {
	return nil, nil
}
func (m *memStore) GetRepositoryWithStringID(ctx context.Context, repoID string) (*types.Repository, error) {
	return &types.Repository{ID: repoID}, nil
}
func (m *memStore) UpdateIndexingStatus(ctx context.Context, repoID string, status types.IndexingStatus, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}
func (m *memStore) UpdateLastIndexedCommit(ctx context.Context, repoID, sha string) error {
	return nil
}
func (m *memStore) CreatePullRequestReview(ctx context.Context, rec store.ReviewRecord) error {
	return nil
}
func (m *memStore) Close() error { return nil }

// stubEmbedder always returns a fixed vector.
type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (s *stubEmbedder) Name() string { return "stub" }

func newTestOrchestrator(st store.Store, cfg config.IndexingConfig) *Orchestrator {
	embedder := embedding.NewService(&stubEmbedder{}, config.EmbeddingConfig{
		Model: "text-embedding-3-small", MaxChars: 24000, ChunkOverlap: 500, MaxRetries: 1,
	})
	return NewOrchestrator(Deps{
		Store:    st,
		Git:      gitrepo.New(""),
		Chunker:  chunker.New(),
		Embedder: embedder,
		Graphs:   graph.NewCache(),
	}, cfg)
}

func TestProcessFiles_SkipsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.ts", "export function alpha() { return 1; }\n")
	write("b.ts", strings.Repeat("x", 2<<20)) // over the 1 MiB cap
	write("c.ts", "export function gamma() { return 3; }\n")

	st := &memStore{}
	o := newTestOrchestrator(st, config.IndexingConfig{BatchSize: 20, MaxFileSize: 1 << 20})

	job := types.Job{JobType: types.JobIndexing, RepoID: "repo-1", IndexMode: types.IndexInitial}
	processed := o.processFiles(context.Background(), job, dir, "sha1", types.IndexInitial,
		[]string{"a.ts", "b.ts", "c.ts"})

	if processed != 2 {
		t.Errorf("processed = %d, want 2 (b.ts exceeds the cap)", processed)
	}
	for _, rec := range st.chunks {
		if rec.FilePath == "b.ts" {
			t.Error("oversized file must not persist chunks")
		}
	}
}

func TestProcessFile_PersistsChunksAndRelationships(t *testing.T) {
	dir := t.TempDir()
	source := "import { helper } from './helper';\n\nfunction run() {\n  return helper();\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "run.ts"), []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	st := &memStore{}
	o := newTestOrchestrator(st, config.IndexingConfig{BatchSize: 20, MaxFileSize: 1 << 20})

	job := types.Job{JobType: types.JobIndexing, RepoID: "repo-1", IndexMode: types.IndexInitial}
	if err := o.processFile(context.Background(), job, dir, "sha1", types.IndexInitial, "run.ts"); err != nil {
		t.Fatalf("processFile: %v", err)
	}

	if len(st.chunks) == 0 {
		t.Fatal("expected persisted chunks")
	}
	for _, rec := range st.chunks {
		if rec.CommitSHA != "sha1" || rec.RepositoryID != "repo-1" {
			t.Errorf("chunk record coordinates wrong: %+v", rec)
		}
		if rec.Chunk.SemanticType == "" {
			t.Error("chunks must be enhanced before persisting")
		}
		if len(rec.Embedding) == 0 {
			t.Error("chunks must carry embeddings")
		}
	}
	if len(st.rels) == 0 {
		t.Error("expected persisted relationships")
	}
	if len(st.deleted) != 0 {
		t.Errorf("initial indexing must not delete, got %v", st.deleted)
	}
}

func TestProcessFile_IncrementalDeletesBeforePersist(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.ts"), []byte("export const x = 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := &memStore{}
	o := newTestOrchestrator(st, config.IndexingConfig{BatchSize: 20, MaxFileSize: 1 << 20})
	job := types.Job{JobType: types.JobIndexing, RepoID: "repo-1", IndexMode: types.IndexIncremental}

	if err := o.processFile(context.Background(), job, dir, "sha2", types.IndexIncremental, "x.ts"); err != nil {
		t.Fatalf("processFile: %v", err)
	}
	if len(st.deleted) != 1 || st.deleted[0] != "x.ts" {
		t.Errorf("incremental must delete stale embeddings first, got %v", st.deleted)
	}
}
