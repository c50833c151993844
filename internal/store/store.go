// Package store is the persistence gateway. The Store interface is the
// contract the pipelines program against; the shipped implementation keeps
// chunks, relationships, and vectors in SQLite with the sqlite-vec extension
// for ANN search when available.
package store

import (
	"context"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// ChunkRecord is the unit handed to StoreEmbedding: an enhanced chunk plus
// its repository/commit coordinates and embedding windows.
type ChunkRecord struct {
	RepositoryID string
	CommitSHA    string
	FilePath     string
	Chunk        types.EnhancedChunk
	Embedding    []float32
	ChunkIndex   int // window index when the chunk was split for embedding
	TotalChunks  int
}

// SearchQuery parameterizes vector similarity search.
type SearchQuery struct {
	Embedding    []float32
	RepositoryID string
	Language     string
	SemanticType string
	Limit        int
}

// ReviewRecord persists a pull-request review job before analysis begins.
type ReviewRecord struct {
	ID           string
	RepositoryID string
	PRNumber     int
	CommitSHA    string
	PRTitle      string
	PRURL        string
	UserID       string
}

// Store is the external-database contract consumed by both orchestrators.
// All methods are stateless calls; implementations own their connections.
type Store interface {
	// Indexing writes
	StoreEmbedding(ctx context.Context, rec ChunkRecord) error
	StoreCodeRelationship(ctx context.Context, repositoryID, commitSHA string, rel types.CodeRelationship) error
	DeleteEmbeddingsForFile(ctx context.Context, repositoryID, filePath string) error

	// Search
	SearchSimilarCode(ctx context.Context, q SearchQuery) ([]types.SearchResult, error)
	SearchSemanticSimilarity(ctx context.Context, q SearchQuery) ([]types.SearchResult, error)

	// Metadata reads
	GetEnhancedChunkMetadataForFile(ctx context.Context, repositoryID, filePath string) ([]types.EnhancedChunk, error)
	GetSymbolMetadata(ctx context.Context, repositoryID, symbolName string) (*types.EnhancedChunk, error)
	GetRelationshipsForRepository(ctx context.Context, repositoryID string) ([]types.CodeRelationship, error)

	// Repository lifecycle
	GetRepositoryWithStringID(ctx context.Context, repositoryID string) (*types.Repository, error)
	UpdateIndexingStatus(ctx context.Context, repositoryID string, status types.IndexingStatus, message string) error
	UpdateLastIndexedCommit(ctx context.Context, repositoryID, commitSHA string) error

	// Reviews
	CreatePullRequestReview(ctx context.Context, rec ReviewRecord) error

	Close() error
}
