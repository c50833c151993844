package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// SQLiteStore implements Store over SQLite, with sqlite-vec ANN indexing
// when the extension is compiled in (see vec_enabled.go / vec_disabled.go).
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	vectorExt bool
	vecDims   int
}

// Open connects to the database at the given URL (a sqlite path or file:
// URL) and runs migrations.
func Open(databaseURL string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	path := strings.TrimPrefix(databaseURL, "sqlite://")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // serialize writers; sqlite locks at the file level

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.vectorExt = s.tryInitVecIndex()
	logging.Store("store opened at %s (vector extension: %v)", path, s.vectorExt)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS repositories (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			clone_url TEXT NOT NULL DEFAULT '',
			default_branch TEXT NOT NULL DEFAULT 'main',
			last_indexed_commit TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			status_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repository_id TEXT NOT NULL,
			commit_sha TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			language TEXT NOT NULL,
			chunk_type TEXT NOT NULL,
			symbol_name TEXT NOT NULL DEFAULT '',
			semantic_type TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			chunk_index INTEGER NOT NULL DEFAULT 0,
			total_chunks INTEGER NOT NULL DEFAULT 0,
			embedding BLOB,
			UNIQUE(repository_id, commit_sha, file_path, start_line, end_line, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_repo_file ON chunks(repository_id, file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_repo_symbol ON chunks(repository_id, symbol_name)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repository_id TEXT NOT NULL,
			commit_sha TEXT NOT NULL,
			rel_type TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rels_repo ON relationships(repository_id)`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			repository_id TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			commit_sha TEXT NOT NULL,
			pr_title TEXT NOT NULL DEFAULT '',
			pr_url TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// =============================================================================
// INDEXING WRITES
// =============================================================================

// chunkMetadata is the JSON blob stored alongside structured columns.
type chunkMetadata struct {
	Dependencies    []string                `json:"dependencies,omitempty"`
	Dependents      []string                `json:"dependents,omitempty"`
	Complexity      types.ComplexityMetrics `json:"complexity"`
	ChangeFrequency float64                 `json:"changeFrequency"`
	Tags            []string                `json:"tags,omitempty"`
}

// StoreEmbedding persists one embedded chunk window.
func (s *SQLiteStore) StoreEmbedding(ctx context.Context, rec ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := json.Marshal(chunkMetadata{
		Dependencies:    rec.Chunk.Dependencies,
		Dependents:      rec.Chunk.Dependents,
		Complexity:      rec.Chunk.Complexity,
		ChangeFrequency: rec.Chunk.ChangeFrequency,
		Tags:            rec.Chunk.Tags,
	})
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks
		 (repository_id, commit_sha, file_path, start_line, end_line, language,
		  chunk_type, symbol_name, semantic_type, metadata, chunk_index, total_chunks, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RepositoryID, rec.CommitSHA, rec.FilePath,
		rec.Chunk.StartLine, rec.Chunk.EndLine, rec.Chunk.Language,
		string(rec.Chunk.ChunkType), rec.Chunk.SymbolName, rec.Chunk.SemanticType,
		string(meta), rec.ChunkIndex, rec.TotalChunks,
		encodeFloat32Slice(rec.Embedding))
	if err != nil {
		logging.Get(logging.CategoryStore).Error("StoreEmbedding failed: %v", err)
		return fmt.Errorf("store embedding: %w", err)
	}

	if s.vectorExt && len(rec.Embedding) > 0 {
		rowID, _ := res.LastInsertId()
		if err := s.upsertVecIndex(ctx, rowID, rec.Embedding); err != nil {
			// ANN indexing is an accelerator; the chunk row is the source of
			// truth, so log and continue.
			logging.Get(logging.CategoryStore).Warn("vec_index insert failed: %v", err)
		}
	}
	return nil
}

// StoreCodeRelationship persists one extracted relationship.
func (s *SQLiteStore) StoreCodeRelationship(ctx context.Context, repositoryID, commitSHA string, rel types.CodeRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships
		 (repository_id, commit_sha, rel_type, source, target, file_path, start_line, end_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		repositoryID, commitSHA, string(rel.Type), rel.Source, rel.Target,
		rel.Location.FilePath, rel.Location.StartLine, rel.Location.EndLine)
	if err != nil {
		return fmt.Errorf("store relationship: %w", err)
	}
	return nil
}

// DeleteEmbeddingsForFile removes a file's chunks and relationships so
// incremental indexing can overwrite atomically per file.
func (s *SQLiteStore) DeleteEmbeddingsForFile(ctx context.Context, repositoryID, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectorExt {
		if err := s.deleteVecIndexForFile(ctx, repositoryID, filePath); err != nil {
			logging.Get(logging.CategoryStore).Warn("vec_index delete failed: %v", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE repository_id = ? AND file_path = ?`,
		repositoryID, filePath); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE repository_id = ? AND file_path = ?`,
		repositoryID, filePath); err != nil {
		return fmt.Errorf("delete relationships: %w", err)
	}
	return nil
}

// =============================================================================
// METADATA READS
// =============================================================================

// GetEnhancedChunkMetadataForFile returns chunk metadata (without text) for
// a file, ordered by start line.
func (s *SQLiteStore) GetEnhancedChunkMetadataForFile(ctx context.Context, repositoryID, filePath string) ([]types.EnhancedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_line, end_line, language, chunk_type, symbol_name, semantic_type, metadata
		 FROM chunks WHERE repository_id = ? AND file_path = ? AND chunk_index = 0
		 ORDER BY start_line`,
		repositoryID, filePath)
	if err != nil {
		return nil, fmt.Errorf("query chunk metadata: %w", err)
	}
	defer rows.Close()
	return scanEnhancedChunks(rows)
}

// GetSymbolMetadata returns the first chunk declaring a symbol.
func (s *SQLiteStore) GetSymbolMetadata(ctx context.Context, repositoryID, symbolName string) (*types.EnhancedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_line, end_line, language, chunk_type, symbol_name, semantic_type, metadata
		 FROM chunks WHERE repository_id = ? AND symbol_name = ? AND chunk_index = 0
		 ORDER BY start_line LIMIT 1`,
		repositoryID, symbolName)
	if err != nil {
		return nil, fmt.Errorf("query symbol metadata: %w", err)
	}
	defer rows.Close()

	chunks, err := scanEnhancedChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return &chunks[0], nil
}

// GetRelationshipsForRepository returns all stored relationships for a
// repository; the retriever builds its transient graph from these.
func (s *SQLiteStore) GetRelationshipsForRepository(ctx context.Context, repositoryID string) ([]types.CodeRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT rel_type, source, target, file_path, start_line, end_line
		 FROM relationships WHERE repository_id = ?`,
		repositoryID)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []types.CodeRelationship
	for rows.Next() {
		var rel types.CodeRelationship
		var relType string
		if err := rows.Scan(&relType, &rel.Source, &rel.Target,
			&rel.Location.FilePath, &rel.Location.StartLine, &rel.Location.EndLine); err != nil {
			return nil, err
		}
		rel.Type = types.RelationshipType(relType)
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func scanEnhancedChunks(rows *sql.Rows) ([]types.EnhancedChunk, error) {
	var chunks []types.EnhancedChunk
	for rows.Next() {
		var c types.EnhancedChunk
		var chunkType, metaJSON string
		if err := rows.Scan(&c.StartLine, &c.EndLine, &c.Language,
			&chunkType, &c.SymbolName, &c.SemanticType, &metaJSON); err != nil {
			return nil, err
		}
		c.ChunkType = types.ChunkType(chunkType)
		var meta chunkMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err == nil {
			c.Dependencies = meta.Dependencies
			c.Dependents = meta.Dependents
			c.Complexity = meta.Complexity
			c.ChangeFrequency = meta.ChangeFrequency
			c.Tags = meta.Tags
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// =============================================================================
// REPOSITORY LIFECYCLE
// =============================================================================

// GetRepositoryWithStringID loads a repository record by id.
func (s *SQLiteStore) GetRepositoryWithStringID(ctx context.Context, repositoryID string) (*types.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, name, clone_url, default_branch, last_indexed_commit, status
		 FROM repositories WHERE id = ?`, repositoryID)

	var r types.Repository
	var status string
	if err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.CloneURL, &r.DefaultBranch,
		&r.LastIndexedCommit, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("repository %s not found", repositoryID)
		}
		return nil, fmt.Errorf("load repository: %w", err)
	}
	r.Status = types.IndexingStatus(status)
	return &r, nil
}

// UpdateIndexingStatus records the repository's lifecycle state and an
// optional message (the error text for failed jobs).
func (s *SQLiteStore) UpdateIndexingStatus(ctx context.Context, repositoryID string, status types.IndexingStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = ?, status_message = ? WHERE id = ?`,
		string(status), message, repositoryID)
	if err != nil {
		return fmt.Errorf("update indexing status: %w", err)
	}
	logging.StoreDebug("repository %s status -> %s", repositoryID, status)
	return nil
}

// UpdateLastIndexedCommit records the head commit after a successful index.
func (s *SQLiteStore) UpdateLastIndexedCommit(ctx context.Context, repositoryID, commitSHA string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET last_indexed_commit = ? WHERE id = ?`,
		commitSHA, repositoryID)
	if err != nil {
		return fmt.Errorf("update last indexed commit: %w", err)
	}
	return nil
}

// CreatePullRequestReview persists a review record.
func (s *SQLiteStore) CreatePullRequestReview(ctx context.Context, rec ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reviews (id, repository_id, pr_number, commit_sha, pr_title, pr_url, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RepositoryID, rec.PRNumber, rec.CommitSHA, rec.PRTitle, rec.PRURL, rec.UserID)
	if err != nil {
		return fmt.Errorf("create review record: %w", err)
	}
	return nil
}
