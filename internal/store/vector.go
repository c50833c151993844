package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// defaultSearchLimit bounds similarity queries without an explicit limit.
const defaultSearchLimit = 10

// SearchSimilarCode runs vector similarity search over stored chunks,
// optionally filtered by repository and language.
func (s *SQLiteStore) SearchSimilarCode(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchSimilarCode")
	defer timer.Stop()
	return s.search(ctx, q)
}

// SearchSemanticSimilarity is similarity search additionally filtered by
// semantic type.
func (s *SQLiteStore) SearchSemanticSimilarity(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchSemanticSimilarity")
	defer timer.Stop()
	return s.search(ctx, q)
}

func (s *SQLiteStore) search(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	if len(q.Embedding) == 0 {
		return nil, fmt.Errorf("search requires a query embedding")
	}
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}

	s.mu.RLock()
	vecEnabled := s.vectorExt
	s.mu.RUnlock()

	if vecEnabled {
		results, err := s.searchVec(ctx, q)
		if err == nil {
			return results, nil
		}
		logging.Get(logging.CategoryStore).Warn("vec search failed, falling back to scan: %v", err)
	}
	return s.searchScan(ctx, q)
}

// searchVec uses the sqlite-vec KNN index, over-fetching to survive the
// post-filters.
func (s *SQLiteStore) searchVec(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.repository_id, c.file_path, c.start_line, c.end_line, c.language,
		        c.chunk_type, c.symbol_name, c.semantic_type, v.distance
		 FROM vec_index v JOIN chunks c ON c.id = v.rowid
		 WHERE v.embedding MATCH ? AND k = ?
		 ORDER BY v.distance`,
		encodeFloat32Slice(q.Embedding), q.Limit*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var repoID, language, chunkType, semanticType string
		var r types.SearchResult
		var distance float64
		if err := rows.Scan(&repoID, &r.FilePath, &r.StartLine, &r.EndLine,
			&language, &chunkType, &r.SymbolName, &semanticType, &distance); err != nil {
			return nil, err
		}
		if !matchesFilters(q, repoID, language, semanticType) {
			continue
		}
		r.ChunkType = types.ChunkType(chunkType)
		r.Similarity = 1.0 / (1.0 + distance)
		r.Metadata = map[string]string{"language": language, "semanticType": semanticType}
		results = append(results, r)
		if len(results) >= q.Limit {
			break
		}
	}
	return results, rows.Err()
}

// searchScan is the extension-free path: scan candidate rows and rank by
// cosine similarity in process.
func (s *SQLiteStore) searchScan(ctx context.Context, q SearchQuery) ([]types.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT repository_id, file_path, start_line, end_line, language,
	                 chunk_type, symbol_name, semantic_type, embedding
	          FROM chunks WHERE embedding IS NOT NULL`
	var args []interface{}
	if q.RepositoryID != "" {
		query += ` AND repository_id = ?`
		args = append(args, q.RepositoryID)
	}
	if q.Language != "" {
		query += ` AND language = ?`
		args = append(args, q.Language)
	}
	if q.SemanticType != "" {
		query += ` AND semantic_type = ?`
		args = append(args, q.SemanticType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan search: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var repoID, language, chunkType, semanticType string
		var blob []byte
		var r types.SearchResult
		if err := rows.Scan(&repoID, &r.FilePath, &r.StartLine, &r.EndLine,
			&language, &chunkType, &r.SymbolName, &semanticType, &blob); err != nil {
			return nil, err
		}
		vec := decodeFloat32Slice(blob)
		sim, err := cosineSimilarity(q.Embedding, vec)
		if err != nil {
			continue // dimension mismatch from a different model; skip
		}
		r.ChunkType = types.ChunkType(chunkType)
		r.Similarity = sim
		r.Metadata = map[string]string{"language": language, "semanticType": semanticType}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func matchesFilters(q SearchQuery, repoID, language, semanticType string) bool {
	if q.RepositoryID != "" && repoID != q.RepositoryID {
		return false
	}
	if q.Language != "" && language != q.Language {
		return false
	}
	if q.SemanticType != "" && semanticType != q.SemanticType {
		return false
	}
	return true
}

// cosineSimilarity returns a value in [-1, 1]; errors on dimension mismatch.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// =============================================================================
// VECTOR BLOB ENCODING
// =============================================================================

// encodeFloat32Slice serializes a vector as little-endian float32 bytes,
// the layout sqlite-vec expects.
func encodeFloat32Slice(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

// decodeFloat32Slice reverses encodeFloat32Slice.
func decodeFloat32Slice(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	_ = binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec)
	return vec
}

// =============================================================================
// VEC INDEX MAINTENANCE
// =============================================================================

// tryInitVecIndex probes for the sqlite-vec extension.
func (s *SQLiteStore) tryInitVecIndex() bool {
	if !vecCompiled {
		return false
	}
	var version string
	if err := s.db.QueryRow(`SELECT vec_version()`).Scan(&version); err != nil {
		logging.StoreDebug("sqlite-vec not available: %v", err)
		return false
	}
	logging.Store("sqlite-vec %s available", version)
	return true
}

// upsertVecIndex stores a vector in the ANN index keyed by the chunk row id.
// The virtual table is created lazily from the first vector's dimensions.
func (s *SQLiteStore) upsertVecIndex(ctx context.Context, rowID int64, vec []float32) error {
	if s.vecDims == 0 {
		stmt := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d])`, len(vec))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
		s.vecDims = len(vec)
	}
	if len(vec) != s.vecDims {
		return fmt.Errorf("vector dims %d != index dims %d", len(vec), s.vecDims)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO vec_index (rowid, embedding) VALUES (?, ?)`,
		rowID, encodeFloat32Slice(vec))
	return err
}

// deleteVecIndexForFile removes ANN rows for a file's chunks.
func (s *SQLiteStore) deleteVecIndexForFile(ctx context.Context, repositoryID, filePath string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vec_index WHERE rowid IN
		 (SELECT id FROM chunks WHERE repository_id = ? AND file_path = ?)`,
		repositoryID, filePath)
	return err
}
