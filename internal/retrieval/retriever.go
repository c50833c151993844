// Package retrieval assembles ranked code context for PR review. Context is
// expanded through four levels: the direct changes, the symbols they touch,
// graph neighbors of those symbols, and semantic neighbors found by vector
// search. Code bodies are always read from the repository checkout at the
// review commit, never from the database.
package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/embedding"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/graph"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/store"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// semanticSeedLimit caps how many level 1-2 pieces seed vector search.
const semanticSeedLimit = 5

// semanticNeighborLimit caps results per vector search.
const semanticNeighborLimit = 5

// Retriever expands PR changes into ranked context.
type Retriever struct {
	store    store.Store
	embedder *embedding.Service
}

// New creates a Retriever.
func New(st store.Store, embedder *embedding.Service) *Retriever {
	return &Retriever{store: st, embedder: embedder}
}

// RetrieveForFile builds the ranked context list for one processed file.
// Failures in the deeper levels degrade to shallower context rather than
// failing the file.
func (r *Retriever) RetrieveForFile(ctx context.Context, repositoryID, cloneDir string, f *diffanalyzer.ProcessedFile) ([]types.CodeContext, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "RetrieveForFile")
	defer timer.Stop()

	var contexts []types.CodeContext

	direct := r.directChanges(cloneDir, f)
	contexts = append(contexts, direct...)

	affected, symbols := r.affectedSymbols(ctx, repositoryID, cloneDir, f)
	contexts = append(contexts, affected...)

	neighbors := r.graphNeighbors(ctx, repositoryID, cloneDir, f.Path, symbols)
	contexts = append(contexts, neighbors...)

	semantic := r.semanticNeighbors(ctx, repositoryID, cloneDir, append(direct, affected...))
	contexts = append(contexts, semantic...)

	combined := combine(contexts)
	logging.RetrievalDebug("%s: %d contexts (%d direct, %d symbols, %d graph, %d semantic)",
		f.Path, len(combined), len(direct), len(affected), len(neighbors), len(semantic))
	return combined, nil
}

// directChanges turns each contiguous changed range into a level-1 context.
func (r *Retriever) directChanges(cloneDir string, f *diffanalyzer.ProcessedFile) []types.CodeContext {
	var contexts []types.CodeContext
	for _, rng := range f.DiffAnalysis.ChangedRanges() {
		code := readFileRange(cloneDir, f.Path, rng[0], rng[1])
		if code == "" {
			code = extractLines(f.Content, rng[0], rng[1])
		}
		contexts = append(contexts, types.CodeContext{
			FilePath:        f.Path,
			StartLine:       rng[0],
			EndLine:         rng[1],
			Code:            code,
			ChangeFrequency: 1.0,
			Level:           types.LevelDirectChange,
			RelevanceReason: "directly changed in this PR",
		})
	}
	return contexts
}

// affectedSymbols finds stored chunks whose range overlaps a change and has
// a symbol name. Returns the contexts and the overlapped symbol names.
func (r *Retriever) affectedSymbols(ctx context.Context, repositoryID, cloneDir string, f *diffanalyzer.ProcessedFile) ([]types.CodeContext, []string) {
	chunks, err := r.store.GetEnhancedChunkMetadataForFile(ctx, repositoryID, f.Path)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("chunk metadata for %s: %v", f.Path, err)
		return nil, nil
	}

	ranges := f.DiffAnalysis.ChangedRanges()
	var contexts []types.CodeContext
	var symbols []string
	for _, chunk := range chunks {
		if chunk.SymbolName == "" {
			continue
		}
		overlaps := false
		for _, rng := range ranges {
			if chunk.StartLine <= rng[1] && chunk.EndLine >= rng[0] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			continue
		}
		symbols = append(symbols, chunk.SymbolName)
		contexts = append(contexts, types.CodeContext{
			FilePath:        f.Path,
			StartLine:       chunk.StartLine,
			EndLine:         chunk.EndLine,
			Code:            readFileRange(cloneDir, f.Path, chunk.StartLine, chunk.EndLine),
			SymbolName:      chunk.SymbolName,
			ChunkType:       chunk.ChunkType,
			SemanticType:    chunk.SemanticType,
			Complexity:      chunk.Complexity.Cyclomatic,
			ChangeFrequency: chunk.ChangeFrequency,
			Dependents:      len(chunk.Dependents),
			Level:           types.LevelAffectedSymbol,
			RelevanceReason: "symbol overlaps changed lines",
		})
	}
	return contexts, lo.Uniq(symbols)
}

// graphNeighbors builds a transient dependency graph from stored
// relationships and pulls direct dependencies and dependents (depth 1) of
// each affected symbol.
func (r *Retriever) graphNeighbors(ctx context.Context, repositoryID, cloneDir, filePath string, symbols []string) []types.CodeContext {
	if len(symbols) == 0 {
		return nil
	}
	rels, err := r.store.GetRelationshipsForRepository(ctx, repositoryID)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("relationships for %s: %v", repositoryID, err)
		return nil
	}

	g := graph.New()
	for _, rel := range rels {
		g.AddRelationship(rel)
	}

	var contexts []types.CodeContext
	seen := map[string]bool{}
	for _, symbol := range symbols {
		neighbors := append(
			g.FindDependencies(filePath, symbol, 1),
			g.FindDependents(filePath, symbol, 1)...)
		for _, node := range neighbors {
			if node.SymbolName == "" || seen[node.ID] {
				continue
			}
			seen[node.ID] = true
			meta, err := r.store.GetSymbolMetadata(ctx, repositoryID, node.SymbolName)
			if err != nil || meta == nil {
				continue
			}
			contexts = append(contexts, types.CodeContext{
				FilePath:        node.FilePath,
				StartLine:       meta.StartLine,
				EndLine:         meta.EndLine,
				Code:            readFileRange(cloneDir, node.FilePath, meta.StartLine, meta.EndLine),
				SymbolName:      meta.SymbolName,
				ChunkType:       meta.ChunkType,
				SemanticType:    meta.SemanticType,
				Complexity:      meta.Complexity.Cyclomatic,
				ChangeFrequency: meta.ChangeFrequency,
				Dependents:      len(meta.Dependents),
				Level:           types.LevelGraphNeighbor,
				RelevanceReason: "dependency-graph neighbor of " + symbol,
			})
		}
	}
	return contexts
}

// semanticNeighbors vector-searches for code similar to the top changed
// pieces. Results identical to their query piece are excluded.
func (r *Retriever) semanticNeighbors(ctx context.Context, repositoryID, cloneDir string, seeds []types.CodeContext) []types.CodeContext {
	if r.embedder == nil {
		return nil
	}

	withCode := lo.Filter(seeds, func(c types.CodeContext, _ int) bool {
		return strings.TrimSpace(c.Code) != ""
	})
	if len(withCode) > semanticSeedLimit {
		withCode = withCode[:semanticSeedLimit]
	}

	var contexts []types.CodeContext
	for _, seed := range withCode {
		results, err := r.embedder.Generate(ctx, "", seed.Code)
		if err != nil || len(results) == 0 {
			continue
		}
		query := store.SearchQuery{
			Embedding:    results[0].Vector,
			RepositoryID: repositoryID,
			SemanticType: seed.SemanticType,
			Limit:        semanticNeighborLimit,
		}
		matches, err := r.store.SearchSemanticSimilarity(ctx, query)
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("semantic search: %v", err)
			continue
		}
		for _, m := range matches {
			if m.FilePath == seed.FilePath && m.StartLine == seed.StartLine && m.EndLine == seed.EndLine {
				continue
			}
			contexts = append(contexts, types.CodeContext{
				FilePath:        m.FilePath,
				StartLine:       m.StartLine,
				EndLine:         m.EndLine,
				Code:            readFileRange(cloneDir, m.FilePath, m.StartLine, m.EndLine),
				SymbolName:      m.SymbolName,
				ChunkType:       m.ChunkType,
				SemanticType:    m.Metadata["semanticType"],
				Level:           types.LevelSemanticNeighbor,
				RelevanceReason: "semantically similar code",
			})
		}
	}
	return contexts
}

// readFileRange reads 1-indexed inclusive lines [start, end] from a file in
// the clone. Missing files return "".
func readFileRange(cloneDir, path string, start, end int) string {
	if cloneDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(cloneDir, path))
	if err != nil {
		return ""
	}
	return extractLines(string(data), start, end)
}

func extractLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
