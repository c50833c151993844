package retrieval

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// Score ranks a context piece. Closer levels dominate; complexity, change
// frequency, fan-in, and declaration kind refine within a level.
func Score(c types.CodeContext) float64 {
	score := float64(100 - 20*int(c.Level))

	complexity := c.Complexity
	if complexity > 10 {
		complexity = 10
	}
	score += float64(complexity)

	score += 10 * c.ChangeFrequency

	dependents := 2 * c.Dependents
	if dependents > 10 {
		dependents = 10
	}
	score += float64(dependents)

	switch c.ChunkType {
	case types.ChunkFunction, types.ChunkMethod:
		score += 5
	case types.ChunkClass:
		score += 7
	}
	return score
}

type contextKey struct {
	filePath  string
	startLine int
	endLine   int
}

// combine deduplicates by (filePath, startLine, endLine), keeping the richer
// entry and concatenating distinct relevance reasons, then scores and sorts
// descending.
func combine(contexts []types.CodeContext) []types.CodeContext {
	byKey := make(map[contextKey]types.CodeContext)
	var order []contextKey

	for _, c := range contexts {
		key := contextKey{c.FilePath, c.StartLine, c.EndLine}
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = c
			order = append(order, key)
			continue
		}
		merged := richer(existing, c)
		merged.RelevanceReason = mergeReasons(existing.RelevanceReason, c.RelevanceReason)
		if c.Level < existing.Level {
			merged.Level = c.Level
		} else {
			merged.Level = existing.Level
		}
		byKey[key] = merged
	}

	result := make([]types.CodeContext, 0, len(order))
	for _, key := range order {
		c := byKey[key]
		c.Score = Score(c)
		result = append(result, c)
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	return result
}

// richer picks the entry with more populated metadata, preferring a symbol
// name as the tiebreaker.
func richer(a, b types.CodeContext) types.CodeContext {
	if metadataFields(b) > metadataFields(a) {
		b.Code = firstNonEmpty(b.Code, a.Code)
		return b
	}
	if metadataFields(a) == metadataFields(b) && a.SymbolName == "" && b.SymbolName != "" {
		b.Code = firstNonEmpty(b.Code, a.Code)
		return b
	}
	a.Code = firstNonEmpty(a.Code, b.Code)
	return a
}

func metadataFields(c types.CodeContext) int {
	n := 0
	if c.SymbolName != "" {
		n++
	}
	if c.ChunkType != "" {
		n++
	}
	if c.SemanticType != "" {
		n++
	}
	if c.Complexity > 0 {
		n++
	}
	if c.Dependents > 0 {
		n++
	}
	if c.ChangeFrequency > 0 {
		n++
	}
	return n
}

func mergeReasons(reasons ...string) string {
	parts := lo.Uniq(lo.Filter(reasons, func(s string, _ int) bool { return s != "" }))
	return strings.Join(parts, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
