package metrics

import (
	"fmt"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// SynthesizeTags derives the tag set for an enhanced chunk. The semantic type
// always leads; threshold tags follow, then the lang/type/symbol markers.
func SynthesizeTags(chunk types.CodeChunk, semanticType string, m types.ComplexityMetrics, dependencies, dependents int) []string {
	tags := []string{semanticType}

	if m.Cyclomatic > highCyclomaticThreshold {
		tags = append(tags, "high-cyclomatic-complexity")
	}
	if m.Cognitive > highCognitiveThreshold {
		tags = append(tags, "high-cognitive-complexity")
	}
	if m.MaxNesting > deepNestingThreshold {
		tags = append(tags, "deeply-nested")
	}
	if dependencies > manyDependenciesLimit {
		tags = append(tags, "many-dependencies")
	}
	if dependents > highlyDependedOnLimit {
		tags = append(tags, "highly-depended-on")
	}
	if m.LineCount > longCodeBlockLines {
		tags = append(tags, "long-code-block")
	}

	if chunk.Language != "" {
		tags = append(tags, fmt.Sprintf("lang:%s", chunk.Language))
	}
	if chunk.ChunkType != "" {
		tags = append(tags, fmt.Sprintf("type:%s", chunk.ChunkType))
	}
	if chunk.SymbolName != "" {
		tags = append(tags, fmt.Sprintf("symbol:%s", chunk.SymbolName))
	}
	return tags
}

// Enhance assembles the full EnhancedChunk for a parsed chunk given its
// graph-derived dependency sets.
func Enhance(chunk types.CodeChunk, filePath, commitSHA string, dependencies, dependents []string) types.EnhancedChunk {
	m := Compute(chunk)
	semanticType := ClassifySemanticType(chunk)
	return types.EnhancedChunk{
		CodeChunk:       chunk,
		Dependencies:    dependencies,
		Dependents:      dependents,
		SemanticType:    semanticType,
		Complexity:      m,
		ChangeFrequency: ChangeFrequency(filePath, chunk.StartLine, chunk.EndLine, commitSHA),
		Tags:            SynthesizeTags(chunk, semanticType, m, len(dependencies), len(dependents)),
	}
}
