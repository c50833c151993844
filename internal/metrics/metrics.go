// Package metrics computes structural complexity measurements, semantic
// classification, and tags for code chunks.
package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// Complexity thresholds used for tagging.
const (
	highCyclomaticThreshold = 10
	highCognitiveThreshold  = 15
	deepNestingThreshold    = 3
	manyDependenciesLimit   = 5
	highlyDependedOnLimit   = 5
	longCodeBlockLines      = 100
	longIdentifierLength    = 25
)

var (
	controlTokenRe = regexp.MustCompile(`\belse\s+if\b|\bif\b|\bfor\b|\bwhile\b|\bdo\b|\bswitch\b|\bcase\b|\bcatch\b|&&|\|\||\?`)
	returnRe       = regexp.MustCompile(`\breturn\b`)
	identifierRe   = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
	mixedLogicalRe = regexp.MustCompile(`&&[^|]*\|\||\|\|[^&]*&&`)
	signatureRe    = regexp.MustCompile(`\(([^()]*)\)`)
)

// Compute measures a chunk's complexity.
func Compute(chunk types.CodeChunk) types.ComplexityMetrics {
	text := chunk.Text
	m := types.ComplexityMetrics{
		Cyclomatic: cyclomatic(text),
		MaxNesting: maxNesting(text),
		LineCount:  chunk.EndLine - chunk.StartLine + 1,
	}
	m.Cognitive = cognitive(text, m.Cyclomatic, m.MaxNesting)
	switch chunk.ChunkType {
	case types.ChunkFunction, types.ChunkMethod, types.ChunkArrowFunction:
		m.ParameterCount = parameterCount(text)
	}
	return m
}

// cyclomatic is 1 plus the number of branching tokens.
func cyclomatic(text string) int {
	return 1 + len(controlTokenRe.FindAllString(text, -1))
}

// cognitive combines nesting, early returns, identifier length, and mixed
// logical expressions into a readability score.
func cognitive(text string, cyclo, nesting int) int {
	returns := len(returnRe.FindAllString(text, -1))
	extraReturns := returns - 1
	if extraReturns < 0 {
		extraReturns = 0
	}

	longIdentifiers := 0
	for _, ident := range identifierRe.FindAllString(text, -1) {
		if len(ident) > longIdentifierLength {
			longIdentifiers++
		}
	}

	mixed := len(mixedLogicalRe.FindAllString(text, -1))

	return 2*nesting + extraReturns + longIdentifiers + 2*mixed + cyclo/2
}

// maxNesting tracks the running brace balance per line and returns its peak.
func maxNesting(text string) int {
	depth, peak := 0, 0
	for _, line := range strings.Split(text, "\n") {
		for _, r := range line {
			switch r {
			case '{':
				depth++
				if depth > peak {
					peak = depth
				}
			case '}':
				depth--
			}
		}
	}
	return peak
}

// parameterCount parses the first parenthesized group of the signature.
func parameterCount(text string) int {
	match := signatureRe.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	inner := strings.TrimSpace(match[1])
	if inner == "" {
		return 0
	}
	// Count top-level commas only; generic/object defaults keep nesting.
	depth, count := 0, 1
	for _, r := range inner {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}

// ChangeFrequency derives a deterministic pseudo-frequency in [0,1] for a
// chunk at a commit. Stable for a given (file, range, commit) so repeated
// indexing runs agree.
func ChangeFrequency(filePath string, startLine, endLine int, commitSHA string) float64 {
	key := fmt.Sprintf("%s:%d:%d:%s", filePath, startLine, endLine, commitSHA)
	return float64(xxhash.Sum64String(key)%10000) / 10000.0
}
