package chunker

import (
	"strings"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// fallbackChunkLines caps the size of a fixed-size fallback chunk.
const fallbackChunkLines = 50

// FallbackChunks splits content into fixed-size line chunks for languages
// without a grammar. Chunks consisting only of blank lines are dropped.
func FallbackChunks(content, language string) []types.CodeChunk {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")

	var chunks []types.CodeChunk
	for start := 0; start < len(lines); start += fallbackChunkLines {
		end := start + fallbackChunkLines
		if end > len(lines) {
			end = len(lines)
		}
		window := lines[start:end]
		text := strings.Join(window, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, types.CodeChunk{
			Text:      text,
			StartLine: start + 1,
			EndLine:   end,
			Language:  language,
			ChunkType: types.ChunkCode,
		})
	}
	return chunks
}
