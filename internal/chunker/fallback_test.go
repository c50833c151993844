package chunker

import (
	"strings"
	"testing"
)

func TestFallbackChunks_RespectsWindowSize(t *testing.T) {
	content := strings.TrimSuffix(strings.Repeat("line\n", 50), "\n")
	chunks := FallbackChunks(content, "text")
	if len(chunks) != 1 {
		t.Fatalf("50 lines fit one chunk, got %d", len(chunks))
	}
	if chunks[0].StartLine != 1 || chunks[0].EndLine != 50 {
		t.Errorf("chunk range = %d-%d, want 1-50", chunks[0].StartLine, chunks[0].EndLine)
	}
}

func TestFallbackChunks_DropsBlankWindows(t *testing.T) {
	content := strings.TrimSuffix(strings.Repeat("code\n", 50), "\n") + "\n" + strings.Repeat("\n", 60)
	chunks := FallbackChunks(content, "text")
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			t.Errorf("blank window must be dropped: %+v", c)
		}
	}
}

func TestFallbackChunks_Empty(t *testing.T) {
	if chunks := FallbackChunks("", "text"); chunks != nil {
		t.Errorf("empty content yields no chunks, got %v", chunks)
	}
}
