package diffanalyzer

import (
	"fmt"
	"strings"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// ProcessedFile is one PR file prepared for analysis: content at the head
// commit, the patch, the diff bookkeeping, and the comment-line set used by
// the line correction policy.
type ProcessedFile struct {
	Path             string
	Content          string
	OriginalContent  string
	AnnotatedContent string
	Patch            string
	Language         string
	DiffAnalysis     *DiffAnalysis
	CommentLines     map[int]bool
	IsNewFile        bool
	IsDeletedFile    bool
}

// BuildProcessedFile assembles a ProcessedFile from provider data. Returns
// nil when the patch yields no valid diff positions, which the caller must
// treat as "skip this file".
func BuildProcessedFile(path, content, originalContent, patch, language string, isNew, isDeleted bool) *ProcessedFile {
	analysis := Analyze(patch)
	if !analysis.HasValidPositions() {
		logging.DiffDebug("file %s has no valid diff positions, skipping", path)
		return nil
	}

	f := &ProcessedFile{
		Path:            path,
		Content:         content,
		OriginalContent: originalContent,
		Patch:           patch,
		Language:        language,
		DiffAnalysis:    analysis,
		CommentLines:    detectCommentLines(content),
		IsNewFile:       isNew,
		IsDeletedFile:   isDeleted,
	}
	f.AnnotatedContent = f.annotate()
	return f
}

// TotalLines returns the line count of the head-commit content.
func (f *ProcessedFile) TotalLines() int {
	if f.Content == "" {
		return 0
	}
	return strings.Count(f.Content, "\n") + 1
}

// annotate prefixes each content line with its 1-indexed number and, for
// lines present in the diff, the diff position, plus an added (+) or
// modified (~) marker. Comment lines carry no marker of their own.
// The LLM reads this to propose line-accurate findings.
func (f *ProcessedFile) annotate() string {
	var b strings.Builder
	for i, line := range strings.Split(f.Content, "\n") {
		n := i + 1
		marker := "    "
		if f.DiffAnalysis.AddedLines[n] {
			marker = " +  "
		} else if f.DiffAnalysis.ChangedLines[n] {
			marker = " ~  "
		}
		if pos, ok := f.DiffAnalysis.LineToPosition[n]; ok {
			fmt.Fprintf(&b, "L%-5d(pos %d)%s%s\n", n, pos, marker, line)
		} else {
			fmt.Fprintf(&b, "L%-5d        %s%s\n", n, marker, line)
		}
	}
	return b.String()
}

// detectCommentLines flags lines that consist only of a comment. Used by the
// correction policy to nudge findings off comment lines when possible.
func detectCommentLines(content string) map[int]bool {
	comments := make(map[int]bool)
	inBlock := false
	for i, line := range strings.Split(content, "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if inBlock {
			comments[n] = true
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "#"),
			strings.HasPrefix(trimmed, "*"):
			comments[n] = true
		case strings.HasPrefix(trimmed, "/*"):
			comments[n] = true
			if !strings.Contains(trimmed, "*/") {
				inBlock = true
			}
		}
	}
	return comments
}
