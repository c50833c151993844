package analyzer

import (
	"fmt"
	"strings"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/diffanalyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// maxContextPieces bounds how many retrieved snippets enter the prompt.
const maxContextPieces = 12

// BuildPrompt assembles the review prompt for one file: the annotated
// content (line numbers, diff positions, change markers), the pre-change
// content when the file has one, file metadata, the patch, and retrieved
// similar-code snippets.
func BuildPrompt(f *diffanalyzer.ProcessedFile, contexts []types.CodeContext) string {
	var b strings.Builder

	b.WriteString("You are reviewing one file of a pull request. ")
	b.WriteString("Report only issues on lines marked as added (+) or modified (~); ")
	b.WriteString("use the exact line numbers from the annotation.\n\n")

	fmt.Fprintf(&b, "## File: %s (%s)\n", f.Path, f.Language)
	switch {
	case f.IsNewFile:
		b.WriteString("This file is new in this PR.\n")
	case f.IsDeletedFile:
		b.WriteString("This file is deleted in this PR.\n")
	}

	b.WriteString("\n## Annotated content (Lnnn, diff position, change marker)\n```\n")
	b.WriteString(f.AnnotatedContent)
	b.WriteString("```\n")

	if f.OriginalContent != "" {
		b.WriteString("\n## Original content (before this PR)\n```\n")
		b.WriteString(f.OriginalContent)
		b.WriteString("\n```\n")
	}

	b.WriteString("\n## Patch\n```diff\n")
	b.WriteString(f.Patch)
	b.WriteString("\n```\n")

	if len(contexts) > 0 {
		b.WriteString("\n## Related code from this repository\n")
		pieces := contexts
		if len(pieces) > maxContextPieces {
			pieces = pieces[:maxContextPieces]
		}
		for _, c := range pieces {
			if strings.TrimSpace(c.Code) == "" {
				continue
			}
			fmt.Fprintf(&b, "\n### %s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
			if c.SymbolName != "" {
				fmt.Fprintf(&b, " (%s)", c.SymbolName)
			}
			fmt.Fprintf(&b, " — %s\n```\n%s\n```\n", c.RelevanceReason, c.Code)
		}
	}

	b.WriteString("\nReturn JSON matching the response schema. ")
	b.WriteString("Prefer a small number of high-confidence findings over volume.\n")
	return b.String()
}
