package chunker

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
)

// Edit describes a byte- and point-level change applied to a previously
// parsed file, in tree-sitter's coordinates.
type Edit struct {
	StartIndex  uint32
	OldEndIndex uint32
	NewEndIndex uint32
	StartPoint  sitter.Point
	OldEndPoint sitter.Point
	NewEndPoint sitter.Point
}

// UpdateTree applies an edit to an old tree and reparses with it as a hint.
// Any failure falls back to a full parse of the new source, so callers
// always get a usable tree for valid input.
func (c *Chunker) UpdateTree(ctx context.Context, languageName string, old *sitter.Tree, edit Edit, newSource []byte) (*sitter.Tree, error) {
	lang, ok := languages[languageName]
	if !ok {
		return nil, errUnsupportedLanguage(languageName)
	}

	if old != nil {
		old.Edit(sitter.EditInput{
			StartIndex:  edit.StartIndex,
			OldEndIndex: edit.OldEndIndex,
			NewEndIndex: edit.NewEndIndex,
			StartPoint:  edit.StartPoint,
			OldEndPoint: edit.OldEndPoint,
			NewEndPoint: edit.NewEndPoint,
		})
		tree, err := c.parse(ctx, lang, old, newSource)
		if err == nil {
			return tree, nil
		}
		logging.Get(logging.CategoryChunker).Warn(
			"incremental reparse failed (%v), falling back to full parse", err)
	}

	return c.parse(ctx, lang, nil, newSource)
}

type errUnsupportedLanguage string

func (e errUnsupportedLanguage) Error() string {
	return "unsupported language: " + string(e)
}
