// Package chunker parses source files into syntactic chunks and typed code
// relationships using tree-sitter. Unsupported languages fall back to
// fixed-size line chunks so every file still yields indexable units.
package chunker

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// minCaptureBytes is the shortest source slice worth keeping as a chunk.
const minCaptureBytes = 5

// Chunker parses files and extracts chunks and relationships. Queries are
// compiled lazily and cached; the cache is safe for concurrent readers.
type Chunker struct {
	queryMu    sync.Mutex
	queryCache map[queryKey]*sitter.Query
}

type queryKey struct {
	language  string
	queryText string
}

// New creates a Chunker with an empty query cache.
func New() *Chunker {
	return &Chunker{queryCache: make(map[queryKey]*sitter.Query)}
}

// compiledQuery returns the cached query for (language, queryText),
// compiling it on first use. Compilation is serialized per key.
func (c *Chunker) compiledQuery(lang *Language, queryText string) (*sitter.Query, error) {
	key := queryKey{language: lang.Name, queryText: queryText}

	c.queryMu.Lock()
	defer c.queryMu.Unlock()
	if q, ok := c.queryCache[key]; ok {
		return q, nil
	}
	q, err := sitter.NewQuery([]byte(queryText), lang.Grammar)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang.Name, err)
	}
	c.queryCache[key] = q
	logging.ChunkerDebug("compiled %s query (%d bytes)", lang.Name, len(queryText))
	return q, nil
}

// ParseFile chunks a file's content. Grammar-backed languages yield
// declaration and import chunks in parser traversal order; everything else
// goes through the fixed-size fallback.
func (c *Chunker) ParseFile(ctx context.Context, path string, content []byte) ([]types.CodeChunk, error) {
	timer := logging.StartTimer(logging.CategoryChunker, "ParseFile")
	defer timer.Stop()

	langName, supported := LanguageForFile(path)
	if !supported {
		if langName == "" {
			langName = "text"
		}
		logging.ChunkerDebug("no grammar for %s, using line fallback (%s)", path, langName)
		return FallbackChunks(string(content), langName), nil
	}
	lang := languages[langName]

	tree, err := c.parse(ctx, lang, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	return c.chunksFromTree(lang, tree, content)
}

// parse runs the tree-sitter parser, optionally reusing an old tree.
func (c *Chunker) parse(ctx context.Context, lang *Language, old *sitter.Tree, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.Grammar)
	return parser.ParseCtx(ctx, old, content)
}

// chunksFromTree runs the declaration and import queries against a parsed
// tree and materializes chunks.
func (c *Chunker) chunksFromTree(lang *Language, tree *sitter.Tree, content []byte) ([]types.CodeChunk, error) {
	var chunks []types.CodeChunk

	declQuery, err := c.compiledQuery(lang, lang.DeclarationQuery)
	if err != nil {
		return nil, err
	}
	chunks = append(chunks, c.collectChunks(declQuery, tree, lang, content)...)

	importQuery, err := c.compiledQuery(lang, lang.ImportQuery)
	if err != nil {
		return nil, err
	}
	chunks = append(chunks, c.collectChunks(importQuery, tree, lang, content)...)

	logging.ChunkerDebug("%s: %d chunks extracted", lang.Name, len(chunks))
	return chunks, nil
}

// nodeSpan keys a capture by its byte range so the same declaration matched
// by two patterns yields one chunk.
type nodeSpan struct {
	start uint32
	end   uint32
}

// collectChunks executes a query and converts its captures to chunks.
// Predicate-bearing patterns (the component ones) are filtered through the
// query's predicates first. A node captured as both a plain declaration and
// a component keeps the component classification.
func (c *Chunker) collectChunks(query *sitter.Query, tree *sitter.Tree, lang *Language, content []byte) []types.CodeChunk {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	type pendingChunk struct {
		node      *sitter.Node
		chunkType types.ChunkType
	}
	var pending []pendingChunk
	seen := make(map[nodeSpan]int)

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, content)
		for _, capture := range match.Captures {
			name := query.CaptureNameForId(capture.Index)
			chunkType, ok := captureChunkTypes[name]
			if !ok {
				continue // helper captures like @callee, @_component_name
			}
			node := capture.Node
			if len(node.Content(content)) < minCaptureBytes {
				continue
			}
			span := nodeSpan{start: node.StartByte(), end: node.EndByte()}
			if i, dup := seen[span]; dup {
				if chunkType == types.ChunkComponent {
					pending[i].chunkType = chunkType
				}
				continue
			}
			seen[span] = len(pending)
			pending = append(pending, pendingChunk{node: node, chunkType: chunkType})
		}
	}

	chunks := make([]types.CodeChunk, 0, len(pending))
	for _, p := range pending {
		chunks = append(chunks, types.CodeChunk{
			Text:       p.node.Content(content),
			StartLine:  int(p.node.StartPoint().Row) + 1,
			EndLine:    int(p.node.EndPoint().Row) + 1,
			Language:   lang.Name,
			ChunkType:  p.chunkType,
			SymbolName: symbolName(p.node, content),
		})
	}
	return chunks
}

// captureChunkTypes maps query capture names to chunk types.
var captureChunkTypes = map[string]types.ChunkType{
	"class":          types.ChunkClass,
	"function":       types.ChunkFunction,
	"method":         types.ChunkMethod,
	"arrow_function": types.ChunkArrowFunction,
	"interface":      types.ChunkInterface,
	"type":           types.ChunkTypeAlias,
	"enum":           types.ChunkEnum,
	"component":      types.ChunkComponent,
	"import":         types.ChunkImport,
}

// symbolName extracts a declaration's name via the grammar's name field.
// Arrow-function captures are the variable_declarator itself, so the same
// field lookup lands on the variable's name.
func symbolName(node *sitter.Node, content []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(content)
	}
	return ""
}
