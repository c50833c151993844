package chunker

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// enclosingSymbolTypes are the node types considered when resolving the
// symbol a call site belongs to.
var enclosingSymbolTypes = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"method_definition":              true,
	"method_declaration":             true,
	"constructor_declaration":        true,
	"variable_declarator":            true,
}

// ExtractRelationships runs the call, import, and inheritance queries for a
// file and returns the typed relationships observed in it. Unsupported
// languages yield none.
func (c *Chunker) ExtractRelationships(ctx context.Context, path string, content []byte) ([]types.CodeRelationship, error) {
	timer := logging.StartTimer(logging.CategoryChunker, "ExtractRelationships")
	defer timer.Stop()

	langName, supported := LanguageForFile(path)
	if !supported {
		return nil, nil
	}
	lang := languages[langName]

	tree, err := c.parse(ctx, lang, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	var rels []types.CodeRelationship
	calls, err := c.extractCalls(lang, tree, path, content)
	if err != nil {
		return nil, err
	}
	rels = append(rels, calls...)

	imports, err := c.extractImports(lang, tree, path, content)
	if err != nil {
		return nil, err
	}
	rels = append(rels, imports...)

	inherits, err := c.extractInheritance(lang, tree, path, content)
	if err != nil {
		return nil, err
	}
	rels = append(rels, inherits...)

	logging.ChunkerDebug("%s: %d relationships (%d calls, %d imports, %d inheritance)",
		path, len(rels), len(calls), len(imports), len(inherits))
	return rels, nil
}

// extractCalls emits function_call relationships from the enclosing symbol
// of each call site to its callee.
func (c *Chunker) extractCalls(lang *Language, tree *sitter.Tree, path string, content []byte) ([]types.CodeRelationship, error) {
	query, err := c.compiledQuery(lang, lang.CallQuery)
	if err != nil {
		return nil, err
	}

	var rels []types.CodeRelationship
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		var callNode *sitter.Node
		var callee string
		for _, capture := range match.Captures {
			switch query.CaptureNameForId(capture.Index) {
			case "call":
				callNode = capture.Node
			case "callee":
				callee = capture.Node.Content(content)
			}
		}
		if callNode == nil || callee == "" {
			continue
		}
		rels = append(rels, types.CodeRelationship{
			Type:   types.RelFunctionCall,
			Source: enclosingSymbol(callNode, content),
			Target: callee,
			Location: types.SourceLocation{
				FilePath:  path,
				StartLine: int(callNode.StartPoint().Row) + 1,
				EndLine:   int(callNode.EndPoint().Row) + 1,
			},
		})
	}
	return rels, nil
}

// extractImports emits import relationships from the file to each imported
// module source, quotes stripped.
func (c *Chunker) extractImports(lang *Language, tree *sitter.Tree, path string, content []byte) ([]types.CodeRelationship, error) {
	query, err := c.compiledQuery(lang, lang.ImportQuery)
	if err != nil {
		return nil, err
	}

	var rels []types.CodeRelationship
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			if query.CaptureNameForId(capture.Index) != "import" {
				continue
			}
			node := capture.Node
			source := importSource(node, content)
			if source == "" {
				continue
			}
			rels = append(rels, types.CodeRelationship{
				Type:   types.RelImport,
				Source: path,
				Target: source,
				Location: types.SourceLocation{
					FilePath:  path,
					StartLine: int(node.StartPoint().Row) + 1,
					EndLine:   int(node.EndPoint().Row) + 1,
				},
			})
		}
	}
	return rels, nil
}

// importSource pulls the module specifier out of an import node. For
// JS/TS import statements that is the source string; for Java it is the
// scoped identifier.
func importSource(node *sitter.Node, content []byte) string {
	if sourceNode := node.ChildByFieldName("source"); sourceNode != nil {
		return strings.Trim(sourceNode.Content(content), `"'`)
	}
	// Java import_declaration: the scoped_identifier is a named child.
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			return child.Content(content)
		}
	}
	return ""
}

// extractInheritance emits inheritance relationships child -> parent.
func (c *Chunker) extractInheritance(lang *Language, tree *sitter.Tree, path string, content []byte) ([]types.CodeRelationship, error) {
	query, err := c.compiledQuery(lang, lang.InheritanceQuery)
	if err != nil {
		return nil, err
	}

	var rels []types.CodeRelationship
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		var node *sitter.Node
		var child, parent string
		for _, capture := range match.Captures {
			switch query.CaptureNameForId(capture.Index) {
			case "inherit":
				node = capture.Node
			case "child":
				child = capture.Node.Content(content)
			case "parent":
				parent = capture.Node.Content(content)
			}
		}
		if node == nil || child == "" || parent == "" {
			continue
		}
		rels = append(rels, types.CodeRelationship{
			Type:   types.RelInheritance,
			Source: child,
			Target: parent,
			Location: types.SourceLocation{
				FilePath:  path,
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			},
		})
	}
	return rels, nil
}

// enclosingSymbol walks ancestors to find the nearest named declaration a
// node belongs to. Nodes outside any declaration report "anonymous".
func enclosingSymbol(node *sitter.Node, content []byte) string {
	for ancestor := node.Parent(); ancestor != nil; ancestor = ancestor.Parent() {
		if !enclosingSymbolTypes[ancestor.Type()] {
			continue
		}
		if nameNode := ancestor.ChildByFieldName("name"); nameNode != nil {
			return nameNode.Content(content)
		}
	}
	return "anonymous"
}
