package chunker

import (
	"context"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

func sitterPoint(row, column uint32) sitter.Point {
	return sitter.Point{Row: row, Column: column}
}

func TestLanguageForFile(t *testing.T) {
	cases := []struct {
		path      string
		language  string
		supported bool
	}{
		{"src/app.js", "javascript", true},
		{"src/App.jsx", "javascript", true},
		{"src/util.ts", "typescript", true},
		{"src/Page.tsx", "tsx", true},
		{"com/example/Main.java", "java", true},
		{"package.json", "json", false},
		{"README.md", "", false},
		{"script.py", "", false},
	}
	for _, tc := range cases {
		language, supported := LanguageForFile(tc.path)
		if language != tc.language || supported != tc.supported {
			t.Errorf("LanguageForFile(%q) = (%q, %v), want (%q, %v)",
				tc.path, language, supported, tc.language, tc.supported)
		}
	}
}

func TestParseFile_JavaScriptDeclarations(t *testing.T) {
	source := `import { helper } from './helper';

class Widget {
  render() {
    return helper();
  }
}

function standalone(a, b) {
  return a + b;
}

const arrowFn = (x) => x * 2;
`
	c := New()
	chunks, err := c.ParseFile(context.Background(), "widget.js", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	byType := map[types.ChunkType][]types.CodeChunk{}
	for _, chunk := range chunks {
		byType[chunk.ChunkType] = append(byType[chunk.ChunkType], chunk)
	}

	if len(byType[types.ChunkClass]) != 1 {
		t.Errorf("expected 1 class chunk, got %d", len(byType[types.ChunkClass]))
	} else if byType[types.ChunkClass][0].SymbolName != "Widget" {
		t.Errorf("class symbol = %q, want Widget", byType[types.ChunkClass][0].SymbolName)
	}

	if len(byType[types.ChunkFunction]) != 1 {
		t.Errorf("expected 1 function chunk, got %d", len(byType[types.ChunkFunction]))
	} else if byType[types.ChunkFunction][0].SymbolName != "standalone" {
		t.Errorf("function symbol = %q, want standalone", byType[types.ChunkFunction][0].SymbolName)
	}

	if len(byType[types.ChunkArrowFunction]) != 1 {
		t.Errorf("expected 1 arrow_function chunk, got %d", len(byType[types.ChunkArrowFunction]))
	} else if byType[types.ChunkArrowFunction][0].SymbolName != "arrowFn" {
		t.Errorf("arrow symbol = %q, want arrowFn", byType[types.ChunkArrowFunction][0].SymbolName)
	}

	if len(byType[types.ChunkImport]) != 1 {
		t.Errorf("expected 1 import chunk, got %d", len(byType[types.ChunkImport]))
	}

	for _, chunk := range chunks {
		if chunk.StartLine < 1 || chunk.EndLine < chunk.StartLine {
			t.Errorf("chunk line invariant violated: %+v", chunk)
		}
		if chunk.Language != "javascript" {
			t.Errorf("chunk language = %q, want javascript", chunk.Language)
		}
	}
}

func TestParseFile_ComponentCaptures(t *testing.T) {
	source := `function Widget(props) {
  return <div>{props.label}</div>;
}

const Card = (props) => <span>{props.text}</span>;

function lowerHelper(x) {
  return x + 1;
}
`
	c := New()
	chunks, err := c.ParseFile(context.Background(), "Widget.jsx", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	byType := map[types.ChunkType][]types.CodeChunk{}
	for _, chunk := range chunks {
		byType[chunk.ChunkType] = append(byType[chunk.ChunkType], chunk)
	}

	if len(byType[types.ChunkComponent]) != 2 {
		t.Fatalf("expected 2 component chunks, got %d (%+v)", len(byType[types.ChunkComponent]), chunks)
	}
	symbols := map[string]bool{}
	for _, chunk := range byType[types.ChunkComponent] {
		symbols[chunk.SymbolName] = true
	}
	if !symbols["Widget"] || !symbols["Card"] {
		t.Errorf("component symbols = %v, want Widget and Card", symbols)
	}

	// Components must not additionally appear as plain functions.
	for _, chunk := range byType[types.ChunkFunction] {
		if chunk.SymbolName == "Widget" {
			t.Error("Widget must be classified as component, not duplicated as function")
		}
	}
	for _, chunk := range byType[types.ChunkArrowFunction] {
		if chunk.SymbolName == "Card" {
			t.Error("Card must be classified as component, not duplicated as arrow_function")
		}
	}

	if len(byType[types.ChunkFunction]) != 1 || byType[types.ChunkFunction][0].SymbolName != "lowerHelper" {
		t.Errorf("lowercase function must stay a plain function, got %+v", byType[types.ChunkFunction])
	}
}

func TestParseFile_PlainTypeScriptHasNoComponents(t *testing.T) {
	source := "function Factory(n: number): number {\n  return n * 2;\n}\n"
	c := New()
	chunks, err := c.ParseFile(context.Background(), "factory.ts", []byte(source))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	for _, chunk := range chunks {
		if chunk.ChunkType == types.ChunkComponent {
			t.Errorf("non-JSX typescript must not emit components: %+v", chunk)
		}
	}
}

func TestExtractRelationships_CallsAndImports(t *testing.T) {
	source := `import { helper } from './helper';

function caller() {
  return helper();
}
`
	c := New()
	rels, err := c.ExtractRelationships(context.Background(), "caller.js", []byte(source))
	if err != nil {
		t.Fatalf("ExtractRelationships: %v", err)
	}

	var foundCall, foundImport bool
	for _, rel := range rels {
		switch rel.Type {
		case types.RelFunctionCall:
			if rel.Source == "caller" && rel.Target == "helper" {
				foundCall = true
			}
		case types.RelImport:
			if rel.Target == "./helper" {
				foundImport = true
			}
		}
		if rel.Location.FilePath != "caller.js" {
			t.Errorf("relationship location file = %q", rel.Location.FilePath)
		}
	}
	if !foundCall {
		t.Errorf("expected caller->helper function_call, got %+v", rels)
	}
	if !foundImport {
		t.Errorf("expected import of ./helper (quotes stripped), got %+v", rels)
	}
}

func TestExtractRelationships_Inheritance(t *testing.T) {
	source := `class Base {}
class Child extends Base {
  method() {}
}
`
	c := New()
	rels, err := c.ExtractRelationships(context.Background(), "inherit.js", []byte(source))
	if err != nil {
		t.Fatalf("ExtractRelationships: %v", err)
	}

	found := false
	for _, rel := range rels {
		if rel.Type == types.RelInheritance && rel.Source == "Child" && rel.Target == "Base" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Child->Base inheritance, got %+v", rels)
	}
}

func TestExtractRelationships_AnonymousEnclosingSymbol(t *testing.T) {
	source := "helper();\n"
	c := New()
	rels, err := c.ExtractRelationships(context.Background(), "top.js", []byte(source))
	if err != nil {
		t.Fatalf("ExtractRelationships: %v", err)
	}
	for _, rel := range rels {
		if rel.Type == types.RelFunctionCall && rel.Source != "anonymous" {
			t.Errorf("top-level call source = %q, want anonymous", rel.Source)
		}
	}
}

func TestParseFile_UnsupportedFallsBack(t *testing.T) {
	content := strings.Repeat("line\n", 120)
	c := New()
	chunks, err := c.ParseFile(context.Background(), "data.json", []byte(content))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("121 lines should yield 3 fallback chunks, got %d", len(chunks))
	}
	if chunks[0].Language != "json" {
		t.Errorf("fallback keeps the mapped language label, got %q", chunks[0].Language)
	}
}

func TestUpdateTree_IncrementalReparse(t *testing.T) {
	c := New()
	lang := languages["javascript"]

	oldSource := []byte("const a = 1;\n")
	oldTree, err := c.parse(context.Background(), lang, nil, oldSource)
	if err != nil {
		t.Fatalf("initial parse: %v", err)
	}
	defer oldTree.Close()

	// Replace "1" with "42" at byte offset 10.
	newSource := []byte("const a = 42;\n")
	tree, err := c.UpdateTree(context.Background(), "javascript", oldTree, Edit{
		StartIndex:  10,
		OldEndIndex: 11,
		NewEndIndex: 12,
		StartPoint:  sitterPoint(0, 10),
		OldEndPoint: sitterPoint(0, 11),
		NewEndPoint: sitterPoint(0, 12),
	}, newSource)
	if err != nil {
		t.Fatalf("update tree: %v", err)
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		t.Error("incrementally reparsed tree must be error-free")
	}
}

func TestUpdateTree_NilOldTreeFullParse(t *testing.T) {
	c := New()
	tree, err := c.UpdateTree(context.Background(), "typescript", nil, Edit{}, []byte("let x: number = 1;\n"))
	if err != nil {
		t.Fatalf("full-parse fallback: %v", err)
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		t.Error("fallback parse must produce a valid tree")
	}
}

func TestUpdateTree_UnsupportedLanguage(t *testing.T) {
	c := New()
	if _, err := c.UpdateTree(context.Background(), "cobol", nil, Edit{}, []byte("x")); err == nil {
		t.Error("unsupported language must error")
	}
}

func TestQueryCache_CompileOnce(t *testing.T) {
	c := New()
	lang := languages["javascript"]
	q1, err := c.compiledQuery(lang, lang.DeclarationQuery)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	q2, err := c.compiledQuery(lang, lang.DeclarationQuery)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if q1 != q2 {
		t.Error("same (language, queryText) must return the cached query")
	}
}
