package chunker

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language bundles a tree-sitter grammar with the queries that drive chunk
// and relationship extraction for it.
type Language struct {
	Name             string
	Grammar          *sitter.Language
	DeclarationQuery string
	ImportQuery      string
	CallQuery        string
	InheritanceQuery string
}

// jsDeclarations covers the constructs surfaced as chunks in JavaScript.
// Capture names double as chunk types.
const jsDeclarations = `
(class_declaration) @class
(function_declaration) @function
(generator_function_declaration) @function
(method_definition) @method
(variable_declarator value: (arrow_function)) @arrow_function
`

// componentPatterns flags uppercase-named functions and arrow functions as
// components in the JSX-bearing grammars. A node matched here also matches
// the plain function/arrow patterns; the chunker keeps the component
// classification for it.
const componentPatterns = `
(function_declaration name: (identifier) @_component_name
  (#match? @_component_name "^[A-Z]")) @component
(variable_declarator name: (identifier) @_component_name value: (arrow_function)
  (#match? @_component_name "^[A-Z]")) @component
`

const jsImports = `
(import_statement) @import
`

const jsCalls = `
(call_expression function: (identifier) @callee) @call
(call_expression function: (member_expression property: (property_identifier) @callee)) @call
`

const jsInheritance = `
(class_declaration name: (identifier) @child (class_heritage (identifier) @parent)) @inherit
`

// tsDeclarations extends the JavaScript set with TypeScript-only constructs.
const tsDeclarations = `
(class_declaration) @class
(abstract_class_declaration) @class
(function_declaration) @function
(method_definition) @method
(variable_declarator value: (arrow_function)) @arrow_function
(interface_declaration) @interface
(type_alias_declaration) @type
(enum_declaration) @enum
`

const tsInheritance = `
(class_declaration name: (type_identifier) @child (class_heritage (extends_clause (identifier) @parent))) @inherit
`

const javaDeclarations = `
(class_declaration) @class
(interface_declaration) @interface
(enum_declaration) @enum
(method_declaration) @method
(constructor_declaration) @method
`

const javaImports = `
(import_declaration) @import
`

const javaCalls = `
(method_invocation name: (identifier) @callee) @call
`

const javaInheritance = `
(class_declaration name: (identifier) @child superclass: (superclass (type_identifier) @parent)) @inherit
`

var languages = map[string]*Language{
	"javascript": {
		Name:             "javascript",
		Grammar:          javascript.GetLanguage(),
		DeclarationQuery: jsDeclarations + componentPatterns,
		ImportQuery:      jsImports,
		CallQuery:        jsCalls,
		InheritanceQuery: jsInheritance,
	},
	"typescript": {
		Name:             "typescript",
		Grammar:          typescript.GetLanguage(),
		DeclarationQuery: tsDeclarations,
		ImportQuery:      jsImports,
		CallQuery:        jsCalls,
		InheritanceQuery: tsInheritance,
	},
	"tsx": {
		Name:             "tsx",
		Grammar:          tsx.GetLanguage(),
		DeclarationQuery: tsDeclarations + componentPatterns,
		ImportQuery:      jsImports,
		CallQuery:        jsCalls,
		InheritanceQuery: tsInheritance,
	},
	"java": {
		Name:             "java",
		Grammar:          java.GetLanguage(),
		DeclarationQuery: javaDeclarations,
		ImportQuery:      javaImports,
		CallQuery:        javaCalls,
		InheritanceQuery: javaInheritance,
	},
}

// extensionLanguages maps file extensions to language names. Names without a
// grammar entry (json) fall back to fixed-size line chunking but keep their
// language label.
var extensionLanguages = map[string]string{
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".java": "java",
	".json": "json",
}

// LanguageForFile resolves the language name for a path. The second return
// reports whether a tree-sitter grammar backs it.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	name, ok := extensionLanguages[ext]
	if !ok {
		return "", false
	}
	_, parsed := languages[name]
	return name, parsed
}
