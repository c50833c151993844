package metrics

import (
	"strings"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// Semantic type names assigned during classification.
const (
	SemanticAuthentication = "authentication"
	SemanticDataAccess     = "data-access"
	SemanticUIComponent    = "ui-component"
	SemanticAPIEndpoint    = "api-endpoint"
	SemanticTest           = "test"
	SemanticValidation     = "validation"
	SemanticErrorHandling  = "error-handling"
	SemanticConfig         = "config"
	SemanticUtility        = "utility"
	SemanticBusinessLogic  = "business-logic"
	SemanticUnclassified   = "unclassified"
)

// semanticRule maps a semantic type to its trigger keywords. Order matters:
// the first matching rule wins.
type semanticRule struct {
	name     string
	keywords []string
}

var semanticRules = []semanticRule{
	{SemanticAuthentication, []string{"auth", "login", "password", "token", "session", "credential", "oauth", "permission", "jwt"}},
	{SemanticDataAccess, []string{"query", "insert", "update", "delete", "select", "database", "repository", "findone", "findmany", "prisma", "mongoose", "sql"}},
	{SemanticUIComponent, []string{"render", "component", "props", "usestate", "useeffect", "jsx", "classname", "onclick"}},
	{SemanticAPIEndpoint, []string{"router", "endpoint", "request", "response", "res.send", "res.json", "app.get", "app.post", "handler"}},
	{SemanticTest, []string{"describe(", "it(", "test(", "expect(", "assert", "mock", "spec"}},
	{SemanticValidation, []string{"validate", "sanitize", "schema", "isvalid", "check", "verify"}},
	{SemanticErrorHandling, []string{"try", "catch", "throw", "error", "exception", "finally"}},
	{SemanticConfig, []string{"config", "env", "setting", "option", "constant"}},
	{SemanticUtility, []string{"util", "helper", "format", "parse", "convert", "transform"}},
}

// ClassifySemanticType assigns a high-level purpose classification to a chunk
// via case-insensitive keyword matching in fixed priority order. Chunks with
// no match default to business-logic for functions and methods, otherwise
// unclassified.
func ClassifySemanticType(chunk types.CodeChunk) string {
	text := strings.ToLower(chunk.Text)
	for _, rule := range semanticRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.name
			}
		}
	}
	switch chunk.ChunkType {
	case types.ChunkFunction, types.ChunkMethod, types.ChunkArrowFunction:
		return SemanticBusinessLogic
	}
	return SemanticUnclassified
}
