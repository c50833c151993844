package analyzer

import "google.golang.org/genai"

// reviewSchema constrains the model's output to the analysis result shape:
// a summary plus a list of line-anchored issues.
func reviewSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "One-paragraph review summary for this file",
			},
			"issues": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"line": {
							Type:        genai.TypeInteger,
							Description: "1-indexed line number in the new file",
						},
						"severity": {
							Type: genai.TypeString,
							Enum: []string{"critical", "warning", "info"},
						},
						"category": {
							Type: genai.TypeString,
							Enum: []string{"security", "bug", "performance", "maintainability"},
						},
						"message": {
							Type:        genai.TypeString,
							Description: "Short statement of the problem",
						},
						"suggestion": {
							Type:        genai.TypeString,
							Description: "Replacement code or concrete fix",
						},
						"explanation": {
							Type:        genai.TypeString,
							Description: "Why this matters",
						},
					},
					Required: []string{"line", "severity", "category", "message"},
				},
			},
		},
		Required: []string{"summary", "issues"},
	}
}
