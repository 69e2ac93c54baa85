package orchestrator

import (
	"fmt"
	"strings"
)

// Category-specific focus lines appended to the analyzer prompt.
var categoryFocus = map[string]string{
	"financials":  "Focus on revenue figures, margins, burn rate, runway and any financial projections shown in charts or tables.",
	"competition": "Focus on the competitive landscape: named competitors, positioning axes and claimed differentiation.",
	"market":      "Focus on market sizing (TAM/SAM/SOM), segments and growth claims.",
	"traction":    "Focus on traction metrics: users, customers, growth rates, retention and engagement figures.",
	"team":        "Focus on the team: founders, roles, notable prior experience and advisors.",
	"general":     "Describe the key information this page conveys, including any charts, diagrams or tables.",
}

// BuildPrompt produces the structured analyzer prompt for a selected page.
func BuildPrompt(page int, category string) string {
	focus, ok := categoryFocus[category]
	if !ok {
		focus = categoryFocus["general"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing page %d of an investor document rendered as an image.\n", page)
	b.WriteString("Extract every concrete fact visible on the page, preserving numbers exactly as shown.\n")
	b.WriteString(focus)
	b.WriteString("\nAnswer with a concise structured summary; do not speculate about content that is not visible.")
	return b.String()
}

// ContextText assembles extracted text from the pages around pageNum
// (within radius) to ground the visual analysis.
func ContextText(pageTexts map[int]string, pageNum, radius int) string {
	var parts []string

	for i := pageNum - radius; i < pageNum; i++ {
		if i > 0 {
			if text, ok := pageTexts[i]; ok && text != "" {
				parts = append(parts, fmt.Sprintf("=== Page %d (context) ===\n%s", i, text))
			}
		}
	}

	if text, ok := pageTexts[pageNum]; ok && text != "" {
		parts = append(parts, fmt.Sprintf("=== Page %d (current) ===\n%s", pageNum, text))
	}

	for i := pageNum + 1; i <= pageNum+radius; i++ {
		if text, ok := pageTexts[i]; ok && text != "" {
			parts = append(parts, fmt.Sprintf("=== Page %d (context) ===\n%s", i, text))
		}
	}

	return strings.Join(parts, "\n\n")
}
