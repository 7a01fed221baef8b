package llm

// EstimateTokens approximates the token count of text. One token per
// three runes tracks common tokenizers closely enough for budgeting.
func EstimateTokens(text string) int {
	return len([]rune(text)) / 3
}

// InputBudget is the share of a model's input window available to page
// content; the rest is reserved for the schema and prompt scaffolding.
func InputBudget(maxInputTokens int) int {
	return maxInputTokens * 8 / 10
}

// TrimToBudget shortens markdown until it fits the token budget,
// removing at most 20% per step so a slightly-over document is not
// gutted.
func TrimToBudget(markdown string, budget int) string {
	if budget <= 0 {
		return markdown
	}
	runes := []rune(markdown)
	for EstimateTokens(string(runes)) > budget && len(runes) > 0 {
		keep := len(runes) * 8 / 10
		if need := budget * 3; need < keep {
			keep = need
		}
		runes = runes[:keep]
	}
	return string(runes)
}
