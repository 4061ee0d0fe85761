package llm

import (
	"errors"
	"fmt"
	"strings"
)

// defaultMaxTokens is the output budget used when none is configured. A
// judgment with five evidence items and four cards fits well inside it.
const defaultMaxTokens = 8192

// errNoText means a provider answered without any text to parse.
var errNoText = errors.New("response contained no text")

// tokenBudget returns maxTokens, or defaultMaxTokens when it is not positive.
// Anthropic rejects a zero max_tokens outright.
func tokenBudget(maxTokens int) int {
	if maxTokens <= 0 {
		return defaultMaxTokens
	}
	return maxTokens
}

// joinText concatenates the text parts of a reply. The judgment JSON may be
// split across parts, so they are joined without a separator.
func joinText(vendor, model string, parts []string) (string, error) {
	text := strings.Join(parts, "")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s %s: %w", vendor, model, errNoText)
	}
	return text, nil
}
