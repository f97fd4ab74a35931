package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseBatchResponse parses the provider's JSON-array response for a chunk
// of n transactions. Entries with out-of-range indexes are dropped rather
// than failing the whole chunk; a response with no usable entries is an
// error.
func ParseBatchResponse(content string, n int) ([]Suggestion, error) {
	cleaned := cleanMarkdownWrapper(content)

	// Providers sometimes prepend prose despite instructions; recover by
	// slicing out the outermost array.
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	cleaned = cleaned[start : end+1]

	var raw []struct {
		Category   string  `json:"category"`
		Reasoning  string  `json:"reasoning"`
		Index      int     `json:"index"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(raw))
	for _, entry := range raw {
		if entry.Index < 1 || entry.Index > n {
			continue
		}
		if strings.TrimSpace(entry.Category) == "" {
			continue
		}

		confidence := entry.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}

		suggestions = append(suggestions, Suggestion{
			Index:        entry.Index,
			CategoryName: strings.TrimSpace(entry.Category),
			Confidence:   confidence,
			Reasoning:    strings.TrimSpace(entry.Reasoning),
		})
	}

	if len(suggestions) == 0 {
		return nil, fmt.Errorf("response contained no usable suggestions")
	}

	return suggestions, nil
}

// cleanMarkdownWrapper strips ```json fences that providers wrap around
// structured output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
