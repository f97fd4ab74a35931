package model

// Source identifies which tier of the pipeline produced a result.
type Source string

const (
	// SourcePattern marks results from learned identity patterns or
	// recurring/auto-pay detection.
	SourcePattern Source = "pattern"
	// SourceRule marks results from the deterministic rule classifier.
	SourceRule Source = "rule"
	// SourceAI marks results from the external classification provider.
	SourceAI Source = "ai"
)

// Result is the categorization outcome for a single transaction. A non-empty
// CategoryName with a nil CategoryID means the suggested name matched nothing
// in the user's catalog; the caller decides whether to create the category or
// treat the transaction as uncategorized.
type Result struct {
	CategoryID   *int64
	CategoryName string
	Reasoning    string
	Source       Source
	Confidence   float64
}

// Uncategorized returns the zero-confidence result used when every tier of
// the pipeline declined.
func Uncategorized(reasoning string) Result {
	return Result{
		Source:     SourceRule,
		Confidence: 0,
		Reasoning:  reasoning,
	}
}
