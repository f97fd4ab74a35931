// Package ai implements the last-resort external classification tier:
// similarity caching, per-user daily quotas, deduplicated batching, and the
// provider client.
package ai

import (
	"context"
)

// Client defines the interface to the external text-completion provider.
type Client interface {
	// Complete sends a prompt and returns the raw completion text. A
	// provider-side quota signal surfaces as common.ErrRateLimit.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Suggestion is one parsed entry of the provider's batch response.
type Suggestion struct {
	CategoryName string
	Reasoning    string
	Index        int
	Confidence   float64
}
