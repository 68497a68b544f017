package ai

import "context"

// LLMProvider sends a prompt to a text-generation model and returns the raw
// text response. Used only by the enrichment gate; not exported to the rest
// of the system.
type LLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
