// Package enrich wraps the text-generation call with quota checks and
// graceful degradation: whatever goes wrong, the caller always gets usable
// description text back.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beneyalraj/listing/internal/ai"
	"github.com/beneyalraj/listing/internal/quota"
)

// Enricher converts a raw description into markdown. Implementations never
// fail the caller; degraded output is the raw input.
type Enricher interface {
	Enrich(ctx context.Context, text string) string
}

// Gate is the quota-governed enricher. Every model call is admitted through
// the ledger first; a rejected or failed call degrades to the raw text.
type Gate struct {
	provider ai.LLMProvider
	ledger   *quota.Ledger
	logger   *slog.Logger
}

// NewGate creates an enrichment gate.
func NewGate(provider ai.LLMProvider, ledger *quota.Ledger, logger *slog.Logger) *Gate {
	return &Gate{
		provider: provider,
		ledger:   ledger,
		logger:   logger,
	}
}

// Enrich formats text as markdown. Degradation rules, in order:
// empty input makes no call and comes back unchanged; a quota rejection
// returns the input; a provider failure releases the consumed daily slot and
// returns the input; an unexpectedly empty completion returns the input
// (content loss is worse than missing formatting).
func (g *Gate) Enrich(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	if err := g.ledger.Admit(ctx); err != nil {
		g.logger.Warn("quota rejected enrichment, keeping raw text", "error", err)
		return text
	}

	out, err := g.provider.Complete(ctx, formatPrompt(text))
	if err != nil {
		g.logger.Warn("enrichment call failed, keeping raw text", "error", err)
		g.ledger.Release()
		return text
	}

	out = strings.TrimSpace(out)
	if out == "" {
		g.logger.Warn("enrichment returned empty text for non-empty input, keeping raw text")
		return text
	}
	return out
}

func formatPrompt(text string) string {
	return fmt.Sprintf("Convert the following job description into Markdown format:\n\n---\n%s\n---\n", text)
}

// Passthrough is the enricher used when AI is disabled: input comes back
// unchanged, no quota is consumed.
type Passthrough struct{}

// NewPassthrough returns a Passthrough.
func NewPassthrough() *Passthrough { return &Passthrough{} }

// Enrich returns text unchanged.
func (p *Passthrough) Enrich(_ context.Context, text string) string { return text }
