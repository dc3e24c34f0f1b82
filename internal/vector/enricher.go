package vector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk-ai/booking-assistant/internal/llm"
	"github.com/clinicdesk-ai/booking-assistant/pkg/logger"
)

const lookupTimeout = 5 * time.Second

// Enricher combines an embedder and the index into the optional semantic
// context capability. Every method degrades to a no-op on failure.
type Enricher struct {
	embedder llm.Embedder
	index    *Index
	logger   *logger.Logger
}

// NewEnricher creates an enricher. Either dependency may be nil, in which
// case enrichment is disabled.
func NewEnricher(embedder llm.Embedder, index *Index, log *logger.Logger) *Enricher {
	return &Enricher{embedder: embedder, index: index, logger: log}
}

func (e *Enricher) enabled() bool {
	return e != nil && e.embedder != nil && e.index != nil
}

// Remember indexes a conversation turn for future recall.
func (e *Enricher) Remember(ctx context.Context, id, text string, meta map[string]string) {
	if !e.enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, skipping index update", zap.Error(err))
		return
	}
	if err := e.index.Upsert(ctx, id, text, vec, meta); err != nil {
		e.logger.Warn("vector upsert failed", zap.Error(err))
	}
}

// Recall returns up to topK semantically similar past turns, or nothing on
// any failure.
func (e *Enricher) Recall(ctx context.Context, text string, topK int) []string {
	if !e.enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, skipping recall", zap.Error(err))
		return nil
	}

	matches, err := e.index.Search(ctx, vec, topK)
	if err != nil {
		e.logger.Warn("vector search failed", zap.Error(err))
		return nil
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text)
	}
	return out
}
