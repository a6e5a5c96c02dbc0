package memory

import (
	"context"
	"time"

	"docmind/internal/apperr"
	"docmind/internal/embedding"
	"docmind/internal/vectorindex"
)

// LongTerm writes memory events into the vector store, domain-tagged so
// retrieval can be scoped to a single conversation domain, mirroring the
// teacher's UpsertChunkEmbeddings payload-tagging convention.
type LongTerm struct {
	vec        *vectorindex.Writer
	dispatcher *embedding.Dispatcher
}

// NewLongTerm builds a LongTerm writer.
func NewLongTerm(vec *vectorindex.Writer, dispatcher *embedding.Dispatcher) *LongTerm {
	return &LongTerm{vec: vec, dispatcher: dispatcher}
}

// Write embeds and upserts a single event. If the embedding backend had to
// fall back to a degraded vector, the event is still indexed (so every
// other operation keeps working against it) but Write returns a Degraded
// error so the caller can queue a re-embed once the primary backend
// recovers.
func (l *LongTerm) Write(ctx context.Context, e Event) error {
	embs, degraded, err := l.dispatcher.EmbedManyTracked(ctx, []string{e.Text})
	if err != nil {
		return err
	}
	md := map[string]string{"type": "memory_event", "domain": e.Domain, "created_at": e.CreatedAt}
	for k, v := range e.Metadata {
		md[k] = v
	}
	if err := l.vec.Upsert(ctx, "memory:"+e.ID, embs[0], md); err != nil {
		return err
	}
	if degraded {
		return apperr.New(apperr.Degraded, "event indexed with a degraded embedding, pending re-embed", nil)
	}
	return nil
}

// Search finds the k nearest memory events for a query, optionally scoped
// to domain.
func (l *LongTerm) Search(ctx context.Context, query string, domain string, k int) ([]vectorindex.Result, error) {
	embs, err := l.dispatcher.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	filter := map[string]string{"type": "memory_event"}
	if domain != "" {
		filter["domain"] = domain
	}
	return l.vec.Search(ctx, embs[0], k, filter)
}

// NewEvent is a small constructor helper keeping CreatedAt formatting
// consistent across tiers.
func NewEvent(id, domain, text string, metadata map[string]string, now time.Time) Event {
	return Event{ID: id, Domain: domain, Text: text, Metadata: metadata, CreatedAt: now.UTC().Format(time.RFC3339)}
}
