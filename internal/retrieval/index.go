// Package retrieval implements the Retrieval Index (C2): chunking a
// regulatory corpus, embedding chunks into a fixed-dimension vector space,
// and serving k-NN search with metadata filtering, degrading to a lexical
// TF-IDF scorer when embeddings are unavailable.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"sentinel/internal/config"
	"sentinel/internal/modeladapter"
	"sentinel/internal/observability"
)

// DocumentChunk is one chunk of an ingested document, post-embedding.
type DocumentChunk struct {
	DocumentID string
	Ordinal    int
	Text       string
	Embedding  []float32
	Metadata   map[string]string
}

// IngestResult reports what Ingest did for one document, including per-chunk
// embedding failures so a caller can decide whether partial ingestion is
// acceptable.
type IngestResult struct {
	DocumentID   string
	ChunksStored int
	Skipped      bool
	Errors       []error
}

// Index is the handle handlers and C1 prompts are built from. Embed
// dimension is fixed at construction: Search rejects any query embedding of
// the wrong length with ErrDimensionMismatch.
type Index struct {
	adapter  modeladapter.Adapter
	store    VectorStore
	lexical  *LexicalIndex
	policy   config.ReingestPolicy
	dimension int

	docHashes map[string]string // documentID -> content hash, for skip_if_unchanged
}

// ErrDimensionMismatch reports an embedding whose length does not equal the
// configured dimension: Ingest records it in IngestResult.Errors and skips
// that chunk, and Search returns it for such a query embedding.
var ErrDimensionMismatch = fmt.Errorf("retrieval: embedding dimension mismatch")

// NewIndex constructs an Index. store serves exact or approximate k-NN
// depending on which VectorStore implementation is passed (MemoryStore vs
// QdrantStore); lexical always runs alongside as the degrade-don't-drop path.
func NewIndex(adapter modeladapter.Adapter, store VectorStore, dimension int, policy config.ReingestPolicy) *Index {
	return &Index{
		adapter:   adapter,
		store:     store,
		lexical:   NewLexicalIndex(),
		policy:    policy,
		dimension: dimension,
		docHashes: make(map[string]string),
	}
}

// Ingest chunks text, embeds each chunk, and stores the chunks. Re-ingesting
// the same document_id follows the configured ReingestPolicy:
// skip_if_unchanged does nothing when the content hash is unchanged and
// otherwise replaces all chunks; overwrite replaces all chunks; new_version
// deletes nothing, so new chunks replace stored chunks with the same ordinal
// and stored chunks at higher ordinals remain, with no version tag added to
// Metadata. Replacement deletes the prior chunks before the new ones are
// embedded and upserted, so it is not a single atomic swap: a concurrent
// Search can find none of the document's chunks in between.
func (idx *Index) Ingest(ctx context.Context, documentID, text string, metadata map[string]string, chunkSizeChars, chunkOverlapChars int) (IngestResult, error) {
	hash := contentHash(text)

	if idx.policy == config.ReingestSkipIfUnchanged {
		if prev, ok := idx.docHashes[documentID]; ok && prev == hash {
			return IngestResult{DocumentID: documentID, Skipped: true}, nil
		}
	}

	chunks := ChunkText(text, chunkSizeChars, chunkOverlapChars)
	if len(chunks) == 0 {
		return IngestResult{DocumentID: documentID}, nil
	}

	if idx.policy == config.ReingestOverwrite || idx.policy == config.ReingestSkipIfUnchanged {
		if err := idx.store.Delete(ctx, documentID); err != nil {
			return IngestResult{}, fmt.Errorf("retrieval: delete prior chunks: %w", err)
		}
		idx.lexical.Delete(documentID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var result IngestResult
	result.DocumentID = documentID

	vectors, err := idx.adapter.Embed(ctx, texts)
	if err != nil {
		observability.WithTrace(ctx).Warn().Err(err).Str("document_id", documentID).Msg("retrieval_embed_degraded")
		result.Errors = append(result.Errors, err)
		vectors = nil
	}

	points := make([]VectorPoint, 0, len(chunks))
	for i, c := range chunks {
		idx.lexical.Upsert(documentID, c.Ordinal, c.Text, metadata)

		if vectors == nil || i >= len(vectors) {
			continue
		}
		if len(vectors[i]) != idx.dimension {
			result.Errors = append(result.Errors, fmt.Errorf("%w: chunk %d has %d dims, want %d", ErrDimensionMismatch, i, len(vectors[i]), idx.dimension))
			continue
		}
		points = append(points, VectorPoint{
			ID:         fmt.Sprintf("%s:%d", documentID, c.Ordinal),
			Vector:     vectors[i],
			Metadata:   metadata,
			DocumentID: documentID,
			Ordinal:    c.Ordinal,
		})
	}

	if len(points) > 0 {
		if err := idx.store.Upsert(ctx, points); err != nil {
			return result, fmt.Errorf("retrieval: upsert chunks: %w", err)
		}
	}

	idx.docHashes[documentID] = hash
	result.ChunksStored = len(points)
	return result, nil
}

// SearchResult is one scored chunk returned by Search, with FallbackUsed set
// when the lexical scorer served the query because embedding was
// unavailable.
type SearchResult struct {
	DocumentID   string
	Ordinal      int
	Score        float64
	Metadata     map[string]string
	FallbackUsed bool
}

// Search embeds query and returns up to k chunks matching filter, sorted by
// non-increasing similarity with deterministic (document_id, ordinal)
// tie-breaking. Falls back to lexical TF-IDF scoring when embedding fails,
// per the degrade-don't-drop policy.
func (idx *Index) Search(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	vec, err := idx.adapter.Embed(ctx, []string{query})
	if err != nil || len(vec) == 0 {
		observability.WithTrace(ctx).Warn().Err(err).Msg("retrieval_search_lexical_fallback")
		return idx.searchLexical(ctx, query, k, filter)
	}
	if len(vec[0]) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dims, want %d", ErrDimensionMismatch, len(vec[0]), idx.dimension)
	}

	hits, err := idx.store.Search(ctx, vec[0], k, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector search: %w", err)
	}
	return toSearchResults(hits, false), nil
}

func (idx *Index) searchLexical(ctx context.Context, query string, k int, filter map[string]string) ([]SearchResult, error) {
	hits, err := idx.lexical.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	return toSearchResults(hits, true), nil
}

func toSearchResults(hits []VectorResult, fallback bool) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			DocumentID:   h.DocumentID,
			Ordinal:      h.Ordinal,
			Score:        h.Score,
			Metadata:     h.Metadata,
			FallbackUsed: fallback,
		}
	}
	return out
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
