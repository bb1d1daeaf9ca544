package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {},
}

func tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := stopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

type lexicalDoc struct {
	documentID string
	ordinal    int
	metadata   map[string]string
	termFreq   map[string]int
	length     int
}

// LexicalIndex is a TF-IDF scorer used when embeddings are unavailable
// (model_unavailable on embed, or no embedder configured). It never errors:
// an unscoreable query (all stop words, empty corpus) returns no results.
type LexicalIndex struct {
	mu        sync.RWMutex
	docs      map[string]*lexicalDoc // keyed by document_id:ordinal
	docFreq   map[string]int         // term -> number of chunks containing it
	docByDoc  map[string][]string    // documentID -> chunk keys, for Delete
}

func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		docs:     make(map[string]*lexicalDoc),
		docFreq:  make(map[string]int),
		docByDoc: make(map[string][]string),
	}
}

func lexicalKey(documentID string, ordinal int) string {
	return documentID + "#" + strconv.Itoa(ordinal)
}

// Upsert indexes text under (documentID, ordinal) for lexical search.
func (idx *LexicalIndex) Upsert(documentID string, ordinal int, text string, metadata map[string]string) {
	tokens := tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := lexicalKey(documentID, ordinal)
	if existing := idx.docs[key]; existing != nil {
		for term := range existing.termFreq {
			idx.docFreq[term]--
			if idx.docFreq[term] <= 0 {
				delete(idx.docFreq, term)
			}
		}
	} else {
		idx.docByDoc[documentID] = append(idx.docByDoc[documentID], key)
	}

	for term := range tf {
		idx.docFreq[term]++
	}
	idx.docs[key] = &lexicalDoc{
		documentID: documentID,
		ordinal:    ordinal,
		metadata:   metadata,
		termFreq:   tf,
		length:     len(tokens),
	}
}

// Delete removes every chunk indexed under documentID.
func (idx *LexicalIndex) Delete(documentID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, key := range idx.docByDoc[documentID] {
		doc := idx.docs[key]
		if doc == nil {
			continue
		}
		for term := range doc.termFreq {
			idx.docFreq[term]--
			if idx.docFreq[term] <= 0 {
				delete(idx.docFreq, term)
			}
		}
		delete(idx.docs, key)
	}
	delete(idx.docByDoc, documentID)
}

// Search scores query against every indexed chunk with classic TF-IDF
// (log-scaled idf), matching filter exactly on metadata key/value. Returns
// empty, not an error, for an empty corpus or an all-stop-word query.
func (idx *LexicalIndex) Search(ctx context.Context, query string, k int, filter map[string]string) ([]VectorResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}

	queryTF := make(map[string]int, len(terms))
	for _, t := range terms {
		queryTF[t]++
	}

	results := make([]VectorResult, 0)
	for _, doc := range idx.docs {
		if !matchesFilter(doc.metadata, filter) {
			continue
		}
		var score float64
		for term, qtf := range queryTF {
			tf := doc.termFreq[term]
			if tf == 0 {
				continue
			}
			df := idx.docFreq[term]
			idf := math.Log(1 + float64(n)/float64(df))
			score += float64(tf) * float64(qtf) * idf
		}
		if score <= 0 {
			continue
		}
		results = append(results, VectorResult{
			ID:         lexicalKey(doc.documentID, doc.ordinal),
			DocumentID: doc.documentID,
			Ordinal:    doc.ordinal,
			Score:      score,
			Metadata:   doc.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
