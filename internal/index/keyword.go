package index

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/bull/corpus-agent/internal/storage"
)

// BM25 parameters, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// stopwords are excluded from both corpus and query tokens.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "he": true, "her": true, "his": true, "if": true, "in": true,
	"into": true, "is": true, "it": true, "its": true, "no": true, "not": true,
	"of": true, "on": true, "or": true, "she": true, "such": true, "that": true,
	"the": true, "their": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "what": true, "when": true, "where": true,
	"which": true, "who": true, "you": true, "your": true,
}

// tokenize splits text into lowercase alphanumeric tokens with stopwords
// removed.
func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// keywordDoc is one corpus entry in the keyword structure.
type keywordDoc struct {
	chunk  storage.Chunk
	counts map[string]int
	length int
}

// keywordIndex is an immutable BM25 ranking structure over a chunk set.
// It is a pure function of the chunks it was built from; the Hybrid index
// swaps in a freshly built instance after every mutation.
type keywordIndex struct {
	docs    []keywordDoc
	docFreq map[string]int
	avgLen  float64
}

// buildKeywordIndex constructs the structure from the full chunk set.
func buildKeywordIndex(chunks []storage.Chunk) *keywordIndex {
	ix := &keywordIndex{
		docFreq: make(map[string]int),
	}

	totalLen := 0
	for _, chunk := range chunks {
		terms := tokenize(chunk.Text)
		counts := make(map[string]int, len(terms))
		for _, term := range terms {
			counts[term]++
		}
		for term := range counts {
			ix.docFreq[term]++
		}
		totalLen += len(terms)
		ix.docs = append(ix.docs, keywordDoc{
			chunk:  chunk,
			counts: counts,
			length: len(terms),
		})
	}
	if len(ix.docs) > 0 {
		ix.avgLen = float64(totalLen) / float64(len(ix.docs))
	}
	return ix
}

// search scores every corpus document against the query with BM25 and returns
// the top limit hits by descending score. Zero and negative scores are
// excluded.
func (ix *keywordIndex) search(query string, limit int) []Result {
	if ix == nil || len(ix.docs) == 0 || limit <= 0 {
		return nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	n := float64(len(ix.docs))
	type scored struct {
		doc   int
		score float64
	}
	var hits []scored

	for i, doc := range ix.docs {
		score := 0.0
		for _, term := range queryTerms {
			tf := float64(doc.counts[term])
			if tf == 0 {
				continue
			}
			df := float64(ix.docFreq[term])
			// ln(1+x) form keeps idf positive even for very common terms.
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/ix.avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, scored{doc: i, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		chunk := ix.docs[h.doc].chunk
		results = append(results, Result{
			ChunkID:      chunk.ID,
			Text:         chunk.Text,
			SourceID:     chunk.SourceID,
			Category:     chunk.Category,
			Tags:         chunk.Tags,
			KeywordScore: h.score,
			Keyword:      true,
		})
	}
	return results
}
