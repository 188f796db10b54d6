// Package textindex implements a small TF-IDF vectorizer with cosine
// similarity, built from primitives so the engine carries no model runtime
// or embedding service dependency. An Index is write-once: Fit it, then
// share it read-only across goroutines.
package textindex

import (
	"math"
	"sort"
	"strings"
)

// stopWords are dropped during tokenization. Deliberately small: inventory
// documents are terse and most words carry signal.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"with": true, "for": true, "of": true, "to": true, "in": true,
	"on": true, "at": true, "this": true, "that": true, "it": true,
	"its": true, "as": true, "by": true, "from": true, "has": true,
	"have": true, "had": true,
}

// Tokenize lowercases, maps every non-alphanumeric rune to a space, splits
// on whitespace, and drops single-character tokens and stop words.
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, strings.ToLower(text))
	fields := strings.Fields(mapped)
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len(tok) <= 1 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Index holds a learned vocabulary and its smoothed IDF table.
type Index struct {
	idf    map[string]float64
	vocab  []string
	docs   int
	fitted bool
}

// Fit learns the vocabulary and document frequencies from the corpus, using
// smoothed inverse document frequency ln((N+1)/(df+1)) + 1 so every fitted
// term keeps a positive weight. Fitting again with the same corpus yields an
// identical index.
func (ix *Index) Fit(corpus []string) {
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	n := len(corpus)
	ix.idf = make(map[string]float64, len(df))
	ix.vocab = make([]string, 0, len(df))
	for tok, d := range df {
		ix.idf[tok] = math.Log(float64(n+1)/float64(d+1)) + 1
		ix.vocab = append(ix.vocab, tok)
	}
	sort.Strings(ix.vocab)
	ix.docs = n
	ix.fitted = true
}

// Fitted reports whether Fit has run.
func (ix *Index) Fitted() bool { return ix != nil && ix.fitted }

// Docs returns the number of documents the index was fitted on.
func (ix *Index) Docs() int {
	if ix == nil {
		return 0
	}
	return ix.docs
}

// Vocabulary returns the sorted fitted vocabulary. Callers must not modify it.
func (ix *Index) Vocabulary() []string {
	if ix == nil {
		return nil
	}
	return ix.vocab
}

// Transform vectorizes text against the fitted vocabulary: augmented term
// frequency (0.5 + 0.5*tf/maxtf, bounding single-term dominance) times IDF.
// Terms outside the vocabulary contribute nothing. Transform is pure; an
// unfitted index returns an empty map.
func (ix *Index) Transform(text string) map[string]float64 {
	vec := make(map[string]float64)
	if ix == nil || !ix.fitted {
		return vec
	}
	counts := make(map[string]int)
	maxTF := 0
	for _, tok := range Tokenize(text) {
		counts[tok]++
		if counts[tok] > maxTF {
			maxTF = counts[tok]
		}
	}
	if maxTF == 0 {
		return vec
	}
	for tok, tf := range counts {
		idf, ok := ix.idf[tok]
		if !ok {
			continue
		}
		vec[tok] = (0.5 + 0.5*float64(tf)/float64(maxTF)) * idf
	}
	return vec
}

// Cosine returns the cosine similarity of two sparse vectors. Empty or
// zero-magnitude vectors compare as 0.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for tok, av := range a {
		if bv, ok := b[tok]; ok {
			dot += av * bv
		}
	}
	ma, mb := magnitude(a), magnitude(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	return dot / (ma * mb)
}

func magnitude(v map[string]float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
