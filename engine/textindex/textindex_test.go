package textindex

import (
	"math"
	"reflect"
	"testing"
)

var corpus = []string{
	"2022 Chevrolet Equinox LT suv awd backup camera heated seats",
	"2021 Ford F-150 XLT truck 4wd tow package crew cab",
	"2023 Toyota Sienna minivan hybrid third row sliding doors",
	"2020 Honda Civic sedan fwd backup camera apple carplay",
}

func fitted(t *testing.T) *Index {
	t.Helper()
	ix := &Index{}
	ix.Fit(corpus)
	return ix
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The 2021 F-150, with Tow-Package!")
	want := []string{"2021", "150", "tow", "package"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
	if len(Tokenize("")) != 0 {
		t.Error("empty input should yield no tokens")
	}
	if len(Tokenize("a I ! ?")) != 0 {
		t.Error("single-char tokens should be dropped")
	}
}

func TestSelfSimilarityIsOne(t *testing.T) {
	ix := fitted(t)
	for _, doc := range corpus {
		v := ix.Transform(doc)
		if len(v) == 0 {
			t.Fatalf("empty vector for %q", doc)
		}
		if sim := Cosine(v, v); math.Abs(sim-1.0) > 1e-9 {
			t.Errorf("self similarity = %v, want 1.0", sim)
		}
	}
}

func TestSimilarityIsSymmetric(t *testing.T) {
	ix := fitted(t)
	a := ix.Transform(corpus[0])
	b := ix.Transform(corpus[1])
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("cosine should be symmetric")
	}
}

func TestRelatedDocsScoreHigher(t *testing.T) {
	ix := fitted(t)
	query := ix.Transform("suv with backup camera and heated seats")
	suv := ix.Transform(corpus[0])
	van := ix.Transform(corpus[2])
	if Cosine(query, suv) <= Cosine(query, van) {
		t.Error("suv query should match the suv document better than the minivan")
	}
}

func TestUnseenTermsContributeNothing(t *testing.T) {
	ix := fitted(t)
	v := ix.Transform("submarine quantum zeppelin")
	if len(v) != 0 {
		t.Errorf("out-of-vocabulary text should vectorize empty, got %v", v)
	}
	if Cosine(v, ix.Transform(corpus[0])) != 0 {
		t.Error("empty vector similarity should be 0")
	}
}

func TestRareTermsOutweighCommonOnes(t *testing.T) {
	ix := fitted(t)
	// "hybrid" appears in one document, "backup" in two: higher IDF wins
	// at equal term frequency.
	v := ix.Transform("hybrid backup")
	if v["hybrid"] <= v["backup"] {
		t.Errorf("rare term should weigh more: hybrid=%v backup=%v", v["hybrid"], v["backup"])
	}
}

func TestAugmentedTermFrequencyBounds(t *testing.T) {
	ix := fitted(t)
	v := ix.Transform("truck truck truck camera")
	// maxtf term gets the full IDF; a tf-1 term in the same text gets at
	// least half of its own IDF.
	vocabIDF := func(tok string) float64 { return ix.idf[tok] }
	if math.Abs(v["truck"]-vocabIDF("truck")) > 1e-9 {
		t.Errorf("dominant term should carry weight == idf, got %v want %v", v["truck"], vocabIDF("truck"))
	}
	low := 0.5 + 0.5/3.0
	if math.Abs(v["camera"]-low*vocabIDF("camera")) > 1e-9 {
		t.Errorf("minor term weight = %v, want %v", v["camera"], low*vocabIDF("camera"))
	}
}

func TestFitIsIdempotent(t *testing.T) {
	a := &Index{}
	a.Fit(corpus)
	b := &Index{}
	b.Fit(corpus)
	b.Fit(corpus)
	if !reflect.DeepEqual(a.idf, b.idf) {
		t.Error("refitting the same corpus should produce the same idf table")
	}
	if !reflect.DeepEqual(a.Vocabulary(), b.Vocabulary()) {
		t.Error("vocabulary should be stable across refits")
	}
}

func TestVocabularyIsSorted(t *testing.T) {
	ix := fitted(t)
	vocab := ix.Vocabulary()
	for i := 1; i < len(vocab); i++ {
		if vocab[i-1] >= vocab[i] {
			t.Fatalf("vocabulary not sorted at %d: %q >= %q", i, vocab[i-1], vocab[i])
		}
	}
	if ix.Docs() != len(corpus) {
		t.Errorf("Docs() = %d, want %d", ix.Docs(), len(corpus))
	}
}

func TestUnfittedIndexIsSafe(t *testing.T) {
	var nilIx *Index
	if nilIx.Fitted() || nilIx.Docs() != 0 || nilIx.Vocabulary() != nil {
		t.Error("nil index accessors should be safe")
	}
	if len(nilIx.Transform("anything")) != 0 {
		t.Error("nil index should transform to empty")
	}
	blank := &Index{}
	if blank.Fitted() {
		t.Error("zero-value index should not report fitted")
	}
	if len(blank.Transform("truck")) != 0 {
		t.Error("unfitted index should transform to empty")
	}
}

func TestCosineGuards(t *testing.T) {
	if Cosine(nil, nil) != 0 {
		t.Error("nil vectors should compare 0")
	}
	zero := map[string]float64{"x": 0}
	if Cosine(zero, zero) != 0 {
		t.Error("zero-magnitude vectors should compare 0")
	}
}
