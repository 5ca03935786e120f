package lexical

import "testing"

func TestTokenizeLowercasesAndPreservesJoiners(t *testing.T) {
	toks := Tokenize("The user's favorite coffee-shop is Monkey D. Luffy's place!")
	want := []string{"the", "user's", "favorite", "coffee-shop", "is", "monkey", "d", "luffy's", "place"}
	if len(toks) != len(want) {
		t.Fatalf("got %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token %d: got %q want %q", i, toks[i], want[i])
		}
	}
}

func TestStemsDropsStopwords(t *testing.T) {
	stems := Stems("the user is running quickly to the store")
	for _, s := range stems {
		if s == "the" || s == "is" || s == "to" {
			t.Fatalf("stopword %q leaked into stems: %v", s, stems)
		}
	}
	if len(stems) == 0 {
		t.Fatal("expected non-empty stems")
	}
}

func TestStemReducesRelatedForms(t *testing.T) {
	cases := map[string]string{
		"running":      "run",
		"runs":         "run",
		"connection":   "connect",
		"connections":  "connect",
		"nationalize":  "nation",
		"happiness":    "happi",
	}
	for in, want := range cases {
		got := Stem(in)
		if got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBM25ScoreFavorsQueryMatches(t *testing.T) {
	docs := map[string]string{
		"a": "the user prefers dark roast coffee every morning",
		"b": "quarterly revenue projections for the widget factory",
		"c": "dark roast coffee is the user's favorite drink",
	}
	corpus := BuildCorpus(docs)
	query := Stems("dark roast coffee preference")

	scores := map[string]float64{}
	for id, text := range docs {
		scores[id] = corpus.Score(query, StemCounts(text))
	}

	if scores["a"] <= scores["b"] {
		t.Errorf("expected doc a to outscore doc b: a=%f b=%f", scores["a"], scores["b"])
	}
	if scores["c"] <= scores["b"] {
		t.Errorf("expected doc c to outscore doc b: c=%f b=%f", scores["c"], scores["b"])
	}
}

func TestRankNormalizeBounds(t *testing.T) {
	ranked := RankNormalize(map[string]float64{"a": 5, "b": 3, "c": 1})
	if ranked["a"] != 1 {
		t.Errorf("top score should normalize to 1, got %f", ranked["a"])
	}
	if ranked["c"] != 0 {
		t.Errorf("bottom score should normalize to 0, got %f", ranked["c"])
	}
	if ranked["b"] <= ranked["c"] || ranked["b"] >= ranked["a"] {
		t.Errorf("middle score out of order: %v", ranked)
	}
}

func TestRankNormalizeSingleCandidate(t *testing.T) {
	ranked := RankNormalize(map[string]float64{"only": 0.4})
	if ranked["only"] != 1 {
		t.Errorf("single candidate should normalize to 1, got %f", ranked["only"])
	}
}
