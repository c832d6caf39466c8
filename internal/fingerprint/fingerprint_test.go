package fingerprint

import (
	"testing"

	"github.com/dgnsrekt/window_namer/internal/types"
)

func tabs(urls ...string) []types.TabRecord {
	out := make([]types.TabRecord, 0, len(urls))
	for _, u := range urls {
		out = append(out, types.TabRecord{URL: u})
	}
	return out
}

func TestComputeSortsAndDeduplicates(t *testing.T) {
	got := Compute(tabs(
		"https://stackoverflow.com/questions/1",
		"https://github.com/dgnsrekt",
		"https://github.com/dgnsrekt/window_namer",
	))
	want := "github.com|stackoverflow.com"
	if got != want {
		t.Fatalf("Compute() = %q; want %q", got, want)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	a := Compute(tabs("https://a.example.com/x", "https://b.example.com/y", "https://c.example.com"))
	b := Compute(tabs("https://c.example.com/z", "https://b.example.com", "https://a.example.com", "https://a.example.com/dup"))
	if a != b {
		t.Fatalf("Compute() order dependence: %q != %q", a, b)
	}
}

func TestComputeSkipsInvalidURLs(t *testing.T) {
	got := Compute(tabs("", "   not a url", "https://github.com/x"))
	if got != "github.com" {
		t.Fatalf("Compute() = %q; want %q", got, "github.com")
	}
}

func TestComputeEmptyInput(t *testing.T) {
	if got := Compute(nil); got != "" {
		t.Fatalf("Compute(nil) = %q; want empty", got)
	}
	if got := Compute(tabs("", "%%%bad")); got != "" {
		t.Fatalf("Compute(all invalid) = %q; want empty", got)
	}
}

func TestSimilarityIdentical(t *testing.T) {
	fp := "github.com|stackoverflow.com"
	if got := Similarity(fp, fp); got != 1.0 {
		t.Fatalf("Similarity(F, F) = %v; want 1.0", got)
	}
}

func TestSimilarityBothEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 0.0 {
		t.Fatalf("Similarity(\"\", \"\") = %v; want 0.0", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := "github.com|mail.google.com|news.ycombinator.com"
	b := "github.com|stackoverflow.com"
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatalf("Similarity not symmetric: %v != %v", Similarity(a, b), Similarity(b, a))
	}
}

func TestSimilarityPartialOverlap(t *testing.T) {
	// 1 shared host, 4 total distinct.
	got := Similarity("a.com|b.com", "b.com|c.com|d.com")
	if got != 0.25 {
		t.Fatalf("Similarity() = %v; want 0.25", got)
	}
}

func TestSimilarityOneEmpty(t *testing.T) {
	if got := Similarity("github.com", ""); got != 0.0 {
		t.Fatalf("Similarity(F, \"\") = %v; want 0.0", got)
	}
}
