package simhash

import (
	"testing"
)

func TestOf_IdenticalTexts(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	if Of(text) != Of(text) {
		t.Error("identical texts produced different fingerprints")
	}
}

func TestOf_CaseAndPunctuationInsensitive(t *testing.T) {
	a := Of("Great movie! Loved it.")
	b := Of("great movie loved it")
	if a != b {
		t.Errorf("case/punctuation changed the fingerprint: %064b vs %064b", a, b)
	}
}

func TestOf_Hangul(t *testing.T) {
	fp := Of("정말 재미있는 영화였어요")
	if fp == 0 {
		t.Error("hangul text should produce a non-zero fingerprint")
	}
	if fp == Of("전혀 다른 내용의 리뷰입니다") {
		t.Error("different hangul texts produced the same fingerprint")
	}
}

func TestOf_SimilarTexts(t *testing.T) {
	fp1 := Of("the quick brown fox jumps over the lazy dog")
	fp2 := Of("the quick brown fox leaps over the lazy dog")

	if dist := Distance(fp1, fp2); dist > 10 {
		t.Errorf("similar texts have too large distance: %d", dist)
	}
}

func TestOf_DifferentTexts(t *testing.T) {
	fp1 := Of("the quick brown fox jumps over the lazy dog")
	fp2 := Of("completely unrelated content about quantum physics and mathematics")

	if dist := Distance(fp1, fp2); dist < 5 {
		t.Errorf("very different texts have too small distance: %d", dist)
	}
}

func TestOf_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   \t\n  ", "!!! ..."} {
		if fp := Of(in); fp != 0 {
			t.Errorf("Of(%q) = %064b, want 0", in, fp)
		}
	}
}

func TestOf_FieldBoundaries(t *testing.T) {
	if Of("5", "Jan 8", "fun") == Of("5 Jan", "8", "fun") {
		t.Error("moving words across fields should change the fingerprint")
	}
	if Of("5", "Jan 8", "fun") != Of("5", "Jan 8", "fun") {
		t.Error("Of is not deterministic")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	fp1 := Of("the quick brown fox")
	fp3 := Of("a completely different text about nothing related")
	dist := Distance(fp1, fp3)

	if !Similar(fp1, fp1, 0) {
		t.Error("identical fingerprints should be similar at threshold 0")
	}
	if Similar(fp1, fp3, dist-1) {
		t.Errorf("should not be similar at threshold %d (distance is %d)", dist-1, dist)
	}
	if !Similar(fp1, fp3, dist) {
		t.Errorf("should be similar at threshold equal to distance (%d)", dist)
	}
}
