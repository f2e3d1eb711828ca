package tokenizer

import "testing"

func TestSimpleTokenizerCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Lonavala is 64 km", 4},
		{"Budget: 3000!", 4},
		{"  spaced   out  ", 2},
	}
	for _, tt := range tests {
		if got := (SimpleTokenizer{}).CountTokens(tt.in); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFitNewest(t *testing.T) {
	texts := []string{"one two three", "four five", "six"}
	tok := SimpleTokenizer{}

	if got := FitNewest(tok, texts, 100); got != 0 {
		t.Errorf("expected everything to fit, start=%d", got)
	}
	if got := FitNewest(tok, texts, 3); got != 1 {
		t.Errorf("expected last two to fit in 3 tokens, start=%d", got)
	}
	if got := FitNewest(tok, texts, 1); got != 2 {
		t.Errorf("expected newest only, start=%d", got)
	}
	if got := FitNewest(tok, []string{"a b c d"}, 1); got != 0 {
		t.Errorf("newest text must always be kept, start=%d", got)
	}
	if got := FitNewest(tok, texts, 0); got != 0 {
		t.Errorf("zero budget disables trimming, start=%d", got)
	}
}
