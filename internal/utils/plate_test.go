package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := map[string]string{
		"BA123AB":     "BA123AB",
		"ba 123 ab":   "BA123AB",
		" za\t555cd ": "ZA555CD",
		"   ":         "",
	}
	for in, want := range cases {
		if got := NormalizePlate(in); got != want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", in, got, want)
		}
	}
}
