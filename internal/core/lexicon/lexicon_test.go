package lexicon

import (
	"strings"
	"testing"

	perr "vocabot/internal/platform/errors"
)

func TestValidWord(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"hello", true},
		{"Hello", true},
		{"don't", true},
		{"ice cream", true},
		{"well-known", true},
		{"apples, pears", true},
		{"  spaced   out  ", true},
		{"I", true},
		{"", false},
		{"   ", false},
		{"HELLO", true},
		{"e-mail", true},
		{"hello1", false},
		{"привет", false},
		{"hello!", false},
		{"a.b", false},
		{strings.Repeat("a", MaxLen+1), false},
	}
	for _, tt := range tests {
		if got := ValidWord(tt.in); got != tt.want {
			t.Fatalf("ValidWord(%q) = %v want %v", tt.in, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := CheckWord("word", "hello"); err != nil {
		t.Fatalf("CheckWord ok: %v", err)
	}
	err := CheckWord("word", "h3llo")
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("CheckWord bad = %v", err)
	}
	if e, _ := perr.As(err); e.Field() != "word" {
		t.Fatalf("field = %q", e.Field())
	}
	if err := CheckText("translation", "привет"); err != nil {
		t.Fatalf("CheckText cyrillic: %v", err)
	}
	if !perr.IsCode(CheckText("query", " "), perr.ErrorCodeValidation) {
		t.Fatalf("CheckText blank should fail")
	}
	if !perr.IsCode(CheckText("translation", strings.Repeat("я", MaxLen+1)), perr.ErrorCodeValidation) {
		t.Fatalf("CheckText long should fail")
	}
}

func TestKey(t *testing.T) {
	tests := []struct{ a, b string }{
		{"Hello", "hello"},
		{"  ice   Cream ", "ice cream"},
		{"ÉCOLE", "école"},
	}
	for _, tt := range tests {
		if !Same(tt.a, tt.b) {
			t.Fatalf("Key(%q)=%q Key(%q)=%q", tt.a, Key(tt.a), tt.b, Key(tt.b))
		}
	}
	if Same("hello", "hallo") {
		t.Fatalf("different words folded together")
	}
}
