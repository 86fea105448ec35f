package strings

import "testing"

func TestIfEmpty(t *testing.T) {
	t.Parallel()

	in := []int{1, 2, 3}
	if got := IfEmpty(in, []int{9}); len(got) != 3 || got[0] != 1 {
		t.Fatalf("IfEmpty returned wrong slice: %#v", got)
	}

	var empty []string
	if got := IfEmpty(empty, []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("IfEmpty did not return default: %#v", got)
	}
}

func TestMustPrefix(t *testing.T) {
	cases := map[string]string{
		"admin":     "/admin",
		"/admin/":   "/admin",
		"  /a/b/  ": "/a/b",
	}
	for in, want := range cases {
		if got := MustPrefix(in); got != want {
			t.Errorf("MustPrefix(%q)=%q want %q", in, got, want)
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatal("want panic for root prefix")
		}
	}()
	_ = MustPrefix(" / ")
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s    string
		max  int
		want string
	}{
		{"apple", 10, "apple"},
		{"apple", 5, "apple"},
		{"apples", 5, "appl…"},
		{"яблоко", 4, "ябл…"},
		{"apple", 1, "…"},
		{"apple", 0, ""},
	}
	for _, c := range cases {
		if got := Truncate(c.s, c.max); got != c.want {
			t.Errorf("Truncate(%q,%d)=%q want %q", c.s, c.max, got, c.want)
		}
	}
}
