package patch

import (
	"errors"
	"strings"
	"testing"
)

func TestReplaceExact(t *testing.T) {
	content := "func a() {}\nfunc b() {}\n"

	rep, err := Replace(content, "func b() {}", "func b() { return }", false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Fuzzy {
		t.Error("exact match flagged as fuzzy")
	}
	if rep.Count != 1 {
		t.Errorf("count = %d, want 1", rep.Count)
	}
	if !strings.Contains(rep.Content, "func b() { return }") {
		t.Errorf("content = %q", rep.Content)
	}
}

func TestReplaceAmbiguous(t *testing.T) {
	content := "x = 1\ny = 2\nx = 1\n"

	_, err := Replace(content, "x = 1", "x = 9", false)
	var ambiguous *AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("err = %v, want AmbiguousError", err)
	}
	if ambiguous.Count != 2 {
		t.Errorf("count = %d, want 2", ambiguous.Count)
	}

	rep, err := Replace(content, "x = 1", "x = 9", true)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Count != 2 || strings.Contains(rep.Content, "x = 1") {
		t.Errorf("replace_all result = %+v", rep)
	}
}

func TestReplaceFuzzyWhitespace(t *testing.T) {
	content := "def f():\n\tif x:\n\t\treturn 1\n\treturn 0\n"
	// old block uses spaces where the file uses tabs
	oldBlock := "if x:\n    return 1"

	rep, err := Replace(content, oldBlock, "if x:\n    return 2", false)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Fuzzy {
		t.Error("expected the whitespace-tolerant path")
	}
	if !strings.Contains(rep.Content, "\tif x:") {
		t.Errorf("indentation of matched region not preserved: %q", rep.Content)
	}
	if !strings.Contains(rep.Content, "return 2") {
		t.Errorf("replacement missing: %q", rep.Content)
	}
	if strings.Contains(rep.Content, "return 1") {
		t.Errorf("old text still present: %q", rep.Content)
	}
}

func TestReplaceNotFound(t *testing.T) {
	content := "alpha\nbeta\n"

	_, err := Replace(content, "gamma", "delta", false)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if notFound.NearMatch {
		t.Error("no near match should be reported for absent text")
	}
}

func TestReplaceNotFoundReportsNearMatch(t *testing.T) {
	content := "one   two\n"

	_, err := Replace(content, "one two three", "x", false)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}

	_, err = Replace(content, "one two", "x", false)
	if err != nil {
		// "one   two" vs "one two": fuzzy single-line trim does not help,
		// but the collapsed-whitespace hint should fire.
		if !errors.As(err, &notFound) {
			t.Fatalf("err = %v, want NotFoundError", err)
		}
		if !notFound.NearMatch {
			t.Error("expected whitespace near-match hint")
		}
	}
}

func TestReplaceRejectsIdenticalBlocks(t *testing.T) {
	if _, err := Replace("a\n", "a", "a", false); err == nil {
		t.Error("identical blocks must be rejected")
	}
}

func TestCheckPath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"src/main.py", true},
		{"main.go", true},
		{"", false},
		{"/etc/passwd", false},
		{"../outside.txt", false},
		{"a/../../outside.txt", false},
		{".env", false},
		{"config/.env.local", false},
		{".git/config", false},
		{".foreman/project.json", false},
		{"node_modules/pkg/index.js", false},
	}

	for _, tt := range tests {
		err := CheckPath(tt.path)
		if tt.ok && err != nil {
			t.Errorf("CheckPath(%q) = %v, want ok", tt.path, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("CheckPath(%q) succeeded, want error", tt.path)
		}
	}
}
