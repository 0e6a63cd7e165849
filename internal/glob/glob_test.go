package glob

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"
)

func TestMatchBasics(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"[abc]", "b", true},
		{"[!abc]", "b", false},
		{"[^abc]", "d", true},
		{"[a-z]", "m", true},
		{"[a-z]", "M", false},
		{"*.go", "main.go", true},
		{"*.go", "main.c", false},
	}
	for _, tc := range cases {
		assert.Equal(t, Match(tc.pattern, tc.name), tc.want, "%q vs %q", tc.pattern, tc.name)
	}
}

func TestExpandNoMatchPreservesPattern(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	defer os.Chdir(old)
	os.Chdir(dir)

	got := Expand("nomatch*.xyz")
	assert.DeepEqual(t, got, []string{"nomatch*.xyz"})
}

func TestExpandMatchesCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	defer os.Chdir(old)
	os.Chdir(dir)

	for _, f := range []string{"a.txt", "b.txt", "c.log"} {
		os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644)
	}
	got := Expand("*.txt")
	assert.DeepEqual(t, got, []string{"a.txt", "b.txt"})
}

// Glob idempotence: after pathname expansion, each expanded
// field exists as a path or equals the original pattern on no-match.
func TestGlobIdempotencePropertyBased(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	defer os.Chdir(old)
	os.Chdir(dir)
	os.WriteFile(filepath.Join(dir, "alpha.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "beta.txt"), []byte("x"), 0o644)

	rapid.Check(t, func(rt *rapid.T) {
		pattern := rapid.SampledFrom([]string{"*.txt", "*.md", "a*", "[ab]*.txt", "nomatch"}).Draw(rt, "pattern")
		results := Expand(pattern)
		for _, r := range results {
			if r == pattern {
				continue // no-match fallback case
			}
			_, err := os.Stat(filepath.Join(dir, r))
			assert.NilError(rt, err)
		}
	})
}
