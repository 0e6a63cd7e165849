// Package glob implements the shell pattern matcher: '*'
// matches any run (including empty), '?' matches exactly one character,
// '[...]' is a character class with ranges and negation via a leading '!'
// or '^'. path/filepath.Match is not used directly because it rejects '!'
// as a negation marker (POSIX/ksh-style only, not Go's), and both forms
// must work identically for the pattern operators (${V#p} etc.) and
// pathname expansion alike.
package glob

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Match reports whether name matches pattern in full, per the rules above.
func Match(pattern, name string) bool {
	return matchHere([]rune(pattern), []rune(name))
}

func matchHere(pat, name []rune) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '*':
			// collapse consecutive stars
			for len(pat) > 0 && pat[0] == '*' {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchHere(pat, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pat = pat[1:]
			name = name[1:]
		case '[':
			end := findClassEnd(pat)
			if end < 0 {
				// not a valid class; treat '[' literally
				if len(name) == 0 || name[0] != '[' {
					return false
				}
				pat = pat[1:]
				name = name[1:]
				continue
			}
			if len(name) == 0 {
				return false
			}
			if !matchClass(pat[1:end], name[0]) {
				return false
			}
			pat = pat[end+1:]
			name = name[1:]
		default:
			if len(name) == 0 || name[0] != pat[0] {
				return false
			}
			pat = pat[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}

// findClassEnd returns the index of the ']' that closes the class
// starting at pat[0]=='[', or -1 if there is none.
func findClassEnd(pat []rune) int {
	i := 1
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		i++
	}
	if i < len(pat) && pat[i] == ']' {
		i++ // a ']' right after the (optional) negation is a literal member
	}
	for ; i < len(pat); i++ {
		if pat[i] == ']' {
			return i
		}
	}
	return -1
}

func matchClass(class []rune, c rune) bool {
	neg := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		neg = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			lo, hi := class[i], class[i+2]
			if lo <= c && c <= hi {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	if neg {
		return !matched
	}
	return matched
}

// HasMeta reports whether s contains any glob metacharacter.
func HasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Expand performs pathname expansion for pattern relative to the process
// working directory, using Match's semantics for every path segment. On
// no match the pattern itself is returned unchanged (the POSIX
// default), never an empty expansion.
func Expand(pattern string) []string {
	if !HasMeta(pattern) {
		return []string{pattern}
	}
	dir, file := filepath.Split(pattern)
	var dirs []string
	if HasMeta(dir) {
		dirs = Expand(strings.TrimSuffix(dir, string(filepath.Separator)))
	} else {
		dirs = []string{strings.TrimSuffix(dir, string(filepath.Separator))}
	}
	var out []string
	for _, d := range dirs {
		base := d
		if base == "" {
			base = "."
		}
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") && !strings.HasPrefix(file, ".") {
				continue
			}
			if Match(file, name) {
				var full string
				if d == "" {
					full = name
				} else {
					full = filepath.Join(d, name)
				}
				out = append(out, full)
			}
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return []string{pattern}
	}
	return out
}
