// Package alias implements the alias table: name → expansion string,
// disjoint from builtins, with recursive expansion capped at a fixed
// depth.
package alias

import (
	"strings"

	"github.com/lash-shell/lash/internal/shellerr"
)

// MaxDepth is the recursion cap for alias expansion.
const MaxDepth = 10

// BuiltinChecker reports whether name is a builtin (aliases may not
// shadow a builtin name).
type BuiltinChecker func(name string) bool

// Table holds alias definitions.
type Table struct {
	defs      map[string]string
	isBuiltin BuiltinChecker
}

// New creates an empty alias table; isBuiltin may be nil, meaning no
// names are reserved.
func New(isBuiltin BuiltinChecker) *Table {
	return &Table{defs: map[string]string{}, isBuiltin: isBuiltin}
}

// Clone returns a snapshot of the table, for subshell/pipeline-stage
// isolation; the builtin checker is shared.
func (t *Table) Clone() *Table {
	clone := &Table{defs: make(map[string]string, len(t.defs)), isBuiltin: t.isBuiltin}
	for name, v := range t.defs {
		clone.defs[name] = v
	}
	return clone
}

// Set defines name as expanding to value. Errors if name is a builtin.
func (t *Table) Set(name, value string) error {
	if t.isBuiltin != nil && t.isBuiltin(name) {
		return shellerr.Runtime("alias", 1, "%s: cannot alias a builtin", name)
	}
	t.defs[name] = value
	return nil
}

// Get returns the expansion for name, if defined.
func (t *Table) Get(name string) (string, bool) {
	v, ok := t.defs[name]
	return v, ok
}

// Unset removes an alias.
func (t *Table) Unset(name string) {
	delete(t.defs, name)
}

// Names lists every defined alias name.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.defs))
	for n := range t.defs {
		names = append(names, n)
	}
	return names
}

// Expand recursively expands the command word leading a simple command,
// up to MaxDepth levels. The trailing-space convention (an alias
// expansion ending in a space makes the *next* word eligible for alias
// expansion too) is not implemented: the caller (internal/exec) expands
// only the leading word of a command.
func (t *Table) Expand(name string) (expanded string, changed bool, err error) {
	seen := map[string]bool{}
	head := name
	var tail []string // extra words appended by expansions so far, in order

	for i := 0; i < MaxDepth; i++ {
		val, ok := t.defs[head]
		if !ok {
			return joinWords(head, tail), changed, nil
		}
		if seen[head] {
			// cyclic alias definition: stop expanding further, return as-is
			return joinWords(head, tail), changed, nil
		}
		seen[head] = true
		changed = true

		fields := strings.Fields(val)
		if len(fields) == 0 {
			return joinWords("", tail), changed, nil
		}
		head = fields[0]
		tail = append(fields[1:], tail...)
	}
	return "", false, shellerr.Runtime("alias", 1, "alias expansion depth exceeded for %q", name)
}

func joinWords(head string, tail []string) string {
	if len(tail) == 0 {
		return head
	}
	if head == "" {
		return strings.Join(tail, " ")
	}
	return head + " " + strings.Join(tail, " ")
}
