// Package function implements the function table: name →
// parameter list + body AST, replaced wholesale on redefinition, with the
// body deep-copied into the table so the table's lifetime is independent
// of the transient parser AST that produced it.
package function

import (
	"github.com/mitchellh/copystructure"

	"github.com/lash-shell/lash/internal/ast"
)

// Def is a stored function definition.
type Def struct {
	Name   string
	Params []ast.Param
	Body   ast.Node
}

// Table maps function names to their definitions.
type Table struct {
	defs map[string]*Def
}

// New creates an empty function table.
func New() *Table {
	return &Table{defs: map[string]*Def{}}
}

// Define stores fn, deep-copying its body so the stored definition is
// independent of the transient parser tree that produced it. A previous
// definition of the same name is simply replaced; Go's GC reclaims the
// old body once unreferenced.
func (t *Table) Define(name string, params []ast.Param, body ast.Node) error {
	copied, err := copystructure.Copy(body)
	if err != nil {
		return err
	}
	t.defs[name] = &Def{Name: name, Params: append([]ast.Param(nil), params...), Body: copied.(ast.Node)}
	return nil
}

// Clone returns a snapshot of the table. The *Def values are shared —
// they are never mutated after Define — so only the map itself is
// copied, which is enough for a subshell or pipeline stage to define or
// delete functions without the change reaching the parent.
func (t *Table) Clone() *Table {
	clone := &Table{defs: make(map[string]*Def, len(t.defs))}
	for name, d := range t.defs {
		clone.defs[name] = d
	}
	return clone
}

// Lookup returns the definition for name, if any.
func (t *Table) Lookup(name string) (*Def, bool) {
	d, ok := t.defs[name]
	return d, ok
}

// Delete removes a function definition.
func (t *Table) Delete(name string) {
	delete(t.defs, name)
}

// Names lists every defined function name.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.defs))
	for n := range t.defs {
		names = append(names, n)
	}
	return names
}
