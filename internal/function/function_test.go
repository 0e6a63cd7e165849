package function

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lash-shell/lash/internal/ast"
)

func TestDefineDeepCopiesBody(t *testing.T) {
	tbl := New()
	body := &ast.Command{Words: []ast.Node{&ast.Word{Text: "echo"}}}
	assert.NilError(t, tbl.Define("f", nil, body))

	// Mutate the original after storing; the stored copy must be unaffected.
	body.Words[0].(*ast.Word).Text = "mutated"

	def, ok := tbl.Lookup("f")
	assert.Assert(t, ok)
	stored := def.Body.(*ast.Command)
	assert.Equal(t, stored.Words[0].(*ast.Word).Text, "echo")
}

func TestRedefinitionReplacesBody(t *testing.T) {
	tbl := New()
	assert.NilError(t, tbl.Define("f", nil, &ast.Command{Words: []ast.Node{&ast.Word{Text: "old"}}}))
	assert.NilError(t, tbl.Define("f", nil, &ast.Command{Words: []ast.Node{&ast.Word{Text: "new"}}}))

	def, _ := tbl.Lookup("f")
	assert.Equal(t, def.Body.(*ast.Command).Words[0].(*ast.Word).Text, "new")
}

func TestLookupMissing(t *testing.T) {
	tbl := New()
	_, ok := tbl.Lookup("nope")
	assert.Assert(t, !ok)
}

func TestParamsWithDefaults(t *testing.T) {
	tbl := New()
	params := []ast.Param{{Name: "a"}, {Name: "b", Default: "1", HasDefault: true}}
	assert.NilError(t, tbl.Define("f", params, &ast.Command{}))
	def, _ := tbl.Lookup("f")
	assert.Equal(t, len(def.Params), 2)
	assert.Equal(t, def.Params[1].Default, "1")
}
