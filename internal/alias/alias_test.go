package alias

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSetAndGet(t *testing.T) {
	tbl := New(nil)
	assert.NilError(t, tbl.Set("ll", "ls -la"))
	v, ok := tbl.Get("ll")
	assert.Assert(t, ok)
	assert.Equal(t, v, "ls -la")
}

func TestCannotAliasBuiltin(t *testing.T) {
	tbl := New(func(name string) bool { return name == "cd" })
	err := tbl.Set("cd", "echo no")
	assert.ErrorContains(t, err, "cannot alias a builtin")
}

func TestExpandSimple(t *testing.T) {
	tbl := New(nil)
	tbl.Set("ll", "ls -la")
	got, changed, err := tbl.Expand("ll")
	assert.NilError(t, err)
	assert.Assert(t, changed)
	assert.Equal(t, got, "ls -la")
}

func TestExpandRecursive(t *testing.T) {
	tbl := New(nil)
	tbl.Set("a", "b")
	tbl.Set("b", "c")
	tbl.Set("c", "echo hi")
	got, changed, err := tbl.Expand("a")
	assert.NilError(t, err)
	assert.Assert(t, changed)
	assert.Equal(t, got, "echo hi")
}

func TestExpandUndefinedReturnsUnchanged(t *testing.T) {
	tbl := New(nil)
	got, changed, err := tbl.Expand("echo")
	assert.NilError(t, err)
	assert.Assert(t, !changed)
	assert.Equal(t, got, "echo")
}

func TestExpandCyclicDoesNotHang(t *testing.T) {
	tbl := New(nil)
	tbl.Set("a", "b")
	tbl.Set("b", "a")
	got, _, err := tbl.Expand("a")
	assert.NilError(t, err)
	assert.Assert(t, got == "a" || got == "b")
}
