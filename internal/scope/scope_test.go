package scope

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestGlobalSetAndGet(t *testing.T) {
	m := New()
	assert.NilError(t, m.SetGlobal("x", "1"))
	v, ok := m.Get("x")
	assert.Assert(t, ok)
	assert.Equal(t, v, "1")
}

// Scope discipline: a local assignment is invisible after its
// enclosing function returns.
func TestLocalInvisibleAfterScopePop(t *testing.T) {
	m := New()
	assert.NilError(t, m.SetGlobal("n", "outer"))
	m.PushScope(FunctionFrame, "f")
	assert.NilError(t, m.SetLocal("n", "inner"))
	v, _ := m.Get("n")
	assert.Equal(t, v, "inner")
	m.PopScope()
	v, _ = m.Get("n")
	assert.Equal(t, v, "outer")
}

func TestReadonlyRejectsWrite(t *testing.T) {
	m := New()
	assert.NilError(t, m.SetGlobal("R", "1"))
	assert.NilError(t, m.Readonly("R", "", false))
	err := m.SetGlobal("R", "2")
	assert.ErrorContains(t, err, "readonly variable")
	v, _ := m.Get("R")
	assert.Equal(t, v, "1")
}

func TestReadonlyRejectsUnset(t *testing.T) {
	m := New()
	assert.NilError(t, m.SetGlobal("R", "1"))
	assert.NilError(t, m.Readonly("R", "", false))
	err := m.Unset("R")
	assert.ErrorContains(t, err, "readonly variable")
}

// export makes a variable visible to any subsequent child's environment.
func TestExportSurfacesInExported(t *testing.T) {
	m := New()
	assert.NilError(t, m.SetGlobal("E", "v"))
	assert.NilError(t, m.Export("E"))
	env := m.Exported()
	assert.Equal(t, env["E"], "v")
}

func TestLookupWalksInnermostFirst(t *testing.T) {
	m := New()
	m.SetGlobal("x", "outer")
	m.PushScope(LoopFrame, "loop")
	m.SetLocal("x", "inner")
	v, _ := m.Get("x")
	assert.Equal(t, v, "inner")
}

func TestReadonlyListingFormat(t *testing.T) {
	m := New()
	m.SetGlobal("A", "1")
	m.Readonly("A", "", false)
	syms := m.ReadonlyNames()
	assert.Equal(t, len(syms), 1)
	assert.Equal(t, syms[0].Name, "A")
	assert.Equal(t, syms[0].Value, "1")
}
