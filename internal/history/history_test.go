package history

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func TestAppendAndEntries(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "hist"), 100)
	assert.NilError(t, err)
	assert.NilError(t, h.Append("echo one"))
	assert.NilError(t, h.Append("echo two"))

	entries := h.Entries()
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[0].Line, "echo one")
	assert.Equal(t, entries[0].Index, 1)
	assert.Equal(t, entries[1].Index, 2)
}

func TestRingCapacityDropsOldest(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "hist"), 2)
	assert.NilError(t, err)
	assert.NilError(t, h.Append("a"))
	assert.NilError(t, h.Append("b"))
	assert.NilError(t, h.Append("c"))

	entries := h.Entries()
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[0].Line, "b")
	assert.Equal(t, entries[1].Line, "c")
}

func TestRecallByIndex(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "hist"), 100)
	assert.NilError(t, err)
	assert.NilError(t, h.Append("first"))
	assert.NilError(t, h.Append("second"))

	line, ok := h.Recall(1)
	assert.Assert(t, ok)
	assert.Equal(t, line, "first")

	_, ok = h.Recall(99)
	assert.Assert(t, !ok)
}

func TestReopenLoadsPersistedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist")
	h1, err := Open(path, 100)
	assert.NilError(t, err)
	assert.NilError(t, h1.Append("persisted"))

	h2, err := Open(path, 100)
	assert.NilError(t, err)
	assert.Equal(t, h2.Len(), 1)
	assert.Equal(t, h2.Entries()[0].Line, "persisted")
}

func TestClearEmptiesRingAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist")
	h, err := Open(path, 100)
	assert.NilError(t, err)
	assert.NilError(t, h.Append("gone soon"))
	assert.NilError(t, h.Clear())
	assert.Equal(t, h.Len(), 0)

	h2, err := Open(path, 100)
	assert.NilError(t, err)
	assert.Equal(t, h2.Len(), 0)
}
