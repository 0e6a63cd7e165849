// Package history implements command history: a
// bounded in-memory ring backing interactive recall, with a durable
// append-only file shared across concurrent shell sessions.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/moby/sys/atomicwriter"

	"github.com/lash-shell/lash/internal/shellerr"
)

// Entry is one recorded command line.
type Entry struct {
	Index int
	Line  string
}

// History is an in-memory ring over a fixed capacity, mirrored to an
// append-only file on disk.
type History struct {
	path     string
	cap      int
	entries  []string
	nextIdx  int
	fileLock *flock.Flock
}

// Open loads existing entries from path (if any) into the ring, capped
// at capacity entries (the newest `capacity` lines are kept in memory;
// the file itself is never truncated except by Clear). A capacity of 0
// disables in-memory retention (Append still appends to the file).
func Open(path string, capacity int) (*History, error) {
	h := &History{path: path, cap: capacity, nextIdx: 1, fileLock: flock.New(path + ".lock")}
	if path == "" {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, shellerr.Runtime("history", 1, "%v", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, shellerr.Runtime("history", 1, "%v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, shellerr.Runtime("history", 1, "%v", err)
	}
	if capacity <= 0 {
		lines = nil
	} else if len(lines) > capacity {
		lines = lines[len(lines)-capacity:]
	}
	h.entries = lines
	h.nextIdx = len(lines) + 1
	return h, nil
}

// Append records line, both in the in-memory ring and (if path is
// non-empty) in the on-disk log, under a cross-process advisory lock so
// concurrent interactive sessions don't interleave partial lines.
func (h *History) Append(line string) error {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return nil
	}
	if h.cap > 0 {
		h.entries = append(h.entries, line)
		if len(h.entries) > h.cap {
			h.entries = h.entries[len(h.entries)-h.cap:]
		}
	}
	h.nextIdx++

	if h.path == "" {
		return nil
	}
	if err := h.fileLock.Lock(); err != nil {
		return shellerr.Runtime("history", 1, "%v", err)
	}
	defer h.fileLock.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return shellerr.Runtime("history", 1, "%v", err)
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}

// Entries returns every entry currently held in memory, oldest first,
// numbered for the `history` builtin's listing.
func (h *History) Entries() []Entry {
	base := h.nextIdx - len(h.entries)
	out := make([]Entry, len(h.entries))
	for i, line := range h.entries {
		out[i] = Entry{Index: base + i, Line: line}
	}
	return out
}

// Recall returns the entry with the given 1-based index (as used by `!n`
// and `history -d n` forms), if still retained in memory.
func (h *History) Recall(index int) (string, bool) {
	base := h.nextIdx - len(h.entries)
	off := index - base
	if off < 0 || off >= len(h.entries) {
		return "", false
	}
	return h.entries[off], true
}

// Clear empties both the in-memory ring and the on-disk file, rewriting
// the file atomically so a concurrent reader never observes a
// half-truncated log.
func (h *History) Clear() error {
	h.entries = nil
	if h.path == "" {
		return nil
	}
	locked, err := h.fileLock.TryLock()
	if err != nil {
		return shellerr.Runtime("history", 1, "%v", err)
	}
	if locked {
		defer h.fileLock.Unlock()
	}
	if err := atomicwriter.WriteFile(h.path, []byte{}, 0o644); err != nil {
		return shellerr.Runtime("history", 1, "%v", err)
	}
	return nil
}

// Len reports how many entries are currently retained in memory.
func (h *History) Len() int {
	return len(h.entries)
}
