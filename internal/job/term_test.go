package job

import (
	"os"
	"testing"

	"github.com/creack/pty"
	"gotest.tools/v3/assert"
)

// TestNewTermControlOnPtySlave simulates a controlling terminal with a
// pty pair (CI has no real tty to hand NewTermControl), verifying it
// recognizes the pty's slave side as a terminal rather than falling
// back to the nil/non-interactive path a plain pipe would take.
func TestNewTermControlOnPtySlave(t *testing.T) {
	master, slave, err := pty.Open()
	assert.NilError(t, err)
	defer master.Close()
	defer slave.Close()

	tc, err := NewTermControl(int(slave.Fd()))
	assert.NilError(t, err)
	assert.Assert(t, tc != nil)

	size, err := tc.WinSize()
	assert.NilError(t, err)
	assert.Assert(t, size != nil)
}

func TestNewTermControlOnPipeIsNotATerminal(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NilError(t, err)
	defer r.Close()
	defer w.Close()

	tc, err := NewTermControl(int(r.Fd()))
	assert.NilError(t, err)
	assert.Assert(t, tc == nil)
}
