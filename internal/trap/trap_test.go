package trap

import (
	"syscall"
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseSignalByName(t *testing.T) {
	sig, err := ParseSignal("INT")
	assert.NilError(t, err)
	assert.Equal(t, sig, syscall.SIGINT)
}

func TestParseSignalWithSigPrefix(t *testing.T) {
	sig, err := ParseSignal("SIGTERM")
	assert.NilError(t, err)
	assert.Equal(t, sig, syscall.SIGTERM)
}

func TestParseExitSignal(t *testing.T) {
	sig, err := ParseSignal("EXIT")
	assert.NilError(t, err)
	assert.Equal(t, sig, ExitSignal)

	sig, err = ParseSignal("0")
	assert.NilError(t, err)
	assert.Equal(t, sig, ExitSignal)
}

func TestParseInvalidSignal(t *testing.T) {
	_, err := ParseSignal("NOTASIGNAL")
	assert.ErrorContains(t, err, "invalid signal specification")
}

func TestSetAndGetAction(t *testing.T) {
	tbl := New()
	tbl.Set(syscall.SIGINT, "echo caught")
	a, ok := tbl.Get(syscall.SIGINT)
	assert.Assert(t, ok)
	assert.Equal(t, a, Action("echo caught"))
	assert.Assert(t, tbl.IsTrapped(syscall.SIGINT))
}

func TestSetDefaultClearsTrap(t *testing.T) {
	tbl := New()
	tbl.Set(syscall.SIGINT, "echo caught")
	tbl.Set(syscall.SIGINT, Default)
	assert.Assert(t, !tbl.IsTrapped(syscall.SIGINT))
	_, ok := tbl.Get(syscall.SIGINT)
	assert.Assert(t, !ok)
}
