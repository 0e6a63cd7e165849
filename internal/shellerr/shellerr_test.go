package shellerr

import (
	"fmt"
	"testing"

	"gotest.tools/v3/assert"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"syntax", Syntax(4, "unexpected token"), 2},
		{"expansion", Expansion("expand", "bad substitution"), 1},
		{"exec not found", NotFound("frobnicate"), 127},
		{"exec not permitted", NotPermitted("/tmp/x"), 126},
		{"runtime custom", Runtime("cd", 1, "too many arguments"), 1},
		{"nil", nil, 0},
		{"unrecognized", fmt.Errorf("boom"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, ExitCode(tc.err), tc.want)
		})
	}
}

func TestErrorShapeIsNameColonMessage(t *testing.T) {
	e := NotFound("frobnicate")
	assert.Equal(t, e.Error(), "frobnicate: command not found")
}

func TestWrapPreservesKind(t *testing.T) {
	base := Expansion("expand", "unbound variable: FOO")
	wrapped := Wrap(base, "while expanding word")
	got, ok := As(wrapped)
	assert.Assert(t, ok)
	assert.Equal(t, got.Kind, KindExpansion)
	assert.Equal(t, ExitCode(wrapped), 1)
}
