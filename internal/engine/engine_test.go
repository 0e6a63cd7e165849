package engine

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"
)

// newTestEngine builds a non-interactive Engine with history disabled and
// both output streams captured.
func newTestEngine(t *testing.T, opts Options) (*Engine, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	e, err := New(opts, false)
	assert.NilError(t, err)
	var out, errOut bytes.Buffer
	e.Exec.Stdout = &out
	e.Exec.Stderr = &errOut
	e.Exec.Stdin = bytes.NewReader(nil)
	return e, &out, &errOut
}

func TestRunScriptArithmetic(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("x=1; y=2; echo $((x+y))\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "3\n")
}

func TestRunScriptForLoop(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("for f in a b c; do echo $f; done\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "a\nb\nc\n")
}

func TestRunScriptLocalScoping(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("f() { local n=$1; echo \"n=$n\"; }\nn=outer\nf inner\necho $n\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "n=inner\nouter\n")
}

func TestRunScriptParamDefaultAndAssign(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("echo ${UNSET:-fallback}\necho ${UNSET=set}\necho $UNSET\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "fallback\nset\nset\n")
}

func TestRunScriptAndOrChains(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("true && echo ok || echo no\nfalse && echo ok || echo no\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "ok\nno\n")
}

func TestRunScriptSyntaxErrorIsStatusTwo(t *testing.T) {
	e, _, errOut := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("if true\n")
	assert.Equal(t, status, 2)
	assert.Assert(t, errOut.Len() > 0)
}

func TestRunScriptNoexecParsesOnly(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n", NoExec: true})
	status := e.RunScript("echo never\n")
	assert.Equal(t, status, 0)
	assert.Equal(t, out.String(), "")
}

func TestRunScriptExitStatusPropagates(t *testing.T) {
	e, out, _ := newTestEngine(t, Options{IFS: " \t\n"})
	status := e.RunScript("echo before\nexit 3\necho after\n")
	assert.Equal(t, status, 3)
	assert.Equal(t, out.String(), "before\n")
}

func TestMergeOptionsLayering(t *testing.T) {
	t.Setenv("LASH_PS1", "% ")
	merged, err := MergeOptions(Options{NoExec: true})
	assert.NilError(t, err)
	assert.Equal(t, merged.PS1, "% ")       // environment layer beats default
	assert.Equal(t, merged.IFS, " \t\n")    // default survives when unset above
	assert.Equal(t, merged.NoExec, true)    // cli layer wins
	assert.Equal(t, merged.LoopBound, 10000)
}

func TestMergeOptionsCLIOverridesEnvironment(t *testing.T) {
	t.Setenv("IFS", ":")
	merged, err := MergeOptions(Options{IFS: ","})
	assert.NilError(t, err)
	assert.Equal(t, merged.IFS, ",")
}
