package builtin

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lash-shell/lash/internal/exec"
	"github.com/lash-shell/lash/internal/parse"
)

// newTestExecutor builds an Executor with the real builtin registry
// installed, unlike internal/exec's own tests which stub in a handful of
// inline builtins to stay independent of this package.
func newTestExecutor(t *testing.T) (*exec.Executor, *bytes.Buffer) {
	t.Helper()
	ex := exec.New()
	var out bytes.Buffer
	ex.Stdout = &out
	ex.Stderr = &out
	ex.Stdin = bytes.NewReader(nil)
	New(nil).Install(ex)
	return ex, &out
}

func run(t *testing.T, ex *exec.Executor, src string) exec.Signal {
	t.Helper()
	p, err := parse.New(src, false)
	assert.NilError(t, err)
	prog, err := p.ParseProgram()
	assert.NilError(t, err)
	sig, err := ex.Execute(prog)
	assert.NilError(t, err)
	return sig
}

func TestEchoBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "echo hello world\n")
	assert.Equal(t, out.String(), "hello world\n")
}

func TestEchoDashN(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "echo -n hello\n")
	assert.Equal(t, out.String(), "hello")
}

func TestTrueFalseExitStatus(t *testing.T) {
	ex, _ := newTestExecutor(t)
	run(t, ex, "true\n")
	assert.Equal(t, ex.Status, 0)
	run(t, ex, "false\n")
	assert.Equal(t, ex.Status, 1)
}

func TestColonIsNoop(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, ":\n")
	assert.Equal(t, ex.Status, 0)
	assert.Equal(t, out.String(), "")
}

// TestLocalScopedToFunction exercises function-local scoping end to end
// through the real builtin registry (local/echo), not a test-local stub.
func TestLocalScopedToFunction(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, `f() { local n=$1; echo "n=$n"; }
n=outer
f inner
echo $n
`)
	assert.Equal(t, out.String(), "n=inner\nouter\n")
}

func TestExportMakesVariableVisibleToChild(t *testing.T) {
	ex, _ := newTestExecutor(t)
	run(t, ex, "export FOO=bar\n")
	env := ex.ChildEnv()
	found := false
	for _, kv := range env {
		if kv == "FOO=bar" {
			found = true
		}
	}
	assert.Assert(t, found)
}

func TestReadonlyRejectsReassignment(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "readonly FOO=bar\n")
	run(t, ex, "FOO=baz\n")
	assert.Assert(t, ex.Status != 0)
	assert.Assert(t, bytes.Contains(out.Bytes(), []byte("readonly variable")))
	v, _ := ex.Scope.Get("FOO")
	assert.Equal(t, v, "bar")
}

func TestBreakStopsLoopViaRealBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "i=0\nwhile true; do i=$((i+1)); echo $i; break; done\n")
	assert.Equal(t, out.String(), "1\n")
}

func TestContinueSkipsIterationViaRealBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "for x in a b c; do case $x in b) continue;; esac; echo $x; done\n")
	assert.Equal(t, out.String(), "a\nc\n")
}

func TestReturnStopsFunctionViaRealBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "greet() { echo hi $1; return 7; echo unreachable; }\ngreet world\n")
	assert.Equal(t, out.String(), "hi world\n")
	assert.Equal(t, ex.Status, 7)
}

func TestExitUnwindsToTopViaRealBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	sig := run(t, ex, "echo before\nexit 3\necho unreachable\n")
	assert.Equal(t, sig.Kind, exec.SigExit)
	assert.Equal(t, sig.Code, 3)
	assert.Equal(t, out.String(), "before\n")
}

func TestCdAndPwd(t *testing.T) {
	ex, out := newTestExecutor(t)
	dir := t.TempDir()
	run(t, ex, "cd "+dir+"\npwd\n")
	assert.Equal(t, out.String(), dir+"\n")
}

func TestTestBuiltinStringComparison(t *testing.T) {
	ex, _ := newTestExecutor(t)
	run(t, ex, `test "a" = "a"`)
	assert.Equal(t, ex.Status, 0)
	run(t, ex, `test "a" = "b"`)
	assert.Equal(t, ex.Status, 1)
}

func TestBracketBuiltinRequiresClosingBracket(t *testing.T) {
	ex, _ := newTestExecutor(t)
	run(t, ex, `[ -z "" ]`)
	assert.Equal(t, ex.Status, 0)
	run(t, ex, `[ -z ""`)
	assert.Equal(t, ex.Status, 2)
}

func TestGetoptsWalksFlags(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, `
set -- -a -b x arg
while getopts ab: opt; do
  case $opt in
    a) echo "got a";;
    b) echo "got b $OPTARG";;
  esac
done
`)
	assert.Equal(t, out.String(), "got a\ngot b x\n")
}

func TestReadSplitsOnIFS(t *testing.T) {
	ex := exec.New()
	var out bytes.Buffer
	ex.Stdout = &out
	ex.Stderr = &out
	ex.Stdin = bytes.NewBufferString("one two three\n")
	New(nil).Install(ex)
	run(t, ex, "read a b c\necho $a-$b-$c\n")
	assert.Equal(t, out.String(), "one-two-three\n")
}

func TestPrintfCyclesFormatOverArgs(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, `printf "%s\n" a b c`)
	assert.Equal(t, out.String(), "a\nb\nc\n")
}

func TestTypeResolutionOrder(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "alias ll='ls -l'\ntype ll\n")
	assert.Equal(t, out.String(), "ll is aliased to `ls -l'\n")

	out.Reset()
	run(t, ex, "greet() { :; }\ntype greet\n")
	assert.Equal(t, out.String(), "greet is a function\n")

	out.Reset()
	run(t, ex, "type echo\n")
	assert.Equal(t, out.String(), "echo is a shell builtin\n")
}

func TestJobsListsBackgroundJob(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "sleep 0.2 &\njobs\n")
	assert.Assert(t, bytes.Contains(out.Bytes(), []byte("Running")))
}
