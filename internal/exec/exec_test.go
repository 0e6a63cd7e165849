package exec

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lash-shell/lash/internal/parse"
)

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// newTestExecutor builds an Executor wired with a minimal builtin set
// (echo, true, false, cat, break, continue, return) sufficient to drive control-flow and pipeline
// tests without depending on internal/builtin.
func newTestExecutor(t *testing.T) (*Executor, *bytes.Buffer) {
	t.Helper()
	ex := New()
	var out bytes.Buffer
	ex.Stdout = &out
	ex.Stderr = &out
	ex.Stdin = bytes.NewReader(nil)

	ex.Builtins["echo"] = func(_ *Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
		for i, a := range argv[1:] {
			if i > 0 {
				_, _ = io.WriteString(stdout, " ")
			}
			_, _ = io.WriteString(stdout, a)
		}
		_, _ = io.WriteString(stdout, "\n")
		return 0, nil
	}
	ex.Builtins["true"] = func(_ *Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) { return 0, nil }
	ex.Builtins["false"] = func(_ *Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) { return 1, nil }
	ex.Builtins["cat"] = func(_ *Executor, _ []string, stdin io.Reader, stdout, _ io.Writer) (int, error) {
		_, err := io.Copy(stdout, stdin)
		return 0, err
	}
	ex.Builtins["break"] = func(ex *Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) {
		ex.RaiseControl(SigBreak, 1)
		return 0, nil
	}
	ex.Builtins["continue"] = func(ex *Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) {
		ex.RaiseControl(SigContinue, 1)
		return 0, nil
	}
	ex.Builtins["return"] = func(ex *Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
		code := ex.Status
		if len(argv) > 1 {
			code = atoiOr(argv[1], 0)
		}
		ex.RaiseControl(SigReturn, code)
		return code, nil
	}

	_ = ex.Scope.SetGlobal("PATH", os.Getenv("PATH"))
	return ex, &out
}

func run(t *testing.T, ex *Executor, src string) Signal {
	t.Helper()
	p, err := parse.New(src, false)
	assert.NilError(t, err)
	prog, err := p.ParseProgram()
	assert.NilError(t, err)
	sig, err := ex.Execute(prog)
	assert.NilError(t, err)
	return sig
}

func TestSimpleCommandBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "echo hello world\n")
	assert.Equal(t, out.String(), "hello world\n")
	assert.Equal(t, ex.Status, 0)
}

func TestAndOrShortCircuit(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "false && echo no || echo yes\n")
	assert.Equal(t, out.String(), "yes\n")
}

func TestIfElifElse(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "if false; then echo a; elif true; then echo b; else echo c; fi\n")
	assert.Equal(t, out.String(), "b\n")
}

func TestWhileLoopWithBreak(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "i=0\nwhile true; do i=$((i+1)); echo $i; break; done\n")
	assert.Equal(t, out.String(), "1\n")
}

func TestForLoopOverWords(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "for x in a b c; do echo $x; done\n")
	assert.Equal(t, out.String(), "a\nb\nc\n")
}

func TestForLoopContinue(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "for x in a b c; do case $x in b) continue;; esac; echo $x; done\n")
	assert.Equal(t, out.String(), "a\nc\n")
}

func TestCaseFirstMatchWins(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "case hello in h*) echo matched;; *) echo nope;; esac\n")
	assert.Equal(t, out.String(), "matched\n")
}

func TestFunctionCallAndReturn(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "greet() { echo hi $1; return 7; }\ngreet world\n")
	assert.Equal(t, out.String(), "hi world\n")
	assert.Equal(t, ex.Status, 7)
}

func TestAssignmentOnlyCommandPersists(t *testing.T) {
	ex, _ := newTestExecutor(t)
	run(t, ex, "FOO=bar\necho $FOO\n")
	v, ok := ex.Scope.Get("FOO")
	assert.Assert(t, ok)
	assert.Equal(t, v, "bar")
}

func TestPipelineBuiltinToBuiltin(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "echo piped | cat\n")
	assert.Equal(t, out.String(), "piped\n")
}

func TestPipelineStageIsolatesState(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "x=outer\nx=stage | true\nf() { echo defined; } | true\necho $x\n")
	v, _ := ex.Scope.Get("x")
	assert.Equal(t, v, "outer")
	_, defined := ex.Functions.Lookup("f")
	assert.Assert(t, !defined)
	assert.Equal(t, out.String(), "outer\n")
}

func TestPipelineOfBraceGroups(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "{ echo from-group; } | cat\n")
	assert.Equal(t, out.String(), "from-group\n")
}

func TestSubshellIsolatesVariables(t *testing.T) {
	ex, out := newTestExecutor(t)
	run(t, ex, "FOO=outer\n(FOO=inner; echo $FOO)\necho $FOO\n")
	assert.Equal(t, out.String(), "inner\nouter\n")
}

func TestRedirectionToFile(t *testing.T) {
	ex, _ := newTestExecutor(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	ex.Dir = dir
	run(t, ex, "echo hello > "+path+"\n")
	data, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Equal(t, string(data), "hello\n")
}

func TestHeredocExpandsByDefault(t *testing.T) {
	ex, out := newTestExecutor(t)
	_ = ex.Scope.SetGlobal("NAME", "there")
	run(t, ex, "cat <<EOF\nhello $NAME\nEOF\n")
	assert.Equal(t, out.String(), "hello there\n")
}

func TestHeredocQuotedDelimiterSuppressesExpansion(t *testing.T) {
	ex, out := newTestExecutor(t)
	_ = ex.Scope.SetGlobal("NAME", "there")
	run(t, ex, "cat <<'EOF'\nhello $NAME\nEOF\n")
	assert.Equal(t, out.String(), "hello $NAME\n")
}

func TestErrexitStopsCommandList(t *testing.T) {
	ex, out := newTestExecutor(t)
	ex.Options.Errexit = true
	sig := run(t, ex, "false\necho unreachable\n")
	assert.Equal(t, sig.Kind, SigExit)
	assert.Equal(t, out.String(), "")
}
