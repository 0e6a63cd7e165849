package parse

import (
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"gotest.tools/v3/assert"

	"github.com/lash-shell/lash/internal/ast"
)

func parseProgram(t *testing.T, src string) *ast.CommandList {
	t.Helper()
	p, err := New(src, false)
	assert.NilError(t, err)
	node, err := p.ParseProgram()
	assert.NilError(t, err)
	list, ok := node.(*ast.CommandList)
	assert.Assert(t, ok)
	return list
}

func TestParseSimpleCommand(t *testing.T) {
	list := parseProgram(t, "echo hello world\n")
	assert.Equal(t, len(list.Items), 1)
	cmd, ok := list.Items[0].(*ast.Command)
	assert.Assert(t, ok)
	assert.Equal(t, len(cmd.Words), 3)
	assert.Equal(t, cmd.Words[0].(*ast.Word).Text, "echo")
}

func TestParseAssignmentPrefix(t *testing.T) {
	list := parseProgram(t, "FOO=bar echo hi\n")
	cmd := list.Items[0].(*ast.Command)
	assert.Equal(t, len(cmd.Assigns), 1)
	assert.Equal(t, cmd.Assigns[0].Name, "FOO")
	assert.Equal(t, len(cmd.Words), 2)
}

func TestParsePipeline(t *testing.T) {
	list := parseProgram(t, "ls | grep foo\n")
	pipe, ok := list.Items[0].(*ast.Pipe)
	assert.Assert(t, ok)
	left := pipe.Left.(*ast.Command)
	right := pipe.Right.(*ast.Command)
	assert.Equal(t, left.Words[0].(*ast.Word).Text, "ls")
	assert.Equal(t, right.Words[0].(*ast.Word).Text, "grep")
}

func TestParseAndOrShortCircuit(t *testing.T) {
	list := parseProgram(t, "true && echo yes || echo no\n")
	or, ok := list.Items[0].(*ast.LogicalOr)
	assert.Assert(t, ok)
	_, ok = or.Left.(*ast.LogicalAnd)
	assert.Assert(t, ok)
}

func TestParseIfElifElse(t *testing.T) {
	src := "if true; then echo a; elif false; then echo b; else echo c; fi\n"
	list := parseProgram(t, src)
	ifNode, ok := list.Items[0].(*ast.If)
	assert.Assert(t, ok)
	assert.Equal(t, len(ifNode.Elifs), 1)
	assert.Assert(t, ifNode.Else != nil)
}

func TestParseWhileLoop(t *testing.T) {
	list := parseProgram(t, "while true; do echo tick; done\n")
	w, ok := list.Items[0].(*ast.While)
	assert.Assert(t, ok)
	assert.Assert(t, w.Body != nil)
}

func TestParseForLoopWithWords(t *testing.T) {
	list := parseProgram(t, "for i in a b c; do echo $i; done\n")
	f, ok := list.Items[0].(*ast.For)
	assert.Assert(t, ok)
	assert.Equal(t, f.Var, "i")
	assert.Equal(t, len(f.Words), 3)
}

func TestParseCaseStatement(t *testing.T) {
	src := "case $x in a|b) echo ab;; *) echo other;; esac\n"
	list := parseProgram(t, src)
	c, ok := list.Items[0].(*ast.Case)
	assert.Assert(t, ok)
	assert.Equal(t, len(c.Items), 2)
	assert.Equal(t, c.Items[0].Patterns[0], "a")
	assert.Equal(t, c.Items[0].Patterns[1], "b")
}

func TestParsePlainFunctionDef(t *testing.T) {
	list := parseProgram(t, "greet() { echo hi; }\n")
	fn, ok := list.Items[0].(*ast.Function)
	assert.Assert(t, ok)
	assert.Equal(t, fn.Name, "greet")
	assert.Equal(t, len(fn.Params), 0)
	_, ok = fn.Body.(*ast.BraceGroup)
	assert.Assert(t, ok)
}

func TestParseExtendedFunctionParams(t *testing.T) {
	list := parseProgram(t, "greet(name, greeting=hi) { echo $greeting $name; }\n")
	fn, ok := list.Items[0].(*ast.Function)
	assert.Assert(t, ok)
	assert.Equal(t, len(fn.Params), 2)
	assert.Equal(t, fn.Params[0].Name, "name")
	assert.Assert(t, !fn.Params[0].HasDefault)
	assert.Equal(t, fn.Params[1].Name, "greeting")
	assert.Assert(t, fn.Params[1].HasDefault)
	assert.Equal(t, fn.Params[1].Default, "hi")
}

func TestParseSubshellAndBraceGroup(t *testing.T) {
	list := parseProgram(t, "(echo sub); { echo brace; }\n")
	assert.Equal(t, len(list.Items), 2)
	_, ok := list.Items[0].(*ast.Subshell)
	assert.Assert(t, ok)
	_, ok = list.Items[1].(*ast.BraceGroup)
	assert.Assert(t, ok)
}

func TestParseBackgroundCommand(t *testing.T) {
	list := parseProgram(t, "sleep 1 &\n")
	_, ok := list.Items[0].(*ast.Background)
	assert.Assert(t, ok)
}

func TestParseRedirections(t *testing.T) {
	list := parseProgram(t, "cmd > out.txt 2> err.txt < in.txt\n")
	cmd := list.Items[0].(*ast.Command)
	assert.Equal(t, len(cmd.Redirects), 3)
	assert.Equal(t, cmd.Redirects[0].Op, ast.RedirTruncOut)
	assert.Equal(t, cmd.Redirects[1].Op, ast.RedirErr)
	assert.Equal(t, cmd.Redirects[1].Fd, 2)
	assert.Equal(t, cmd.Redirects[2].Op, ast.RedirIn)
}

func TestParseHeredoc(t *testing.T) {
	src := "cat <<EOF\nhello\nEOF\n"
	list := parseProgram(t, src)
	cmd := list.Items[0].(*ast.Command)
	assert.Equal(t, len(cmd.Redirects), 1)
	assert.Equal(t, cmd.Redirects[0].Delim, "EOF")
	assert.Equal(t, cmd.Redirects[0].Body, "hello\n")
}

func TestParseWordLeafShape(t *testing.T) {
	list := parseProgram(t, "echo \"hi $x\" 'lit'\n")
	cmd := list.Items[0].(*ast.Command)
	want := []ast.Node{
		&ast.Word{Text: "echo", Quoting: ast.Unquoted},
		&ast.Word{Text: "hi $x", Quoting: ast.DoubleQuoted, HasExpand: true},
		&ast.Word{Text: "lit", Quoting: ast.SingleQuoted},
	}
	assert.DeepEqual(t, cmd.Words, want, cmpopts.IgnoreFields(ast.NodeBase{}, "Offset"))
}

func TestCheckOnlyModeAccumulatesErrors(t *testing.T) {
	p, err := New("if true\n", true)
	assert.NilError(t, err)
	_, err = p.ParseProgram()
	assert.Assert(t, err != nil)
}
