package token

import (
	"testing"

	"gotest.tools/v3/assert"
)

func allTokens(t *testing.T, src string) []Token {
	t.Helper()
	lx := New(src)
	var toks []Token
	for {
		tok, err := lx.Next()
		assert.NilError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestSimpleCommandWords(t *testing.T) {
	toks := allTokens(t, "echo hello world")
	assert.Equal(t, len(toks), 4) // echo, hello, world, EOF
	assert.Equal(t, toks[0].Text, "echo")
	assert.Equal(t, toks[1].Text, "hello")
	assert.Equal(t, toks[2].Text, "world")
	assert.Equal(t, toks[3].Kind, EOF)
}

func TestOperatorsAreGreedy(t *testing.T) {
	toks := allTokens(t, "a && b || c")
	var ops []string
	for _, tk := range toks {
		if tk.Kind == Operator {
			ops = append(ops, tk.Text)
		}
	}
	assert.DeepEqual(t, ops, []string{"&&", "||"})
}

func TestSingleQuotedIsLiteral(t *testing.T) {
	toks := allTokens(t, `'hello $world'`)
	assert.Equal(t, toks[0].Kind, StringLiteral)
	assert.Equal(t, toks[0].Text, "hello $world")
}

func TestDoubleQuotedPreservesExpansionSyntax(t *testing.T) {
	toks := allTokens(t, `"hello $name"`)
	assert.Equal(t, toks[0].Kind, StringExpandable)
	assert.Equal(t, toks[0].Text, "hello $name")
}

func TestArithExpansionToken(t *testing.T) {
	toks := allTokens(t, "$((1+2))")
	assert.Equal(t, toks[0].Kind, ArithExpansion)
	assert.Equal(t, toks[0].Text, "$((1+2))")
}

func TestNestedCommandSubstitution(t *testing.T) {
	toks := allTokens(t, "$(echo $(echo hi))")
	assert.Equal(t, toks[0].Kind, CommandSubstitution)
	assert.Equal(t, toks[0].Text, "$(echo $(echo hi))")
}

func TestCompositeWordPreservesAllParts(t *testing.T) {
	toks := allTokens(t, `pre"mid"'lit'$x`)
	assert.Equal(t, toks[0].Kind, Word)
	assert.Equal(t, toks[0].Text, `pre"mid"'lit'$x`)
}

func TestUnterminatedQuoteIsSyntaxError(t *testing.T) {
	lx := New("echo 'unterminated")
	_, err := lx.Next() // echo
	assert.NilError(t, err)
	_, err = lx.Next()
	assert.ErrorContains(t, err, "unterminated single-quoted string")
}

func TestHeredocCapturesBody(t *testing.T) {
	src := "cat <<EOF\nhello\nworld\nEOF\necho after"
	lx := New(src)
	var delimTok Token
	for {
		tok, err := lx.Next()
		assert.NilError(t, err)
		if tok.Kind == HeredocDelimiter {
			delimTok = tok
		}
		if tok.Kind == EOF {
			break
		}
	}
	body, raw := lx.HeredocBody(delimTok.HeredocID)
	assert.Equal(t, body, "hello\nworld\n")
	assert.Equal(t, raw, false)
}

func TestHeredocStripStripsLeadingTabs(t *testing.T) {
	src := "cat <<-EOF\n\t\thello\n\tEOF\n"
	lx := New(src)
	var id int
	for {
		tok, err := lx.Next()
		assert.NilError(t, err)
		if tok.Kind == HeredocDelimiter {
			id = tok.HeredocID
		}
		if tok.Kind == EOF {
			break
		}
	}
	body, _ := lx.HeredocBody(id)
	assert.Equal(t, body, "hello\n")
}

func TestHeredocQuotedDelimiterIsRaw(t *testing.T) {
	src := "cat <<'EOF'\n$x\nEOF\n"
	lx := New(src)
	var id int
	for {
		tok, err := lx.Next()
		assert.NilError(t, err)
		if tok.Kind == HeredocDelimiter {
			id = tok.HeredocID
		}
		if tok.Kind == EOF {
			break
		}
	}
	body, raw := lx.HeredocBody(id)
	assert.Equal(t, body, "$x\n")
	assert.Equal(t, raw, true)
}

func TestCommentIsSkipped(t *testing.T) {
	toks := allTokens(t, "echo hi # a comment\necho bye")
	var words []string
	for _, tk := range toks {
		if tk.Kind == Word {
			words = append(words, tk.Text)
		}
	}
	assert.DeepEqual(t, words, []string{"echo", "hi", "echo", "bye"})
}
