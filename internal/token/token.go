// Package token implements the shell's tokenizer: a quote/brace-aware
// scanner that turns a byte stream into a token stream, capturing
// here-document bodies as it goes.
package token

import (
	"strings"

	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/shellerr"
)

// Kind is the token kind enumeration.
type Kind int

const (
	Word Kind = iota
	StringLiteral
	StringExpandable
	ArithExpansion
	CommandSubstitution
	Operator
	Newline
	EOF
	HeredocDelimiter
)

func (k Kind) String() string {
	names := [...]string{"Word", "StringLiteral", "StringExpandable", "ArithExpansion",
		"CommandSubstitution", "Operator", "Newline", "EOF", "HeredocDelimiter"}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Token is one lexical unit. Text holds the raw (unexpanded) source text;
// for Word tokens that text may itself contain nested quoting and
// expansion constructs, resolved later by internal/expand.
type Token struct {
	Kind    Kind
	Text    string
	Offset  int
	Quoting ast.Quoting

	// HeredocID, set only on HeredocDelimiter tokens, indexes into the
	// Lexer's captured body map.
	HeredocID int
}

type pendingHeredoc struct {
	delim string
	strip bool
	raw   bool // true if delimiter was quoted: body is literal, not expanded
	id    int
}

// Lexer scans one input buffer into tokens.
type Lexer struct {
	src    []rune
	pos    int
	n      int
	bodies map[int]string
	rawMap map[int]bool
	nextID int

	pending []pendingHeredoc
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: []rune(src), n: len([]rune(src)), bodies: map[int]string{}, rawMap: map[int]bool{}}
}

// HeredocBody returns the captured body for a HeredocDelimiter token's ID
// and whether it should be expanded (false) or treated literally (true).
func (l *Lexer) HeredocBody(id int) (body string, raw bool) {
	return l.bodies[id], l.rawMap[id]
}

func (l *Lexer) peek() rune {
	if l.pos >= l.n {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) rune {
	p := l.pos + off
	if p >= l.n {
		return 0
	}
	return l.src[p]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	return r
}

func isOperatorStart(r rune) bool {
	switch r {
	case '|', '&', ';', '<', '>', '(', ')', '{', '}':
		return true
	}
	return false
}

func isWordEnd(r rune) bool {
	if r == 0 {
		return true
	}
	if r == ' ' || r == '\t' || r == '\n' {
		return true
	}
	return isOperatorStart(r)
}

// Next returns the next token in the stream.
func (l *Lexer) Next() (Token, error) {
	l.skipBlankAndComments()

	if l.pos >= l.n {
		return Token{Kind: EOF, Offset: l.pos}, nil
	}

	start := l.pos
	r := l.peek()

	if r == '\n' {
		l.advance()
		tok := Token{Kind: Newline, Text: "\n", Offset: start}
		if err := l.collectPendingHeredocs(); err != nil {
			return Token{}, err
		}
		return tok, nil
	}

	if isOperatorStart(r) {
		op, err := l.lexOperator()
		if err != nil {
			return Token{}, err
		}
		if op.Text == "<<" || op.Text == "<<-" {
			l.skipBlank()
			delimStart := l.pos
			delim, raw, err := l.lexHeredocWord()
			if err != nil {
				return Token{}, err
			}
			id := l.nextID
			l.nextID++
			l.pending = append(l.pending, pendingHeredoc{delim: delim, strip: op.Text == "<<-", raw: raw, id: id})
			return Token{Kind: HeredocDelimiter, Text: delim, Offset: delimStart, HeredocID: id}, nil
		}
		return op, nil
	}

	// Whole-word quote/expansion forms that stand alone produce their own
	// specialized token kind; anything else (including mixed words) is a
	// Word token whose raw text is re-scanned by internal/expand.
	if r == '\'' {
		text, err := l.lexSingleQuoted()
		if err != nil {
			return Token{}, err
		}
		if isWordEnd(l.peek()) {
			return Token{Kind: StringLiteral, Text: text, Offset: start, Quoting: ast.SingleQuoted}, nil
		}
		// part of a larger composite word; fall through to word lexing
		l.pos = start
	} else if r == '"' {
		text, err := l.lexDoubleQuoted()
		if err != nil {
			return Token{}, err
		}
		if isWordEnd(l.peek()) {
			return Token{Kind: StringExpandable, Text: text, Offset: start, Quoting: ast.DoubleQuoted}, nil
		}
		l.pos = start
	} else if r == '$' && l.peekAt(1) == '(' && l.peekAt(2) == '(' {
		text, err := l.lexArith()
		if err != nil {
			return Token{}, err
		}
		if isWordEnd(l.peek()) {
			return Token{Kind: ArithExpansion, Text: text, Offset: start}, nil
		}
		l.pos = start
	} else if (r == '$' && l.peekAt(1) == '(') || r == '`' {
		text, err := l.lexCommandSub()
		if err != nil {
			return Token{}, err
		}
		if isWordEnd(l.peek()) {
			return Token{Kind: CommandSubstitution, Text: text, Offset: start}, nil
		}
		l.pos = start
	}

	word, err := l.lexWord()
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: Word, Text: word, Offset: start, Quoting: ast.Unquoted}, nil
}

func (l *Lexer) skipBlank() {
	for l.pos < l.n && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
}

func (l *Lexer) skipBlankAndComments() {
	for {
		l.skipBlank()
		if l.pos < l.n && l.src[l.pos] == '\\' && l.peekAt(1) == '\n' {
			l.pos += 2
			continue
		}
		if l.pos < l.n && l.src[l.pos] == '#' {
			for l.pos < l.n && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

var operators = []string{
	"<<-", "<<", ">>", "&&", "||", ">|", "&>", ";;", ";",
	"|", "&", "<", ">", "(", ")", "{", "}", "=",
}

func (l *Lexer) lexOperator() (Token, error) {
	start := l.pos
	rest := string(l.src[l.pos:])
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.pos += len([]rune(op))
			return Token{Kind: Operator, Text: op, Offset: start}, nil
		}
	}
	return Token{}, shellerr.Syntax(start, "unexpected character %q", l.peek())
}

func (l *Lexer) lexSingleQuoted() (string, error) {
	start := l.pos
	l.advance() // opening '
	var sb strings.Builder
	for {
		if l.pos >= l.n {
			return "", shellerr.Syntax(start, "unterminated single-quoted string")
		}
		r := l.advance()
		if r == '\'' {
			return sb.String(), nil
		}
		sb.WriteRune(r)
	}
}

func (l *Lexer) lexDoubleQuoted() (string, error) {
	start := l.pos
	l.advance() // opening "
	var sb strings.Builder
	for {
		if l.pos >= l.n {
			return "", shellerr.Syntax(start, "unterminated double-quoted string")
		}
		r := l.advance()
		if r == '"' {
			return sb.String(), nil
		}
		if r == '\\' {
			if l.pos < l.n {
				nxt := l.peek()
				if nxt == '$' || nxt == '"' || nxt == '\\' || nxt == '`' {
					sb.WriteRune(r)
					sb.WriteRune(l.advance())
					continue
				}
			}
			sb.WriteRune(r)
			continue
		}
		if r == '$' && (l.peek() == '(' || isIdentStart(l.peek()) || l.peek() == '{') {
			sb.WriteRune(r)
			seg, err := l.copyDollarForm()
			if err != nil {
				return "", err
			}
			sb.WriteString(seg)
			continue
		}
		sb.WriteRune(r)
	}
}

// copyDollarForm consumes (without semantic interpretation) the $... form
// starting right after the '$' and returns it verbatim, respecting
// balanced parens/braces and nested quotes, so callers embedding it inside
// a larger scan (double-quoted strings, composite words) keep correct
// depth tracking.
func (l *Lexer) copyDollarForm() (string, error) {
	start := l.pos
	if l.peek() == '(' {
		text, err := l.lexParenForm()
		return text, err
	}
	if l.peek() == '{' {
		return l.lexBraceForm()
	}
	var sb strings.Builder
	for l.pos < l.n && isIdentPart(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if sb.Len() == 0 && l.pos < l.n {
		// special parameter: $?, $$, $!, $#, $*, $@, $0-9
		sb.WriteRune(l.advance())
	}
	if sb.Len() == 0 {
		return "", shellerr.Syntax(start, "malformed parameter expansion")
	}
	return sb.String(), nil
}

// lexParenForm consumes a balanced $(...) or $((...)) starting at '(' and
// returns the full form including the leading '(' through its match,
// without the caller's own outer '$'.
func (l *Lexer) lexParenForm() (string, error) {
	start := l.pos
	if l.peekAt(1) == '(' {
		return l.lexArithRaw(start)
	}
	return l.lexParenBalanced(start)
}

func (l *Lexer) lexParenBalanced(start int) (string, error) {
	depth := 0
	var sb strings.Builder
	inSingle, inDouble := false, false
	for l.pos < l.n {
		r := l.advance()
		sb.WriteRune(r)
		if inSingle {
			if r == '\'' {
				inSingle = false
			}
			continue
		}
		if inDouble {
			if r == '\\' && l.pos < l.n {
				sb.WriteRune(l.advance())
				continue
			}
			if r == '"' {
				inDouble = false
			}
			continue
		}
		switch r {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), nil
			}
		}
	}
	return "", shellerr.Syntax(start, "unterminated command substitution")
}

func (l *Lexer) lexArithRaw(start int) (string, error) {
	var sb strings.Builder
	sb.WriteRune(l.advance()) // first (
	sb.WriteRune(l.advance()) // second (
	depth := 2
	for l.pos < l.n {
		r := l.advance()
		sb.WriteRune(r)
		if r == '(' {
			depth++
		} else if r == ')' {
			depth--
			if depth == 0 {
				return sb.String(), nil
			}
		}
	}
	return "", shellerr.Syntax(start, "unterminated arithmetic expansion")
}

func (l *Lexer) lexBraceForm() (string, error) {
	start := l.pos
	var sb strings.Builder
	sb.WriteRune(l.advance()) // {
	depth := 1
	inSingle, inDouble := false, false
	for l.pos < l.n {
		r := l.advance()
		sb.WriteRune(r)
		if inSingle {
			if r == '\'' {
				inSingle = false
			}
			continue
		}
		if inDouble {
			if r == '\\' && l.pos < l.n {
				sb.WriteRune(l.advance())
				continue
			}
			if r == '"' {
				inDouble = false
			}
			continue
		}
		switch r {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return sb.String(), nil
			}
		}
	}
	return "", shellerr.Syntax(start, "unterminated parameter expansion")
}

func (l *Lexer) lexArith() (string, error) {
	l.advance() // consume leading $; pos now at first '('
	inner, err := l.lexArithRaw(l.pos)
	if err != nil {
		return "", err
	}
	return "$" + inner, nil
}

func (l *Lexer) lexCommandSub() (string, error) {
	start := l.pos
	if l.peek() == '`' {
		l.advance()
		var sb strings.Builder
		sb.WriteRune('`')
		for {
			if l.pos >= l.n {
				return "", shellerr.Syntax(start, "unterminated command substitution")
			}
			r := l.advance()
			sb.WriteRune(r)
			if r == '\\' && l.pos < l.n {
				sb.WriteRune(l.advance())
				continue
			}
			if r == '`' {
				return sb.String(), nil
			}
		}
	}
	l.advance() // $
	inner, err := l.lexParenBalanced(l.pos)
	if err != nil {
		return "", err
	}
	return "$" + inner, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// lexWord consumes a composite word: any run of non-whitespace,
// non-operator characters, honoring quote/paren/brace nesting so that
// whitespace or operator characters inside a quote or substitution do not
// end the word.
func (l *Lexer) lexWord() (string, error) {
	start := l.pos
	var sb strings.Builder
	for l.pos < l.n {
		r := l.peek()
		if isWordEnd(r) && r != '(' {
			break
		}
		// A bare '(' only belongs to the word if part of $( or $((.
		if r == '(' {
			break
		}
		switch r {
		case '\'':
			l.advance()
			sb.WriteRune('\'')
			for {
				if l.pos >= l.n {
					return "", shellerr.Syntax(start, "unterminated single-quoted string")
				}
				c := l.advance()
				sb.WriteRune(c)
				if c == '\'' {
					break
				}
			}
		case '"':
			l.advance()
			sb.WriteRune('"')
			for {
				if l.pos >= l.n {
					return "", shellerr.Syntax(start, "unterminated double-quoted string")
				}
				c := l.advance()
				sb.WriteRune(c)
				if c == '\\' && l.pos < l.n {
					sb.WriteRune(l.advance())
					continue
				}
				if c == '"' {
					break
				}
			}
		case '\\':
			l.advance()
			sb.WriteRune('\\')
			if l.pos < l.n {
				sb.WriteRune(l.advance())
			}
		case '$':
			sb.WriteRune(l.advance())
			if l.pos < l.n && (l.peek() == '(' || l.peek() == '{') {
				seg, err := l.copyDollarForm()
				if err != nil {
					return "", err
				}
				sb.WriteString(seg)
			} else {
				for l.pos < l.n && isIdentPart(l.peek()) {
					sb.WriteRune(l.advance())
				}
			}
		case '`':
			l.advance()
			sb.WriteRune('`')
			for {
				if l.pos >= l.n {
					return "", shellerr.Syntax(start, "unterminated command substitution")
				}
				c := l.advance()
				sb.WriteRune(c)
				if c == '\\' && l.pos < l.n {
					sb.WriteRune(l.advance())
					continue
				}
				if c == '`' {
					break
				}
			}
		default:
			sb.WriteRune(l.advance())
		}
	}
	if sb.Len() == 0 {
		return "", shellerr.Syntax(start, "unexpected character %q", l.peek())
	}
	return sb.String(), nil
}

// lexHeredocWord reads the delimiter word after << / <<-, which may be
// quoted; raw reports whether it was quoted (suppresses
// later expansion of the heredoc body).
func (l *Lexer) lexHeredocWord() (word string, raw bool, err error) {
	if l.peek() == '\'' {
		text, err := l.lexSingleQuoted()
		return text, true, err
	}
	if l.peek() == '"' {
		text, err := l.lexDoubleQuoted()
		return text, true, err
	}
	start := l.pos
	var sb strings.Builder
	for l.pos < l.n && !isWordEnd(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if sb.Len() == 0 {
		return "", false, shellerr.Syntax(start, "expected here-document delimiter")
	}
	return sb.String(), false, nil
}

// collectPendingHeredocs reads the body lines for every heredoc requested
// since the last newline, in request order.
func (l *Lexer) collectPendingHeredocs() error {
	if len(l.pending) == 0 {
		return nil
	}
	pending := l.pending
	l.pending = nil
	for _, hd := range pending {
		var lines []string
		for {
			lineStart := l.pos
			line, ok := l.readLine()
			check := line
			if hd.strip {
				check = strings.TrimLeft(line, "\t")
			}
			if check == hd.delim {
				break
			}
			if hd.strip {
				line = strings.TrimLeft(line, "\t")
			}
			lines = append(lines, line)
			if !ok {
				return shellerr.Syntax(lineStart, "unterminated here-document (wanted %q)", hd.delim)
			}
		}
		body := ""
		if len(lines) > 0 {
			body = strings.Join(lines, "\n") + "\n"
		}
		l.bodies[hd.id] = body
		l.rawMap[hd.id] = hd.raw
	}
	return nil
}

// readLine consumes through the next newline (exclusive) and returns the
// line text; ok is false if EOF was reached without a trailing newline.
func (l *Lexer) readLine() (string, bool) {
	start := l.pos
	for l.pos < l.n && l.src[l.pos] != '\n' {
		l.pos++
	}
	line := string(l.src[start:l.pos])
	if l.pos < l.n {
		l.pos++ // consume newline
		return line, true
	}
	return line, false
}
