// Package parse implements the recursive-descent parser: it turns a
// token stream into the tagged-sum AST defined by internal/ast.
package parse

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/shellerr"
	"github.com/lash-shell/lash/internal/token"
)

// Parser turns one token stream into a program AST.
type Parser struct {
	lex       *token.Lexer
	cur       token.Token
	next      token.Token
	hasNext   bool
	checkOnly bool // set -n: accumulate every syntax error instead of stopping at the first
	errs      *multierror.Error
}

// New creates a parser over src. checkOnly mirrors `set -n`'s "run to
// completion, reporting every syntax error" requirement.
func New(src string, checkOnly bool) (*Parser, error) {
	p := &Parser{lex: token.New(src), checkOnly: checkOnly}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseProgram parses the entire input as a command list and returns the
// resulting CommandList.
// In checkOnly mode, parsing continues past recoverable errors and all
// of them are returned together via a multierror.
func (p *Parser) ParseProgram() (ast.Node, error) {
	list, err := p.parseCommandList()
	if p.checkOnly {
		if p.errs != nil {
			return list, p.errs.ErrorOrNil()
		}
		return list, nil
	}
	return list, err
}

func (p *Parser) fail(err error) error {
	if p.checkOnly {
		p.errs = multierror.Append(p.errs, err)
		return nil
	}
	return err
}

func astBase(offset int) ast.NodeBase {
	return ast.NodeBase{Offset: offset}
}

func (p *Parser) advance() error {
	if p.hasNext {
		p.cur = p.next
		p.hasNext = false
		return nil
	}
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) peekNext() (token.Token, error) {
	if !p.hasNext {
		tok, err := p.lex.Next()
		if err != nil {
			return token.Token{}, err
		}
		p.next = tok
		p.hasNext = true
	}
	return p.next, nil
}

func (p *Parser) isOp(text string) bool {
	return p.cur.Kind == token.Operator && p.cur.Text == text
}

func (p *Parser) isWord(text string) bool {
	return p.cur.Kind == token.Word && p.cur.Text == text
}

func (p *Parser) skipSeparators() error {
	for p.cur.Kind == token.Newline || p.isOp(";") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

var reservedStop = map[string]bool{
	"then": true, "elif": true, "else": true, "fi": true,
	"do": true, "done": true, "esac": true,
}

// parseCommandList parses a `command_list` up to EOF, a closing brace
// `}`/`)`, or one of the compound-construct terminator keywords.
func (p *Parser) parseCommandList() (*ast.CommandList, error) {
	list := &ast.CommandList{NodeBase: astBase(p.cur.Offset)}
	for {
		if err := p.skipSeparators(); err != nil {
			return list, err
		}
		if p.atListEnd() {
			break
		}
		node, err := p.parseAndOr()
		if err != nil {
			if e := p.fail(err); e != nil {
				return list, e
			}
			if err := p.resync(); err != nil {
				return list, err
			}
			continue
		}
		background := false
		if p.isOp("&") {
			background = true
			if err := p.advance(); err != nil {
				return list, err
			}
		} else if p.isOp(";") {
			if err := p.advance(); err != nil {
				return list, err
			}
		}
		if background {
			node = &ast.Background{NodeBase: astBase(node.Pos()), Body: node}
		}
		list.Items = append(list.Items, node)
		if p.cur.Kind == token.Newline {
			continue
		}
		if p.atListEnd() {
			break
		}
	}
	return list, nil
}

func (p *Parser) atListEnd() bool {
	if p.cur.Kind == token.EOF {
		return true
	}
	if p.isOp("}") || p.isOp(")") || p.isOp(";;") {
		return true
	}
	if p.cur.Kind == token.Word && reservedStop[p.cur.Text] {
		return true
	}
	return false
}

// resync discards tokens up to the next separator after a syntax error,
// so checkOnly mode can keep finding further errors.
func (p *Parser) resync() error {
	for p.cur.Kind != token.Newline && p.cur.Kind != token.EOF && !p.isOp(";") {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseAndOr() (ast.Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	for p.isOp("&&") || p.isOp("||") {
		isAnd := p.isOp("&&")
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		if isAnd {
			left = &ast.LogicalAnd{Left: left, Right: right}
		} else {
			left = &ast.LogicalOr{Left: left, Right: right}
		}
	}
	return left, nil
}

func (p *Parser) skipNewlines() error {
	for p.cur.Kind == token.Newline {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parsePipeline() (ast.Node, error) {
	left, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		right, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		left = &ast.Pipe{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseCommand() (ast.Node, error) {
	switch {
	case p.isOp("("):
		return p.parseSubshell()
	case p.isOp("{"):
		return p.parseBraceGroup()
	case p.isWord("if"):
		return p.parseIf()
	case p.isWord("while"):
		return p.parseLoop(false)
	case p.isWord("until"):
		return p.parseLoop(true)
	case p.isWord("for"):
		return p.parseFor()
	case p.isWord("case"):
		return p.parseCase()
	default:
		return p.parseSimpleOrFunction()
	}
}

func (p *Parser) expectOp(text string) error {
	if !p.isOp(text) {
		return shellerr.Syntax(p.cur.Offset, "expected %q, found %q", text, p.cur.Text)
	}
	return p.advance()
}

func (p *Parser) expectWord(text string) error {
	if !p.isWord(text) {
		return shellerr.Syntax(p.cur.Offset, "expected %q, found %q", text, p.cur.Text)
	}
	return p.advance()
}

func (p *Parser) parseSubshell() (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume (
		return nil, err
	}
	body, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	return &ast.Subshell{NodeBase: astBase(offset), Body: body}, nil
}

func (p *Parser) parseBraceGroup() (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume {
		return nil, err
	}
	body, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return &ast.BraceGroup{NodeBase: astBase(offset), Body: body}, nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume if
		return nil, err
	}
	cond, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("then"); err != nil {
		return nil, err
	}
	then, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	node := &ast.If{NodeBase: astBase(offset), Cond: cond, Then: then}
	for p.isWord("elif") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elifCond, err := p.parseCommandList()
		if err != nil {
			return nil, err
		}
		if err := p.expectWord("then"); err != nil {
			return nil, err
		}
		elifBody, err := p.parseCommandList()
		if err != nil {
			return nil, err
		}
		node.Elifs = append(node.Elifs, ast.ElifClause{Cond: elifCond, Body: elifBody})
	}
	if p.isWord("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseCommandList()
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
	}
	if err := p.expectWord("fi"); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseLoop(until bool) (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume while/until
		return nil, err
	}
	cond, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("done"); err != nil {
		return nil, err
	}
	if until {
		return &ast.Until{NodeBase: astBase(offset), Cond: cond, Body: body}, nil
	}
	return &ast.While{NodeBase: astBase(offset), Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume for
		return nil, err
	}
	if p.cur.Kind != token.Word {
		return nil, shellerr.Syntax(p.cur.Offset, "expected name after 'for'")
	}
	name := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	node := &ast.For{NodeBase: astBase(offset), Var: name}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	if p.isWord("in") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for p.cur.Kind != token.Newline && !p.isOp(";") && p.cur.Kind != token.EOF && !p.isWord("do") {
			w, err := p.parseWordToken()
			if err != nil {
				return nil, err
			}
			node.Words = append(node.Words, w)
		}
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	if err := p.expectWord("do"); err != nil {
		return nil, err
	}
	body, err := p.parseCommandList()
	if err != nil {
		return nil, err
	}
	if err := p.expectWord("done"); err != nil {
		return nil, err
	}
	node.Body = body
	return node, nil
}

func (p *Parser) parseCase() (ast.Node, error) {
	offset := p.cur.Offset
	if err := p.advance(); err != nil { // consume case
		return nil, err
	}
	subject, err := p.parseWordToken()
	if err != nil {
		return nil, err
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	if err := p.expectWord("in"); err != nil {
		return nil, err
	}
	node := &ast.Case{NodeBase: astBase(offset), Subject: subject}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	for !p.isWord("esac") && p.cur.Kind != token.EOF {
		item, err := p.parseCaseItem()
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, item)
		if err := p.skipSeparators(); err != nil {
			return nil, err
		}
	}
	if err := p.expectWord("esac"); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseCaseItem() (*ast.CaseItem, error) {
	offset := p.cur.Offset
	hasParen := p.isOp("(")
	if hasParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var patterns []string
	for {
		if p.cur.Kind != token.Word && p.cur.Kind != token.StringLiteral {
			return nil, shellerr.Syntax(p.cur.Offset, "expected case pattern")
		}
		patterns = append(patterns, p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isOp("|") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectOp(")"); err != nil {
		return nil, err
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	var body ast.Node
	if !p.isOp(";;") && !p.isWord("esac") {
		b, err := p.parseCommandList()
		if err != nil {
			return nil, err
		}
		body = b
	}
	if p.isOp(";;") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return &ast.CaseItem{NodeBase: astBase(offset), Patterns: patterns, Body: body}, nil
}

// parseSimpleOrFunction handles both `simple_command` and the two
// function-definition forms: `name() body` and the extended
// `name(param[=default], ...) body`.
func (p *Parser) parseSimpleOrFunction() (ast.Node, error) {
	if p.cur.Kind == token.Word && isIdentifier(p.cur.Text) {
		peek, err := p.peekNext()
		adjacent := peek.Offset == p.cur.Offset+len([]rune(p.cur.Text))
		if err == nil && peek.Kind == token.Operator && peek.Text == "(" && adjacent {
			return p.parseFunctionDef()
		}
	}
	return p.parseSimpleCommand()
}

func (p *Parser) parseFunctionDef() (ast.Node, error) {
	offset := p.cur.Offset
	name := p.cur.Text
	if err := p.advance(); err != nil { // consume name
		return nil, err
	}
	if err := p.advance(); err != nil { // consume (
		return nil, err
	}
	var params []ast.Param
	if p.isOp(")") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else {
		// The tokenizer has no notion of ',' as a delimiter (word
		// boundaries are whitespace and operators only), so a
		// comma-separated parameter list arrives as a run of plain Word
		// tokens; concatenate their raw text and split it ourselves.
		var raw strings.Builder
		for !p.isOp(")") {
			if p.cur.Kind != token.Word {
				return nil, shellerr.Syntax(p.cur.Offset, "expected parameter list")
			}
			raw.WriteString(p.cur.Text)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if err := p.advance(); err != nil { // consume )
			return nil, err
		}
		for _, spec := range strings.Split(raw.String(), ",") {
			spec = strings.TrimSpace(spec)
			if spec == "" {
				continue
			}
			name, def, hasDefault := splitAssignment(spec)
			if !hasDefault {
				name = spec
			}
			params = append(params, ast.Param{Name: name, Default: def, HasDefault: hasDefault})
		}
	}
	if err := p.skipSeparators(); err != nil {
		return nil, err
	}
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &ast.Function{NodeBase: astBase(offset), Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseSimpleCommand() (ast.Node, error) {
	offset := p.cur.Offset
	cmd := &ast.Command{NodeBase: astBase(offset)}
	sawCommandWord := false

	for {
		switch {
		case p.cur.Kind == token.EOF, p.cur.Kind == token.Newline:
			return cmd, nil
		case p.isOp(";"), p.isOp("&"), p.isOp("&&"), p.isOp("||"), p.isOp("|"),
			p.isOp(")"), p.isOp("}"), p.isOp(";;"):
			return cmd, nil
		case p.cur.Kind == token.Word && reservedStop[p.cur.Text] && sawCommandWord:
			return cmd, nil

		case p.cur.Kind == token.HeredocDelimiter:
			r := &ast.Redirect{NodeBase: astBase(p.cur.Offset), Op: ast.RedirHeredoc, Delim: p.cur.Text}
			id := p.cur.HeredocID
			// The lexer captures a body when it lexes the end of the line,
			// so the body is looked up only after advancing past the
			// delimiter.
			if err := p.advance(); err != nil {
				return nil, err
			}
			r.Body, r.DelimRaw = p.lex.HeredocBody(id)
			cmd.Redirects = append(cmd.Redirects, r)

		case p.cur.Kind == token.Word && isAllDigits(p.cur.Text):
			peek, err := p.peekNext()
			if err == nil && peek.Kind == token.Operator && isRedirectOpText(peek.Text) &&
				peek.Offset == p.cur.Offset+len([]rune(p.cur.Text)) {
				fd, _ := strconv.Atoi(p.cur.Text)
				if err := p.advance(); err != nil { // consume digit
					return nil, err
				}
				r, err := p.parseRedirectTail(fd)
				if err != nil {
					return nil, err
				}
				cmd.Redirects = append(cmd.Redirects, r)
				continue
			}
			w, err := p.parseWordToken()
			if err != nil {
				return nil, err
			}
			sawCommandWord = p.appendWordOrAssign(cmd, w, sawCommandWord)

		case p.cur.Kind == token.Operator && isRedirectOpText(p.cur.Text):
			r, err := p.parseRedirectTail(-1)
			if err != nil {
				return nil, err
			}
			cmd.Redirects = append(cmd.Redirects, r)

		default:
			w, err := p.parseWordToken()
			if err != nil {
				return nil, err
			}
			sawCommandWord = p.appendWordOrAssign(cmd, w, sawCommandWord)
		}
	}
}

// appendWordOrAssign classifies w as a leading assignment (only while no
// command word has been seen yet) or as an argv word. Returns whether a
// command
// word has now been seen.
func (p *Parser) appendWordOrAssign(cmd *ast.Command, w ast.Node, sawCommandWord bool) bool {
	if !sawCommandWord {
		if word, ok := w.(*ast.Word); ok && word.Quoting == ast.Unquoted {
			if name, value, isAssign := splitAssignment(word.Text); isAssign {
				cmd.Assigns = append(cmd.Assigns, ast.Assignment{
					Name:  name,
					Value: &ast.Word{Text: value, HasExpand: true},
				})
				return false
			}
		}
	}
	cmd.Words = append(cmd.Words, w)
	return true
}

func splitAssignment(text string) (name, value string, ok bool) {
	idx := strings.IndexByte(text, '=')
	if idx <= 0 {
		return "", "", false
	}
	name = text[:idx]
	if !isIdentifier(name) {
		return "", "", false
	}
	return name, text[idx+1:], true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var redirectOps = map[string]ast.RedirectOp{
	">":  ast.RedirTruncOut,
	">>": ast.RedirAppend,
	"<":  ast.RedirIn,
	"&>": ast.RedirBoth,
	">|": ast.RedirClobber,
}

func isRedirectOpText(text string) bool {
	_, ok := redirectOps[text]
	return ok
}

func (p *Parser) parseRedirectTail(fd int) (*ast.Redirect, error) {
	offset := p.cur.Offset
	opText := p.cur.Text
	op := redirectOps[opText]
	if op == ast.RedirTruncOut && fd == 2 {
		op = ast.RedirErr
	}
	if fd < 0 {
		if op == ast.RedirIn {
			fd = 0
		} else {
			fd = 1
		}
	}
	if err := p.advance(); err != nil { // consume operator
		return nil, err
	}
	target, err := p.parseWordToken()
	if err != nil {
		return nil, err
	}
	return &ast.Redirect{NodeBase: astBase(offset), Op: op, Fd: fd, Target: target}, nil
}

// parseWordToken consumes the current token and builds the word-level
// AST leaf for it.
func (p *Parser) parseWordToken() (ast.Node, error) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.StringLiteral:
		return &ast.Word{NodeBase: astBase(tok.Offset), Text: tok.Text, Quoting: ast.SingleQuoted}, nil
	case token.StringExpandable:
		return &ast.Word{NodeBase: astBase(tok.Offset), Text: tok.Text, Quoting: ast.DoubleQuoted, HasExpand: strings.ContainsRune(tok.Text, '$')}, nil
	case token.ArithExpansion:
		inner := strings.TrimSuffix(strings.TrimPrefix(tok.Text, "$(("), "))")
		return &ast.Var{NodeBase: astBase(tok.Offset), Form: ast.VarArith, Text: inner}, nil
	case token.CommandSubstitution:
		return &ast.Var{NodeBase: astBase(tok.Offset), Form: ast.VarCmdSub, Text: stripCmdSubDelims(tok.Text)}, nil
	default: // Word
		return &ast.Word{NodeBase: astBase(tok.Offset), Text: tok.Text, Quoting: ast.Unquoted, HasExpand: strings.ContainsRune(tok.Text, '$')}, nil
	}
}

func stripCmdSubDelims(text string) string {
	if strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		return text[1 : len(text)-1]
	}
	if strings.HasPrefix(text, "$(") && strings.HasSuffix(text, ")") {
		return text[2 : len(text)-1]
	}
	return text
}
