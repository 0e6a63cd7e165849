// Package expand implements the shell expansion pipeline: tilde
// expansion, the interleaved parameter/arithmetic/command-
// substitution pass, IFS field splitting, brace expansion, and pathname
// globbing, applied in that order to each word of a simple command.
package expand

import (
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/lash-shell/lash/internal/arith"
	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/glob"
	"github.com/lash-shell/lash/internal/shellerr"
)

// Env is everything the expander needs from the running shell: the
// variable scope chain, special parameters, and option flags. Kept
// narrow and interface-typed so internal/exec can satisfy it without
// internal/expand importing internal/scope or internal/job.
type Env interface {
	Get(name string) (string, bool)
	Set(name, value string)
	IFS() string
	Arg0() string
	Positional() []string
	ExitStatus() int
	PID() int
	LastBgPID() int
	Noglob() bool
	Nounset() bool
}

// CommandRunner executes src as a command list in a subshell and
// returns its captured stdout, for command substitution. Supplied by
// internal/exec to avoid an import cycle.
type CommandRunner func(src string) (string, error)

// Expander holds everything needed to expand one command's words.
type Expander struct {
	Env Env
	Run CommandRunner
}

// New creates an Expander.
func New(env Env, run CommandRunner) *Expander {
	return &Expander{Env: env, Run: run}
}

// ExpandWords expands an argv-shaped list of Word/Var nodes into the
// final field list (applied per word, results concatenated in order).
func (e *Expander) ExpandWords(words []ast.Node) ([]string, error) {
	var out []string
	for _, w := range words {
		fields, err := e.ExpandWord(w)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// ExpandWord expands a single word node into zero or more resulting
// fields.
func (e *Expander) ExpandWord(w ast.Node) ([]string, error) {
	segs, err := e.wordSegments(w)
	if err != nil {
		return nil, err
	}
	segs = e.applyTilde(segs)
	fields := splitFields(segs, e.Env.IFS())

	var out []string
	for _, f := range fields {
		for _, braced := range expandBraces(f.text) {
			if !f.glob || e.Env.Noglob() {
				out = append(out, braced)
				continue
			}
			out = append(out, glob.Expand(braced)...)
		}
	}
	return out, nil
}

type segment struct {
	text      string
	protected bool // from a quoted region: not split, not globbed
}

type field struct {
	text string
	glob bool // built entirely from unquoted segments; eligible for pathname expansion
}

func (e *Expander) wordSegments(w ast.Node) ([]segment, error) {
	switch n := w.(type) {
	case *ast.Word:
		switch n.Quoting {
		case ast.SingleQuoted:
			return []segment{{text: n.Text, protected: true}}, nil
		case ast.DoubleQuoted:
			return e.scanQuoted(n.Text)
		default:
			return e.scanUnquoted(n.Text)
		}
	case *ast.Var:
		val, err := e.evalVar(n)
		if err != nil {
			return nil, err
		}
		return []segment{{text: val, protected: false}}, nil
	default:
		return nil, shellerr.Expansion("expand", "unsupported word node")
	}
}

func (e *Expander) evalVar(n *ast.Var) (string, error) {
	switch n.Form {
	case ast.VarArith:
		v, err := arith.Eval(n.Text, arithEnv{e.Env})
		if err != nil {
			return "", shellerr.Expansion("expand", "%v", err)
		}
		return strconv.FormatInt(v, 10), nil
	case ast.VarCmdSub:
		if e.Run == nil {
			return "", nil
		}
		out, err := e.Run(n.Text)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	case ast.VarBraced:
		return e.expandBraced(n.Text)
	default:
		return e.lookupSimple(n.Text)
	}
}

type arithEnv struct{ env Env }

func (a arithEnv) Get(name string) string {
	v, _ := a.env.Get(name)
	return v
}
func (a arithEnv) Set(name, value string) { a.env.Set(name, value) }

// scanUnquoted walks a composite Unquoted Word's raw text (which may
// itself contain embedded '...' and "..." regions plus $ forms and
// backslash escapes) and
// produces the segment list.
func (e *Expander) scanUnquoted(text string) ([]segment, error) {
	runes := []rune(text)
	var segs []segment
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			segs = append(segs, segment{text: plain.String(), protected: false})
			plain.Reset()
		}
	}
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '\'':
			flush()
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			segs = append(segs, segment{text: string(runes[i+1 : j]), protected: true})
			i = j + 1
		case '"':
			flush()
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				if runes[j] == '\\' && j+1 < len(runes) {
					j++
				}
				j++
			}
			inner, err := e.scanQuoted(string(runes[i+1 : j]))
			if err != nil {
				return nil, err
			}
			segs = append(segs, inner...)
			i = j + 1
		case '\\':
			flush()
			if i+1 < len(runes) {
				segs = append(segs, segment{text: string(runes[i+1]), protected: true})
				i += 2
			} else {
				i++
			}
		case '$':
			value, consumed, err := e.scanDollar(runes, i)
			if err != nil {
				return nil, err
			}
			flush()
			segs = append(segs, segment{text: value, protected: false})
			i = consumed
		default:
			plain.WriteRune(r)
			i++
		}
	}
	flush()
	return segs, nil
}

// scanQuoted handles the interior of a double-quoted region: only $
// forms and a fixed escape set are recognized; the whole result is
// protected (no splitting, no globbing).
func (e *Expander) scanQuoted(text string) ([]segment, error) {
	runes := []rune(text)
	var sb strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			if decoded, ok := doubleQuoteEscape(next); ok {
				sb.WriteRune(decoded)
				i += 2
				continue
			}
			sb.WriteRune('\\')
			i++
			continue
		}
		if r == '$' {
			value, consumed, err := e.scanDollar(runes, i)
			if err != nil {
				return nil, err
			}
			sb.WriteString(value)
			i = consumed
			continue
		}
		sb.WriteRune(r)
		i++
	}
	return []segment{{text: sb.String(), protected: true}}, nil
}

func doubleQuoteEscape(r rune) (rune, bool) {
	switch r {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case 'b':
		return '\b', true
	case 'f':
		return '\f', true
	case 'v':
		return '\v', true
	case 'a':
		return '\a', true
	case '\\', '"', '$', '`':
		return r, true
	}
	return 0, false
}

// scanDollar reads one $ form starting at runes[i] (which must be '$')
// and returns its expanded value plus the index just past the form.
func (e *Expander) scanDollar(runes []rune, i int) (string, int, error) {
	n := len(runes)
	if i+1 >= n {
		return "$", i + 1, nil
	}
	switch {
	case runes[i+1] == '(' && i+2 < n && runes[i+2] == '(':
		j := i + 3
		depth := 2
		for j < n && depth > 0 {
			if runes[j] == '(' {
				depth++
			} else if runes[j] == ')' {
				depth--
			}
			j++
		}
		expr := string(runes[i+3 : j-2])
		v, err := arith.Eval(expr, arithEnv{e.Env})
		if err != nil {
			return "", j, shellerr.Expansion("expand", "%v", err)
		}
		return strconv.FormatInt(v, 10), j, nil
	case runes[i+1] == '(':
		j := i + 2
		depth := 1
		for j < n && depth > 0 {
			if runes[j] == '(' {
				depth++
			} else if runes[j] == ')' {
				depth--
			}
			j++
		}
		cmd := string(runes[i+2 : j-1])
		if e.Run == nil {
			return "", j, nil
		}
		out, err := e.Run(cmd)
		if err != nil {
			return "", j, err
		}
		return strings.TrimRight(out, "\n"), j, nil
	case runes[i+1] == '{':
		j := i + 2
		depth := 1
		for j < n && depth > 0 {
			if runes[j] == '{' {
				depth++
			} else if runes[j] == '}' {
				depth--
			}
			j++
		}
		payload := string(runes[i+2 : j-1])
		v, err := e.expandBraced(payload)
		return v, j, err
	case isSpecialParamChar(runes[i+1]):
		v, err := e.lookupSimple(string(runes[i+1]))
		return v, i + 2, err
	case runes[i+1] == '`':
		return "$", i + 1, nil
	default:
		j := i + 1
		for j < n && isIdentRune(runes[j], j == i+1) {
			j++
		}
		if j == i+1 {
			return "$", i + 1, nil
		}
		v, err := e.lookupSimple(string(runes[i+1 : j]))
		return v, j, err
	}
}

func isSpecialParamChar(r rune) bool {
	switch r {
	case '?', '$', '!', '#', '*', '@', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func isIdentRune(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	if !first && r >= '0' && r <= '9' {
		return true
	}
	return false
}

// lookupSimple resolves a bare $name / special-parameter reference
// ($?, $$, $!, $#, $*, $@, $0-$9).
func (e *Expander) lookupSimple(name string) (string, error) {
	switch name {
	case "?":
		return strconv.Itoa(e.Env.ExitStatus()), nil
	case "$":
		return strconv.Itoa(e.Env.PID()), nil
	case "!":
		return strconv.Itoa(e.Env.LastBgPID()), nil
	case "#":
		return strconv.Itoa(len(e.Env.Positional())), nil
	case "*", "@":
		return strings.Join(e.Env.Positional(), " "), nil
	}
	if len(name) == 1 && name[0] >= '0' && name[0] <= '9' {
		idx := int(name[0] - '0')
		if idx == 0 {
			return e.Env.Arg0(), nil
		}
		pos := e.Env.Positional()
		if idx-1 < len(pos) {
			return pos[idx-1], nil
		}
		if e.Env.Nounset() {
			return "", shellerr.Expansion("expand", "%s: unbound variable", name)
		}
		return "", nil
	}
	if n, err := strconv.Atoi(name); err == nil {
		pos := e.Env.Positional()
		if n >= 1 && n-1 < len(pos) {
			return pos[n-1], nil
		}
		if e.Env.Nounset() {
			return "", shellerr.Expansion("expand", "%s: unbound variable", name)
		}
		return "", nil
	}
	v, ok := e.Get(name)
	if !ok && e.Env.Nounset() {
		return "", shellerr.Expansion("expand", "%s: unbound variable", name)
	}
	return v, nil
}

func (e *Expander) Get(name string) (string, bool) {
	return e.Env.Get(name)
}

// applyTilde expands tilde prefixes: a leading '~' in the word's
// very first (unprotected) segment expands to $HOME, or `~user`'s home
// directory via the OS user database.
func (e *Expander) applyTilde(segs []segment) []segment {
	if len(segs) == 0 || segs[0].protected {
		return segs
	}
	text := segs[0].text
	if !strings.HasPrefix(text, "~") {
		return segs
	}
	rest := text[1:]
	end := strings.IndexAny(rest, "/")
	name := rest
	tail := ""
	if end >= 0 {
		name = rest[:end]
		tail = rest[end:]
	}
	var home string
	if name == "" {
		home = os.Getenv("HOME")
	} else if u, err := user.Lookup(name); err == nil {
		home = u.HomeDir
	} else {
		return segs // unknown user: leave the word untouched
	}
	segs[0].text = home + tail
	return segs
}

func splitFields(segs []segment, ifs string) []field {
	if ifs == "" {
		ifs = " \t\n"
	}
	isIFS := func(r rune) bool { return strings.ContainsRune(ifs, r) }

	var fields []field
	var cur strings.Builder
	curGlob := true
	curHasContent := false
	flush := func() {
		if curHasContent {
			fields = append(fields, field{text: cur.String(), glob: curGlob})
		}
		cur.Reset()
		curGlob = true
		curHasContent = false
	}
	for _, s := range segs {
		if s.protected {
			cur.WriteString(s.text)
			curGlob = false
			curHasContent = true
			continue
		}
		start := 0
		runes := []rune(s.text)
		for idx, r := range runes {
			if isIFS(r) {
				cur.WriteString(string(runes[start:idx]))
				if len(runes[start:idx]) > 0 {
					curHasContent = true
				}
				flush()
				start = idx + 1
			}
		}
		rest := string(runes[start:])
		if rest != "" {
			cur.WriteString(rest)
			curHasContent = true
		}
	}
	flush()
	return fields
}

// expandBraces implements `{a,b,c}` brace expansion,
// applied after substitution and before pathname globbing. Only the
// first top-level `{...,...}` group is expanded per call; nested groups
// recurse through the resulting alternatives.
func expandBraces(s string) []string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return []string{s}
	}
	depth := 0
	end := -1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return []string{s}
	}
	inner := s[start+1 : end]
	parts := splitTopLevelCommas(inner)
	if len(parts) < 2 {
		return []string{s}
	}
	prefix, suffix := s[:start], s[end+1:]
	var out []string
	for _, p := range parts {
		for _, tail := range expandBraces(suffix) {
			for _, mid := range expandBraces(p) {
				out = append(out, prefix+mid+tail)
			}
		}
	}
	return out
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// expandBraced implements the ${...} operator grammar, selecting the longest matching operator
// first (":-" over "-", "##" over "#", etc.).
func (e *Expander) expandBraced(payload string) (string, error) {
	if payload == "" {
		return "", shellerr.Expansion("expand", "bad substitution")
	}
	if payload[0] == '#' && len(payload) > 1 && payload[1:] != "" && !isOperatorStart(payload[1]) {
		name := payload[1:]
		v, err := e.lookupSimple(name)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len([]rune(v))), nil
	}

	name, rest := splitName(payload)
	if rest == "" {
		return e.lookupSimple(name)
	}

	op, arg, err := longestOperator(rest)
	if err != nil {
		return "", err
	}
	v, isSet := e.Get(name)

	switch op {
	case ":-":
		if !isSet || v == "" {
			return e.expandRHS(arg)
		}
		return v, nil
	case "-":
		if !isSet {
			return e.expandRHS(arg)
		}
		return v, nil
	case ":+":
		if isSet && v != "" {
			return e.expandRHS(arg)
		}
		return "", nil
	case "+":
		if isSet {
			return e.expandRHS(arg)
		}
		return "", nil
	case ":=":
		if !isSet || v == "" {
			val, err := e.expandRHS(arg)
			if err != nil {
				return "", err
			}
			e.Env.Set(name, val)
			return val, nil
		}
		return v, nil
	case "=":
		if !isSet {
			val, err := e.expandRHS(arg)
			if err != nil {
				return "", err
			}
			e.Env.Set(name, val)
			return val, nil
		}
		return v, nil
	case "#":
		return stripPrefix(v, arg, false), nil
	case "##":
		return stripPrefix(v, arg, true), nil
	case "%":
		return stripSuffix(v, arg, false), nil
	case "%%":
		return stripSuffix(v, arg, true), nil
	case "^":
		return caseFirst(v, strings.ToUpper), nil
	case "^^":
		return strings.ToUpper(v), nil
	case ",":
		return caseFirst(v, strings.ToLower), nil
	case ",,":
		return strings.ToLower(v), nil
	case ":":
		return substring(v, arg)
	default:
		return "", shellerr.Expansion("expand", "%s: bad substitution", payload)
	}
}

func (e *Expander) expandRHS(raw string) (string, error) {
	segs, err := e.scanUnquoted(raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.text)
	}
	return sb.String(), nil
}

func splitName(payload string) (name, rest string) {
	if len(payload) > 0 && payload[0] >= '0' && payload[0] <= '9' {
		// positional parameter: the whole digit run is the name (${12})
		i := 0
		for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
			i++
		}
		return payload[:i], payload[i:]
	}
	i := 0
	for i < len(payload) && isIdentRune(rune(payload[i]), i == 0) {
		i++
	}
	if i == 0 {
		// special single-character parameter name ($#, $?, ...)
		if len(payload) > 0 {
			return payload[:1], payload[1:]
		}
		return "", ""
	}
	return payload[:i], payload[i:]
}

func isOperatorStart(b byte) bool {
	switch b {
	case ':', '-', '+', '=', '#', '%', '^', ',':
		return true
	}
	return false
}

// longestOperator matches the longest known ${...} operator at the
// start of rest.
func longestOperator(rest string) (op, arg string, err error) {
	candidates := []string{":-", ":+", ":=", "##", "%%", "^^", ",,", ":", "-", "+", "=", "#", "%", "^", ","}
	for _, c := range candidates {
		if strings.HasPrefix(rest, c) {
			return c, rest[len(c):], nil
		}
	}
	return "", "", shellerr.Expansion("expand", "%s: bad substitution", rest)
}

func stripPrefix(v, pattern string, longest bool) string {
	runes := []rune(v)
	best := -1
	for i := 0; i <= len(runes); i++ {
		if glob.Match(pattern, string(runes[:i])) {
			best = i
			if !longest {
				break
			}
		}
	}
	if best < 0 {
		return v
	}
	return string(runes[best:])
}

func stripSuffix(v, pattern string, longest bool) string {
	runes := []rune(v)
	best := -1
	for i := len(runes); i >= 0; i-- {
		if glob.Match(pattern, string(runes[i:])) {
			best = i
			if !longest {
				break
			}
		}
	}
	if best < 0 {
		return v
	}
	return string(runes[:best])
}

func caseFirst(v string, f func(string) string) string {
	if v == "" {
		return v
	}
	runes := []rune(v)
	return f(string(runes[0])) + string(runes[1:])
}

func substring(v, arg string) (string, error) {
	parts := strings.SplitN(arg, ":", 2)
	offset, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", shellerr.Expansion("expand", "substring: invalid offset %q", parts[0])
	}
	runes := []rune(v)
	n := len(runes)
	if offset < 0 {
		offset = n + offset
	}
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	length := n - offset
	if len(parts) == 2 {
		l, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return "", shellerr.Expansion("expand", "substring: invalid length %q", parts[1])
		}
		length = l
	}
	if length < 0 {
		length = 0
	}
	end := offset + length
	if end > n {
		end = n
	}
	if offset > end {
		return "", nil
	}
	return string(runes[offset:end]), nil
}
