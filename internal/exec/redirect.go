package exec

import (
	"io"
	"os"
	"strings"

	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/shellerr"
)

// stdio is the resolved input/output triple for one command invocation,
// in-process builtin or external process alike. Builtin fd save/restore
// is realized as explicit io values threaded through the call rather
// than raw fd dup2/restore, since the process never forks for a builtin.
type stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// resolveRedirects opens every file named by cmd.Redirects and returns
// the stdio triple to use for this command, starting from base, plus a
// cleanup func that closes whatever was opened. Order matters: later
// redirects targeting the same fd override earlier ones, per shell
// convention.
func (ex *Executor) resolveRedirects(cmd *ast.Command, base stdio) (stdio, func(), error) {
	result := base
	var closers []io.Closer

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	for _, r := range cmd.Redirects {
		switch r.Op {
		case ast.RedirHeredoc, ast.RedirHeredocStrip:
			pr, pw, err := os.Pipe()
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection("exec", "%v", err)
			}
			body := r.Body
			if r.Op == ast.RedirHeredocStrip {
				body = stripHeredocTabs(body)
			}
			if !r.DelimRaw {
				body = ex.expandHeredocBody(body)
			}
			go func(w *os.File, data string) {
				defer w.Close()
				_, _ = io.WriteString(w, data)
			}(pw, body)
			result.In = pr
			closers = append(closers, pr)
			continue
		}

		target, err := ex.redirectTargetPath(r)
		if err != nil {
			cleanup()
			return base, nil, err
		}

		switch r.Op {
		case ast.RedirIn:
			f, err := os.Open(target)
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection(target, "%v", err)
			}
			closers = append(closers, f)
			result.In = f
		case ast.RedirTruncOut, ast.RedirClobber:
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection(target, "%v", err)
			}
			closers = append(closers, f)
			assignOut(&result, r.Fd, f)
		case ast.RedirAppend:
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection(target, "%v", err)
			}
			closers = append(closers, f)
			assignOut(&result, r.Fd, f)
		case ast.RedirErr:
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection(target, "%v", err)
			}
			closers = append(closers, f)
			result.Err = f
		case ast.RedirBoth:
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				cleanup()
				return base, nil, shellerr.Redirection(target, "%v", err)
			}
			closers = append(closers, f)
			result.Out = f
			result.Err = f
		}
	}

	return result, cleanup, nil
}

// assignOut routes a plain output redirect (">" etc.) to stdout unless an
// explicit fd override names stderr (e.g. "2>out.txt" parsed with an
// explicit fd rather than ast.RedirErr, which the parser already maps
// separately, but a bare `N>` with N==2 can still arrive this way from a
// generic fd-prefixed redirect).
func assignOut(s *stdio, fd int, f *os.File) {
	if fd == 2 {
		s.Err = f
		return
	}
	s.Out = f
}

func (ex *Executor) redirectTargetPath(r *ast.Redirect) (string, error) {
	if r.Target == nil {
		return "", shellerr.Redirection("exec", "missing redirection target")
	}
	fields, err := ex.Expander().ExpandWord(r.Target)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", shellerr.Redirection("exec", "redirection target expanded to nothing")
	}
	return fields[0], nil
}

// stripHeredocTabs removes a leading run of tabs from every line, per the
// `<<-` form's indentation-stripping rule.
func stripHeredocTabs(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	return strings.Join(lines, "\n")
}

// expandHeredocBody runs parameter/command/arithmetic substitution over a
// here-doc body word-by-word-free (the whole body is one double-quoted-
// style expansion context), leaving
// literal text untouched when the body contains no "$".
func (ex *Executor) expandHeredocBody(body string) string {
	if !strings.Contains(body, "$") {
		return body
	}
	word := &ast.Word{Text: body, Quoting: ast.DoubleQuoted}
	fields, err := ex.Expander().ExpandWord(word)
	if err != nil || len(fields) == 0 {
		return body
	}
	return fields[0]
}
