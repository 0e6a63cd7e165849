package builtin

import (
	"io"

	"github.com/lash-shell/lash/internal/exec"
)

// atoiOr parses s as a decimal integer, returning fallback on failure
// (`break`/`continue`/`return`/`exit` all accept an optional
// numeric argument and silently default when it's missing or malformed).
func atoiOr(s string, fallback int) int {
	n := 0
	neg := false
	seen := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return fallback
		}
		seen = true
		n = n*10 + int(r-'0')
	}
	if !seen {
		return fallback
	}
	if neg {
		n = -n
	}
	return n
}

// builtinBreak implements `break [n]`: it raises a
// SigBreak on the Executor for the nearest enclosing loop (execLoop/
// execFor in internal/exec) to consume, unwinding n levels.
func builtinBreak(ex *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	n := 1
	if len(argv) > 1 {
		n = atoiOr(argv[1], 1)
	}
	if n < 1 {
		n = 1
	}
	ex.RaiseControl(exec.SigBreak, n)
	return 0, nil
}

func builtinContinue(ex *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	n := 1
	if len(argv) > 1 {
		n = atoiOr(argv[1], 1)
	}
	if n < 1 {
		n = 1
	}
	ex.RaiseControl(exec.SigContinue, n)
	return 0, nil
}

// builtinReturn implements `return [n]`: n defaults to the status of the
// last command run in the function, per POSIX.
func builtinReturn(ex *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	code := ex.Status
	if len(argv) > 1 {
		code = atoiOr(argv[1], code) & 0xff
	}
	ex.RaiseControl(exec.SigReturn, code)
	return code, nil
}

// builtinExit implements `exit [n]`: n defaults to the status of the
// last command run, truncated to 0-255.
func builtinExit(ex *exec.Executor, argv []string, _ io.Reader, _, _ io.Writer) (int, error) {
	code := ex.Status
	if len(argv) > 1 {
		code = atoiOr(argv[1], code)
	}
	code &= 0xff
	ex.RaiseControl(exec.SigExit, code)
	return code, nil
}

func builtinTrue(_ *exec.Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) {
	return 0, nil
}

func builtinFalse(_ *exec.Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) {
	return 1, nil
}
