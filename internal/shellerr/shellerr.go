// Package shellerr defines the shell's diagnostic error kinds and their
// exit-code mapping.
package shellerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the shell's diagnostic error categories.
type Kind string

const (
	KindSyntax      Kind = "syntax"
	KindExpansion   Kind = "expansion"
	KindRedirection Kind = "redirection"
	KindExec        Kind = "exec"
	KindRuntime     Kind = "runtime"
	KindTrap        Kind = "trap"
)

// Error is a diagnosed shell error: a kind, an originating name (the
// builtin, word, or subsystem that raised it), a message, an exit code,
// and the offset where it was found, if known.
type Error struct {
	Kind    Kind
	Name    string
	Message string
	Code    int
	Offset  int
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ExitCode reports the status this error should produce at the top level.
func (e *Error) ExitCode() int { return e.Code }

// Cause satisfies the causal convention used by pkg/errors.
func (e *Error) Cause() error {
	if e.cause != nil {
		return e.cause
	}
	return e
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, name string, code int, format string, args ...any) *Error {
	return &Error{Kind: kind, Name: name, Message: fmt.Sprintf(format, args...), Code: code}
}

// Syntax builds a SyntaxError at the given source offset; exit status 2.
func Syntax(offset int, format string, args ...any) *Error {
	e := newErr(KindSyntax, "syntax error", 2, format, args...)
	e.Offset = offset
	return e
}

// Expansion builds an ExpansionError; exit status 1.
func Expansion(name, format string, args ...any) *Error {
	return newErr(KindExpansion, name, 1, format, args...)
}

// Redirection builds a RedirectionError; exit status 1, command not executed.
func Redirection(name, format string, args ...any) *Error {
	return newErr(KindRedirection, name, 1, format, args...)
}

// NotFound builds the ExecError for a missing command; exit status 127.
func NotFound(name string) *Error {
	return newErr(KindExec, name, 127, "command not found")
}

// NotPermitted builds the ExecError for an unexecutable command; exit status 126.
func NotPermitted(name string) *Error {
	return newErr(KindExec, name, 126, "permission denied")
}

// Runtime builds a RuntimeError for builtin misuse; caller supplies the exit code.
func Runtime(name string, code int, format string, args ...any) *Error {
	return newErr(KindRuntime, name, code, format, args...)
}

// Trap builds a TrapError for an invalid signal name/spec.
func Trap(format string, args ...any) *Error {
	return newErr(KindTrap, "trap", 1, format, args...)
}

// Wrap attaches a causal chain via pkg/errors while preserving the Kind's
// exit-code mapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// As recovers a *Error from an arbitrary error chain, following both
// pkg/errors causes and stdlib wrapping.
func As(err error) (*Error, bool) {
	for err != nil {
		if se, ok := err.(*Error); ok {
			return se, true
		}
		type causer interface{ Cause() error }
		if c, ok := err.(causer); ok && c.Cause() != err {
			err = c.Cause()
			continue
		}
		type unwrapper interface{ Unwrap() error }
		if u, ok := err.(unwrapper); ok {
			err = u.Unwrap()
			continue
		}
		return nil, false
	}
	return nil, false
}

// ExitCode maps an arbitrary error to the exit status the executor should
// report, defaulting to 1 for unrecognized errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if se, ok := As(err); ok {
		return se.Code
	}
	return 1
}
