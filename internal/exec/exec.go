// Package exec implements the executor/dispatcher: simple command
// dispatch, pipelines, control flow, redirections, traps, and
// subshells, threaded through a single Executor value rather than a
// global singleton.
package exec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lash-shell/lash/internal/alias"
	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/expand"
	"github.com/lash-shell/lash/internal/function"
	"github.com/lash-shell/lash/internal/glob"
	"github.com/lash-shell/lash/internal/job"
	"github.com/lash-shell/lash/internal/parse"
	"github.com/lash-shell/lash/internal/scope"
	"github.com/lash-shell/lash/internal/shellerr"
	"github.com/lash-shell/lash/internal/trap"
)

// SignalKind tags the control-flow outcome of evaluating a node.
type SignalKind int

const (
	SigNormal SignalKind = iota
	SigReturn
	SigBreak
	SigContinue
	SigExit
)

// Signal is the value every evaluator entry point returns alongside an
// error: the control-flow outcome plus the associated status/level.
type Signal struct {
	Kind SignalKind
	Code int
}

func normal(code int) Signal { return Signal{Kind: SigNormal, Code: code} }

// Options holds the `set -o` flags (-e/-u/-f/-n) plus the auto-cd and
// autocorrect dispatch toggles.
type Options struct {
	Errexit     bool
	Nounset     bool
	Noglob      bool
	Noexec      bool
	AutoCD      bool
	Autocorrect bool
}

// BuiltinFunc is one builtin's implementation, registered externally by
// internal/builtin (which imports internal/exec — registering the other
// way round would cycle). It receives already-expanded argv (argv[0] is
// the builtin name) and explicit stdio, so fd save/restore happens
// through plain Go io values instead of raw fd dup2, which keeps each
// builtin call self-contained.
type BuiltinFunc func(ex *Executor, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error)

// Autocorrect is the out-of-scope suggestion collaborator consulted when
// a command is not found.
type Autocorrect interface {
	Suggest(cmd string) []string
}

// Executor threads every subsystem through one value; there is no
// package-level mutable shell state.
type Executor struct {
	Scope     *scope.Manager
	Functions *function.Table
	Aliases   *alias.Table
	Traps     *trap.Table
	Jobs      *job.Manager

	Options Options

	ShellPID   int
	LastBgPID  int
	Status     int
	Positional []string
	ScriptName string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Dir    string // working directory; mirrors os.Getwd, mutated by `cd`

	Builtins    map[string]BuiltinFunc
	Autocorrect Autocorrect

	// Signals receives OS signals the host program forwards (signal.Notify
	// is wired by internal/engine, not here); drainTraps evaluates any
	// queued signal's trap action at the next safe point.
	Signals chan os.Signal

	loopDepth int

	// pending is set by the break/continue/return/exit builtins (via
	// RaiseControl) to smuggle a control-flow Signal out of an ordinary
	// builtin call, which only returns (int, error). Execute's *ast.Command
	// case consumes it immediately after the call.
	pending *Signal
}

// RaiseControl records a control-flow Signal for the nearest enclosing
// simple-command dispatch to pick up, used by the break/continue/return/
// exit builtins, which are otherwise ordinary BuiltinFuncs with no way to
// return anything but an exit status.
func (ex *Executor) RaiseControl(kind SignalKind, code int) {
	ex.pending = &Signal{Kind: kind, Code: code}
}

func (ex *Executor) takeControl() (Signal, bool) {
	if ex.pending == nil {
		return Signal{}, false
	}
	sig := *ex.pending
	ex.pending = nil
	return sig, true
}

// New creates an Executor with fresh subsystem tables. Stdin/Stdout/
// Stderr default to the process's own standard streams.
func New() *Executor {
	wd, _ := os.Getwd()
	ex := &Executor{
		Scope:      scope.New(),
		Functions:  function.New(),
		Traps:      trap.New(),
		ShellPID:   os.Getpid(),
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Dir:        wd,
		Builtins:   map[string]BuiltinFunc{},
		Signals:    make(chan os.Signal, 16),
		Positional: nil,
	}
	ex.Jobs = job.New(nil)
	ex.Aliases = alias.New(func(name string) bool { _, ok := ex.Builtins[name]; return ok })
	return ex
}

// stageExecutor builds the Executor a single pipeline stage or command
// substitution runs against: its own scope/function/alias/trap snapshots,
// the given stdio, and a copied positional list. Jobs and Builtins are
// shared — the job table is internally locked and the builtin map is
// never written after install — so concurrent stages share nothing that
// is mutated without a lock, and a stage's assignments, function
// definitions, alias changes, and trap changes stay contained in it.
func (ex *Executor) stageExecutor(std stdio) *Executor {
	return &Executor{
		Scope:       ex.Scope.Clone(),
		Functions:   ex.Functions.Clone(),
		Aliases:     ex.Aliases.Clone(),
		Traps:       ex.Traps.Clone(),
		Jobs:        ex.Jobs,
		Options:     ex.Options,
		ShellPID:    ex.ShellPID,
		LastBgPID:   ex.LastBgPID,
		Positional:  append([]string(nil), ex.Positional...),
		ScriptName:  ex.ScriptName,
		Stdin:       std.In,
		Stdout:      std.Out,
		Stderr:      std.Err,
		Dir:         ex.Dir,
		Builtins:    ex.Builtins,
		Autocorrect: ex.Autocorrect,
		Signals:     make(chan os.Signal, 1),
	}
}

// Expander builds an expand.Expander bound to this Executor's environment
// and command-substitution runner.
func (ex *Executor) Expander() *expand.Expander {
	return expand.New(envAdapter{ex}, ex.RunCommandSubstitution)
}

type envAdapter struct{ ex *Executor }

func (e envAdapter) Get(name string) (string, bool) { return e.ex.Scope.Get(name) }
func (e envAdapter) Set(name, value string)         { _ = e.ex.Scope.SetGlobal(name, value) }
func (e envAdapter) IFS() string {
	if v, ok := e.ex.Scope.Get("IFS"); ok {
		return v
	}
	return " \t\n"
}
func (e envAdapter) Arg0() string {
	if e.ex.ScriptName != "" {
		return e.ex.ScriptName
	}
	return os.Args[0]
}
func (e envAdapter) Positional() []string { return e.ex.Positional }
func (e envAdapter) ExitStatus() int      { return e.ex.Status }
func (e envAdapter) PID() int             { return e.ex.ShellPID }
func (e envAdapter) LastBgPID() int       { return e.ex.LastBgPID }
func (e envAdapter) Noglob() bool         { return e.ex.Options.Noglob }
func (e envAdapter) Nounset() bool        { return e.ex.Options.Nounset }

// Execute dispatches a single AST node, returning the resulting
// control-flow Signal and the shell-level error, if any (parse/expansion
// errors, and the command-not-found/permission-denied errors external
// dispatch returns alongside status 127/126).
func (ex *Executor) Execute(n ast.Node) (Signal, error) {
	switch node := n.(type) {
	case *ast.CommandList:
		return ex.execList(node)
	case *ast.LogicalAnd:
		return ex.execAndOr(node.Left, node.Right, true)
	case *ast.LogicalOr:
		return ex.execAndOr(node.Left, node.Right, false)
	case *ast.Pipe:
		status, err := ex.execPipeline(node, true)
		ex.Status = status
		if sig, ok := ex.takeControl(); ok {
			return sig, err
		}
		return normal(status), err
	case *ast.Background:
		return ex.execBackground(node)
	case *ast.Command:
		status, err := ex.execSimpleCommand(node)
		ex.Status = status
		if sig, ok := ex.takeControl(); ok {
			return sig, err
		}
		return normal(status), err
	case *ast.If:
		return ex.execIf(node)
	case *ast.While:
		return ex.execLoop(node.Cond, node.Body, false)
	case *ast.Until:
		return ex.execLoop(node.Cond, node.Body, true)
	case *ast.For:
		return ex.execFor(node)
	case *ast.Case:
		return ex.execCase(node)
	case *ast.Function:
		if err := ex.Functions.Define(node.Name, node.Params, node.Body); err != nil {
			return normal(1), err
		}
		return normal(0), nil
	case *ast.BraceGroup:
		return ex.Execute(node.Body)
	case *ast.Subshell:
		status, err := ex.execSubshell(node)
		return normal(status), err
	default:
		return normal(1), shellerr.Runtime("exec", 1, "unsupported node %T", n)
	}
}

func (ex *Executor) execList(list *ast.CommandList) (Signal, error) {
	var sig Signal
	var err error
	for _, item := range list.Items {
		if ex.Options.Noexec {
			// `set -n` mid-stream: nothing further executes.
			return normal(ex.Status), nil
		}
		sig, err = ex.Execute(item)
		if err != nil && sig.Kind == SigNormal {
			// a non-fatal error (e.g. expansion failure) maps to a status
			// and execution continues down the list unless errexit says
			// otherwise. The diagnostic prints here, in its name: message
			// shape, since the error value is consumed at this level.
			ex.Status = shellerr.ExitCode(err)
			fmt.Fprintln(ex.Stderr, err.Error())
			err = nil
		}
		if sig.Kind != SigNormal {
			return sig, err
		}
		if ex.Options.Errexit && ex.Status != 0 {
			return Signal{Kind: SigExit, Code: ex.Status}, err
		}
		if err := ex.drainTraps(); err != nil {
			return normal(ex.Status), err
		}
	}
	return sig, nil
}

func (ex *Executor) execAndOr(left, right ast.Node, wantZero bool) (Signal, error) {
	sig, err := ex.Execute(left)
	if sig.Kind != SigNormal {
		return sig, err
	}
	ok := ex.Status == 0
	if ok != wantZero {
		return normal(ex.Status), err
	}
	return ex.Execute(right)
}

func (ex *Executor) execBackground(node *ast.Background) (Signal, error) {
	switch body := node.Body.(type) {
	case *ast.Pipe:
		status, err := ex.execPipeline(body, false)
		ex.Status = status
		return normal(status), err
	case *ast.Command:
		status, err := ex.execBackgroundCommand(body)
		ex.Status = status
		return normal(status), err
	default:
		// Any other compound construct run with '&' is executed
		// synchronously in this simplified model (no true fork for
		// compound backgrounding); its status is still reported normally.
		return ex.Execute(body)
	}
}

func (ex *Executor) execIf(node *ast.If) (Signal, error) {
	sig, err := ex.Execute(node.Cond)
	if sig.Kind != SigNormal {
		return sig, err
	}
	if ex.Status == 0 {
		return ex.Execute(node.Then)
	}
	for _, elif := range node.Elifs {
		sig, err := ex.Execute(elif.Cond)
		if sig.Kind != SigNormal {
			return sig, err
		}
		if ex.Status == 0 {
			return ex.Execute(elif.Body)
		}
	}
	if node.Else != nil {
		return ex.Execute(node.Else)
	}
	ex.Status = 0
	return normal(0), nil
}

// maxLoopIterations bounds while/until so a condition that never turns
// false still terminates.
const maxLoopIterations = 10000

func (ex *Executor) execLoop(cond, body ast.Node, until bool) (Signal, error) {
	ex.loopDepth++
	defer func() { ex.loopDepth-- }()

	for i := 0; i < maxLoopIterations; i++ {
		sig, err := ex.Execute(cond)
		if sig.Kind != SigNormal {
			return sig, err
		}
		truthy := ex.Status == 0
		if until {
			truthy = !truthy
		}
		if !truthy {
			return normal(0), nil
		}
		bsig, err := ex.Execute(body)
		switch bsig.Kind {
		case SigBreak:
			if bsig.Code <= 1 {
				return normal(ex.Status), nil
			}
			return Signal{Kind: SigBreak, Code: bsig.Code - 1}, err
		case SigContinue:
			if bsig.Code <= 1 {
				continue
			}
			return Signal{Kind: SigContinue, Code: bsig.Code - 1}, err
		case SigReturn, SigExit:
			return bsig, err
		}
		if err != nil {
			return normal(ex.Status), err
		}
	}
	return normal(ex.Status), nil
}

func (ex *Executor) execFor(node *ast.For) (Signal, error) {
	var words []string
	if node.Words == nil {
		words = append([]string(nil), ex.Positional...)
	} else {
		expanded, err := ex.Expander().ExpandWords(node.Words)
		if err != nil {
			return normal(1), err
		}
		words = expanded
	}

	ex.loopDepth++
	defer func() { ex.loopDepth-- }()

	ex.Scope.PushScope(scope.LoopFrame, "for "+node.Var)
	defer ex.Scope.PopScope()

	for _, w := range words {
		_ = ex.Scope.SetGlobal(node.Var, w)
		bsig, err := ex.Execute(node.Body)
		switch bsig.Kind {
		case SigBreak:
			if bsig.Code <= 1 {
				return normal(ex.Status), nil
			}
			return Signal{Kind: SigBreak, Code: bsig.Code - 1}, err
		case SigContinue:
			if bsig.Code <= 1 {
				continue
			}
			return Signal{Kind: SigContinue, Code: bsig.Code - 1}, err
		case SigReturn, SigExit:
			return bsig, err
		}
		if err != nil {
			return normal(ex.Status), err
		}
	}
	return normal(ex.Status), nil
}

func (ex *Executor) execCase(node *ast.Case) (Signal, error) {
	fields, err := ex.Expander().ExpandWord(node.Subject)
	if err != nil {
		return normal(1), err
	}
	subject := strings.Join(fields, " ")

	for _, item := range node.Items {
		for _, pat := range item.Patterns {
			if globMatchCasePattern(pat, subject) {
				if item.Body == nil {
					ex.Status = 0
					return normal(0), nil
				}
				return ex.Execute(item.Body)
			}
		}
	}
	ex.Status = 0
	return normal(0), nil
}

func (ex *Executor) execSubshell(node *ast.Subshell) (int, error) {
	saved := ex.Scope
	savedDir := ex.Dir
	savedPositional := append([]string(nil), ex.Positional...)
	ex.Scope = saved.Clone()
	defer func() {
		ex.Scope = saved
		ex.Dir = savedDir
		ex.Positional = savedPositional
	}()

	sig, err := ex.Execute(node.Body)
	if sig.Kind == SigExit {
		return sig.Code, err
	}
	return ex.Status, err
}

// drainTraps evaluates any pending signal's trap action, non-blockingly,
// at a safe point between top-level statements.
func (ex *Executor) drainTraps() error {
	for {
		select {
		case sig := <-ex.Signals:
			ns, ok := trapSignalOf(sig)
			if !ok {
				continue
			}
			action, has := ex.Traps.Get(ns)
			if !has || action == trap.Ignore || action == trap.Default {
				continue
			}
			p, err := parseSource(string(action))
			if err != nil {
				return err
			}
			if _, err := ex.Execute(p); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// RunExitTrap evaluates the EXIT trap (signal 0), if any; it runs before
// exit and before a successful exec.
func (ex *Executor) RunExitTrap() error {
	action, ok := ex.Traps.Get(trap.ExitSignal)
	if !ok || action == trap.Ignore || action == trap.Default {
		return nil
	}
	p, err := parseSource(string(action))
	if err != nil {
		return err
	}
	_, err = ex.Execute(p)
	return err
}

// ExecuteSource parses src as a program and executes it against this
// Executor's current scope (no Clone, unlike command substitution), for
// the eval/source/trap-action builtins in internal/builtin.
func (ex *Executor) ExecuteSource(src string) (Signal, error) {
	prog, err := parseSource(src)
	if err != nil {
		return Signal{}, err
	}
	return ex.Execute(prog)
}

// Chdir changes the working directory and mirrors it into OLDPWD/PWD,
// exported for the cd builtin in internal/builtin (the AutoCD dispatch
// step in command.go calls the unexported chdir directly).
func (ex *Executor) Chdir(dir string) (int, error) { return ex.chdir(dir) }

// ChildEnv returns the environment a replacing process image should
// inherit, exported for the exec builtin in internal/builtin.
func (ex *Executor) ChildEnv() []string { return ex.childEnv() }

func parseSource(src string) (ast.Node, error) {
	p, err := parse.New(src, false)
	if err != nil {
		return nil, err
	}
	return p.ParseProgram()
}

// trapSignalOf maps a delivered os.Signal to the syscall.Signal the trap
// table is keyed on.
func trapSignalOf(sig os.Signal) (syscall.Signal, bool) {
	s, ok := sig.(syscall.Signal)
	return s, ok
}

func globMatchCasePattern(pattern, subject string) bool {
	return glob.Match(pattern, subject)
}

// ResolveExternalPath resolves name to an executable path via $PATH (or
// returns name unchanged if it already contains a slash), exported for
// the type/hash builtins in internal/builtin.
func ResolveExternalPath(ex *Executor, name string) (string, error) {
	return resolveExternalPath(ex, name)
}

func resolveExternalPath(ex *Executor, name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	pathVar, _ := ex.Scope.Get("PATH")
	for _, dir := range filepath.SplitList(pathVar) {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", shellerr.NotFound(name)
}
