package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	mobysignal "github.com/moby/sys/signal"

	"github.com/lash-shell/lash/internal/exec"
	"github.com/lash-shell/lash/internal/trap"
)

// builtinAlias implements `alias [name[=value]]...`; with no arguments
// it lists every defined alias.
func builtinAlias(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		names := ex.Aliases.Names()
		sort.Strings(names)
		for _, n := range names {
			v, _ := ex.Aliases.Get(n)
			fmt.Fprintf(stdout, "alias %s='%s'\n", n, v)
		}
		return 0, nil
	}
	status := 0
	for _, arg := range argv[1:] {
		name, value, hasValue := splitAssign(arg)
		if !hasValue {
			v, ok := ex.Aliases.Get(name)
			if !ok {
				fmt.Fprintf(stderr, "alias: %s: not found\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(stdout, "alias %s='%s'\n", name, v)
			continue
		}
		if err := ex.Aliases.Set(name, value); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			status = 1
		}
	}
	return status, nil
}

func builtinUnalias(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "unalias: usage: unalias name...")
		return 2, nil
	}
	if argv[1] == "-a" {
		for _, n := range ex.Aliases.Names() {
			ex.Aliases.Unset(n)
		}
		return 0, nil
	}
	for _, name := range argv[1:] {
		ex.Aliases.Unset(name)
	}
	return 0, nil
}

// builtinType implements `type name...`, resolving the alias table, then
// the function table, then the builtin registry, then $PATH, in that
// order.
func builtinType(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "type: usage: type name...")
		return 2, nil
	}
	status := 0
	for _, name := range argv[1:] {
		switch {
		case func() bool { _, ok := ex.Aliases.Get(name); return ok }():
			v, _ := ex.Aliases.Get(name)
			fmt.Fprintf(stdout, "%s is aliased to `%s'\n", name, v)
		case func() bool { _, ok := ex.Functions.Lookup(name); return ok }():
			fmt.Fprintf(stdout, "%s is a function\n", name)
		case func() bool { _, ok := ex.Builtins[name]; return ok }():
			fmt.Fprintf(stdout, "%s is a shell builtin\n", name)
		default:
			path, err := exec.ResolveExternalPath(ex, name)
			if err != nil {
				fmt.Fprintf(stderr, "type: %s: not found\n", name)
				status = 1
				continue
			}
			fmt.Fprintf(stdout, "%s is %s\n", name, path)
		}
	}
	return status, nil
}

// builtinHash implements `hash [-r] [name...]`: PATH resolution results
// are cached and concurrent lookups of the same name are coalesced
// through singleflight rather than racing duplicate stat() calls.
func (r *Registry) builtinHash(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	args := argv[1:]
	if len(args) > 0 && args[0] == "-r" {
		r.hashCache = map[string]string{}
		return 0, nil
	}
	if len(args) == 0 {
		names := make([]string, 0, len(r.hashCache))
		for n := range r.hashCache {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(stdout, "%s=%s\n", n, r.hashCache[n])
		}
		return 0, nil
	}
	status := 0
	for _, name := range args {
		path, _, err := r.hashGroup.Do(context.Background(), name, func(context.Context) (string, error) {
			if cached, ok := r.hashCache[name]; ok {
				return cached, nil
			}
			return exec.ResolveExternalPath(ex, name)
		})
		if err != nil {
			fmt.Fprintf(stderr, "hash: %s: not found\n", name)
			status = 1
			continue
		}
		r.hashCache[name] = path
	}
	return status, nil
}

func builtinHelp(_ *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	if len(argv) > 1 {
		fmt.Fprintf(stdout, "%s: a shell builtin\n", argv[1])
		return 0, nil
	}
	fmt.Fprintln(stdout, "builtins: :, ., source, alias, bg, break, cd, clear, continue,")
	fmt.Fprintln(stdout, "dump, echo, eval, exec, exit, export, false, fg, getopts, hash,")
	fmt.Fprintln(stdout, "help, history, jobs, kill, local, printf, pwd, read, readonly,")
	fmt.Fprintln(stdout, "return, set, setopt, setprompt, shift, test, [, theme, times, trap,")
	fmt.Fprintln(stdout, "true, type, ulimit, umask, unalias, unset, wait, config")
	return 0, nil
}

// builtinEval re-parses and executes its joined arguments against the
// current Executor (not a subshell copy), so assignments and directory
// changes made by the evaluated text are visible afterward.
func (r *Registry) builtinEval(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	src := strings.Join(argv[1:], " ")
	if src == "" {
		return 0, nil
	}
	sig, err := ex.ExecuteSource(src)
	if err != nil {
		fmt.Fprintf(stderr, "eval: %v\n", err)
	}
	switch sig.Kind {
	case exec.SigReturn, exec.SigExit:
		ex.RaiseControl(sig.Kind, sig.Code)
		return sig.Code, nil
	default:
		return ex.Status, nil
	}
}

// builtinSource implements `.`/`source file [arg...]`: the file's
// contents execute against the current Executor, with the given
// arguments temporarily replacing $1.../$@ for its duration.
func (r *Registry) builtinSource(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "source: usage: source file [arg...]")
		return 2, nil
	}
	data, err := os.ReadFile(argv[1])
	if err != nil {
		fmt.Fprintf(stderr, "source: %v\n", err)
		return 1, nil
	}
	if len(argv) > 2 {
		saved := ex.Positional
		ex.Positional = argv[2:]
		defer func() { ex.Positional = saved }()
	}
	sig, err := ex.ExecuteSource(string(data))
	if err != nil {
		fmt.Fprintf(stderr, "source: %v\n", err)
	}
	switch sig.Kind {
	case exec.SigReturn:
		return sig.Code, nil
	case exec.SigExit:
		ex.RaiseControl(exec.SigExit, sig.Code)
		return sig.Code, nil
	default:
		return ex.Status, nil
	}
}

// builtinExec implements `exec cmd [arg...]`, replacing the shell
// process image outright via syscall.Exec; the EXIT trap runs first.
func builtinExec(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		return 0, nil
	}
	path, err := exec.ResolveExternalPath(ex, argv[1])
	if err != nil {
		fmt.Fprintf(stderr, "exec: %s: not found\n", argv[1])
		return 127, nil
	}
	if err := ex.RunExitTrap(); err != nil {
		fmt.Fprintf(stderr, "exec: %v\n", err)
	}
	if err := syscall.Exec(path, argv[1:], ex.ChildEnv()); err != nil {
		fmt.Fprintf(stderr, "exec: %v\n", err)
		return 126, nil
	}
	return 0, nil // unreachable on success
}

// builtinTrap implements `trap [-l] [action signal...]`.
func builtinTrap(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	args := argv[1:]
	if len(args) > 0 && args[0] == "-l" {
		names := make([]string, 0, len(mobysignal.SignalMap))
		for n := range mobysignal.SignalMap {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintln(stdout, strings.Join(names, " "))
		return 0, nil
	}
	if len(args) == 0 {
		for _, sig := range ex.Traps.Signals() {
			action, _ := ex.Traps.Get(sig)
			fmt.Fprintf(stdout, "trap -- '%s' %s\n", action, trapSignalName(sig))
		}
		return 0, nil
	}
	if len(args) == 1 {
		fmt.Fprintln(stderr, "trap: usage: trap [action] signal...")
		return 2, nil
	}
	action := trap.Action(args[0])
	for _, spec := range args[1:] {
		sig, err := trap.ParseSignal(spec)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1, nil
		}
		ex.Traps.Set(sig, action)
	}
	return 0, nil
}

func trapSignalName(sig syscall.Signal) string {
	if sig == trap.ExitSignal {
		return "EXIT"
	}
	for name, s := range mobysignal.SignalMap {
		if s == sig {
			return name
		}
	}
	return sig.String()
}

// builtinHistory implements `history [-c] [-d n]`, wrapping
// internal/history.
func (r *Registry) builtinHistory(_ *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.History == nil {
		fmt.Fprintln(stderr, "history: not available")
		return 1, nil
	}
	if len(argv) > 1 && argv[1] == "-c" {
		if err := r.History.Clear(); err != nil {
			fmt.Fprintf(stderr, "history: %v\n", err)
			return 1, nil
		}
		return 0, nil
	}
	if len(argv) > 2 && argv[1] == "-d" {
		n := atoiOr(argv[2], 0)
		entries := r.History.Entries()
		if err := r.History.Clear(); err != nil {
			fmt.Fprintf(stderr, "history: %v\n", err)
			return 1, nil
		}
		for _, e := range entries {
			if e.Index == n {
				continue
			}
			_ = r.History.Append(e.Line)
		}
		return 0, nil
	}
	for _, e := range r.History.Entries() {
		fmt.Fprintf(stdout, "%5d  %s\n", e.Index, e.Line)
	}
	return 0, nil
}

// builtinSetprompt implements `setprompt [format]`: with no argument it
// reports the current PS1, with one it sets it. Rendering the live
// prompt is the out-of-scope collab.PromptRenderer's job; this
// only maintains the format string the core's own fallback render uses
// when no collaborator is wired.
func (r *Registry) builtinSetprompt(ex *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	if len(argv) < 2 {
		ps1, _ := ex.Scope.Get("PS1")
		fmt.Fprintln(stdout, ps1)
		return 0, nil
	}
	_ = ex.Scope.SetGlobal("PS1", strings.Join(argv[1:], " "))
	r.trace("setprompt", map[string]any{"value": strings.Join(argv[1:], " ")})
	return 0, nil
}

// builtinTheme implements `theme [name]`: with no argument it reports
// the active theme (the wired collab.ThemeProvider's, if any, else the
// LASH_THEME variable); with one it records the requested name for the
// core's own default rendering.
func (r *Registry) builtinTheme(ex *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	if len(argv) < 2 {
		if r.Theme != nil {
			fmt.Fprintln(stdout, r.Theme.Theme().Name)
			return 0, nil
		}
		name, _ := ex.Scope.Get("LASH_THEME")
		if name == "" {
			name = "default"
		}
		fmt.Fprintln(stdout, name)
		return 0, nil
	}
	_ = ex.Scope.SetGlobal("LASH_THEME", argv[1])
	r.trace("theme", map[string]any{"name": argv[1]})
	return 0, nil
}

// builtinConfig implements `config [reload]`, forwarding to the wired
// collab.ConfigSource and applying the Options it returns onto this
// Executor (the core never parses config files itself).
func (r *Registry) builtinConfig(ex *exec.Executor, _ []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if r.Config == nil {
		fmt.Fprintln(stderr, "config: no config source wired")
		return 1, nil
	}
	opts, err := r.Config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1, nil
	}
	if opts.IFS != "" {
		_ = ex.Scope.SetGlobal("IFS", opts.IFS)
	}
	if opts.PS1 != "" {
		_ = ex.Scope.SetGlobal("PS1", opts.PS1)
	}
	ex.Options.Errexit = opts.Errexit
	ex.Options.Nounset = opts.Nounset
	ex.Options.Noglob = opts.Noglob
	for name, value := range opts.ExtraAliases {
		_ = ex.Aliases.Set(name, value)
	}
	fmt.Fprintln(stdout, "config: reloaded")
	return 0, nil
}
