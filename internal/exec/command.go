package exec

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/lash-shell/lash/internal/ast"
	"github.com/lash-shell/lash/internal/scope"
	"github.com/lash-shell/lash/internal/shellerr"
)

// execSimpleCommand implements the dispatch order for one
// simple command, running it in the foreground.
func (ex *Executor) execSimpleCommand(cmd *ast.Command) (int, error) {
	return ex.dispatch(cmd, stdio{In: ex.Stdin, Out: ex.Stdout, Err: ex.Stderr}, true)
}

func (ex *Executor) execBackgroundCommand(cmd *ast.Command) (int, error) {
	return ex.dispatch(cmd, stdio{In: ex.Stdin, Out: ex.Stdout, Err: ex.Stderr}, false)
}

// dispatch is shared by foreground/background simple-command execution
// and by pipeline stage N's fallback path when a stage is a builtin or
// function rather than an external process.
func (ex *Executor) dispatch(cmd *ast.Command, base stdio, foreground bool) (int, error) {
	assignOnly := len(cmd.Words) == 0

	if assignOnly {
		// Writes default to the global scope; an existing binding in any
		// frame (including a `local` one) is updated in place instead.
		for _, a := range cmd.Assigns {
			val, err := ex.expandAssignValue(a.Value)
			if err != nil {
				return 1, err
			}
			if err := ex.Scope.SetGlobal(a.Name, val); err != nil {
				return 1, err
			}
		}
		return 0, nil
	}

	popTemp := false
	if len(cmd.Assigns) > 0 {
		ex.Scope.PushScope(scope.FunctionFrame, "assign-prefix")
		popTemp = true
		defer func() {
			if popTemp {
				ex.Scope.PopScope()
			}
		}()
		for _, a := range cmd.Assigns {
			val, err := ex.expandAssignValue(a.Value)
			if err != nil {
				return 1, err
			}
			if err := ex.Scope.SetLocal(a.Name, val); err != nil {
				return 1, err
			}
			_ = ex.Scope.Export(a.Name)
		}
	}

	argv, err := ex.Expander().ExpandWords(cmd.Words)
	if err != nil {
		return 1, err
	}
	if len(argv) == 0 {
		return 0, nil
	}

	if expanded, changed, err := ex.Aliases.Expand(argv[0]); err == nil && changed {
		fields := strings.Fields(expanded)
		argv = append(fields, argv[1:]...)
		if len(argv) == 0 {
			return 0, nil
		}
	}

	name := argv[0]

	if def, ok := ex.Functions.Lookup(name); ok {
		return ex.callFunction(def.Params, def.Body, argv[1:], cmd, base)
	}

	if builtin, ok := ex.Builtins[name]; ok {
		return ex.runBuiltin(builtin, cmd, argv, base)
	}

	if ex.Options.AutoCD {
		if fi, statErr := os.Stat(name); statErr == nil && fi.IsDir() {
			return ex.chdir(name)
		}
	}

	status, err := ex.runExternal(cmd, argv, base, foreground)
	if err == nil {
		return status, nil
	}

	if se, ok := shellerr.As(err); ok && se.Code == 127 && ex.Options.Autocorrect && ex.Autocorrect != nil {
		if suggestions := ex.Autocorrect.Suggest(name); len(suggestions) > 0 {
			fmt.Fprintf(ex.Stderr, "%s: command not found, did you mean: %s?\n", name, strings.Join(suggestions, ", "))
		}
	}
	return status, err
}

func (ex *Executor) expandAssignValue(v ast.Node) (string, error) {
	if v == nil {
		return "", nil
	}
	fields, err := ex.Expander().ExpandWord(v)
	if err != nil {
		return "", err
	}
	return strings.Join(fields, " "), nil
}

func (ex *Executor) runBuiltin(fn BuiltinFunc, cmd *ast.Command, argv []string, base stdio) (int, error) {
	io, cleanup, err := ex.resolveRedirects(cmd, base)
	if err != nil {
		return 1, err
	}
	defer cleanup()
	return fn(ex, argv, io.In, io.Out, io.Err)
}

func (ex *Executor) callFunction(params []ast.Param, body ast.Node, args []string, cmd *ast.Command, base stdio) (int, error) {
	io, cleanup, err := ex.resolveRedirects(cmd, base)
	if err != nil {
		return 1, err
	}
	defer cleanup()

	savedStdin, savedStdout, savedStderr := ex.Stdin, ex.Stdout, ex.Stderr
	savedPositional := ex.Positional
	ex.Stdin, ex.Stdout, ex.Stderr = io.In, io.Out, io.Err
	ex.Positional = args
	defer func() {
		ex.Stdin, ex.Stdout, ex.Stderr = savedStdin, savedStdout, savedStderr
		ex.Positional = savedPositional
	}()

	ex.Scope.PushScope(scope.FunctionFrame, "function")
	defer ex.Scope.PopScope()

	for i, p := range params {
		val := p.Default
		if i < len(args) {
			val = args[i]
		} else if !p.HasDefault {
			val = ""
		}
		_ = ex.Scope.SetLocal(p.Name, val)
	}

	sig, err := ex.Execute(body)
	switch sig.Kind {
	case SigReturn:
		return sig.Code, err
	case SigExit:
		return sig.Code, err
	default:
		return ex.Status, err
	}
}

func (ex *Executor) chdir(dir string) (int, error) {
	if err := os.Chdir(dir); err != nil {
		return 1, shellerr.Runtime("cd", 1, "%v", err)
	}
	_ = ex.Scope.SetGlobal("OLDPWD", ex.Dir)
	ex.Dir = dir
	_ = ex.Scope.SetGlobal("PWD", dir)
	return 0, nil
}

func (ex *Executor) runExternal(cmd *ast.Command, argv []string, base stdio, foreground bool) (int, error) {
	path, err := resolveExternalPath(ex, argv[0])
	if err != nil {
		return 127, err
	}

	io, cleanup, err := ex.resolveRedirects(cmd, base)
	if err != nil {
		return 1, err
	}
	defer cleanup()

	c := exec.Command(path, argv[1:]...)
	c.Dir = ex.Dir
	c.Stdin = io.In
	c.Stdout = io.Out
	c.Stderr = io.Err
	c.Env = ex.childEnv()

	j, err := ex.Jobs.StartPipeline(strings.Join(argv, " "), []*exec.Cmd{c}, foreground)
	if err != nil {
		return 126, shellerr.NotPermitted(argv[0])
	}
	if !foreground {
		ex.LastBgPID = ex.Jobs.Background(j)
		return 0, nil
	}
	status, waitErr := ex.Jobs.Wait(j)
	return status, waitErr
}

func (ex *Executor) childEnv() []string {
	env := os.Environ()
	for name, val := range ex.Scope.Exported() {
		env = append(env, name+"="+val)
	}
	return env
}
