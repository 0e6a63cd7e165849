package builtin

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/lash-shell/lash/internal/exec"
)

func splitAssign(arg string) (name, value string, hasValue bool) {
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:], true
	}
	return arg, "", false
}

// builtinLocal implements `local name[=value]...`:
// each name is bound in the innermost non-global frame (a function frame,
// or a for-loop frame pushed inside it), shadowing any outer binding
// until that frame is popped.
func builtinLocal(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		return 0, nil
	}
	for _, arg := range argv[1:] {
		name, value, _ := splitAssign(arg)
		if err := ex.Scope.SetLocal(name, value); err != nil {
			fmt.Fprintf(stderr, "local: %v\n", err)
			return 1, nil
		}
	}
	return 0, nil
}

// builtinExport implements `export [name[=value]]...`; a bare name marks
// an existing (or newly created, empty) variable exported without
// disturbing its current value.
func builtinExport(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		for _, sym := range ex.Scope.Dump() {
			if sym.Exported {
				fmt.Fprintf(stdout, "export %s=%s\n", sym.Name, sym.Value)
			}
		}
		return 0, nil
	}
	for _, arg := range argv[1:] {
		name, value, hasValue := splitAssign(arg)
		if hasValue {
			if err := ex.Scope.SetGlobal(name, value); err != nil {
				fmt.Fprintf(stderr, "export: %v\n", err)
				return 1, nil
			}
		}
		_ = ex.Scope.Export(name)
	}
	return 0, nil
}

// builtinReadonly implements `readonly [name[=value]]...`; with no
// arguments it lists every readonly variable as `readonly name=value`,
// one per line.
func builtinReadonly(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		names := ex.Scope.ReadonlyNames()
		sort.Slice(names, func(i, j int) bool { return names[i].Name < names[j].Name })
		for _, sym := range names {
			fmt.Fprintf(stdout, "readonly %s=%s\n", sym.Name, sym.Value)
		}
		return 0, nil
	}
	for _, arg := range argv[1:] {
		name, value, hasValue := splitAssign(arg)
		if err := ex.Scope.Readonly(name, value, hasValue); err != nil {
			fmt.Fprintf(stderr, "readonly: %v\n", err)
			return 1, nil
		}
	}
	return 0, nil
}

// builtinUnset implements `unset [-f] name...`; -f targets the function
// table instead of the variable scope.
func builtinUnset(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	args := argv[1:]
	fn := false
	if len(args) > 0 && args[0] == "-f" {
		fn = true
		args = args[1:]
	}
	for _, name := range args {
		if fn {
			ex.Functions.Delete(name)
			continue
		}
		if err := ex.Scope.Unset(name); err != nil {
			fmt.Fprintf(stderr, "unset: %v\n", err)
			return 1, nil
		}
	}
	return 0, nil
}

// builtinSet implements `set [-euf n] [-o name] [--] [arg...]` and the
// bare `set` variable-listing form.
func builtinSet(ex *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	args := argv[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if a == "-o" || a == "+o" {
			i++
			if i >= len(args) {
				continue
			}
			applyLongOption(ex, args[i], a == "-o")
			continue
		}
		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}
		on := a[0] == '-'
		for _, c := range a[1:] {
			applyShortOption(ex, c, on)
		}
	}
	if i < len(args) {
		ex.Positional = append([]string(nil), args[i:]...)
		return 0, nil
	}
	if len(args) == 0 {
		names := ex.Scope.Dump()
		sort.Slice(names, func(a, b int) bool { return names[a].Name < names[b].Name })
		for _, sym := range names {
			fmt.Fprintf(stdout, "%s=%s\n", sym.Name, sym.Value)
		}
	}
	return 0, nil
}

func applyShortOption(ex *exec.Executor, c rune, on bool) {
	switch c {
	case 'e':
		ex.Options.Errexit = on
	case 'u':
		ex.Options.Nounset = on
	case 'f':
		ex.Options.Noglob = on
	case 'n':
		ex.Options.Noexec = on
	}
}

func applyLongOption(ex *exec.Executor, name string, on bool) {
	switch name {
	case "errexit":
		ex.Options.Errexit = on
	case "nounset":
		ex.Options.Nounset = on
	case "noglob":
		ex.Options.Noglob = on
	case "noexec":
		ex.Options.Noexec = on
	case "autocd":
		ex.Options.AutoCD = on
	case "autocorrect":
		ex.Options.Autocorrect = on
	}
}

// builtinSetopt is an alias surface for the core's own extension options
// (autocd/autocorrect) that `set -o` also reaches, kept as its own
// builtin name alongside `set`.
func builtinSetopt(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "setopt: usage: setopt name [on|off]")
		return 2, nil
	}
	on := true
	if len(argv) > 2 {
		on = argv[2] != "off" && argv[2] != "0"
	}
	applyLongOption(ex, argv[1], on)
	return 0, nil
}

// builtinShift implements `shift [n]`.
func builtinShift(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	n := 1
	if len(argv) > 1 {
		n = atoiOr(argv[1], 1)
	}
	if n < 0 || n > len(ex.Positional) {
		fmt.Fprintln(stderr, "shift: shift count out of range")
		return 1, nil
	}
	ex.Positional = ex.Positional[n:]
	return 0, nil
}

// builtinGetopts implements a conventional getopts optstring name
// [arg...], threading OPTIND/OPTARG through the scope.
func builtinGetopts(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) < 3 {
		fmt.Fprintln(stderr, "getopts: usage: getopts optstring name [arg...]")
		return 2, nil
	}
	optstring := argv[1]
	name := argv[2]
	args := ex.Positional
	if len(argv) > 3 {
		args = argv[3:]
	}

	optindStr, _ := ex.Scope.Get("OPTIND")
	optind, err := strconv.Atoi(optindStr)
	if err != nil || optind < 1 {
		optind = 1
	}

	if optind-1 >= len(args) {
		_ = ex.Scope.SetGlobal(name, "?")
		return 1, nil
	}
	cur := args[optind-1]
	if cur == "--" || len(cur) < 2 || cur[0] != '-' {
		_ = ex.Scope.SetGlobal(name, "?")
		return 1, nil
	}
	opt := string(cur[1])
	idx := strings.IndexByte(optstring, opt[0])
	if idx < 0 {
		_ = ex.Scope.SetGlobal(name, "?")
		_ = ex.Scope.SetGlobal("OPTARG", opt)
		_ = ex.Scope.SetGlobal("OPTIND", strconv.Itoa(optind+1))
		return 0, nil
	}
	_ = ex.Scope.SetGlobal(name, opt)
	if idx+1 < len(optstring) && optstring[idx+1] == ':' {
		if len(cur) > 2 {
			_ = ex.Scope.SetGlobal("OPTARG", cur[2:])
			optind++
		} else if optind < len(args) {
			_ = ex.Scope.SetGlobal("OPTARG", args[optind])
			optind += 2
		} else {
			fmt.Fprintf(stderr, "getopts: option requires an argument -- %s\n", opt)
			_ = ex.Scope.SetGlobal(name, "?")
			optind++
		}
	} else {
		optind++
	}
	_ = ex.Scope.SetGlobal("OPTIND", strconv.Itoa(optind))
	return 0, nil
}

// builtinRead implements `read [-r] name...`, splitting one input line
// on IFS across the given names with the last name absorbing any
// remainder (POSIX read semantics).
func builtinRead(ex *exec.Executor, argv []string, stdin io.Reader, _, _ io.Writer) (int, error) {
	names := argv[1:]
	raw := false
	if len(names) > 0 && names[0] == "-r" {
		raw = true
		names = names[1:]
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}

	r := bufio.NewReader(stdin)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return 1, nil
	}
	line = strings.TrimRight(line, "\n")
	if !raw {
		line = strings.ReplaceAll(line, "\\\n", "")
	}

	ifs := "\t\n "
	if v, ok := ex.Scope.Get("IFS"); ok {
		ifs = v
	}
	fields := strings.FieldsFunc(line, func(r rune) bool { return strings.ContainsRune(ifs, r) })

	for i, name := range names {
		switch {
		case i >= len(fields):
			_ = ex.Scope.SetGlobal(name, "")
		case i == len(names)-1:
			_ = ex.Scope.SetGlobal(name, strings.Join(fields[i:], " "))
		default:
			_ = ex.Scope.SetGlobal(name, fields[i])
		}
	}
	if err != nil {
		return 1, nil
	}
	return 0, nil
}

// builtinPrintf implements a POSIX-subset printf: the format string is
// reapplied to the argument list until every argument has been
// consumed, as printf(1) does (unlike Go's one-shot fmt.Fprintf).
func builtinPrintf(_ *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "printf: usage: printf format [arguments]")
		return 2, nil
	}
	format := expandBackslashes(argv[1])
	args := argv[2:]

	if len(args) == 0 {
		fmt.Fprint(stdout, renderPrintf(format, nil))
		return 0, nil
	}
	for len(args) > 0 {
		var consumed int
		out, n := renderPrintfConsume(format, args)
		consumed = n
		fmt.Fprint(stdout, out)
		if consumed == 0 {
			break
		}
		args = args[consumed:]
	}
	return 0, nil
}

func expandBackslashes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(s[i])
				b.WriteByte(s[i+1])
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// renderPrintf substitutes %s/%d/%%/%b verbs in format against args,
// consuming at most len(args) of them; unmatched trailing verbs render
// as empty string/0, matching printf(1)'s "missing arguments are empty"
// rule for the final cycle.
func renderPrintf(format string, args []string) string {
	out, _ := renderPrintfConsume(format, args)
	return out
}

func renderPrintfConsume(format string, args []string) (string, int) {
	var b strings.Builder
	ai := 0
	next := func() string {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return ""
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		verb := format[i+1]
		switch verb {
		case '%':
			b.WriteByte('%')
		case 's':
			b.WriteString(next())
		case 'b':
			b.WriteString(expandBackslashes(next()))
		case 'd', 'i':
			n, _ := strconv.Atoi(next())
			fmt.Fprintf(&b, "%d", n)
		case 'c':
			v := next()
			if len(v) > 0 {
				b.WriteByte(v[0])
			}
		default:
			b.WriteByte('%')
			b.WriteByte(verb)
			continue
		}
		i++
	}
	if ai == 0 {
		return b.String(), len(args)
	}
	return b.String(), ai
}
