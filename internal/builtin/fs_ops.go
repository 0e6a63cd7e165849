package builtin

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	units "github.com/docker/go-units"
	"golang.org/x/sys/unix"

	"github.com/lash-shell/lash/internal/exec"
)

// builtinCd implements `cd [-|dir]`, defaulting to $HOME, with `cd -`
// switching to $OLDPWD (and echoing it, matching interactive shells).
func builtinCd(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	target := ""
	if len(argv) > 1 {
		target = argv[1]
	}
	if target == "" {
		home, _ := ex.Scope.Get("HOME")
		target = home
	}
	if target == "-" {
		oldpwd, ok := ex.Scope.Get("OLDPWD")
		if !ok {
			fmt.Fprintln(stderr, "cd: OLDPWD not set")
			return 1, nil
		}
		target = oldpwd
		fmt.Fprintln(stdout, target)
	}
	if target == "" {
		fmt.Fprintln(stderr, "cd: HOME not set")
		return 1, nil
	}
	status, err := ex.Chdir(target)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
	}
	return status, nil
}

func builtinPwd(ex *exec.Executor, _ []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	fmt.Fprintln(stdout, ex.Dir)
	return 0, nil
}

// builtinClear writes the ANSI "clear screen, home cursor" sequence.
func builtinClear(_ *exec.Executor, _ []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	fmt.Fprint(stdout, "\x1b[2J\x1b[H")
	return 0, nil
}

// builtinDump lists every visible variable, for debugging scope state;
// `dump -m` instead prints the engine's prometheus
// counter snapshot, if internal/engine wired one in.
func (r *Registry) builtinDump(ex *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) > 1 && argv[1] == "-m" {
		if r.Metrics == nil {
			fmt.Fprintln(stderr, "dump: no metrics wired")
			return 1, nil
		}
		names := make([]string, 0, 8)
		snapshot := r.Metrics()
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(stdout, "%s %g\n", name, snapshot[name])
		}
		return 0, nil
	}
	for _, sym := range ex.Scope.Dump() {
		flags := ""
		if sym.Exported {
			flags += "x"
		}
		if sym.Readonly {
			flags += "r"
		}
		if sym.Local {
			flags += "l"
		}
		fmt.Fprintf(stdout, "%s=%s", sym.Name, sym.Value)
		if flags != "" {
			fmt.Fprintf(stdout, " [%s]", flags)
		}
		fmt.Fprintln(stdout)
	}
	return 0, nil
}

// builtinEcho implements `echo [-n] [-e] arg...`.
func builtinEcho(_ *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	args := argv[1:]
	newline := true
	interp := false
loop:
	for len(args) > 0 {
		switch args[0] {
		case "-n":
			newline = false
			args = args[1:]
		case "-e":
			interp = true
			args = args[1:]
		default:
			break loop
		}
	}
	line := strings.Join(args, " ")
	if interp {
		line = expandBackslashes(line)
	}
	fmt.Fprint(stdout, line)
	if newline {
		fmt.Fprintln(stdout)
	}
	return 0, nil
}

// rlimitByName maps the names `ulimit` accepts to the corresponding
// syscall resource constant; docker/go-units' Ulimit carries the name
// but not the resource number, so the core keeps this small table
// itself.
var rlimitByName = map[string]int{
	"core":    syscall.RLIMIT_CORE,
	"cpu":     syscall.RLIMIT_CPU,
	"data":    syscall.RLIMIT_DATA,
	"fsize":   syscall.RLIMIT_FSIZE,
	"nofile":  syscall.RLIMIT_NOFILE,
	"stack":   syscall.RLIMIT_STACK,
	"as":      syscall.RLIMIT_AS,
	"memlock": unix.RLIMIT_MEMLOCK,
}

// builtinUlimit implements `ulimit name=soft[:hard]` (docker's `--ulimit`
// flag syntax, reused here since it already pairs a name with a
// soft/hard limit pair) via docker/go-units' ParseUlimit, and bare
// `ulimit name` to report the current limit, human-sized.
func builtinUlimit(_ *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		fmt.Fprintln(stderr, "ulimit: usage: ulimit name[=soft[:hard]]")
		return 2, nil
	}
	if !strings.Contains(argv[1], "=") {
		resource, ok := rlimitByName[argv[1]]
		if !ok {
			fmt.Fprintf(stderr, "ulimit: %s: unknown resource\n", argv[1])
			return 1, nil
		}
		var rl syscall.Rlimit
		if err := syscall.Getrlimit(resource, &rl); err != nil {
			fmt.Fprintf(stderr, "ulimit: %v\n", err)
			return 1, nil
		}
		fmt.Fprintf(stdout, "%s soft=%s hard=%s\n", argv[1], units.HumanSize(float64(rl.Cur)), units.HumanSize(float64(rl.Max)))
		return 0, nil
	}

	u, err := units.ParseUlimit(argv[1])
	if err != nil {
		fmt.Fprintf(stderr, "ulimit: %v\n", err)
		return 1, nil
	}
	resource, ok := rlimitByName[u.Name]
	if !ok {
		fmt.Fprintf(stderr, "ulimit: %s: unknown resource\n", u.Name)
		return 1, nil
	}
	rl := syscall.Rlimit{Cur: uint64(u.Soft), Max: uint64(u.Hard)}
	if err := syscall.Setrlimit(resource, &rl); err != nil {
		fmt.Fprintf(stderr, "ulimit: %v\n", err)
		return 1, nil
	}
	return 0, nil
}

// builtinUmask implements `umask [mode]`, mode given in octal.
func builtinUmask(_ *exec.Executor, argv []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) < 2 {
		old := syscall.Umask(0)
		syscall.Umask(old)
		fmt.Fprintf(stdout, "%04o\n", old)
		return 0, nil
	}
	mode, err := strconv.ParseUint(argv[1], 8, 32)
	if err != nil {
		fmt.Fprintf(stderr, "umask: %s: invalid mode\n", argv[1])
		return 1, nil
	}
	syscall.Umask(int(mode))
	return 0, nil
}

// builtinTimes implements `times`, reporting the shell's own and its
// children's accumulated CPU time, human-formatted via docker/go-units'
// HumanDuration.
func builtinTimes(_ *exec.Executor, _ []string, _ io.Reader, stdout, stderr io.Writer) (int, error) {
	var self, children syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &self); err != nil {
		fmt.Fprintf(stderr, "times: %v\n", err)
		return 1, nil
	}
	if err := syscall.Getrusage(syscall.RUSAGE_CHILDREN, &children); err != nil {
		fmt.Fprintf(stderr, "times: %v\n", err)
		return 1, nil
	}
	fmt.Fprintf(stdout, "%s %s\n",
		units.HumanDuration(timevalDuration(self.Utime)),
		units.HumanDuration(timevalDuration(self.Stime)))
	fmt.Fprintf(stdout, "%s %s\n",
		units.HumanDuration(timevalDuration(children.Utime)),
		units.HumanDuration(timevalDuration(children.Stime)))
	return 0, nil
}

func timevalDuration(tv syscall.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}
