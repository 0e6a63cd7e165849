package builtin

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lash-shell/lash/internal/exec"
	"github.com/lash-shell/lash/internal/trap"
)

// jobID parses a `%n` or bare `n` job reference, defaulting to the most
// recently started job (the highest id currently tracked) when spec is
// empty.
func jobID(ex *exec.Executor, spec string) (int, bool) {
	spec = strings.TrimPrefix(spec, "%")
	if spec == "" || spec == "+" || spec == "-" {
		jobs := ex.Jobs.List()
		if len(jobs) == 0 {
			return 0, false
		}
		return jobs[len(jobs)-1].ID, true
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return 0, false
	}
	return n, true
}

// builtinJobs implements `jobs [-v]`, listing every tracked job as
// `[id]+ State  commandline`, marking the most
// recent job with '+'; `-v` appends each job's trace correlation id.
func builtinJobs(ex *exec.Executor, argv []string, _ io.Reader, stdout, _ io.Writer) (int, error) {
	verbose := len(argv) > 1 && argv[1] == "-v"
	jobs := ex.Jobs.List()
	for i, j := range jobs {
		marker := "-"
		if i == len(jobs)-1 {
			marker = "+"
		}
		fmt.Fprintf(stdout, "[%d]%s %-8s %s", j.ID, marker, j.State, j.CommandLine)
		if verbose {
			fmt.Fprintf(stdout, " (%s, %s)", j.TraceID, ex.Jobs.Elapsed(j).Round(time.Millisecond))
		}
		fmt.Fprintln(stdout)
	}
	return 0, nil
}

// builtinBg implements `bg [%n]`.
func builtinBg(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	spec := ""
	if len(argv) > 1 {
		spec = argv[1]
	}
	id, ok := jobID(ex, spec)
	if !ok {
		fmt.Fprintln(stderr, "bg: no current job")
		return 1, nil
	}
	if err := ex.Jobs.Bg(id); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1, nil
	}
	return 0, nil
}

// builtinFg implements `fg [%n]`, blocking until the job completes or
// stops again.
func builtinFg(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	spec := ""
	if len(argv) > 1 {
		spec = argv[1]
	}
	id, ok := jobID(ex, spec)
	if !ok {
		fmt.Fprintln(stderr, "fg: no current job")
		return 1, nil
	}
	status, err := ex.Jobs.Fg(id)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1, nil
	}
	return status, nil
}

// builtinWait implements `wait [%n]`: with an argument, waits for that
// one job; with none, waits for every currently tracked job in order.
func builtinWait(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	if len(argv) > 1 {
		id, ok := jobID(ex, argv[1])
		if !ok {
			fmt.Fprintln(stderr, "wait: no such job")
			return 1, nil
		}
		j, ok := ex.Jobs.Get(id)
		if !ok {
			return 0, nil
		}
		status, err := ex.Jobs.Wait(j)
		return status, err
	}
	status := 0
	for _, j := range ex.Jobs.List() {
		s, err := ex.Jobs.Wait(j)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
		}
		status = s
	}
	return status, nil
}

// builtinKill implements `kill [-signal|-s signal] %n`, routed to the
// job's whole process group. signal defaults to SIGTERM.
func builtinKill(ex *exec.Executor, argv []string, _ io.Reader, _, stderr io.Writer) (int, error) {
	args := argv[1:]
	sig := syscall.SIGTERM
	if len(args) > 0 && args[0] == "-s" {
		if len(args) < 2 {
			fmt.Fprintln(stderr, "kill: usage: kill [-s signal] %n")
			return 2, nil
		}
		parsed, err := trap.ParseSignal(args[1])
		if err != nil {
			fmt.Fprintf(stderr, "kill: %v\n", err)
			return 1, nil
		}
		sig = parsed
		args = args[2:]
	} else if len(args) > 0 && strings.HasPrefix(args[0], "-") && args[0] != "-" {
		parsed, err := trap.ParseSignal(args[0][1:])
		if err != nil {
			fmt.Fprintf(stderr, "kill: %v\n", err)
			return 1, nil
		}
		sig = parsed
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, "kill: usage: kill [-s signal] %n")
		return 2, nil
	}
	status := 0
	for _, spec := range args {
		id, ok := jobID(ex, spec)
		if !ok {
			fmt.Fprintf(stderr, "kill: %s: no such job\n", spec)
			status = 1
			continue
		}
		if err := ex.Jobs.KillGroup(id, sig); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			status = 1
		}
	}
	return status, nil
}
