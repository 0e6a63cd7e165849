// Package engine is the orchestrator: the single value that threads the tokenizer/parser/executor and
// every supporting subsystem together, owns the REPL, wires OS signal
// delivery, and merges the layered option configuration. Nothing else in
// the tree assembles these pieces; internal/exec, internal/builtin, and
// internal/collab all stay ignorant of each other and of how they get
// wired together — that assembly happens here, and only here.
package engine

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dario.cat/mergo"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"

	"github.com/lash-shell/lash/internal/alias"
	"github.com/lash-shell/lash/internal/builtin"
	"github.com/lash-shell/lash/internal/collab"
	"github.com/lash-shell/lash/internal/exec"
	"github.com/lash-shell/lash/internal/history"
	"github.com/lash-shell/lash/internal/job"
	"github.com/lash-shell/lash/internal/parse"
)

// Options is the three-layer-merged configuration: built-in defaults,
// the process environment,
// and the CLI flags cmd/lash parses, merged in that order via
// dario.cat/mergo so each layer's explicit, non-zero values win over the
// one before it without clobbering fields the later layer left unset.
// The first block of fields (IFS through ExtraAliases) is field-for-field
// identical to collab.Options (which exists so internal/collab has no
// dependency on this package); the second block has no collab.Options
// counterpart.
type Options struct {
	IFS          string
	PS1          string
	Errexit      bool
	Nounset      bool
	Noglob       bool
	HistSize     int
	LoopBound    int
	AliasDepth   int
	ExtraAliases map[string]string

	Login     bool
	NoRC      bool
	NoExec    bool
	HistFile   string
	AutoCD     bool
	AutoFix    bool
	ScriptName string
	ScriptArg  []string
}

// DefaultOptions is the first merge layer: the core's own built-in
// defaults, used when neither the environment nor CLI flags say
// otherwise.
func DefaultOptions() Options {
	return Options{
		IFS:       " \t\n",
		PS1:       "$ ",
		HistSize:  1000,
		LoopBound: 10000,
		AliasDepth: alias.MaxDepth,
		HistFile:  defaultHistFile(),
	}
}

func defaultHistFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.lash_history"
}

// environOptions is the second merge layer: values derived from the
// recognized environment variables.
func environOptions() Options {
	var o Options
	if v, ok := os.LookupEnv("IFS"); ok {
		o.IFS = v
	}
	if v, ok := os.LookupEnv("LASH_PS1"); ok {
		o.PS1 = v
	}
	if v, ok := os.LookupEnv("LASH_HISTFILE"); ok {
		o.HistFile = v
	}
	return o
}

// MergeOptions layers defaults -> env -> cli, each only overriding
// fields the next layer actually set (mergo.WithOverride treats a
// non-zero src field as authoritative while leaving zero-value src
// fields alone, which is exactly the "explicit wins, unset falls
// through" rule the three layers need).
func MergeOptions(cli Options) (Options, error) {
	result := DefaultOptions()
	if err := mergo.Merge(&result, environOptions(), mergo.WithOverride); err != nil {
		return result, fmt.Errorf("merge environment options: %w", err)
	}
	if err := mergo.Merge(&result, cli, mergo.WithOverride); err != nil {
		return result, fmt.Errorf("merge cli options: %w", err)
	}
	return result, nil
}

// Engine threads every subsystem together. Construct with New; the
// zero value is not usable.
type Engine struct {
	Exec     *exec.Executor
	Builtins *builtin.Registry
	History  *history.History
	Options  Options

	LineEditor  collab.LineEditor
	Hints       collab.HistoryHints
	Prompt      collab.PromptRenderer
	Theme       collab.ThemeProvider
	Config      collab.ConfigSource
	Plugins     []collab.PluginLoader
	Autocorrect collab.Autocorrect
	Tracer      collab.Tracer

	log *logrus.Logger

	commandsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
}

// New builds an Engine from the merged Options, ready to run either a
// batch script or an interactive REPL. interactive controls whether a
// controlling-terminal TermControl is acquired for job control.
func New(opts Options, interactive bool) (*Engine, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	hist, err := history.Open(opts.HistFile, opts.HistSize)
	if err != nil {
		return nil, err
	}

	ex := exec.New()
	ex.Options.Errexit = opts.Errexit
	ex.Options.Nounset = opts.Nounset
	ex.Options.Noglob = opts.Noglob
	ex.Options.Noexec = opts.NoExec
	ex.Options.AutoCD = opts.AutoCD
	ex.Options.Autocorrect = opts.AutoFix
	ex.ScriptName = opts.ScriptName
	ex.Positional = opts.ScriptArg

	if interactive {
		term, err := job.NewTermControl(int(os.Stdin.Fd()))
		if err != nil {
			log.WithError(err).Debug("no controlling terminal; job control disabled")
		} else {
			ex.Jobs = job.New(term)
		}
	}

	_ = ex.Scope.SetGlobal("IFS", opts.IFS)
	_ = ex.Scope.SetGlobal("PS1", opts.PS1)
	_ = ex.Scope.SetGlobal("OPTIND", "1")

	reg := builtin.New(hist)
	reg.Install(ex)
	for name, value := range opts.ExtraAliases {
		_ = ex.Aliases.Set(name, value)
	}

	e := &Engine{
		Exec:     ex,
		Builtins: reg,
		History:  hist,
		Options:  opts,
		log:      log,
		commandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lash_commands_total",
			Help: "simple commands dispatched by this shell instance",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lash_errors_total",
			Help: "shell-level errors reported by this shell instance",
		}),
	}
	// Registration fails (AlreadyRegisteredError) if a second Engine shares
	// this process's default registry, e.g. in tests; the counters still
	// work standalone via the `dump` builtin, so the error is not fatal.
	_ = prometheus.Register(e.commandsTotal)
	_ = prometheus.Register(e.errorsTotal)
	reg.Metrics = e.metricsSnapshot

	if interactive {
		signal.Notify(ex.Signals, signalsToNotify()...)
	}

	return e, nil
}

// SetCollaborators wires the out-of-scope collaborators; any
// argument left nil keeps the core's own default behavior. Also hands
// the collaborators through to the builtin registry, so setprompt/theme/
// config/hash/history can reach them.
func (e *Engine) SetCollaborators(lineEditor collab.LineEditor, hints collab.HistoryHints, prompt collab.PromptRenderer, theme collab.ThemeProvider, cfg collab.ConfigSource, autocorrect collab.Autocorrect, tracer collab.Tracer) {
	e.LineEditor = lineEditor
	e.Hints = hints
	e.Prompt = prompt
	e.Theme = theme
	e.Config = cfg
	e.Autocorrect = autocorrect
	e.Tracer = tracer

	e.Builtins.Prompt = prompt
	e.Builtins.Theme = theme
	e.Builtins.Config = cfg
	e.Builtins.Tracer = tracer

	if autocorrect != nil {
		e.Exec.Autocorrect = autocorrectAdapter{autocorrect}
	}
}

// metricsSnapshot backs the `dump -m` builtin form with the counters'
// current values, read via the prometheus client_model wire type rather
// than a package-private accessor.
func (e *Engine) metricsSnapshot() map[string]float64 {
	return map[string]float64{
		"lash_commands_total": counterValue(e.commandsTotal),
		"lash_errors_total":   counterValue(e.errorsTotal),
	}
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

type autocorrectAdapter struct{ a collab.Autocorrect }

func (a autocorrectAdapter) Suggest(cmd string) []string { return a.a.Suggest(cmd) }

func signalsToNotify() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGCHLD, syscall.SIGWINCH}
}

// RunScript parses and executes src as a non-interactive program (the
// `-c`/script-file batch mode), returning the exit status to report.
func (e *Engine) RunScript(src string) int {
	prog, err := parse.New(src, e.Exec.Options.Noexec)
	if err != nil {
		e.reportError(err)
		return 2
	}
	node, err := prog.ParseProgram()
	if err != nil {
		e.reportError(err)
		return 2
	}
	if e.Exec.Options.Noexec {
		return 0 // set -n: syntax check only, nothing executes
	}
	sig, err := e.Exec.Execute(node)
	if err != nil {
		e.reportError(err)
	}
	e.commandsTotal.Inc()
	if sig.Kind == exec.SigExit {
		_ = e.Exec.RunExitTrap()
		return sig.Code
	}
	_ = e.Exec.RunExitTrap()
	return e.Exec.Status
}

// Repl runs the interactive read-eval-print loop until EOF or an exit
// is raised, returning the final exit status.
func (e *Engine) Repl() int {
	var buf strings.Builder
	for {
		prompt := e.renderPrompt()
		line, err := e.readLine(prompt)
		if err != nil {
			if err == io.EOF {
				break
			}
			e.reportError(err)
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')

		src := buf.String()
		p, err := parse.New(src, false)
		if err != nil {
			e.reportError(err)
			buf.Reset()
			continue
		}
		node, err := p.ParseProgram()
		if err != nil {
			if needsMoreInput(err) {
				continue // await a continuation line, keep buf accumulating
			}
			e.reportError(err)
			buf.Reset()
			continue
		}
		buf.Reset()

		if e.History != nil {
			_ = e.History.Append(strings.TrimRight(src, "\n"))
		}

		sig, err := e.Exec.Execute(node)
		if err != nil {
			e.reportError(err)
		}
		e.commandsTotal.Inc()
		if e.Tracer != nil {
			e.Tracer.Trace("command", map[string]any{"status": e.Exec.Status})
		}
		if sig.Kind == exec.SigExit {
			_ = e.Exec.RunExitTrap()
			return sig.Code
		}
		for _, j := range e.Exec.Jobs.Reap() {
			fmt.Fprintf(e.Exec.Stderr, "[%d]+ %-8s %s\n", j.ID, j.State, j.CommandLine)
			if e.Tracer != nil {
				e.Tracer.Trace("job_state", map[string]any{"trace_id": j.TraceID, "job_id": j.ID, "state": j.State.String()})
			}
		}
	}
	_ = e.Exec.RunExitTrap()
	return e.Exec.Status
}

func needsMoreInput(err error) bool {
	return strings.Contains(err.Error(), `found ""`)
}

func (e *Engine) renderPrompt() string {
	if e.Prompt != nil {
		return e.Prompt.Render(collab.PromptContext{
			WorkingDir: e.Exec.Dir,
			LastStatus: e.Exec.Status,
			JobCount:   len(e.Exec.Jobs.List()),
		})
	}
	ps1, _ := e.Exec.Scope.Get("PS1")
	return ps1
}

func (e *Engine) readLine(prompt string) (string, error) {
	if e.LineEditor != nil {
		return e.LineEditor.ReadLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	return readLineFallback(e.Exec.Stdin)
}

func readLineFallback(r io.Reader) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	read := false
	for {
		n, err := r.Read(buf)
		if n > 0 {
			read = true
			if buf[0] == '\n' {
				return b.String(), nil
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			if err == io.EOF && read {
				return b.String(), nil
			}
			return "", err
		}
	}
}

// reportError diagnoses err to stderr in its `name: message` shape, and
// logs it structurally via logrus for any collaborator
// watching process logs (the stderr diagnostic shape itself is never
// replaced by structured logging, only supplemented).
func (e *Engine) reportError(err error) {
	fmt.Fprintln(e.Exec.Stderr, err.Error())
	e.errorsTotal.Inc()
	e.log.WithFields(logrus.Fields{"pid": e.Exec.ShellPID}).Warn(err.Error())
}
