// Package builtin implements the builtin registry: the ~40 named
// commands the core executes in-process rather than via $PATH,
// registered into an internal/exec.Executor's Builtins map. Nothing in
// internal/exec imports this package (registering the other way round
// would cycle); internal/engine imports both and wires them together at
// startup.
package builtin

import (
	"io"

	"github.com/lash-shell/lash/internal/collab"
	"github.com/lash-shell/lash/internal/exec"
	"github.com/lash-shell/lash/internal/history"

	"resenje.org/singleflight"
)

// Registry holds the collaborator references and shared state a handful
// of builtins need beyond the Executor itself: history's builtin wraps
// internal/history, hash coalesces concurrent PATH lookups through
// singleflight, config forwards to the ConfigSource collaborator, and
// setprompt/theme keep the PS1/LASH_THEME variables the core's fallback
// rendering reads. Every field is
// optional; a nil collaborator just falls back to the core's own
// behavior.
type Registry struct {
	History *history.History
	Config  collab.ConfigSource
	Theme   collab.ThemeProvider
	Prompt  collab.PromptRenderer
	Tracer  collab.Tracer

	// Metrics, if set, backs the `dump -m` form with a snapshot of the
	// engine's prometheus counters (internal/engine wires this to its
	// commandsTotal/errorsTotal).
	Metrics func() map[string]float64

	hashGroup singleflight.Group[string, string]
	hashCache map[string]string
}

// New creates a Registry. hist may be nil (history disabled); the
// collaborator fields are left nil and can be set directly by the
// caller (internal/engine) before Install.
func New(hist *history.History) *Registry {
	return &Registry{History: hist, hashCache: map[string]string{}}
}

// Install populates ex.Builtins with every builtin this registry backs.
// Called once at Executor construction time, normally by
// internal/engine.
func (r *Registry) Install(ex *exec.Executor) {
	for name, fn := range map[string]exec.BuiltinFunc{
		":":         builtinColon,
		".":         r.builtinSource,
		"source":    r.builtinSource,
		"alias":     builtinAlias,
		"unalias":   builtinUnalias,
		"bg":        builtinBg,
		"fg":        builtinFg,
		"jobs":      builtinJobs,
		"wait":      builtinWait,
		"kill":      builtinKill,
		"break":     builtinBreak,
		"continue":  builtinContinue,
		"return":    builtinReturn,
		"exit":      builtinExit,
		"cd":        builtinCd,
		"pwd":       builtinPwd,
		"clear":     builtinClear,
		"dump":      r.builtinDump,
		"echo":      builtinEcho,
		"eval":      r.builtinEval,
		"exec":      builtinExec,
		"export":    builtinExport,
		"false":     builtinFalse,
		"true":      builtinTrue,
		"getopts":   builtinGetopts,
		"hash":      r.builtinHash,
		"help":      builtinHelp,
		"history":   r.builtinHistory,
		"local":     builtinLocal,
		"printf":    builtinPrintf,
		"read":      builtinRead,
		"readonly":  builtinReadonly,
		"set":       builtinSet,
		"setopt":    builtinSetopt,
		"setprompt": r.builtinSetprompt,
		"shift":     builtinShift,
		"test":      builtinTest,
		"[":         builtinBracket,
		"theme":     r.builtinTheme,
		"times":     builtinTimes,
		"trap":      builtinTrap,
		"type":      builtinType,
		"ulimit":    builtinUlimit,
		"umask":     builtinUmask,
		"unset":     builtinUnset,
		"config":    r.builtinConfig,
	} {
		ex.Builtins[name] = fn
	}
}

func (r *Registry) trace(event string, fields map[string]any) {
	if r.Tracer != nil {
		r.Tracer.Trace(event, fields)
	}
}

func builtinColon(_ *exec.Executor, _ []string, _ io.Reader, _, _ io.Writer) (int, error) {
	return 0, nil
}
